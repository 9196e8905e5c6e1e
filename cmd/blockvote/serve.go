package main

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/luca-patrignani/blockvote/authority"
	"github.com/luca-patrignani/blockvote/config"
	"github.com/luca-patrignani/blockvote/discovery"
	"github.com/luca-patrignani/blockvote/ledger"
	"github.com/luca-patrignani/blockvote/logger"
	"github.com/luca-patrignani/blockvote/network"
	"github.com/luca-patrignani/blockvote/storage"
)

const (
	hostKey     = "host"
	portKey     = "port"
	dataDirKey  = "data-dir"
	logLevelKey = "log-level"
	peerKey     = "peer"
	tlsKey      = "tls"
	discoverKey = "discover"
)

func serveCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Runs a node serving the HTTP API",
		RunE:  serveFunc,
	}
	addServeFlags(c.Flags())
	return c
}

func addServeFlags(flags *pflag.FlagSet) {
	flags.String(hostKey, "", "address to listen on (overrides node.host)")
	flags.Int(portKey, 0, "port to listen on (overrides node.port)")
	flags.String(dataDirKey, "", "directory of the state file (overrides node.data_dir)")
	flags.String(logLevelKey, "", "debug, info, warn or error (overrides logging.level)")
	flags.StringSlice(peerKey, nil, "peer node to register, repeatable; a partial IP is completed from the listen address")
	flags.Bool(tlsKey, false, "serve HTTPS with a self-signed certificate")
	flags.Bool(discoverKey, false, "announce and discover nodes on the local network (overrides discovery.enabled)")
}

// applyServeFlags overrides cfg with the flags set on the command line.
func applyServeFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed(hostKey) {
		cfg.Node.Host, _ = flags.GetString(hostKey)
	}
	if flags.Changed(portKey) {
		cfg.Node.Port, _ = flags.GetInt(portKey)
	}
	if flags.Changed(dataDirKey) {
		cfg.Node.DataDir, _ = flags.GetString(dataDirKey)
	}
	if flags.Changed(logLevelKey) {
		cfg.Logging.Level, _ = flags.GetString(logLevelKey)
	}
	if flags.Changed(discoverKey) {
		cfg.Discovery.Enabled, _ = flags.GetBool(discoverKey)
	}
	peers, err := flags.GetStringSlice(peerKey)
	if err != nil {
		return err
	}
	cfg.Peers.Addresses = append(cfg.Peers.Addresses, peers...)
	return cfg.Validate()
}

func serveFunc(c *cobra.Command, _ []string) error {
	path, err := c.Flags().GetString(configKey)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := applyServeFlags(c.Flags(), cfg); err != nil {
		return err
	}
	log, closer, err := logger.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	useTLS, _ := c.Flags().GetBool(tlsKey)
	return runNode(c.Context(), cfg, useTLS, log)
}

// runNode serves the node described by cfg until ctx is done.
func runNode(ctx context.Context, cfg *config.Config, useTLS bool, log *slog.Logger) error {
	l, err := net.Listen("tcp", net.JoinHostPort(cfg.Node.Host, strconv.Itoa(cfg.Node.Port)))
	if err != nil {
		return fmt.Errorf("listen on %s:%d: %w", cfg.Node.Host, cfg.Node.Port, err)
	}
	defer l.Close()

	clientOpts := []network.ClientOption{network.WithTimeout(cfg.Peers.Timeout)}
	var serverOpts []network.ServerOption
	if useTLS {
		host := cfg.Node.Host
		if host == "" || net.ParseIP(host).IsUnspecified() {
			host = "localhost"
		}
		cert, certPEM, err := network.GenerateSelfSignedCert(host)
		if err != nil {
			return err
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(certPEM)
		clientOpts = append(clientOpts, network.WithRootCAs(pool))
		serverOpts = append(serverOpts, network.WithCertificate(cert))
	}
	client := network.NewClient(clientOpts...)

	store := storage.NewFileStore(storage.PathForPort(cfg.Node.DataDir, cfg.Node.Port))
	chain := ledger.New(
		ledger.WithStore(store),
		ledger.WithChainFetcher(client),
		ledger.WithLogger(log.With("component", "ledger")),
	)
	if cfg.Election.Set() {
		start, end, err := cfg.Election.Window()
		if err != nil {
			return err
		}
		chain.SetElectionWindow(start, end)
	}

	localIP := net.IPv4zero
	if tcpAddr, ok := l.Addr().(*net.TCPAddr); ok {
		localIP = tcpAddr.IP
	}
	for _, peer := range cfg.Peers.Addresses {
		addr, err := completePeerAddress(localIP, peer, cfg.Node.Port)
		if err != nil {
			log.Warn("skipping peer", "peer", peer, "err", err)
			continue
		}
		if err := chain.RegisterNode(addr); err != nil {
			log.Warn("skipping peer", "peer", peer, "err", err)
		}
	}

	minerID := cfg.Node.MinerID
	if minerID == "" {
		minerID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	serverOpts = append(serverOpts,
		network.WithClient(client),
		network.WithLogger(log.With("component", "api")),
	)
	if cfg.Authority.Enabled {
		keyPEM, err := authority.LoadOrGenerateKey(cfg.Authority.KeyFile)
		if err != nil {
			return err
		}
		a, err := authority.New(keyPEM)
		if err != nil {
			return err
		}
		serverOpts = append(serverOpts, network.WithAuthority(a))
	}
	server, err := network.NewServer(chain, minerID, serverOpts...)
	if err != nil {
		return err
	}
	printBanner()
	printNodeInfo(l.Addr().String(), store.Path(), minerID, useTLS)
	server.Start(l)
	defer server.Close()

	if cfg.Discovery.Enabled {
		d := &discovery.Discover{
			Info:                         []byte(announceAddress(l)),
			Port:                         uint16(cfg.Discovery.Port),
			IntervalBetweenAnnouncements: cfg.Discovery.Interval,
			Logger:                       log.With("component", "discovery"),
		}
		if err := d.Start(); err != nil {
			return fmt.Errorf("start discovery: %w", err)
		}
		defer d.Close()
		var subnet *net.IPNet
		if tl, ok := l.(*net.TCPListener); ok {
			if n, err := subnetOfListener(tl); err == nil {
				subnet = &n
			}
		}
		go registerDiscovered(chain, d.Entries, subnet, log)
	}

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// registerDiscovered registers every announced address until entries is
// closed. When subnet is set, announcements from outside it are dropped.
func registerDiscovered(chain *ledger.Ledger, entries <-chan discovery.Entry, subnet *net.IPNet, log *slog.Logger) {
	seen := make(map[string]struct{})
	for entry := range entries {
		addr := string(entry.Info)
		if subnet != nil {
			host, _, err := net.SplitHostPort(addr)
			if ip := net.ParseIP(host); err != nil || ip == nil || !subnet.Contains(ip) {
				log.Debug("ignoring announcement outside subnet", "address", addr, "subnet", subnet.String())
				continue
			}
		}
		if _, ok := seen[addr]; !ok {
			log.Info("discovered node", "address", addr)
			seen[addr] = struct{}{}
		}
		if err := chain.RegisterNode(addr); err != nil {
			log.Warn("ignoring announcement", "address", addr, "err", err)
		}
	}
}

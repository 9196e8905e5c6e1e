package network

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/luca-patrignani/blockvote/authority"
	"github.com/luca-patrignani/blockvote/ledger"
)

const shutdownTimeout = 10 * time.Second

// Server serves the node API for one ledger.
type Server struct {
	ledger    *ledger.Ledger
	minerID   string
	client    Client
	authority *authority.Authority
	logger    *slog.Logger
	origins   []string
	registry  *prometheus.Registry
	metrics   *serverMetrics

	handler   http.Handler
	server    *http.Server
	tlsConfig *tls.Config

	// background broadcasts
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// ServerOption configures a Server built by NewServer.
type ServerOption func(*Server)

// WithAuthority enables the /admin routes backed by a.
func WithAuthority(a *authority.Authority) ServerOption {
	return func(s *Server) {
		s.authority = a
	}
}

// WithClient sets the client used to relay transactions to peers.
func WithClient(c Client) ServerOption {
	return func(s *Server) {
		s.client = c
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins sets the CORS origins; all origins are allowed by default.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithRegistry registers the server metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.registry = reg
	}
}

// NewServer builds the API of l. Mining rewards go to minerID.
func NewServer(l *ledger.Ledger, minerID string, opts ...ServerOption) (*Server, error) {
	s := &Server{
		ledger:  l,
		minerID: minerID,
		client:  NewClient(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	m, err := newMetrics(s.registry)
	if err != nil {
		return nil, err
	}
	s.metrics = m
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	s.handler = s.routes()
	s.server = &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/chain", s.handleChain).Methods(http.MethodGet)
	r.HandleFunc("/chain/verify", s.handleVerify).Methods(http.MethodGet)
	r.HandleFunc("/mine", s.handleMine).Methods(http.MethodGet)
	r.HandleFunc("/transactions/new", s.handleNewTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions/pending", s.handlePending).Methods(http.MethodGet)
	r.HandleFunc("/nodes/register", s.handleRegisterNodes).Methods(http.MethodPost)
	r.HandleFunc("/nodes/resolve", s.handleResolve).Methods(http.MethodGet)
	r.HandleFunc("/votes/count", s.handleCountVotes).Methods(http.MethodGet)
	r.HandleFunc("/election/window", s.handleSetWindow).Methods(http.MethodPost)
	r.HandleFunc("/election/window", s.handleClearWindow).Methods(http.MethodDelete)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	if s.authority != nil {
		r.HandleFunc("/admin/key", s.handleAdminKey).Methods(http.MethodGet)
		r.HandleFunc("/admin/sign", s.handleAdminSign).Methods(http.MethodPost)
	}
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Use(s.metrics.middleware)

	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

// Handler returns the API handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves the API on l in the background.
func (s *Server) Start(l net.Listener) {
	if s.tlsConfig != nil {
		l = tls.NewListener(l, s.tlsConfig)
	}
	s.logger.Info("API listening", "address", l.Addr().String(), "tls", s.tlsConfig != nil)
	go func() {
		err := s.server.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "err", err)
		}
	}()
}

// Close stops the server and waits for pending broadcasts.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.bgCancel()
	s.bg.Wait()
	return err
}

// relay forwards an accepted transaction to every registered peer.
func (s *Server) relay(tx TransactionRequest) {
	nodes := s.ledger.Nodes()
	if len(nodes) == 0 {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if err := s.client.Broadcast(s.bgCtx, nodes, tx); err != nil {
			s.logger.Debug("broadcast incomplete", "err", err)
		}
	}()
}

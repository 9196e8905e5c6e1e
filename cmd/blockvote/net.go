package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// guessIpAddress takes a base IP address and a partial address string,
// and fills in the missing octets from the base address.
func guessIpAddress(baseAddress net.IP, partialAddr string) (net.IP, error) {
	ip := make(net.IP, len(baseAddress))
	copy(ip, baseAddress)
	octets := strings.Split(partialAddr, ".")
	if len(octets) == 1 && octets[0] == "" {
		return ip, nil
	}
	if len(octets) > len(ip) {
		return net.IP{}, fmt.Errorf("too many octets in %q", partialAddr)
	}
	for i := 0; i < len(octets); i++ {
		var octet byte
		_, err := fmt.Sscanf(octets[i], "%d", &octet)
		if err != nil {
			return net.IP{}, err
		}
		ip[len(ip)-len(octets)+i] = octet
	}
	return ip, nil
}

// subnetOfListener returns the IP network (CIDR) of the interface that contains
// the local address used by the provided TCP listener.
func subnetOfListener(l *net.TCPListener) (net.IPNet, error) {
	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return net.IPNet{}, fmt.Errorf("listener is not TCP")
	}
	ip := tcpAddr.IP
	if ip == nil || ip.IsUnspecified() {
		return net.IPNet{}, fmt.Errorf("listener has unspecified IP %v", ip)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return net.IPNet{}, err
	}
	for _, ifi := range ifaces {
		addrs, _ := ifi.Addrs()
		for _, a := range addrs {
			ipnet := interfaceNet(a)
			if ipnet == nil {
				continue
			}
			if ipnet.Contains(ip) || ipnet.IP.Equal(ip) {
				return *ipnet, nil
			}
		}
	}
	return net.IPNet{}, fmt.Errorf("no interface found for ip %v", ip)
}

func interfaceNet(a net.Addr) *net.IPNet {
	switch v := a.(type) {
	case *net.IPNet:
		return v
	case *net.IPAddr:
		return &net.IPNet{IP: v.IP, Mask: v.IP.DefaultMask()}
	}
	return nil
}

// splitHostPort splits an address into host and port, using defaultPort if no port is specified.
func splitHostPort(addr string, defaultPort int) (string, string, error) {
	ipaddr, port, err := net.SplitHostPort(addr)
	if err != nil {
		addr = addr + ":" + strconv.Itoa(defaultPort)
		ipaddr, port, err = net.SplitHostPort(addr)
		if err != nil {
			return "", "", err
		}
	}
	return ipaddr, port, nil
}

// completePeerAddress turns a peer given on the command line into a node
// address. URLs, host names and full IPs are kept; a partial IP such as "42"
// or "15.42" borrows its leading octets from local.
func completePeerAddress(local net.IP, peer string, defaultPort int) (string, error) {
	if strings.Contains(peer, "://") {
		return peer, nil
	}
	host, port, err := splitHostPort(peer, defaultPort)
	if err != nil {
		return "", err
	}
	if !isPartialIP(host) {
		return net.JoinHostPort(host, port), nil
	}
	base := local.To4()
	if base == nil || base.IsUnspecified() {
		return "", fmt.Errorf("cannot complete %q: listening on an unspecified address", peer)
	}
	ip, err := guessIpAddress(base, host)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip.String(), port), nil
}

func isPartialIP(host string) bool {
	if net.ParseIP(host) != nil {
		return false
	}
	for _, r := range host {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// announceAddress is the address other nodes should use to reach l. When l
// listens on every interface, the first non-loopback IPv4 address is used.
func announceAddress(l net.Listener) string {
	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return l.Addr().String()
	}
	port := strconv.Itoa(tcpAddr.Port)
	if !tcpAddr.IP.IsUnspecified() {
		return net.JoinHostPort(tcpAddr.IP.String(), port)
	}
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			ipnet := interfaceNet(a)
			if ipnet == nil || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
				continue
			}
			return net.JoinHostPort(ipnet.IP.String(), port)
		}
	}
	return net.JoinHostPort("127.0.0.1", port)
}

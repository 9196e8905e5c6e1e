package network

import (
	"context"
	"crypto/x509"
	"testing"
	"time"

	"github.com/luca-patrignani/blockvote/ledger"
)

func TestFetchChainOverTLS(t *testing.T) {
	listeners, addresses := createListeners(t, 1)
	cert, certPEM, err := GenerateSelfSignedCert("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	l := ledger.New()
	if _, err := l.Mine(context.Background(), "tls-miner"); err != nil {
		t.Fatal(err)
	}
	s, err := NewServer(l, "tls-miner", WithCertificate(cert))
	if err != nil {
		t.Fatal(err)
	}
	s.Start(listeners[0])
	defer func() {
		if err := s.Close(); err != nil {
			t.Error(err)
		}
	}()

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		t.Fatal("cannot load generated certificate")
	}
	client := NewClient(WithTimeout(2*time.Second), WithRootCAs(pool))
	chain, length, err := client.FetchChain(context.Background(), addresses[0])
	if err != nil {
		t.Fatal(err)
	}
	if length != 2 || len(chain) != 2 || !ledger.ValidChain(chain) {
		t.Fatalf("unexpected chain of length %d (%d blocks)", length, len(chain))
	}

	plain := NewClient(WithTimeout(2 * time.Second))
	if _, _, err := plain.FetchChain(context.Background(), "https://"+addresses[0]); err == nil {
		t.Fatal("expected certificate verification failure without the trusted root")
	}
}

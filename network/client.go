package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luca-patrignani/blockvote/ledger"
)

// DefaultTimeout bounds every request to a peer.
const DefaultTimeout = 5 * time.Second

// maxParallelBroadcast caps concurrent requests of a single Broadcast.
const maxParallelBroadcast = 8

// TransactionRequest is the body of POST /transactions/new. Signature is
// hex encoded; PublicKey is the voter's PKCS#1 PEM key.
type TransactionRequest struct {
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	Amount     *int64 `json:"amount"`
	Signature  string `json:"signature"`
	PublicKey  string `json:"public_key"`
	ElectionID string `json:"election_id,omitempty"`
}

// Client talks to the API of other nodes.
type Client struct {
	http    *http.Client
	timeout time.Duration
	scheme  string
}

var _ ledger.ChainFetcher = Client{}

func NewClient(opts ...ClientOption) Client {
	c := Client{timeout: DefaultTimeout, scheme: "http"}
	for _, opt := range opts {
		c = opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

func (c Client) nodeURL(node, path string) string {
	if strings.Contains(node, "://") {
		return strings.TrimSuffix(node, "/") + path
	}
	return c.scheme + "://" + node + path
}

// FetchChain returns the chain of node and the length it reports.
func (c Client) FetchChain(ctx context.Context, node string) ([]ledger.Block, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL(node, "/chain"), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch chain from %s: %w", node, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch chain from %s: status %d", node, resp.StatusCode)
	}
	var body ledger.ChainResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("decode chain from %s: %w", node, err)
	}
	return body.Chain, body.Length, nil
}

// SubmitTransaction posts tx to node and returns the response status code.
// Both 200 (already pending) and 201 (accepted) count as success.
func (c Client) SubmitTransaction(ctx context.Context, node string, tx TransactionRequest) (int, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL(node, "/transactions/new"), bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("submit transaction to %s: %w", node, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return resp.StatusCode, fmt.Errorf("submit transaction to %s: status %d", node, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Broadcast submits tx to every node and joins the failures.
func (c Client) Broadcast(ctx context.Context, nodes []string, tx TransactionRequest) error {
	var g errgroup.Group
	g.SetLimit(maxParallelBroadcast)
	errs := make([]error, len(nodes))
	for i, node := range nodes {
		g.Go(func() error {
			_, errs[i] = c.SubmitTransaction(ctx, node, tx)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

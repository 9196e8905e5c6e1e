package ledger

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Ledger is the chain, mempool, peer set and election window of one node.
// It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	chain   []Block
	mempool []Transaction
	nodes   map[string]struct{}
	window  *ElectionWindow

	store   Store
	fetcher ChainFetcher
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Ledger built by New.
type Option func(*Ledger)

// WithStore makes the ledger load its state from s and persist every
// mutation to it.
func WithStore(s Store) Option {
	return func(l *Ledger) {
		l.store = s
	}
}

// WithChainFetcher sets how ResolveConflicts queries peers.
func WithChainFetcher(f ChainFetcher) Option {
	return func(l *Ledger) {
		l.fetcher = f
	}
}

// WithLogger sets the logger for persistence and consensus events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithClock replaces time.Now, for block timestamps and the election window.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New builds a ledger. When a store is configured its state is loaded;
// a missing or unusable state starts a fresh chain with the genesis block.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		nodes:  make(map[string]struct{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store != nil && l.load() {
		return l
	}
	l.mempool = []Transaction{}
	l.chain = []Block{{
		Index:        1,
		Timestamp:    UnixSeconds(l.now()),
		Transactions: []Transaction{},
		Proof:        genesisProof,
		PreviousHash: genesisPreviousHash,
	}}
	l.persistLocked()
	return l
}

func (l *Ledger) load() bool {
	st, err := l.store.Load()
	if err != nil {
		l.logger.Warn("cannot load ledger state, starting from genesis", "err", err)
		return false
	}
	if len(st.Chain) == 0 {
		l.logger.Warn("stored chain is empty, starting from genesis")
		return false
	}
	l.chain = st.Chain
	for i := range l.chain {
		if l.chain[i].Transactions == nil {
			l.chain[i].Transactions = []Transaction{}
		}
	}
	l.mempool = st.Mempool
	if l.mempool == nil {
		l.mempool = []Transaction{}
	}
	for _, n := range st.Nodes {
		l.nodes[n] = struct{}{}
	}
	if st.ElectionStart != nil && st.ElectionEnd != nil {
		l.window = &ElectionWindow{
			Start: FromUnixSeconds(*st.ElectionStart),
			End:   FromUnixSeconds(*st.ElectionEnd),
		}
	}
	l.logger.Info("ledger state loaded", "blocks", len(l.chain), "pending", len(l.mempool), "nodes", len(l.nodes))
	return true
}

// persistLocked saves the current state. The caller holds the write lock.
// A failing store is logged and the in-memory state stays authoritative.
func (l *Ledger) persistLocked() {
	if l.store == nil {
		return
	}
	if err := l.store.Save(l.snapshotLocked()); err != nil {
		l.logger.Error("cannot persist ledger state", "err", err)
	}
}

func (l *Ledger) snapshotLocked() State {
	st := State{
		Chain:   cloneChain(l.chain),
		Mempool: cloneTransactions(l.mempool),
		Nodes:   l.sortedNodesLocked(),
	}
	if l.window != nil {
		start, end := UnixSeconds(l.window.Start), UnixSeconds(l.window.End)
		st.ElectionStart, st.ElectionEnd = &start, &end
	}
	return st
}

func (l *Ledger) sortedNodesLocked() []string {
	nodes := make([]string, 0, len(l.nodes))
	for n := range l.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// NewBlock appends a block holding the whole mempool and clears it.
// An empty previousHash links the block to the current last block.
// The proof is not checked.
func (l *Ledger) NewBlock(proof int64, previousHash string) Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.newBlockLocked(proof, previousHash)
}

func (l *Ledger) newBlockLocked(proof int64, previousHash string) Block {
	last := l.chain[len(l.chain)-1]
	if previousHash == "" {
		previousHash = Hash(last)
	}
	block := Block{
		Index:        len(l.chain) + 1,
		Timestamp:    UnixSeconds(l.now()),
		Transactions: l.mempool,
		Proof:        proof,
		PreviousHash: previousHash,
	}
	l.mempool = []Transaction{}
	l.chain = append(l.chain, block)
	l.persistLocked()
	block.Transactions = cloneTransactions(block.Transactions)
	return block
}

// NewTransaction validates and queues a transaction. It returns the index of
// the block that will hold it and whether it was new; a signature already in
// the mempool is reported as not new and leaves the mempool unchanged.
func (l *Ledger) NewTransaction(sender, recipient string, amount int64, signature, publicKey []byte, electionID string) (int, bool, error) {
	if electionID == "" {
		electionID = DefaultElectionID
	}
	tx := Transaction{
		Sender:     sender,
		Recipient:  recipient,
		Amount:     amount,
		Signature:  encodeSignature(signature),
		ElectionID: electionID,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	v := Validator{Window: l.window, Mempool: l.mempool, Now: l.now()}
	isNew, err := v.Validate(tx, publicKey)
	if err != nil {
		return 0, false, err
	}
	next := l.chain[len(l.chain)-1].Index + 1
	if !isNew {
		return next, false, nil
	}
	l.mempool = append(l.mempool, tx)
	l.persistLocked()
	return next, true, nil
}

// Mine searches a proof for the last block, queues the reward for minerID
// and forges the next block. The search runs without holding the lock; if
// the chain moved meanwhile ErrStaleBlock is returned and nothing changes.
func (l *Ledger) Mine(ctx context.Context, minerID string) (Block, error) {
	l.mu.RLock()
	last := l.chain[len(l.chain)-1]
	l.mu.RUnlock()

	proof, err := ProofOfWorkContext(ctx, last.Proof)
	if err != nil {
		return Block{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.chain[len(l.chain)-1]
	if current.Index != last.Index || current.Proof != last.Proof {
		return Block{}, ErrStaleBlock
	}
	l.mempool = append(l.mempool, Transaction{
		Sender:     RewardSender,
		Recipient:  minerID,
		Amount:     1,
		ElectionID: DefaultElectionID,
	})
	return l.newBlockLocked(proof, ""), nil
}

// RegisterNode adds a peer. Accepted forms are a URL ("http://host:port")
// or a bare "host:port".
func (l *Ledger) RegisterNode(address string) error {
	node, err := parseNode(address)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.nodes[node]; ok {
		return nil
	}
	l.nodes[node] = struct{}{}
	l.persistLocked()
	return nil
}

func parseNode(address string) (string, error) {
	address = strings.TrimSpace(address)
	if strings.Contains(address, "://") || strings.HasPrefix(address, "//") {
		u, err := url.Parse(address)
		if err != nil {
			return "", ErrInvalidAddress
		}
		if u.Host != "" {
			return u.Host, nil
		}
		if u.Path != "" {
			return u.Path, nil
		}
		return "", ErrInvalidAddress
	}
	if address == "" {
		return "", ErrInvalidAddress
	}
	return address, nil
}

// SetElectionWindow limits vote admission to [start, end].
func (l *Ledger) SetElectionWindow(start, end time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window = &ElectionWindow{Start: start, End: end}
	l.persistLocked()
}

// ClearElectionWindow admits votes at any time again.
func (l *Ledger) ClearElectionWindow() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window = nil
	l.persistLocked()
}

// Chain returns a copy of the chain.
func (l *Ledger) Chain() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneChain(l.chain)
}

// LastBlock returns a copy of the newest block.
func (l *Ledger) LastBlock() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	last := l.chain[len(l.chain)-1]
	last.Transactions = cloneTransactions(last.Transactions)
	return last
}

// Mempool returns a copy of the pending transactions.
func (l *Ledger) Mempool() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneTransactions(l.mempool)
}

// Nodes returns the registered peers, sorted.
func (l *Ledger) Nodes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedNodesLocked()
}

// ElectionWindow returns the configured window and whether one is set.
func (l *Ledger) ElectionWindow() (ElectionWindow, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.window == nil {
		return ElectionWindow{}, false
	}
	return *l.window, true
}

// Stats summarizes the ledger for monitoring.
type Stats struct {
	ChainLength         int      `json:"chain_length"`
	PendingTransactions int      `json:"pending_transactions"`
	NodesCount          int      `json:"nodes_count"`
	ElectionStart       *float64 `json:"election_start"`
	ElectionEnd         *float64 `json:"election_end"`
}

// Stats returns the current counters and election window.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Stats{
		ChainLength:         len(l.chain),
		PendingTransactions: len(l.mempool),
		NodesCount:          len(l.nodes),
	}
	if l.window != nil {
		start, end := UnixSeconds(l.window.Start), UnixSeconds(l.window.End)
		s.ElectionStart, s.ElectionEnd = &start, &end
	}
	return s
}

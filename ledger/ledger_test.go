package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/luca-patrignani/blockvote/wallet"
	"github.com/stretchr/testify/require"
)

var (
	voterOnce sync.Once
	voterKeys wallet.KeyPair
	voterErr  error
)

func testVoter(t *testing.T) wallet.KeyPair {
	t.Helper()
	voterOnce.Do(func() { voterKeys, voterErr = wallet.GenerateKeys() })
	require.NoError(t, voterErr)
	return voterKeys
}

func signVote(t *testing.T, keys wallet.KeyPair, sender, recipient string, amount int64, electionID string) []byte {
	t.Helper()
	sig, err := wallet.Sign(SigningMessage(sender, recipient, amount, electionID), keys.Private)
	require.NoError(t, err)
	return sig
}

type memStore struct {
	mu    sync.Mutex
	state *State
	saves int
	err   error
}

func (m *memStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, errors.New("no state")
	}
	return *m.state, nil
}

func (m *memStore) Save(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.state = &s
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewLedgerGenesis(t *testing.T) {
	require := require.New(t)
	l := New()

	chain := l.Chain()
	require.Len(chain, 1)
	require.Equal(1, chain[0].Index)
	require.Equal("1", chain[0].PreviousHash)
	require.Equal(int64(100), chain[0].Proof)
	require.Empty(chain[0].Transactions)
	require.Empty(l.Mempool())
	require.True(ValidChain(chain))
}

func TestNewTransactionAccepted(t *testing.T) {
	require := require.New(t)
	keys := testVoter(t)
	l := New()

	sig := signVote(t, keys, "voter-1", "alice", 1, "")
	index, isNew, err := l.NewTransaction("voter-1", "alice", 1, sig, keys.Public, "")
	require.NoError(err)
	require.True(isNew)
	require.Equal(2, index)

	pending := l.Mempool()
	require.Len(pending, 1)
	require.Equal(hex.EncodeToString(sig), pending[0].Signature)
	require.Equal(DefaultElectionID, pending[0].ElectionID)
}

func TestNewTransactionDuplicate(t *testing.T) {
	require := require.New(t)
	keys := testVoter(t)
	l := New()

	sig := signVote(t, keys, "voter-1", "alice", 1, "e1")
	_, isNew, err := l.NewTransaction("voter-1", "alice", 1, sig, keys.Public, "e1")
	require.NoError(err)
	require.True(isNew)

	index, isNew, err := l.NewTransaction("voter-1", "alice", 1, sig, keys.Public, "e1")
	require.NoError(err)
	require.False(isNew)
	require.Equal(2, index)
	require.Len(l.Mempool(), 1)
}

func TestNewTransactionRejected(t *testing.T) {
	keys := testVoter(t)
	sig := signVote(t, keys, "voter-1", "alice", 1, "")

	tests := []struct {
		name      string
		recipient string
		amount    int64
		sig       []byte
		pub       []byte
		want      error
	}{
		{name: "missing signature", recipient: "alice", amount: 1, pub: keys.Public, want: ErrMissingSignature},
		{name: "missing key", recipient: "alice", amount: 1, sig: sig, want: ErrMissingSignature},
		{name: "tampered recipient", recipient: "mallory", amount: 1, sig: sig, pub: keys.Public, want: ErrInvalidSignature},
		{name: "tampered amount", recipient: "alice", amount: 2, sig: sig, pub: keys.Public, want: ErrInvalidSignature},
		{name: "malformed key", recipient: "alice", amount: 1, sig: sig, pub: []byte("junk"), want: wallet.ErrMalformedKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			_, isNew, err := l.NewTransaction("voter-1", tt.recipient, tt.amount, tt.sig, tt.pub, "")
			require.ErrorIs(t, err, tt.want)
			require.False(t, isNew)
			require.Empty(t, l.Mempool())
		})
	}
}

func TestValidationErrorClass(t *testing.T) {
	require.True(t, IsValidation(ErrInvalidSignature))
	require.True(t, IsValidation(ErrElectionEnded))
	require.False(t, IsValidation(wallet.ErrMalformedKey))
	require.Equal(t, "Invalid Transaction Signature", ErrInvalidSignature.Error())
}

func TestRewardBypassesValidation(t *testing.T) {
	require := require.New(t)
	now := time.Unix(1_700_000_000, 0)
	l := New(WithClock(fixedClock(now)))
	l.SetElectionWindow(now.Add(time.Hour), now.Add(2*time.Hour))

	_, isNew, err := l.NewTransaction(RewardSender, "miner", 1, nil, nil, "")
	require.NoError(err)
	require.True(isNew)
	_, isNew, err = l.NewTransaction(RewardSender, "miner", 1, nil, nil, "")
	require.NoError(err)
	require.True(isNew)
	require.Len(l.Mempool(), 2)
}

func TestElectionWindow(t *testing.T) {
	keys := testVoter(t)
	start := time.Unix(1_700_000_000, 0)
	end := start.Add(time.Hour)
	sig := signVote(t, keys, "v", "alice", 1, "")

	tests := []struct {
		name string
		now  time.Time
		want error
	}{
		{name: "before start", now: start.Add(-time.Second), want: ErrElectionNotStarted},
		{name: "at start", now: start},
		{name: "inside", now: start.Add(time.Minute)},
		{name: "at end", now: end},
		{name: "after end", now: end.Add(time.Second), want: ErrElectionEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(WithClock(fixedClock(tt.now)))
			l.SetElectionWindow(start, end)
			_, _, err := l.NewTransaction("v", "alice", 1, sig, keys.Public, "")
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClearElectionWindow(t *testing.T) {
	keys := testVoter(t)
	now := time.Unix(1_700_000_000, 0)
	l := New(WithClock(fixedClock(now)))
	l.SetElectionWindow(now.Add(-2*time.Hour), now.Add(-time.Hour))

	sig := signVote(t, keys, "v", "alice", 1, "")
	_, _, err := l.NewTransaction("v", "alice", 1, sig, keys.Public, "")
	require.ErrorIs(t, err, ErrElectionEnded)

	l.ClearElectionWindow()
	_, ok := l.ElectionWindow()
	require.False(t, ok)
	_, _, err = l.NewTransaction("v", "alice", 1, sig, keys.Public, "")
	require.NoError(t, err)
}

func TestNewBlockLinksAndClearsMempool(t *testing.T) {
	require := require.New(t)
	keys := testVoter(t)
	l := New()
	genesis := l.LastBlock()

	sig := signVote(t, keys, "v", "alice", 1, "")
	_, _, err := l.NewTransaction("v", "alice", 1, sig, keys.Public, "")
	require.NoError(err)

	proof := ProofOfWork(genesis.Proof)
	block := l.NewBlock(proof, "")
	require.Equal(2, block.Index)
	require.Equal(Hash(genesis), block.PreviousHash)
	require.Len(block.Transactions, 1)
	require.Empty(l.Mempool())
	require.True(ValidChain(l.Chain()))

	explicit := l.NewBlock(7, "custom")
	require.Equal("custom", explicit.PreviousHash)
	require.Empty(explicit.Transactions)
	require.False(ValidChain(l.Chain()))
}

func TestMine(t *testing.T) {
	require := require.New(t)
	l := New()

	block, err := l.Mine(context.Background(), "miner-1")
	require.NoError(err)
	require.Equal(2, block.Index)
	require.Len(block.Transactions, 1)
	require.Equal(Transaction{Sender: RewardSender, Recipient: "miner-1", Amount: 1, ElectionID: DefaultElectionID}, block.Transactions[0])
	require.True(ValidChain(l.Chain()))
	require.Empty(l.CountVotes())
}

func TestMineCancelled(t *testing.T) {
	require := require.New(t)
	l := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Mine(ctx, "m")
	require.ErrorIs(err, context.Canceled)
	require.Len(l.Chain(), 1)
	require.Empty(l.Mempool())
}

func TestRegisterNode(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"http://192.168.0.5:5000", "192.168.0.5:5000"},
		{"https://node.example:8443/chain", "node.example:8443"},
		{"192.168.0.5:5000", "192.168.0.5:5000"},
		{"localhost:5001", "localhost:5001"},
		{"//peer:7000", "peer:7000"},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			l := New()
			require.NoError(t, l.RegisterNode(tt.address))
			require.NoError(t, l.RegisterNode(tt.address))
			require.Equal(t, []string{tt.want}, l.Nodes())
		})
	}

	l := New()
	require.ErrorIs(t, l.RegisterNode(""), ErrInvalidAddress)
	require.ErrorIs(t, l.RegisterNode("http://"), ErrInvalidAddress)
	require.True(t, IsValidation(l.RegisterNode("")))
	require.Empty(t, l.Nodes())
}

func TestCountVotes(t *testing.T) {
	require := require.New(t)
	keys := testVoter(t)
	l := New()

	votes := []struct {
		sender, recipient, election string
		amount                      int64
	}{
		{"v1", "alice", "", 1},
		{"v2", "bob", "", 1},
		{"v3", "alice", "", 1},
		{"v4", "carol", "e2", 2},
	}
	for _, v := range votes {
		sig := signVote(t, keys, v.sender, v.recipient, v.amount, v.election)
		_, _, err := l.NewTransaction(v.sender, v.recipient, v.amount, sig, keys.Public, v.election)
		require.NoError(err)
	}
	_, err := l.Mine(context.Background(), "miner")
	require.NoError(err)

	require.Equal(map[string]map[string]int64{
		"default": {"alice": 2, "bob": 1},
		"e2":      {"carol": 2},
	}, l.CountVotes())
}

func TestVerifyIntegrity(t *testing.T) {
	require := require.New(t)
	l := New()
	_, err := l.Mine(context.Background(), "m")
	require.NoError(err)

	report := l.VerifyIntegrity()
	require.True(report.Valid)
	require.Empty(report.Errors)
	require.Equal(2, report.BlocksChecked)

	l.NewBlock(1, "bogus")
	report = l.VerifyIntegrity()
	require.False(report.Valid)
	require.Equal(3, report.BlocksChecked)
	require.Equal([]string{
		"Invalid previous_hash at block 3",
		"Invalid proof of work at block 3",
	}, report.Errors)
}

func TestNewAppliesOptions(t *testing.T) {
	require := require.New(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	opts := []Option{WithStore(store), WithClock(func() time.Time { return at })}

	l := New(opts...)
	require.Equal(UnixSeconds(at), l.LastBlock().Timestamp)
	require.Equal(1, store.saves)
	require.Len(store.state.Chain, 1)
}

func TestValidChainDetectsTampering(t *testing.T) {
	require := require.New(t)
	l := New()
	_, err := l.Mine(context.Background(), "m")
	require.NoError(err)
	_, err = l.Mine(context.Background(), "m")
	require.NoError(err)

	chain := l.Chain()
	require.True(ValidChain(chain))
	chain[1].Transactions[0].Recipient = "someone else"
	require.False(ValidChain(chain))

	relinked := l.Chain()
	relinked[1].PreviousHash = "x"
	require.False(ValidChain(relinked))

	require.True(ValidChain(nil))
	require.True(ValidChain(chain[:1]))
}

func TestPersistenceRoundTrip(t *testing.T) {
	require := require.New(t)
	keys := testVoter(t)
	store := &memStore{}
	start := time.Unix(1_700_000_000, 0)
	l := New(WithStore(store), WithClock(fixedClock(start.Add(time.Minute))))

	_, err := l.Mine(context.Background(), "m")
	require.NoError(err)
	sig := signVote(t, keys, "v", "alice", 1, "")
	_, _, err = l.NewTransaction("v", "alice", 1, sig, keys.Public, "")
	require.NoError(err)
	require.NoError(l.RegisterNode("http://peer:5001"))
	l.SetElectionWindow(start, start.Add(time.Hour))

	reloaded := New(WithStore(store))
	require.Equal(l.Chain(), reloaded.Chain())
	require.Equal(l.Mempool(), reloaded.Mempool())
	require.Equal([]string{"peer:5001"}, reloaded.Nodes())
	w, ok := reloaded.ElectionWindow()
	require.True(ok)
	require.True(w.Start.Equal(start))
	require.Equal(l.Stats(), reloaded.Stats())
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	require := require.New(t)
	store := &memStore{err: errors.New("disk full")}
	l := New(WithStore(store))

	require.NoError(l.RegisterNode("peer:1"))
	require.Equal([]string{"peer:1"}, l.Nodes())
	require.GreaterOrEqual(store.saves, 2)
}

type fakeFetcher struct {
	chains  map[string][]Block
	lengths map[string]int
	errs    map[string]error
}

func (f fakeFetcher) FetchChain(_ context.Context, node string) ([]Block, int, error) {
	if err, ok := f.errs[node]; ok {
		return nil, 0, err
	}
	chain := f.chains[node]
	length, ok := f.lengths[node]
	if !ok {
		length = len(chain)
	}
	return chain, length, nil
}

func mineChain(t *testing.T, blocks int) []Block {
	t.Helper()
	l := New()
	for i := 1; i < blocks; i++ {
		_, err := l.Mine(context.Background(), "peer-miner")
		require.NoError(t, err)
	}
	return l.Chain()
}

func TestResolveConflictsAdoptsLongestValid(t *testing.T) {
	require := require.New(t)
	long := mineChain(t, 4)
	medium := mineChain(t, 3)
	forged := mineChain(t, 5)
	forged[2].Proof++

	fetcher := fakeFetcher{
		chains: map[string][]Block{"a:1": medium, "b:1": long, "c:1": forged},
		errs:   map[string]error{"d:1": errors.New("connection refused")},
	}
	l := New(WithChainFetcher(fetcher))
	for _, n := range []string{"a:1", "b:1", "c:1", "d:1"} {
		require.NoError(l.RegisterNode(n))
	}

	replaced, err := l.ResolveConflicts(context.Background())
	require.NoError(err)
	require.True(replaced)
	require.Equal(long, l.Chain())

	replaced, err = l.ResolveConflicts(context.Background())
	require.NoError(err)
	require.False(replaced)
}

func TestResolveConflictsKeepsOnTie(t *testing.T) {
	require := require.New(t)
	l := New(WithChainFetcher(fakeFetcher{chains: map[string][]Block{"a:1": mineChain(t, 2)}}))
	_, err := l.Mine(context.Background(), "local")
	require.NoError(err)
	own := l.Chain()
	require.NoError(l.RegisterNode("a:1"))

	replaced, err := l.ResolveConflicts(context.Background())
	require.NoError(err)
	require.False(replaced)
	require.Equal(own, l.Chain())
}

func TestResolveConflictsSkipsInconsistentLength(t *testing.T) {
	require := require.New(t)
	fetcher := fakeFetcher{
		chains:  map[string][]Block{"a:1": mineChain(t, 3)},
		lengths: map[string]int{"a:1": 10},
	}
	l := New(WithChainFetcher(fetcher))
	require.NoError(l.RegisterNode("a:1"))

	replaced, err := l.ResolveConflicts(context.Background())
	require.NoError(err)
	require.False(replaced)
	require.Len(l.Chain(), 1)
}

func TestResolveConflictsWithoutFetcher(t *testing.T) {
	_, err := New().ResolveConflicts(context.Background())
	require.ErrorIs(t, err, ErrNoFetcher)
}

func TestConcurrentSubmissions(t *testing.T) {
	keys := testVoter(t)
	l := New()
	const voters = 16

	sigs := make([][]byte, voters)
	for i := range sigs {
		sigs[i] = signVote(t, keys, "v", "alice", int64(i+1), "")
	}

	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for i := 0; i < voters; i++ {
		for dup := 0; dup < 2; dup++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, err := l.NewTransaction("v", "alice", int64(i+1), sigs[i], keys.Public, "")
				errs <- err
			}(i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, l.Mempool(), voters)
}

package ledger

import (
	"encoding/json"
	"math"
	"time"
)

// DefaultElectionID is assigned to transactions submitted without an election.
const DefaultElectionID = "default"

// RewardSender marks a block-reward transaction. Reward transactions are
// exempt from signature, duplicate and election-window checks and are never
// counted as votes.
const RewardSender = "0"

const (
	genesisPreviousHash = "1"
	genesisProof        = 100
)

// Block is a committed batch of transactions.
type Block struct {
	Index        int           `json:"index"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Proof        int64         `json:"proof"`
	PreviousHash string        `json:"previous_hash"`
}

// Transaction is a vote (or a block reward when Sender is RewardSender).
// Signature holds the lowercase hex encoding of the signature bytes.
type Transaction struct {
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	Amount     int64  `json:"amount"`
	Signature  string `json:"signature"`
	ElectionID string `json:"election_id"`
}

// IsReward reports whether t is a block-reward transaction.
func (t Transaction) IsReward() bool {
	return t.Sender == RewardSender
}

// MarshalJSON writes an empty signature as null, matching the canonical form.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var sig *string
	if t.Signature != "" {
		sig = &t.Signature
	}
	return json.Marshal(struct {
		Sender     string  `json:"sender"`
		Recipient  string  `json:"recipient"`
		Amount     int64   `json:"amount"`
		Signature  *string `json:"signature"`
		ElectionID string  `json:"election_id"`
	}{t.Sender, t.Recipient, t.Amount, sig, t.electionID()})
}

func (t Transaction) electionID() string {
	if t.ElectionID == "" {
		return DefaultElectionID
	}
	return t.ElectionID
}

// ElectionWindow bounds the time in which votes are admitted.
type ElectionWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UnixSeconds converts t to fractional unix seconds, the timestamp unit of
// blocks and of the persisted election window.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromUnixSeconds is the inverse of UnixSeconds.
func FromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func cloneTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}

func cloneChain(chain []Block) []Block {
	out := make([]Block, len(chain))
	for i, b := range chain {
		out[i] = b
		out[i].Transactions = cloneTransactions(b.Transactions)
	}
	return out
}

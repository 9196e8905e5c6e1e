package ledger

import (
	"context"
	"encoding/json"
)

// State is the persisted snapshot of a Ledger. The election bounds are unix
// seconds and nil when no window is configured.
type State struct {
	Chain         []Block       `json:"chain"`
	Mempool       []Transaction `json:"mempool"`
	Nodes         []string      `json:"nodes"`
	ElectionStart *float64      `json:"election_start"`
	ElectionEnd   *float64      `json:"election_end"`
}

// Store persists ledger state between restarts.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// ChainFetcher queries a peer's chain. The reported length is the peer's own
// claim and is returned alongside the decoded chain.
type ChainFetcher interface {
	FetchChain(ctx context.Context, node string) (chain []Block, length int, err error)
}

// ChainResponse is the body of the peer chain-query endpoint.
type ChainResponse struct {
	Chain  []Block `json:"chain"`
	Length int     `json:"length"`
}

// MarshalJSON keeps the chain a JSON array even when empty.
func (r ChainResponse) MarshalJSON() ([]byte, error) {
	type alias ChainResponse
	if r.Chain == nil {
		r.Chain = []Block{}
	}
	return json.Marshal(alias(r))
}

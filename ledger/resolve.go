package ledger

import (
	"context"
	"errors"
)

// ErrNoFetcher is returned by ResolveConflicts when peers cannot be queried.
var ErrNoFetcher = errors.New("no chain fetcher configured")

// ResolveConflicts replaces the local chain with the longest valid chain
// among the registered peers. Ties keep the local chain. Unreachable or
// misbehaving peers are skipped. It reports whether the chain was replaced.
func (l *Ledger) ResolveConflicts(ctx context.Context) (bool, error) {
	if l.fetcher == nil {
		return false, ErrNoFetcher
	}
	l.mu.RLock()
	nodes := l.sortedNodesLocked()
	maxLength := len(l.chain)
	l.mu.RUnlock()

	var best []Block
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		chain, length, err := l.fetcher.FetchChain(ctx, node)
		if err != nil {
			l.logger.Debug("skipping peer", "node", node, "err", err)
			continue
		}
		if length != len(chain) {
			l.logger.Debug("skipping peer with inconsistent length", "node", node, "length", length, "blocks", len(chain))
			continue
		}
		if length > maxLength && ValidChain(chain) {
			maxLength = length
			best = chain
		}
	}
	if best == nil {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(best) <= len(l.chain) {
		return false, nil
	}
	for i := range best {
		if best[i].Transactions == nil {
			best[i].Transactions = []Transaction{}
		}
	}
	l.chain = best
	l.logger.Info("chain replaced by longer peer chain", "length", len(best))
	l.persistLocked()
	return true, nil
}

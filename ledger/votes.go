package ledger

// CountVotes totals the committed votes per election and candidate.
// Rewards are not votes.
func (l *Ledger) CountVotes() map[string]map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return TallyVotes(l.chain)
}

// TallyVotes is CountVotes over an arbitrary chain.
func TallyVotes(chain []Block) map[string]map[string]int64 {
	tally := make(map[string]map[string]int64)
	for _, b := range chain {
		for _, tx := range b.Transactions {
			if tx.IsReward() {
				continue
			}
			election := tx.electionID()
			if tally[election] == nil {
				tally[election] = make(map[string]int64)
			}
			tally[election][tx.Recipient] += tx.Amount
		}
	}
	return tally
}

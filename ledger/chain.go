package ledger

import "fmt"

// ValidChain reports whether every block after the first links to the hash
// of its predecessor and carries a proof valid for the predecessor's proof.
// The first block is trusted as is.
func ValidChain(chain []Block) bool {
	for i := 1; i < len(chain); i++ {
		prev, cur := chain[i-1], chain[i]
		if cur.PreviousHash != Hash(prev) {
			return false
		}
		if !ValidProof(prev.Proof, cur.Proof) {
			return false
		}
	}
	return true
}

// IntegrityReport lists every inconsistency found in a chain.
type IntegrityReport struct {
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors"`
	BlocksChecked int      `json:"blocks_checked"`
}

// VerifyIntegrity audits the ledger's own chain.
func (l *Ledger) VerifyIntegrity() IntegrityReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return AuditChain(l.chain)
}

// AuditChain checks the same rules as ValidChain but does not stop at the
// first failure.
func AuditChain(chain []Block) IntegrityReport {
	report := IntegrityReport{Errors: []string{}, BlocksChecked: len(chain)}
	for i := 1; i < len(chain); i++ {
		prev, cur := chain[i-1], chain[i]
		if cur.PreviousHash != Hash(prev) {
			report.Errors = append(report.Errors, fmt.Sprintf("Invalid previous_hash at block %d", cur.Index))
		}
		if !ValidProof(prev.Proof, cur.Proof) {
			report.Errors = append(report.Errors, fmt.Sprintf("Invalid proof of work at block %d", cur.Index))
		}
	}
	report.Valid = len(report.Errors) == 0
	return report
}

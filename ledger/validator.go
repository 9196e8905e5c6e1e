package ledger

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/luca-patrignani/blockvote/wallet"
)

// Validator applies the admission rules to a candidate transaction.
type Validator struct {
	Window  *ElectionWindow
	Mempool []Transaction
	Now     time.Time
}

// Validate returns whether tx is new. A non-nil error rejects tx; a false
// result with a nil error means the signature is already pending.
func (v Validator) Validate(tx Transaction, publicKey []byte) (bool, error) {
	if tx.IsReward() {
		return true, nil
	}
	if v.Window != nil {
		if v.Now.Before(v.Window.Start) {
			return false, ErrElectionNotStarted
		}
		if v.Now.After(v.Window.End) {
			return false, ErrElectionEnded
		}
	}
	if tx.Signature == "" || len(publicKey) == 0 {
		return false, ErrMissingSignature
	}
	sig, err := hex.DecodeString(tx.Signature)
	if err != nil {
		return false, ErrInvalidSignature
	}
	msg := SigningMessage(tx.Sender, tx.Recipient, tx.Amount, tx.ElectionID)
	ok, err := wallet.Verify(msg, sig, publicKey)
	if err != nil {
		return false, fmt.Errorf("verify transaction: %w", err)
	}
	if !ok {
		return false, ErrInvalidSignature
	}
	for _, pending := range v.Mempool {
		if pending.Signature == tx.Signature {
			return false, nil
		}
	}
	return true, nil
}

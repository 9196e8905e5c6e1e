package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	difficultyPrefix = "0000"
	// candidates tried between two context checks
	powCheckInterval = 4096
)

// ValidProof reports whether sha256(lastProof ‖ proof), both rendered in
// decimal, begins with four zero hex digits.
func ValidProof(lastProof, proof int64) bool {
	guess := strconv.AppendInt(nil, lastProof, 10)
	guess = strconv.AppendInt(guess, proof, 10)
	sum := sha256.Sum256(guess)
	return strings.HasPrefix(hex.EncodeToString(sum[:]), difficultyPrefix)
}

// ProofOfWork returns the smallest non-negative proof valid for lastProof.
func ProofOfWork(lastProof int64) int64 {
	proof, _ := ProofOfWorkContext(context.Background(), lastProof)
	return proof
}

// ProofOfWorkContext is ProofOfWork with cooperative cancellation.
func ProofOfWorkContext(ctx context.Context, lastProof int64) (int64, error) {
	for proof := int64(0); ; proof++ {
		if proof%powCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if ValidProof(lastProof, proof) {
			return proof, nil
		}
	}
}

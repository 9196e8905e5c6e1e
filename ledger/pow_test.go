package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProofOfWorkFromGenesis(t *testing.T) {
	proof := ProofOfWork(genesisProof)
	require.Equal(t, int64(35293), proof)
	require.True(t, ValidProof(genesisProof, proof))
	for p := int64(0); p < proof; p++ {
		require.False(t, ValidProof(genesisProof, p), "proof %d", p)
	}
}

func TestProofOfWorkContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProofOfWorkContext(ctx, genesisProof)
	require.ErrorIs(t, err, context.Canceled)
}

// Package shamir splits a secret into n shares such that any k of them
// recover it, working chunk by chunk over GF(2^127 - 1).
//
// Shares carry no integrity check: recovering from fewer than k shares, or
// from altered shares, silently yields wrong bytes.
package shamir

import (
	"errors"
	"fmt"
	"math/big"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/group/mod"
	"go.dedis.ch/kyber/v4/util/random"
)

// ChunkSize is the number of secret bytes encoded per field element.
const ChunkSize = 15

// Prime is the Mersenne prime 2^127 - 1.
var Prime = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

var (
	ErrInvalidThreshold = errors.New("threshold must satisfy 1 <= k <= n")
	ErrNoShares         = errors.New("no shares")
	ErrMalformedShares  = errors.New("malformed shares")
)

// Share is the evaluation of every chunk polynomial at X.
type Share struct {
	X int64
	Y []*big.Int
}

// Split pads secret to a multiple of ChunkSize and returns n shares with
// threshold k.
func Split(secret []byte, k, n int) ([]Share, error) {
	if k < 1 || n < k {
		return nil, fmt.Errorf("%w: k=%d n=%d", ErrInvalidThreshold, k, n)
	}
	padded := pad(secret)
	stream := random.New()

	shares := make([]Share, n)
	for i := range shares {
		shares[i] = Share{X: int64(i + 1), Y: make([]*big.Int, 0, len(padded)/ChunkSize)}
	}
	coeffs := make([]kyber.Scalar, k)
	for off := 0; off < len(padded); off += ChunkSize {
		coeffs[0] = mod.NewInt(new(big.Int).SetBytes(padded[off:off+ChunkSize]), Prime)
		for j := 1; j < k; j++ {
			coeffs[j] = mod.NewInt64(0, Prime).Pick(stream)
		}
		for i := range shares {
			y := eval(coeffs, shares[i].X)
			shares[i].Y = append(shares[i].Y, new(big.Int).Set(&y.V))
		}
	}
	return shares, nil
}

// eval computes the polynomial at x with Horner's rule.
func eval(coeffs []kyber.Scalar, x int64) *mod.Int {
	xs := mod.NewInt64(x, Prime)
	acc := mod.NewInt64(0, Prime)
	for j := len(coeffs) - 1; j >= 0; j-- {
		acc.Mul(acc, xs)
		acc.Add(acc, coeffs[j])
	}
	return acc
}

// Recover interpolates every chunk at x = 0 and strips the padding.
func Recover(shares []Share) ([]byte, error) {
	if len(shares) == 0 {
		return nil, ErrNoShares
	}
	chunks := len(shares[0].Y)
	seen := make(map[int64]bool, len(shares))
	for _, s := range shares {
		if len(s.Y) != chunks {
			return nil, fmt.Errorf("%w: share %d has %d chunks, want %d", ErrMalformedShares, s.X, len(s.Y), chunks)
		}
		if seen[s.X] {
			return nil, fmt.Errorf("%w: repeated x=%d", ErrMalformedShares, s.X)
		}
		seen[s.X] = true
	}

	out := make([]byte, 0, chunks*ChunkSize)
	buf := make([]byte, ChunkSize+1)
	for c := 0; c < chunks; c++ {
		secret := interpolateAtZero(shares, c)
		secret.V.FillBytes(buf)
		out = append(out, buf[1:]...)
	}
	return unpad(out), nil
}

func interpolateAtZero(shares []Share, chunk int) *mod.Int {
	total := mod.NewInt64(0, Prime)
	for i, si := range shares {
		num := mod.NewInt64(1, Prime)
		den := mod.NewInt64(1, Prime)
		xi := mod.NewInt64(si.X, Prime)
		for j, sj := range shares {
			if i == j {
				continue
			}
			xj := mod.NewInt64(sj.X, Prime)
			num.Mul(num, mod.NewInt64(0, Prime).Neg(xj))
			den.Mul(den, mod.NewInt64(0, Prime).Sub(xi, xj))
		}
		term := mod.NewInt(new(big.Int).Mod(si.Y[chunk], Prime), Prime)
		term.Mul(term, num)
		term.Div(term, den)
		total.Add(total, term)
	}
	return total
}

// pad always appends between 1 and ChunkSize bytes, each holding the count.
func pad(data []byte) []byte {
	n := ChunkSize - len(data)%ChunkSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

// unpad leaves data untouched when the last byte is not a plausible
// padding length.
func unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	n := int(data[len(data)-1])
	if n == 0 || n > len(data) {
		return data
	}
	return data[:len(data)-n]
}

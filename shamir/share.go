package shamir

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// String renders s as "x-y1.y2...", with the y values in hex.
func (s Share) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(s.X, 10))
	b.WriteByte('-')
	for i, y := range s.Y {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(y.Text(16))
	}
	return b.String()
}

// ParseShare is the inverse of Share.String.
func ParseShare(text string) (Share, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(text), "-")
	if !ok || ys == "" {
		return Share{}, fmt.Errorf("%w: expected x-y1.y2...", ErrMalformedShares)
	}
	x, err := strconv.ParseInt(xs, 10, 64)
	if err != nil || x < 1 {
		return Share{}, fmt.Errorf("%w: bad x %q", ErrMalformedShares, xs)
	}
	parts := strings.Split(ys, ".")
	share := Share{X: x, Y: make([]*big.Int, len(parts))}
	for i, p := range parts {
		y, ok := new(big.Int).SetString(p, 16)
		if !ok || y.Sign() < 0 {
			return Share{}, fmt.Errorf("%w: bad chunk %d", ErrMalformedShares, i)
		}
		share.Y[i] = y
	}
	return share, nil
}

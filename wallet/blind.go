package wallet

import (
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"go.dedis.ch/kyber/v4/util/random"
)

// ErrBlindRange is returned when a blinded value lies outside [0, n).
var ErrBlindRange = errors.New("blinded value out of range")

var one = big.NewInt(1)

// messageInt is the SHA-256 digest of message read as a big-endian integer.
func messageInt(message string) *big.Int {
	digest := sha256.Sum256([]byte(message))
	return new(big.Int).SetBytes(digest[:])
}

// Blind hides message from the signer: it returns m·r^e mod n together with
// the blinding factor r the voter keeps to unblind the signature.
func Blind(message string, publicPEM []byte) (blinded, r *big.Int, err error) {
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return nil, nil, err
	}
	n := pub.N
	e := big.NewInt(int64(pub.E))
	stream := random.New()
	gcd := new(big.Int)
	for {
		r = random.Int(n, stream)
		if r.Sign() > 0 && gcd.GCD(nil, nil, r, n).Cmp(one) == 0 {
			break
		}
	}
	blinded = new(big.Int).Exp(r, e, n)
	blinded.Mul(blinded, messageInt(message))
	blinded.Mod(blinded, n)
	return blinded, r, nil
}

// SignBlind computes blinded^d mod n without learning the message.
func SignBlind(blinded *big.Int, privatePEM []byte) (*big.Int, error) {
	priv, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}
	return signBlind(blinded, priv)
}

func signBlind(blinded *big.Int, priv *rsa.PrivateKey) (*big.Int, error) {
	if blinded == nil || blinded.Sign() < 0 || blinded.Cmp(priv.N) >= 0 {
		return nil, ErrBlindRange
	}
	return new(big.Int).Exp(blinded, priv.D, priv.N), nil
}

// SignBlindKey is SignBlind for an already parsed key.
func SignBlindKey(blinded *big.Int, priv *rsa.PrivateKey) (*big.Int, error) {
	return signBlind(blinded, priv)
}

// Unblind removes the blinding factor: s = s'·r^-1 mod n.
func Unblind(blindSig, r *big.Int, publicPEM []byte) (*big.Int, error) {
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return nil, err
	}
	rInv := new(big.Int).ModInverse(r, pub.N)
	if rInv == nil {
		return nil, fmt.Errorf("blinding factor is not invertible modulo n")
	}
	s := new(big.Int).Mul(blindSig, rInv)
	return s.Mod(s, pub.N), nil
}

// VerifyBlind reports whether sig^e mod n equals the message digest.
func VerifyBlind(message string, sig *big.Int, publicPEM []byte) (bool, error) {
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return false, err
	}
	if sig == nil || sig.Sign() < 0 {
		return false, nil
	}
	got := new(big.Int).Exp(sig, big.NewInt(int64(pub.E)), pub.N)
	want := new(big.Int).Mod(messageInt(message), pub.N)
	return got.Cmp(want) == 0, nil
}

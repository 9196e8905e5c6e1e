package wallet

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	keysOnce sync.Once
	testKeys KeyPair
	keysErr  error
)

// sharedKeys generates one key pair for the whole package; RSA generation
// dominates the test time otherwise.
func sharedKeys(t *testing.T) KeyPair {
	t.Helper()
	keysOnce.Do(func() { testKeys, keysErr = GenerateKeys() })
	require.NoError(t, keysErr)
	return testKeys
}

func TestGenerateKeysPEM(t *testing.T) {
	require := require.New(t)
	keys := sharedKeys(t)

	pubBlock, _ := pem.Decode(keys.Public)
	require.NotNil(pubBlock)
	require.Equal("RSA PUBLIC KEY", pubBlock.Type)
	privBlock, _ := pem.Decode(keys.Private)
	require.NotNil(privBlock)
	require.Equal("RSA PRIVATE KEY", privBlock.Type)

	priv, err := ParsePrivateKey(keys.Private)
	require.NoError(err)
	require.Equal(KeyBits, priv.N.BitLen())
	require.Equal(keys.Public, PublicKeyPEM(&priv.PublicKey))
}

func TestSignVerify(t *testing.T) {
	require := require.New(t)
	keys := sharedKeys(t)

	msg := `{"amount": 1, "election_id": "default", "recipient": "alice", "sender": "voter"}`
	sig, err := Sign(msg, keys.Private)
	require.NoError(err)

	ok, err := Verify(msg, sig, keys.Public)
	require.NoError(err)
	require.True(ok)

	ok, err = Verify(msg+" ", sig, keys.Public)
	require.NoError(err)
	require.False(ok)

	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0xff
	ok, err = Verify(msg, tampered, keys.Public)
	require.NoError(err)
	require.False(ok)
}

func TestVerifyMalformedKey(t *testing.T) {
	require := require.New(t)

	ok, err := Verify("m", []byte{1, 2, 3}, []byte("not a key"))
	require.False(ok)
	require.True(errors.Is(err, ErrMalformedKey))

	garbage := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: []byte{0x30, 0x01}})
	_, err = ParsePublicKey(garbage)
	require.ErrorIs(err, ErrMalformedKey)

	_, err = Sign("m", []byte("-----BEGIN NOTHING-----"))
	require.ErrorIs(err, ErrMalformedKey)
}

func TestBlindSignatureRoundTrip(t *testing.T) {
	require := require.New(t)
	keys := sharedKeys(t)

	const ballot = "ballot-token-42"
	blinded, r, err := Blind(ballot, keys.Public)
	require.NoError(err)
	require.NotEqual(messageInt(ballot), blinded)

	blindSig, err := SignBlind(blinded, keys.Private)
	require.NoError(err)

	sig, err := Unblind(blindSig, r, keys.Public)
	require.NoError(err)

	ok, err := VerifyBlind(ballot, sig, keys.Public)
	require.NoError(err)
	require.True(ok)

	ok, err = VerifyBlind("another ballot", sig, keys.Public)
	require.NoError(err)
	require.False(ok)
}

func TestBlindSignatureWrongKey(t *testing.T) {
	require := require.New(t)
	signer := sharedKeys(t)
	other, err := GenerateKeys()
	require.NoError(err)

	const ballot = "ballot-token-7"
	blinded, r, err := Blind(ballot, signer.Public)
	require.NoError(err)
	blindSig, err := SignBlind(blinded, signer.Private)
	require.NoError(err)
	sig, err := Unblind(blindSig, r, signer.Public)
	require.NoError(err)

	ok, err := VerifyBlind(ballot, sig, other.Public)
	require.NoError(err)
	require.False(ok)
}

func TestBlindingFactorIsFresh(t *testing.T) {
	require := require.New(t)
	keys := sharedKeys(t)

	b1, r1, err := Blind("same", keys.Public)
	require.NoError(err)
	b2, r2, err := Blind("same", keys.Public)
	require.NoError(err)
	require.NotEqual(0, r1.Cmp(r2))
	require.NotEqual(0, b1.Cmp(b2))

	pub, err := ParsePublicKey(keys.Public)
	require.NoError(err)
	require.Equal(int64(1), new(big.Int).GCD(nil, nil, r1, pub.N).Int64())
}

func TestSignBlindRejectsOutOfRange(t *testing.T) {
	require := require.New(t)
	keys := sharedKeys(t)
	priv, err := ParsePrivateKey(keys.Private)
	require.NoError(err)

	_, err = SignBlindKey(new(big.Int).Set(priv.N), priv)
	require.ErrorIs(err, ErrBlindRange)
	_, err = SignBlindKey(big.NewInt(-1), priv)
	require.ErrorIs(err, ErrBlindRange)
}

func TestParsePKIXPublicKey(t *testing.T) {
	require := require.New(t)
	keys := sharedKeys(t)
	priv, err := ParsePrivateKey(keys.Private)
	require.NoError(err)

	pkix := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: mustPKIX(t, &priv.PublicKey)})
	pub, err := ParsePublicKey(pkix)
	require.NoError(err)
	require.Equal(0, pub.N.Cmp(priv.N))
}

func mustPKIX(t *testing.T, pub *rsa.PublicKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return der
}

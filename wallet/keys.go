package wallet

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// KeyBits is the modulus size of generated keys.
const KeyBits = 2048

const (
	publicKeyType  = "RSA PUBLIC KEY"
	privateKeyType = "RSA PRIVATE KEY"
)

// ErrMalformedKey is returned when a PEM key cannot be decoded or parsed.
var ErrMalformedKey = errors.New("malformed key")

// KeyPair is a PEM encoded RSA key pair.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// GenerateKeys creates a fresh RSA key pair.
func GenerateKeys() (KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate rsa key: %w", err)
	}
	return KeyPair{
		Public:  PublicKeyPEM(&priv.PublicKey),
		Private: PrivateKeyPEM(priv),
	}, nil
}

// PublicKeyPEM encodes pub as a PKCS#1 PEM block.
func PublicKeyPEM(pub *rsa.PublicKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  publicKeyType,
		Bytes: x509.MarshalPKCS1PublicKey(pub),
	})
}

// PrivateKeyPEM encodes priv as a PKCS#1 PEM block.
func PrivateKeyPEM(priv *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  privateKeyType,
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
}

// ParsePublicKey decodes a PKCS#1 public key. A PKIX ("PUBLIC KEY") block is
// accepted as well.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrMalformedKey)
	}
	switch block.Type {
	case publicKeyType:
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		return pub, nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", ErrMalformedKey)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrMalformedKey, block.Type)
	}
}

// ParsePrivateKey decodes a PKCS#1 private key.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrMalformedKey)
	}
	if block.Type != privateKeyType {
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrMalformedKey, block.Type)
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return priv, nil
}

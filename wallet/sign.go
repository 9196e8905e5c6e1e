package wallet

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// Sign signs the UTF-8 bytes of message with PKCS#1 v1.5 over SHA-256.
func Sign(message string, privatePEM []byte) ([]byte, error) {
	priv, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Verify reports whether signature is valid for message under publicPEM.
// A wrong signature yields false and no error; only an unparsable key is an
// error.
func Verify(message string, signature, publicPEM []byte) (bool, error) {
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256([]byte(message))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature) == nil, nil
}

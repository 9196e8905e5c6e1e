// Package authority is the blind-signing registrar of an election: it signs
// one blinded ballot token per eligible voter without seeing the token.
package authority

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/luca-patrignani/blockvote/wallet"
)

var (
	// ErrAlreadySigned is returned when a voter asks for a second signature.
	ErrAlreadySigned = errors.New("Voter has already obtained a signature")
	ErrMissingVoter  = errors.New("voter id is required")
)

// Authority holds the signing key and the set of voters already served.
type Authority struct {
	mu        sync.Mutex
	key       *rsa.PrivateKey
	publicPEM []byte
	signed    map[string]struct{}
}

// New builds an authority from a PKCS#1 PEM private key.
func New(privatePEM []byte) (*Authority, error) {
	key, err := wallet.ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("load authority key: %w", err)
	}
	return &Authority{
		key:       key,
		publicPEM: wallet.PublicKeyPEM(&key.PublicKey),
		signed:    make(map[string]struct{}),
	}, nil
}

// LoadOrGenerateKey reads the private key at path, generating and storing a
// fresh one when the file does not exist.
func LoadOrGenerateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read authority key: %w", err)
	}
	keys, err := wallet.GenerateKeys()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := renameio.WriteFile(path, keys.Private, 0o600); err != nil {
		return nil, fmt.Errorf("write authority key: %w", err)
	}
	return keys.Private, nil
}

// PublicKey returns the PKCS#1 PEM public key voters blind against.
func (a *Authority) PublicKey() []byte {
	return append([]byte(nil), a.publicPEM...)
}

// Sign signs a blinded value for voterID. Each voter is served at most once;
// a rejected value does not consume the voter's signature.
func (a *Authority) Sign(voterID string, blinded *big.Int) (*big.Int, error) {
	if voterID == "" {
		return nil, ErrMissingVoter
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.signed[voterID]; ok {
		return nil, ErrAlreadySigned
	}
	sig, err := wallet.SignBlindKey(blinded, a.key)
	if err != nil {
		return nil, err
	}
	a.signed[voterID] = struct{}{}
	return sig, nil
}

// Signed reports whether voterID already obtained a signature.
func (a *Authority) Signed(voterID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.signed[voterID]
	return ok
}

// ABOUTME: Seals session key bytes with a per-store secretbox key before persistence
// ABOUTME: The sealing key lives next to the databases, readable only by the bot user

package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealKeyFile = "seal.key"
	nonceSize   = 24
)

// ErrSealOpen is returned when sealed bytes do not authenticate, which means
// corruption or a sealing key that does not match the store.
var ErrSealOpen = errors.New("opening sealed session key failed")

// Sealer encrypts session key material before it enters a persisted record.
// One sealing key exists per data directory, created on first use.
type Sealer struct {
	key [32]byte
}

// LoadSealer reads the store's sealing key from dataDir, generating it with
// 0600 permissions if this is a fresh store.
func LoadSealer(dataDir string) (*Sealer, error) {
	path := filepath.Join(dataDir, sealKeyFile)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return createSealer(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading sealing key: %w", err)
	}
	if len(data) != 32 {
		return nil, fmt.Errorf("sealing key %s: %d bytes, want 32", path, len(data))
	}

	s := &Sealer{}
	copy(s.key[:], data)
	return s, nil
}

func createSealer(path string) (*Sealer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &Sealer{}
	if _, err := io.ReadFull(rand.Reader, s.key[:]); err != nil {
		return nil, fmt.Errorf("generating sealing key: %w", err)
	}
	if err := os.WriteFile(path, s.key[:], 0o600); err != nil {
		return nil, fmt.Errorf("writing sealing key: %w", err)
	}
	return s, nil
}

// Seal encrypts plain, returning nonce-prefixed sealed bytes.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

// Open decrypts sealed bytes produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrSealOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrSealOpen
	}
	return plain, nil
}

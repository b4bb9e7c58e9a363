// ABOUTME: SessionKey wraps ed25519 session signing keys with explicit zeroing
// ABOUTME: Key material is scoped: generate or recover, use, then Zero

package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// ErrKeyZeroed is returned when a SessionKey is used after Zero.
var ErrKeyZeroed = errors.New("session key has been zeroed")

// SessionKey holds a live ed25519 session signing key. The holder owns the
// key material exclusively and must call Zero once the key is no longer
// needed; every access after Zero fails.
type SessionKey struct {
	priv ed25519.PrivateKey
}

// Generate mints a fresh session keypair.
func Generate() (*SessionKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	return &SessionKey{priv: priv}, nil
}

// FromBytes recovers a SessionKey from raw private-key bytes, copying them
// so the caller's slice can be wiped independently.
func FromBytes(b []byte) (*SessionKey, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid session key: %d bytes, want %d", len(b), ed25519.PrivateKeySize)
	}
	priv := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(priv, b)
	return &SessionKey{priv: priv}, nil
}

// Pubkey returns the base58-encoded public key, the form wallet tooling
// expects for an ed25519 signer address.
func (k *SessionKey) Pubkey() (string, error) {
	if k.priv == nil {
		return "", ErrKeyZeroed
	}
	pub := k.priv.Public().(ed25519.PublicKey)
	return base58.Encode(pub), nil
}

// Sign signs msg with the session key.
func (k *SessionKey) Sign(msg []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, ErrKeyZeroed
	}
	return ed25519.Sign(k.priv, msg), nil
}

// Bytes returns a copy of the raw private-key bytes. Callers that hold the
// copy take on the same zeroing obligation.
func (k *SessionKey) Bytes() ([]byte, error) {
	if k.priv == nil {
		return nil, ErrKeyZeroed
	}
	out := make([]byte, len(k.priv))
	copy(out, k.priv)
	return out, nil
}

// Zero wipes the key material in place. Safe to call more than once.
func (k *SessionKey) Zero() {
	for i := range k.priv {
		k.priv[i] = 0
	}
	k.priv = nil
}

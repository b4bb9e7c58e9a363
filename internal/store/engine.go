// ABOUTME: Embedded key→bytes engine interface with two independent namespaces
// ABOUTME: Backed by SQLite in production and an in-memory map in tests

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

// Namespace selects one of the engine's two independent keyspaces.
type Namespace string

const (
	// NamespaceUsers holds one record per user, keyed by user identifier.
	NamespaceUsers Namespace = "users"
	// NamespacePublic holds process-wide records, keyed by fixed sentinels.
	NamespacePublic Namespace = "public"
)

// Engine is the durable key→bytes store underneath the repository. Each
// Insert is atomic and durable for its single key; no cross-key transactions
// are provided, so a key's value is the unit of atomicity.
type Engine interface {
	// Get returns the stored bytes for key, or ErrNotFound.
	Get(ctx context.Context, ns Namespace, key string) ([]byte, error)

	// Insert overwrites the value for key and returns the previous bytes,
	// or nil if the key was absent. The write is durable before Insert
	// returns.
	Insert(ctx context.Context, ns Namespace, key string, data []byte) ([]byte, error)

	// Keys lists all keys in the namespace in lexical order.
	Keys(ctx context.Context, ns Namespace) ([]string, error)

	// Close releases the engine's resources.
	Close() error
}

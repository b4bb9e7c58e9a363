// Package store provides durable persistence for snipevault using SQLite.
//
// # Architecture
//
// The package is layered:
//
//   - Engine: embedded key→bytes storage with two independent namespaces,
//     one record per user plus a single global record. SQLiteEngine is the
//     production implementation; MemoryEngine backs unit tests.
//   - Store: the repository over an Engine. It encodes/decodes records via
//     the record package and owns the concurrency contracts described below.
//
// # Namespaces
//
// The data directory holds one database per namespace:
//
//	<dataDir>/public.db       global records ("stats" sentinel key)
//	<dataDir>/users/index.db  one record per user identifier
//
// Each namespace is a single key→BLOB table; a key's value is the unit of
// atomicity. No cross-key transactions are provided or needed.
//
// # Concurrency
//
// Whole-record writes are last-writer-wins, so every read-modify-write path
// is serialized: UpdateUser (and everything built on it) holds a per-user
// lock for the full cycle, and UpdatePublicStats holds a single mutex for
// the global record. Concurrent mutations therefore compose — the final
// state is equivalent to some serial ordering — for this single process.
//
// # Errors
//
//   - ErrNotFound: requested record does not exist (GetUser); absence of the
//     global record is not an error and yields the zero value
//   - record.DecodeError: stored bytes do not decode; surfaced, never masked
//   - engine open failures are construction-time fatal conditions
//
// All methods accept context.Context for cancellation support.
package store

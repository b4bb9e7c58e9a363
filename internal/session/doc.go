// Package session manages time-bounded wallet sessions: delegated signing
// credentials that let the bot act on a user's behalf until expiry.
//
// A session is an ed25519 keypair. The private key only ever exists in two
// forms: a live SessionKey, which the holder must Zero when done, and a
// sealed blob inside the persisted user record, encrypted with a per-store
// sealing key (nacl/secretbox). Raw key bytes are never written to disk.
//
// Manager drives the lifecycle against the store: Connect mints and
// installs a session, Unseal recovers the live key for the payments client,
// Disconnect and SweepExpired clear sessions and keep the global
// active-session count in step.
package session

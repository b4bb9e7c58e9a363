// Package record defines the persisted data model for snipevault and its
// versioned binary codec.
//
// # Records
//
// Five record types are persisted:
//
//   - UserConfig: per-user trading policy (FDV cap, liquidity floor, budgets)
//   - WalletSession: time-bounded delegated signing credential
//   - TradeLog: immutable entry in a user's trade history
//   - UserState: the full per-user record (config + session + history),
//     the unit of atomicity for the store
//   - PublicStats: the single global statistics record
//
// # Encoding
//
// Records are encoded as CBOR maps with named fields, wrapped in an envelope
// that carries an explicit schema version:
//
//	{v: <version>, d: <record body>}
//
// Named fields make additive changes backward compatible within a version;
// the envelope version handles incompatible shape changes. Decoding
// dispatches on the version tag, so old records are never misread as new
// ones. Version 1 of the user record predates wallet sessions and is
// upgraded explicitly via UpgradeUserState.
//
// Encoding uses CBOR core deterministic options, so encode(decode(b))
// is byte-stable for a fixed version.
package record

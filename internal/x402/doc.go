// Package x402 is the payment-capped HTTP client used against metered API
// endpoints. Requests are signed with a wallet-session key and refused once
// the day's USDC spend reaches the configured cap; servers meter usage via
// HTTP 402 responses and per-response payment amounts.
//
// The client is a collaborator of the persistence core: it consumes a
// session.SessionKey (usually recovered via session.Manager.Unseal) and the
// per-day budget from the user's trading policy. Payment settlement itself
// happens on the facilitator side; this client only signs, attributes, and
// budgets.
package x402

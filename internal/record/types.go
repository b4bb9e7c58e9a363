// ABOUTME: Persisted record types for snipevault
// ABOUTME: UserConfig, WalletSession, TradeLog, UserState and PublicStats

package record

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned when a record violates one of its invariants.
var ErrInvalidRecord = errors.New("invalid record")

// UserConfig is a user's trading policy. It changes only on explicit user
// update and is owned by the enclosing UserState.
type UserConfig struct {
	// MaxFDV caps the fully-diluted valuation of tokens the bot may enter.
	MaxFDV float64 `cbor:"max_fdv"`
	// MinLiquidity is the minimum pool liquidity (USDC) required to enter.
	MinLiquidity float64 `cbor:"min_liquidity"`
	// BudgetPerDay caps daily USDC spend against paid endpoints.
	BudgetPerDay float64 `cbor:"budget_per_day"`
	// TakeProfitPct closes a position once unrealized profit reaches it.
	TakeProfitPct float64 `cbor:"take_profit_pct"`
	// StopLossPct closes a position once unrealized loss reaches it.
	StopLossPct float64 `cbor:"stop_loss_pct"`
	// MaxSnipeSOL caps SOL spent on any single snipe.
	MaxSnipeSOL float64 `cbor:"max_snipe_sol"`
}

// WalletSession is a time-bounded delegated signing credential. SessionKey
// holds the session signing key sealed by the session package; raw key
// material is never written to the store.
type WalletSession struct {
	Pubkey         string  `cbor:"pubkey"`
	SessionKey     []byte  `cbor:"session_key"`
	CreatedAt      uint64  `cbor:"created_at"`
	ExpiresAt      uint64  `cbor:"expires_at"`
	DailySpentUSDC float64 `cbor:"daily_spent_usdc"`
	DailySpentSOL  float64 `cbor:"daily_spent_sol"`
}

// Active reports whether the session is valid at the given unix timestamp.
// The expiry boundary is inclusive: a session is still active at exactly
// ExpiresAt and inactive one second later.
func (s *WalletSession) Active(now uint64) bool {
	return now <= s.ExpiresAt
}

// Validate checks the session's internal invariants.
func (s *WalletSession) Validate() error {
	if s.ExpiresAt < s.CreatedAt {
		return fmt.Errorf("%w: session expires_at %d before created_at %d",
			ErrInvalidRecord, s.ExpiresAt, s.CreatedAt)
	}
	return nil
}

// Wipe zeroes the sealed session key bytes in place. Called when a session
// is cleared so the key material does not outlive the session.
func (s *WalletSession) Wipe() {
	for i := range s.SessionKey {
		s.SessionKey[i] = 0
	}
	s.SessionKey = nil
}

// TradeLog is one completed or pending trade. Entries are append-only: once
// written into a UserState's history they are never mutated or removed.
type TradeLog struct {
	ID           string   `cbor:"id"`
	Token        string   `cbor:"token"`
	EntryPrice   float64  `cbor:"entry_price"`
	ExitPrice    *float64 `cbor:"exit_price,omitempty"`
	ProfitPct    *float64 `cbor:"profit_pct,omitempty"`
	X402CostUSDC float64  `cbor:"x402_cost_usdc"`
	SOLSpent     float64  `cbor:"sol_spent"`
	Timestamp    uint64   `cbor:"timestamp"`
}

// Closed reports whether the trade has an exit recorded.
func (t *TradeLog) Closed() bool {
	return t.ExitPrice != nil
}

// UserState is the full per-user record and the unit of atomicity for the
// store: reads and writes always cover the whole value.
type UserState struct {
	Config  UserConfig     `cbor:"config"`
	Session *WalletSession `cbor:"session,omitempty"`
	History []TradeLog     `cbor:"history"`
}

// Validate checks the record's internal invariants.
func (u *UserState) Validate() error {
	if u.Session != nil {
		return u.Session.Validate()
	}
	return nil
}

// ClearSession wipes and removes the wallet session, if any. Config and
// history are untouched.
func (u *UserState) ClearSession() {
	if u.Session == nil {
		return
	}
	u.Session.Wipe()
	u.Session = nil
}

// PublicStats is the single global statistics record, keyed by a fixed
// sentinel in the store's public namespace. The zero value is the valid
// initial state.
type PublicStats struct {
	TotalUsers       uint64  `cbor:"total_users"`
	ActiveSessions   uint64  `cbor:"active_sessions"`
	TotalSnipes      uint64  `cbor:"total_snipe"`
	SuccessfulSnipes uint64  `cbor:"successfull_snipe"`
	TotalProfitUSDC  float64 `cbor:"total_profit_usdc"`
}

// Validate checks the aggregate's internal invariants.
func (p *PublicStats) Validate() error {
	if p.SuccessfulSnipes > p.TotalSnipes {
		return fmt.Errorf("%w: successful snipes %d exceed total %d",
			ErrInvalidRecord, p.SuccessfulSnipes, p.TotalSnipes)
	}
	return nil
}

// ABOUTME: Version-1 user record shapes and their explicit upgrade path
// ABOUTME: Kept so stores written before wallet sessions still decode

package record

// LegacyUserConfig is the version-1 trading policy. It predates the
// per-snipe SOL cap.
type LegacyUserConfig struct {
	MaxFDV        float64 `cbor:"max_fdv"`
	MinLiquidity  float64 `cbor:"min_liquidity"`
	BudgetPerDay  float64 `cbor:"budget_per_day"`
	TakeProfitPct float64 `cbor:"take_profit_pct"`
	StopLossPct   float64 `cbor:"stop_loss_pct"`
}

// LegacyTradeLog is the version-1 trade entry. It predates per-trade SOL
// spend tracking.
type LegacyTradeLog struct {
	Token        string   `cbor:"token"`
	EntryPrice   float64  `cbor:"entry_price"`
	ExitPrice    *float64 `cbor:"exit_price,omitempty"`
	ProfitPct    *float64 `cbor:"profit_pct,omitempty"`
	X402CostUSDC float64  `cbor:"x402_cost_usdc"`
	Timestamp    uint64   `cbor:"timestamp"`
}

// LegacyUserState is the version-1 per-user record: no wallet session, and a
// single running daily-spend counter instead of per-session accounting.
type LegacyUserState struct {
	Config     LegacyUserConfig `cbor:"config"`
	History    []LegacyTradeLog `cbor:"history"`
	DailySpent float64          `cbor:"daily_spent"`
}

// UpgradeUserState converts a version-1 user record into the current shape.
// The conversion is deliberate, not inferred at decode time:
//
//   - MaxSnipeSOL defaults to 0 (no cap was configurable in v1; a zero cap
//     blocks new snipes until the user updates their policy).
//   - Per-trade SOLSpent defaults to 0; v1 did not track it.
//   - Session is absent; v1 had no delegated signing credentials, so there
//     is nothing to carry over.
//   - The v1 DailySpent running counter has no v2 equivalent (v2 tracks
//     spend per session) and is dropped by the conversion.
//
// History order and length are preserved.
func UpgradeUserState(legacy *LegacyUserState) *UserState {
	state := &UserState{
		Config: UserConfig{
			MaxFDV:        legacy.Config.MaxFDV,
			MinLiquidity:  legacy.Config.MinLiquidity,
			BudgetPerDay:  legacy.Config.BudgetPerDay,
			TakeProfitPct: legacy.Config.TakeProfitPct,
			StopLossPct:   legacy.Config.StopLossPct,
		},
	}
	if len(legacy.History) > 0 {
		state.History = make([]TradeLog, len(legacy.History))
		for i, t := range legacy.History {
			state.History[i] = TradeLog{
				Token:        t.Token,
				EntryPrice:   t.EntryPrice,
				ExitPrice:    t.ExitPrice,
				ProfitPct:    t.ProfitPct,
				X402CostUSDC: t.X402CostUSDC,
				Timestamp:    t.Timestamp,
			}
		}
	}
	return state
}

// EncodeLegacyUserState serializes a version-1 user record. Only migration
// tooling and tests write this shape; the repository always writes the
// current version.
func EncodeLegacyUserState(state *LegacyUserState) ([]byte, error) {
	return encodeEnvelope("user state", 1, state)
}

// ABOUTME: Session lifecycle manager over the user state repository
// ABOUTME: Mints, recovers and clears wallet sessions, keeping stats in step

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/x402labs/snipevault/internal/record"
)

// ErrNoSession is returned when a user record has no wallet session.
var ErrNoSession = errors.New("no wallet session")

// ErrSessionExpired is returned when a user's session has passed its expiry.
var ErrSessionExpired = errors.New("wallet session expired")

// Store is the slice of the repository the manager needs.
type Store interface {
	GetUser(ctx context.Context, userID string) (*record.UserState, error)
	ConnectSession(ctx context.Context, userID string, session *record.WalletSession) error
	DisconnectUser(ctx context.Context, userID string) error
	IsSessionActive(ctx context.Context, userID string) (bool, error)
	SweepExpiredSessions(ctx context.Context) (int, error)
	UpdatePublicStats(ctx context.Context, mutate func(*record.PublicStats)) error
}

// Manager drives wallet-session lifecycle for all users of the store.
type Manager struct {
	store      Store
	sealer     *Sealer
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewManager creates a Manager. defaultTTL applies when Connect is called
// with a non-positive ttl.
func NewManager(store Store, sealer *Sealer, defaultTTL time.Duration) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Manager{
		store:      store,
		sealer:     sealer,
		defaultTTL: defaultTTL,
		logger:     slog.Default().With("component", "session"),
	}
}

// Connect mints a session keypair, installs the session on the user's
// record with its key material sealed, and returns the live key. The caller
// owns the returned key and must Zero it when done; any session it replaces
// is wiped. The user must already have a registered trading policy.
func (m *Manager) Connect(ctx context.Context, userID string, ttl time.Duration) (*SessionKey, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	wasActive, err := m.store.IsSessionActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	key, err := Generate()
	if err != nil {
		return nil, err
	}

	raw, err := key.Bytes()
	if err != nil {
		return nil, err
	}
	sealed, err := m.sealer.Seal(raw)
	for i := range raw {
		raw[i] = 0
	}
	if err != nil {
		key.Zero()
		return nil, fmt.Errorf("sealing session key: %w", err)
	}

	pubkey, err := key.Pubkey()
	if err != nil {
		key.Zero()
		return nil, err
	}

	now := uint64(time.Now().UTC().Unix())
	session := &record.WalletSession{
		Pubkey:     pubkey,
		SessionKey: sealed,
		CreatedAt:  now,
		ExpiresAt:  now + uint64(ttl/time.Second),
	}

	if err := m.store.ConnectSession(ctx, userID, session); err != nil {
		key.Zero()
		return nil, err
	}

	// Replacing a still-active session must not double-count it.
	if !wasActive {
		if err := m.store.UpdatePublicStats(ctx, func(p *record.PublicStats) {
			p.ActiveSessions++
		}); err != nil {
			key.Zero()
			return nil, err
		}
	}

	m.logger.Info("session connected", "user_id", userID, "pubkey", pubkey, "ttl", ttl)
	return key, nil
}

// Disconnect clears the user's session and decrements the active-session
// count if the session was still live. No-op for users without a record.
func (m *Manager) Disconnect(ctx context.Context, userID string) error {
	wasActive, err := m.store.IsSessionActive(ctx, userID)
	if err != nil {
		return err
	}

	if err := m.store.DisconnectUser(ctx, userID); err != nil {
		return err
	}

	if wasActive {
		return m.store.UpdatePublicStats(ctx, func(p *record.PublicStats) {
			if p.ActiveSessions > 0 {
				p.ActiveSessions--
			}
		})
	}
	return nil
}

// Active reports whether the user currently has a live session.
func (m *Manager) Active(ctx context.Context, userID string) (bool, error) {
	return m.store.IsSessionActive(ctx, userID)
}

// Unseal recovers the live signing key from the user's stored session. The
// caller owns the returned key and must Zero it. Returns ErrNoSession or
// ErrSessionExpired when there is nothing valid to recover.
func (m *Manager) Unseal(ctx context.Context, userID string) (*SessionKey, error) {
	state, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.Session == nil {
		return nil, ErrNoSession
	}
	if !state.Session.Active(uint64(time.Now().UTC().Unix())) {
		return nil, ErrSessionExpired
	}

	raw, err := m.sealer.Open(state.Session.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", userID, err)
	}
	key, err := FromBytes(raw)
	for i := range raw {
		raw[i] = 0
	}
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", userID, err)
	}
	return key, nil
}

// SweepExpired clears every expired session in the store and folds the
// count into the global active-session statistic.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	cleared, err := m.store.SweepExpiredSessions(ctx)
	if err != nil {
		return cleared, err
	}
	if cleared == 0 {
		return 0, nil
	}

	err = m.store.UpdatePublicStats(ctx, func(p *record.PublicStats) {
		if uint64(cleared) > p.ActiveSessions {
			p.ActiveSessions = 0
			return
		}
		p.ActiveSessions -= uint64(cleared)
	})
	return cleared, err
}

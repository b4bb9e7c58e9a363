// ABOUTME: User state repository and aggregate statistics updater
// ABOUTME: Read-modify-write cycles are serialized per user and for the global record

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/x402labs/snipevault/internal/record"
)

// newTradeID mints an identifier for a trade log entry.
func newTradeID() string {
	return uuid.New().String()
}

// publicStatsKey is the fixed sentinel under which the single global
// statistics record lives in the public namespace.
const publicStatsKey = "stats"

// Store exposes user records and global statistics on top of an Engine.
//
// Reads and writes operate on whole records: SaveUser overwrites the full
// user record with no merge, so callers that mutate concurrently must go
// through UpdateUser, which holds a per-user lock across its
// read-modify-write cycle. UpdatePublicStats likewise serializes all global
// mutations behind one mutex, so N concurrent mutations are equivalent to
// some serial ordering of the N. Both guarantees are process-local; the
// store is single-process by design.
type Store struct {
	engine Engine
	logger *slog.Logger

	locksMu   sync.Mutex
	userLocks map[string]*sync.Mutex

	statsMu sync.Mutex
}

// NewStore wraps an Engine in the repository layer.
func NewStore(engine Engine) *Store {
	return &Store{
		engine:    engine,
		logger:    slog.Default().With("component", "repository"),
		userLocks: make(map[string]*sync.Mutex),
	}
}

// Open creates the data directory structure if absent and returns a Store
// backed by SQLite. Opened once per process; the handle is safe for
// concurrent use until Close.
func Open(dataDir string) (*Store, error) {
	engine, err := NewSQLiteEngine(dataDir)
	if err != nil {
		return nil, err
	}
	return NewStore(engine), nil
}

// Close releases the underlying engine.
func (s *Store) Close() error {
	return s.engine.Close()
}

// lockUser acquires the mutation lock for a user and returns its release
// func. Locks are created on first use and kept for the process lifetime;
// the user population of a single bot instance is small.
func (s *Store) lockUser(userID string) func() {
	s.locksMu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// GetUser returns the decoded user record, or ErrNotFound. Bytes that fail
// to decode surface a record.DecodeError; a corrupt record is not a
// recoverable business condition and is never masked as absence.
func (s *Store) GetUser(ctx context.Context, userID string) (*record.UserState, error) {
	data, err := s.engine.Get(ctx, NamespaceUsers, userID)
	if err != nil {
		return nil, err
	}

	state, err := record.DecodeUserState(data)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", userID, err)
	}
	return state, nil
}

// SaveUser encodes and overwrites the full user record unconditionally,
// returning the previous stored bytes (nil on first save). Last writer wins
// at the whole-record granularity; use UpdateUser for read-modify-write.
func (s *Store) SaveUser(ctx context.Context, userID string, state *record.UserState) ([]byte, error) {
	data, err := record.EncodeUserState(state)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", userID, err)
	}

	prev, err := s.engine.Insert(ctx, NamespaceUsers, userID, data)
	if err != nil {
		return nil, fmt.Errorf("saving user %q: %w", userID, err)
	}

	s.logger.Debug("saved user state", "user_id", userID, "history_len", len(state.History))
	return prev, nil
}

// UpdateUser applies mutate to the current user record and writes the result
// back, holding the user's lock across the whole cycle. Returns ErrNotFound
// if the user has no record.
func (s *Store) UpdateUser(ctx context.Context, userID string, mutate func(*record.UserState)) error {
	unlock := s.lockUser(userID)
	defer unlock()

	state, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	mutate(state)

	if _, err := s.SaveUser(ctx, userID, state); err != nil {
		return err
	}
	return nil
}

// AppendTrade appends one trade to the user's history. History is
// append-only: entries are never mutated or removed, only added in insertion
// order. A missing trade ID is filled in here.
func (s *Store) AppendTrade(ctx context.Context, userID string, trade record.TradeLog) error {
	if trade.ID == "" {
		trade.ID = newTradeID()
	}
	return s.UpdateUser(ctx, userID, func(state *record.UserState) {
		state.History = append(state.History, trade)
	})
}

// ConnectSession installs a wallet session on an existing user record,
// wiping any session it replaces. Returns ErrNotFound if the user has no
// record; sessions require a registered trading policy.
func (s *Store) ConnectSession(ctx context.Context, userID string, session *record.WalletSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	err := s.UpdateUser(ctx, userID, func(state *record.UserState) {
		state.ClearSession()
		state.Session = session
	})
	if err != nil {
		return err
	}

	s.logger.Info("session connected", "user_id", userID, "pubkey", session.Pubkey)
	return nil
}

// DisconnectUser clears the user's wallet session, zeroing its key material,
// and writes the record back. Config and history are untouched. No-op if the
// user has no record.
func (s *Store) DisconnectUser(ctx context.Context, userID string) error {
	err := s.UpdateUser(ctx, userID, func(state *record.UserState) {
		state.ClearSession()
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("session disconnected", "user_id", userID)
	return nil
}

// IsSessionActive reports whether the user has a session that is valid at
// the current wall-clock time (expiry boundary inclusive). Absent user or
// absent session both report false without error.
func (s *Store) IsSessionActive(ctx context.Context, userID string) (bool, error) {
	state, err := s.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if state.Session == nil {
		return false, nil
	}
	return state.Session.Active(uint64(time.Now().UTC().Unix())), nil
}

// ListUsers returns all user identifiers with a stored record.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	return s.engine.Keys(ctx, NamespaceUsers)
}

// SweepExpiredSessions disconnects every user whose session has passed its
// expiry, so stale signing credentials do not linger in the store. Returns
// the number of sessions cleared.
func (s *Store) SweepExpiredSessions(ctx context.Context) (int, error) {
	userIDs, err := s.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	now := uint64(time.Now().UTC().Unix())
	cleared := 0
	for _, userID := range userIDs {
		swept := false
		err := s.UpdateUser(ctx, userID, func(state *record.UserState) {
			if state.Session != nil && !state.Session.Active(now) {
				state.ClearSession()
				swept = true
			}
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return cleared, err
		}
		if swept {
			cleared++
			s.logger.Info("expired session swept", "user_id", userID)
		}
	}
	return cleared, nil
}

// GetPublicStats returns the decoded global statistics record, or the zero
// value if none has been written yet. Absence is not an error.
func (s *Store) GetPublicStats(ctx context.Context) (*record.PublicStats, error) {
	data, err := s.engine.Get(ctx, NamespacePublic, publicStatsKey)
	if errors.Is(err, ErrNotFound) {
		return &record.PublicStats{}, nil
	}
	if err != nil {
		return nil, err
	}
	return record.DecodePublicStats(data)
}

// UpdatePublicStats applies mutate to the global statistics record and
// writes the result back. The whole read-modify-write cycle runs under one
// mutex, so concurrent updates compose instead of overwriting each other.
// A mutation that violates the aggregate's invariants is rejected and the
// stored record is left unchanged.
func (s *Store) UpdatePublicStats(ctx context.Context, mutate func(*record.PublicStats)) error {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stats, err := s.GetPublicStats(ctx)
	if err != nil {
		return err
	}

	mutate(stats)

	data, err := record.EncodePublicStats(stats)
	if err != nil {
		return err
	}
	if _, err := s.engine.Insert(ctx, NamespacePublic, publicStatsKey, data); err != nil {
		return fmt.Errorf("updating public stats: %w", err)
	}

	s.logger.Debug("updated public stats",
		"total_snipe", stats.TotalSnipes,
		"successful_snipe", stats.SuccessfulSnipes,
		"active_sessions", stats.ActiveSessions,
	)
	return nil
}

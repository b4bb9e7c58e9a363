package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402labs/snipevault/internal/record"
	"github.com/x402labs/snipevault/internal/store"
)

// setupManager builds a Manager over a memory-backed store with one
// registered user.
func setupManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()

	st := store.NewStore(store.NewMemoryEngine())
	_, err := st.SaveUser(context.Background(), "u1", &record.UserState{
		Config: record.UserConfig{
			MaxFDV:       80000,
			MinLiquidity: 5000,
			BudgetPerDay: 1.0,
			MaxSnipeSOL:  0.1,
		},
	})
	require.NoError(t, err)

	sealer, err := LoadSealer(t.TempDir())
	require.NoError(t, err)

	return NewManager(st, sealer, time.Hour), st
}

func TestManager_ConnectAndUnseal(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()

	key, err := m.Connect(ctx, "u1", 24*time.Hour)
	require.NoError(t, err)
	defer key.Zero()

	active, err := m.Active(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, active)

	// The persisted record carries sealed bytes, not the raw key.
	state, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, state.Session)
	raw, err := key.Bytes()
	require.NoError(t, err)
	assert.NotEqual(t, raw, state.Session.SessionKey)
	assert.GreaterOrEqual(t, state.Session.ExpiresAt, state.Session.CreatedAt)

	// Unseal recovers the same signer.
	recovered, err := m.Unseal(ctx, "u1")
	require.NoError(t, err)
	defer recovered.Zero()

	wantPub, err := key.Pubkey()
	require.NoError(t, err)
	gotPub, err := recovered.Pubkey()
	require.NoError(t, err)
	assert.Equal(t, wantPub, gotPub)
	assert.Equal(t, wantPub, state.Session.Pubkey)
}

func TestManager_Connect_UnknownUser(t *testing.T) {
	m, _ := setupManager(t)

	_, err := m.Connect(context.Background(), "nobody", time.Hour)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManager_Connect_TracksActiveSessions(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()

	key, err := m.Connect(ctx, "u1", time.Hour)
	require.NoError(t, err)
	key.Zero()

	stats, err := st.GetPublicStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.ActiveSessions)

	// Reconnecting while a session is live does not double-count.
	key, err = m.Connect(ctx, "u1", time.Hour)
	require.NoError(t, err)
	key.Zero()

	stats, err = st.GetPublicStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.ActiveSessions)
}

func TestManager_Disconnect(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()

	key, err := m.Connect(ctx, "u1", time.Hour)
	require.NoError(t, err)
	key.Zero()

	require.NoError(t, m.Disconnect(ctx, "u1"))

	active, err := m.Active(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, active)

	stats, err := st.GetPublicStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveSessions)

	_, err = m.Unseal(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_Unseal_Expired(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()

	key, err := m.Connect(ctx, "u1", time.Hour)
	require.NoError(t, err)
	key.Zero()

	// Age the session past its expiry behind the manager's back.
	require.NoError(t, st.UpdateUser(ctx, "u1", func(state *record.UserState) {
		state.Session.CreatedAt -= 7200
		state.Session.ExpiresAt = state.Session.CreatedAt + 3600
	}))

	_, err = m.Unseal(ctx, "u1")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestManager_SweepExpired(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()

	key, err := m.Connect(ctx, "u1", time.Hour)
	require.NoError(t, err)
	key.Zero()

	require.NoError(t, st.UpdateUser(ctx, "u1", func(state *record.UserState) {
		state.Session.CreatedAt -= 7200
		state.Session.ExpiresAt = state.Session.CreatedAt + 3600
	}))

	cleared, err := m.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	stats, err := st.GetPublicStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveSessions)

	state, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, state.Session)

	// Nothing left to sweep.
	cleared, err = m.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, cleared)
}

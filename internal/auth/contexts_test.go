package auth

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultIdle = 30 * time.Minute

func TestContextRegistry_OpenLookupClose(t *testing.T) {
	env := newTestEnv(t)

	cc := env.registry.Open()
	require.NotEmpty(t, cc.ID)
	assert.Equal(t, 1, env.registry.Len())

	got, ok := env.registry.Lookup(cc.ID)
	require.True(t, ok)
	assert.Same(t, cc, got)

	assert.True(t, env.registry.Close(cc.ID))
	assert.False(t, env.registry.Close(cc.ID))

	_, ok = env.registry.Lookup(cc.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, env.registry.Len())
}

func TestContextRegistry_ContextsHaveIndependentSessions(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice", "s3cret")

	first := env.registry.Open()
	second := env.registry.Open()
	assert.NotEqual(t, first.ID, second.ID)

	require.NoError(t, first.Manager.Login(context.Background(), "alice", "s3cret"))

	assert.True(t, first.Session.Active())
	assert.False(t, second.Session.Active())

	_, err := second.Manager.GetLoggedInUser()
	assert.ErrorIs(t, err, models.ErrNoLoggedInUser)
}

func TestContextRegistry_EvictIdle(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice", "s3cret")

	now := time.Now()
	env.registry.now = func() time.Time { return now }

	stale := env.registry.Open()
	require.NoError(t, stale.Manager.Login(context.Background(), "alice", "s3cret"))

	now = now.Add(20 * time.Minute)
	fresh := env.registry.Open()

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, env.registry.EvictIdle())

	_, ok := env.registry.Lookup(stale.ID)
	assert.False(t, ok)
	assert.False(t, stale.Session.Active(), "evicting a context must end its session")

	_, ok = env.registry.Lookup(fresh.ID)
	assert.True(t, ok)
}

func TestContextRegistry_LookupRefreshesLastSeen(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now()
	env.registry.now = func() time.Time { return now }

	cc := env.registry.Open()

	now = now.Add(25 * time.Minute)
	_, ok := env.registry.Lookup(cc.ID)
	require.True(t, ok)

	now = now.Add(25 * time.Minute)
	assert.Equal(t, 0, env.registry.EvictIdle())
}

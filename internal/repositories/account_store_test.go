package repositories_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/repositories"
	"github.com/BradenHooton/warden/internal/services"
)

var (
	_ services.AccountStore = (*repositories.MemoryAccountRepository)(nil)
	_ services.AccountStore = (*repositories.RedisAccountRepository)(nil)
	_ services.AccountStore = (*repositories.AccountRepository)(nil)
)

type storeFactory struct {
	name  string
	setup func(t *testing.T) services.AccountStore
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{
			name: "memory",
			setup: func(t *testing.T) services.AccountStore {
				return repositories.NewMemoryAccountRepository()
			},
		},
		{
			name: "redis",
			setup: func(t *testing.T) services.AccountStore {
				t.Helper()
				mr, err := miniredis.Run()
				require.NoError(t, err)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() {
					_ = rdb.Close()
					mr.Close()
				})
				return repositories.NewRedisAccountRepository(rdb, "test:")
			},
		},
	}
}

// runStoreContract exercises the behaviour every AccountStore must share. It is
// reused by the Postgres integration test.
func runStoreContract(t *testing.T, setup func(t *testing.T) services.AccountStore) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		store := setup(t)
		created, err := store.Create(ctx, &models.Account{LoginIdentifier: "alice", Name: "Alice", PasswordHash: "h"})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, models.DefaultAccountKind, created.Kind)
		assert.Equal(t, 0, created.FailedLogins)
		assert.Nil(t, created.LastLogin)

		byLogin, err := store.FindByLoginIdentifier(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byLogin.ID)
		assert.Equal(t, "h", byLogin.PasswordHash)

		byID, err := store.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", byID.Name)
	})

	t.Run("not found", func(t *testing.T) {
		store := setup(t)
		_, err := store.FindByLoginIdentifier(ctx, "nobody")
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = store.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = store.IncrementFailedLogins(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("duplicate login identifier", func(t *testing.T) {
		store := setup(t)
		first, err := store.Create(ctx, &models.Account{LoginIdentifier: "ABC"})
		require.NoError(t, err)

		_, err = store.Create(ctx, &models.Account{LoginIdentifier: "ABC"})
		assert.ErrorIs(t, err, models.ErrDuplicateLoginIdentifier)

		assert.ErrorIs(t, store.EnforceUniqueLoginIdentifier(ctx, "ABC", ""), models.ErrDuplicateLoginIdentifier)
		assert.NoError(t, store.EnforceUniqueLoginIdentifier(ctx, "ABC", first.ID))
		assert.NoError(t, store.EnforceUniqueLoginIdentifier(ctx, "free", ""))
	})

	t.Run("persist renames and rehashes", func(t *testing.T) {
		store := setup(t)
		account, err := store.Create(ctx, &models.Account{LoginIdentifier: "old", PasswordHash: "h1"})
		require.NoError(t, err)
		_, err = store.Create(ctx, &models.Account{LoginIdentifier: "taken"})
		require.NoError(t, err)

		account.LoginIdentifier = "taken"
		assert.ErrorIs(t, store.Persist(ctx, account), models.ErrDuplicateLoginIdentifier)

		account.LoginIdentifier = "new"
		account.PasswordHash = "h2"
		require.NoError(t, store.Persist(ctx, account))

		_, err = store.FindByLoginIdentifier(ctx, "old")
		assert.ErrorIs(t, err, models.ErrNotFound)
		reloaded, err := store.FindByLoginIdentifier(ctx, "new")
		require.NoError(t, err)
		assert.Equal(t, "h2", reloaded.PasswordHash)

		assert.ErrorIs(t, store.Persist(ctx, &models.Account{}), models.ErrAccountNotPersisted)
	})

	t.Run("concurrent renames keep one index entry", func(t *testing.T) {
		store := setup(t)
		for i := 0; i < 20; i++ {
			account, err := store.Create(ctx, &models.Account{LoginIdentifier: fmt.Sprintf("orig-%d", i)})
			require.NoError(t, err)

			targets := []string{fmt.Sprintf("x-%d", i), fmt.Sprintf("y-%d", i)}
			var wg sync.WaitGroup
			for _, target := range targets {
				wg.Add(1)
				go func(login string) {
					defer wg.Done()
					renamed := account.Clone()
					renamed.LoginIdentifier = login
					assert.NoError(t, store.Persist(ctx, renamed))
				}(target)
			}
			wg.Wait()

			final, err := store.FindByID(ctx, account.ID)
			require.NoError(t, err)
			assert.Contains(t, targets, final.LoginIdentifier)

			for _, login := range append(targets, account.LoginIdentifier) {
				found, err := store.FindByLoginIdentifier(ctx, login)
				if login == final.LoginIdentifier {
					require.NoError(t, err)
					assert.Equal(t, account.ID, found.ID)
					continue
				}
				assert.ErrorIs(t, err, models.ErrNotFound, "%s should no longer resolve", login)
				assert.NoError(t, store.EnforceUniqueLoginIdentifier(ctx, login, ""), "%s should be free", login)
			}
		}
	})

	t.Run("persist ignores counter fields", func(t *testing.T) {
		store := setup(t)
		account, err := store.Create(ctx, &models.Account{LoginIdentifier: "bob"})
		require.NoError(t, err)

		_, err = store.IncrementFailedLogins(ctx, account.ID)
		require.NoError(t, err)

		// stale copy still has FailedLogins == 0
		account.Name = "Bob"
		require.NoError(t, store.Persist(ctx, account))

		reloaded, err := store.FindByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, reloaded.FailedLogins)
		assert.Equal(t, "Bob", reloaded.Name)
	})

	t.Run("counter increments and resets", func(t *testing.T) {
		store := setup(t)
		account, err := store.Create(ctx, &models.Account{LoginIdentifier: "carol"})
		require.NoError(t, err)

		for i := 1; i <= 3; i++ {
			n, err := store.IncrementFailedLogins(ctx, account.ID)
			require.NoError(t, err)
			assert.Equal(t, i, n)
		}

		at := time.Now()
		require.NoError(t, store.RecordSuccessfulLogin(ctx, account.ID, at))

		reloaded, err := store.FindByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, reloaded.FailedLogins)
		require.NotNil(t, reloaded.LastLogin)
		assert.WithinDuration(t, at, *reloaded.LastLogin, time.Millisecond)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		store := setup(t)
		account, err := store.Create(ctx, &models.Account{LoginIdentifier: "dave"})
		require.NoError(t, err)

		const workers = 20
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				_, _ = store.IncrementFailedLogins(ctx, account.ID)
			}()
		}
		wg.Wait()

		reloaded, err := store.FindByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, workers, reloaded.FailedLogins)
	})

	t.Run("returned accounts are copies", func(t *testing.T) {
		store := setup(t)
		account, err := store.Create(ctx, &models.Account{LoginIdentifier: "erin", Name: "Erin"})
		require.NoError(t, err)

		account.Name = "changed without persist"
		reloaded, err := store.FindByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "Erin", reloaded.Name)
	})
}

func TestAccountStores(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			runStoreContract(t, f.setup)
		})
	}
}

func TestMemoryAccountRepository_Delete(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryAccountRepository()
	account, err := store.Create(ctx, &models.Account{LoginIdentifier: "gone"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, account.ID))
	assert.ErrorIs(t, store.Delete(ctx, account.ID), models.ErrNotFound)

	_, err = store.FindByLoginIdentifier(ctx, "gone")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, store.EnforceUniqueLoginIdentifier(ctx, "gone", ""))
}

func TestRedisAccountRepository_KeyPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	a := repositories.NewRedisAccountRepository(rdb, "a:")
	b := repositories.NewRedisAccountRepository(rdb, "b:")

	_, err = a.Create(ctx, &models.Account{LoginIdentifier: "shared"})
	require.NoError(t, err)
	_, err = b.Create(ctx, &models.Account{LoginIdentifier: "shared"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("a:login:shared"))
	assert.True(t, mr.Exists("b:login:shared"))
}

func TestRedisAccountRepository_FailedCreateReleasesLogin(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := repositories.NewRedisAccountRepository(rdb, "test:")

	mr.SetError("ERR store unavailable")
	_, err = store.Create(ctx, &models.Account{LoginIdentifier: "frank"})
	require.Error(t, err)
	mr.SetError("")

	assert.False(t, mr.Exists("test:login:frank"))
	assert.NoError(t, store.EnforceUniqueLoginIdentifier(ctx, "frank", ""))

	_, err = store.Create(ctx, &models.Account{LoginIdentifier: "frank"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:login:frank"))
}

func TestRedisAccountRepository_PersistMissingAccount(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := repositories.NewRedisAccountRepository(rdb, "test:")

	err = store.Persist(ctx, &models.Account{ID: "missing", LoginIdentifier: "ghost"})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, mr.Exists("test:login:ghost"))
}

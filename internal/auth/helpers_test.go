package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/repositories"
	"github.com/BradenHooton/warden/internal/services"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-32-characters-long!!"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store    *repositories.MemoryAccountRepository
	verifier *pkgauth.BcryptVerifier
	registry *ContextRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repositories.NewMemoryAccountRepository()
	verifier := pkgauth.NewBcryptVerifier(bcrypt.MinCost)
	logger := discardLogger()

	registry := NewContextRegistry(func(session *services.Session) *services.AuthSessionManager {
		return services.NewAuthSessionManager(session, store, verifier, nil, logger, "")
	}, defaultIdle, logger)

	return &testEnv{store: store, verifier: verifier, registry: registry}
}

func (e *testEnv) createAccount(t *testing.T, login, password string) *models.Account {
	t.Helper()
	hash, err := e.verifier.DeriveHash(password)
	require.NoError(t, err)

	account, err := e.store.Create(context.Background(), &models.Account{
		Kind:            models.DefaultAccountKind,
		LoginIdentifier: login,
		PasswordHash:    hash,
	})
	require.NoError(t, err)
	return account
}

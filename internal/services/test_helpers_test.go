package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/warden/internal/hooks"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/repositories"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockAccountStore implements AccountStore for testing
type MockAccountStore struct {
	FindByLoginIdentifierFunc        func(ctx context.Context, loginIdentifier string) (*models.Account, error)
	FindByIDFunc                     func(ctx context.Context, id string) (*models.Account, error)
	CreateFunc                       func(ctx context.Context, account *models.Account) (*models.Account, error)
	PersistFunc                      func(ctx context.Context, account *models.Account) error
	EnforceUniqueLoginIdentifierFunc func(ctx context.Context, loginIdentifier, exceptID string) error
	IncrementFailedLoginsFunc        func(ctx context.Context, id string) (int, error)
	RecordSuccessfulLoginFunc        func(ctx context.Context, id string, at time.Time) error
}

func (m *MockAccountStore) FindByLoginIdentifier(ctx context.Context, loginIdentifier string) (*models.Account, error) {
	if m.FindByLoginIdentifierFunc != nil {
		return m.FindByLoginIdentifierFunc(ctx, loginIdentifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountStore) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountStore) Persist(ctx context.Context, account *models.Account) error {
	if m.PersistFunc != nil {
		return m.PersistFunc(ctx, account)
	}
	return nil
}

func (m *MockAccountStore) EnforceUniqueLoginIdentifier(ctx context.Context, loginIdentifier, exceptID string) error {
	if m.EnforceUniqueLoginIdentifierFunc != nil {
		return m.EnforceUniqueLoginIdentifierFunc(ctx, loginIdentifier, exceptID)
	}
	return nil
}

func (m *MockAccountStore) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	if m.IncrementFailedLoginsFunc != nil {
		return m.IncrementFailedLoginsFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockAccountStore) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	if m.RecordSuccessfulLoginFunc != nil {
		return m.RecordSuccessfulLoginFunc(ctx, id, at)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVerifier() *pkgauth.BcryptVerifier {
	return pkgauth.NewBcryptVerifier(bcrypt.MinCost)
}

// authFixture wires a manager to an in-memory store with the lockout policy registered.
type authFixture struct {
	store      *repositories.MemoryAccountRepository
	verifier   *pkgauth.BcryptVerifier
	dispatcher *hooks.Dispatcher
	policy     *LockoutPolicy
	session    *Session
	manager    *AuthSessionManager
}

func newAuthFixture(t *testing.T, maxFailedLogins int) *authFixture {
	t.Helper()
	store := repositories.NewMemoryAccountRepository()
	verifier := testVerifier()
	logger := discardLogger()

	dispatcher := hooks.NewDispatcher()
	policy := NewLockoutPolicy(store, maxFailedLogins, logger)
	policy.Register(dispatcher)

	session := NewSession()
	manager := NewAuthSessionManager(session, store, verifier, dispatcher, logger, models.DefaultAccountKind)

	return &authFixture{
		store:      store,
		verifier:   verifier,
		dispatcher: dispatcher,
		policy:     policy,
		session:    session,
		manager:    manager,
	}
}

// newManager returns another manager with its own session sharing the fixture's store and hooks
func (f *authFixture) newManager() *AuthSessionManager {
	return NewAuthSessionManager(NewSession(), f.store, f.verifier, f.dispatcher, discardLogger(), models.DefaultAccountKind)
}

func (f *authFixture) seed(t *testing.T, login, password string) *models.Account {
	t.Helper()
	hash, err := f.verifier.DeriveHash(password)
	require.NoError(t, err)

	account, err := f.store.Create(context.Background(), &models.Account{
		Kind:            models.DefaultAccountKind,
		LoginIdentifier: login,
		Name:            login,
		PasswordHash:    hash,
	})
	require.NoError(t, err)
	return account
}

func (f *authFixture) reload(t *testing.T, id string) *models.Account {
	t.Helper()
	account, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return account
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/warden/internal/hooks"
	"github.com/BradenHooton/warden/internal/models"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
)

// AuthSessionManager drives login and logout for exactly one Session. Construct one
// per client context; the store, verifier and dispatcher may be shared between them.
type AuthSessionManager struct {
	session  *Session
	store    AccountStore
	verifier pkgauth.CredentialVerifier
	hooks    *hooks.Dispatcher
	logger   *slog.Logger
	kind     string
}

// NewAuthSessionManager creates a manager bound to session. kind restricts the
// accounts it authenticates; an empty kind accepts any.
func NewAuthSessionManager(
	session *Session,
	store AccountStore,
	verifier pkgauth.CredentialVerifier,
	dispatcher *hooks.Dispatcher,
	logger *slog.Logger,
	kind string,
) *AuthSessionManager {
	if dispatcher == nil {
		dispatcher = hooks.NewDispatcher()
	}
	return &AuthSessionManager{
		session:  session,
		store:    store,
		verifier: verifier,
		hooks:    dispatcher,
		logger:   logger,
		kind:     kind,
	}
}

// RegisterHook registers observer on the dispatcher this manager fires into.
func (m *AuthSessionManager) RegisterHook(event models.AuthEvent, observer hooks.Observer) hooks.Handle {
	return m.hooks.Register(event, observer)
}

// Login authenticates loginIdentifier with password and makes it the active session.
//
// Order matters: session state is checked first so an active session is never
// clobbered and the store is not touched; BeforeLogin observers run before any
// password comparison; outcome observers run only after a real verification.
// An unknown identifier and a wrong password both yield ErrInvalidCredentials.
func (m *AuthSessionManager) Login(ctx context.Context, loginIdentifier, password string) error {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()

	if m.session.account != nil {
		m.logger.Info("login rejected: session already active",
			slog.String("account_id", m.session.account.ID))
		return models.ErrAlreadyLoggedIn
	}

	account, err := m.store.FindByLoginIdentifier(ctx, loginIdentifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			m.logger.Info("login failed: invalid credentials",
				slog.String("login", pkglogger.SanitizedLogin(loginIdentifier)))
			return models.ErrInvalidCredentials
		}
		m.logger.Error("failed to load account", slog.Any("error", err))
		return fmt.Errorf("failed to load account: %w", err)
	}

	if m.kind != "" && account.Kind != m.kind {
		m.logger.Info("login failed: account kind mismatch",
			slog.String("account_id", account.ID),
			slog.String("kind", account.Kind))
		return models.ErrInvalidCredentials
	}

	if err := m.hooks.Fire(ctx, models.BeforeLogin, account); err != nil {
		return err
	}

	// The attempt has been evaluated from here on; counters must be updated even
	// if the caller goes away.
	outcomeCtx := context.WithoutCancel(ctx)

	if !m.verifier.Verify(account.PasswordHash, password) {
		if err := m.hooks.Fire(outcomeCtx, models.BadLogin, account); err != nil {
			return err
		}
		m.logger.Info("login failed: invalid credentials", slog.String("account_id", account.ID))
		return models.ErrInvalidCredentials
	}

	if err := m.hooks.Fire(outcomeCtx, models.LoggedIn, account); err != nil {
		return err
	}

	m.session.account = account.Snapshot()
	m.logger.Info("account logged in", slog.String("account_id", account.ID))

	return nil
}

// Logout clears the session. It is a no-op when no account is logged in.
func (m *AuthSessionManager) Logout() {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()

	if m.session.account != nil {
		m.logger.Info("account logged out", slog.String("account_id", m.session.account.ID))
	}
	m.session.account = nil
}

// GetLoggedInUser returns a copy of the active session's snapshot.
func (m *AuthSessionManager) GetLoggedInUser() (*models.AccountSnapshot, error) {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()

	if m.session.account == nil {
		return nil, models.ErrNoLoggedInUser
	}
	return m.session.account.Clone(), nil
}

// DangerouslySetLoggedInUser asserts account as the session identity without
// credentials or hooks. It exists for non-interactive callers such as scheduled
// jobs or API-key authenticated scripts.
func (m *AuthSessionManager) DangerouslySetLoggedInUser(account *models.Account, allowOverwrite bool) error {
	if !account.IsPersisted() {
		return models.ErrAccountNotPersisted
	}

	m.session.mu.Lock()
	defer m.session.mu.Unlock()

	if m.session.account != nil && !allowOverwrite {
		return models.ErrOverwriteNotAllowed
	}
	if m.kind != "" && account.Kind != m.kind {
		return models.ErrWrongAccountType
	}

	m.session.account = account.Snapshot()
	m.logger.Warn("session identity set without authentication", slog.String("account_id", account.ID))

	return nil
}

// RefreshLoggedInUser reloads the active account from the store and replaces the
// snapshot. If the account no longer exists the session is cleared.
func (m *AuthSessionManager) RefreshLoggedInUser(ctx context.Context) (*models.AccountSnapshot, error) {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()

	if m.session.account == nil {
		return nil, models.ErrNoLoggedInUser
	}

	account, err := m.store.FindByID(ctx, m.session.account.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			m.logger.Info("logged in account vanished, clearing session",
				slog.String("account_id", m.session.account.ID))
			m.session.account = nil
			return nil, models.ErrNoLoggedInUser
		}
		return nil, fmt.Errorf("failed to reload account: %w", err)
	}

	m.session.account = account.Snapshot()
	return m.session.account.Clone(), nil
}

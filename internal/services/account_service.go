package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/warden/internal/models"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
)

// LoggedInUserProvider exposes the identity of the current session.
type LoggedInUserProvider interface {
	GetLoggedInUser() (*models.AccountSnapshot, error)
}

// AccountService handles account provisioning and credential changes
type AccountService struct {
	store    AccountStore
	verifier pkgauth.CredentialVerifier
	logger   *slog.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(store AccountStore, verifier pkgauth.CredentialVerifier, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:    store,
		verifier: verifier,
		logger:   logger,
	}
}

// Register provisions a new account with a strength-checked password.
func (s *AccountService) Register(ctx context.Context, kind, loginIdentifier, password, name string) (*models.Account, error) {
	loginIdentifier = strings.TrimSpace(loginIdentifier)
	name = strings.TrimSpace(name)

	if loginIdentifier == "" {
		return nil, fmt.Errorf("%w: login identifier is required", models.ErrBadRequest)
	}
	if kind == "" {
		kind = models.DefaultAccountKind
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	if err := s.store.EnforceUniqueLoginIdentifier(ctx, loginIdentifier, ""); err != nil {
		if errors.Is(err, models.ErrDuplicateLoginIdentifier) {
			s.logger.Info("registration failed: login identifier taken")
			return nil, err
		}
		s.logger.Error("failed to check login identifier", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check login identifier: %w", err)
	}

	hash, err := s.verifier.DeriveHash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, err
	}

	created, err := s.store.Create(ctx, &models.Account{
		Kind:            kind,
		LoginIdentifier: loginIdentifier,
		Name:            name,
		PasswordHash:    hash,
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateLoginIdentifier) {
			return nil, err
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account registered",
		slog.String("account_id", created.ID),
		slog.String("login", pkglogger.SanitizedLogin(created.LoginIdentifier)))

	return created, nil
}

// ChangeLoginIdentifier renames an account after checking the new identifier is free.
func (s *AccountService) ChangeLoginIdentifier(ctx context.Context, id, loginIdentifier string) (*models.Account, error) {
	loginIdentifier = strings.TrimSpace(loginIdentifier)
	if loginIdentifier == "" {
		return nil, fmt.Errorf("%w: login identifier is required", models.ErrBadRequest)
	}

	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.LoginIdentifier == loginIdentifier {
		return account, nil
	}

	if err := s.store.EnforceUniqueLoginIdentifier(ctx, loginIdentifier, account.ID); err != nil {
		return nil, err
	}

	account.LoginIdentifier = loginIdentifier
	if err := s.store.Persist(ctx, account); err != nil {
		s.logger.Error("failed to persist login identifier", slog.String("account_id", id), slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("login identifier changed", slog.String("account_id", id))
	return account, nil
}

// SetNewPassword replaces account's password hash in memory. Only the account that
// is currently logged in through owner may change its own password. Persisting the
// change is up to the caller.
func (s *AccountService) SetNewPassword(
	owner LoggedInUserProvider,
	account *models.Account,
	newPassword, confirmPassword string,
	checkOldPassword bool,
	oldPassword string,
) error {
	current, err := owner.GetLoggedInUser()
	if err != nil || !account.IsPersisted() || current.ID != account.ID {
		return models.ErrNotAccountOwner
	}

	if checkOldPassword && !s.verifier.Verify(account.PasswordHash, oldPassword) {
		return models.ErrWrongOldPassword
	}

	if newPassword != confirmPassword {
		return models.ErrPasswordMismatch
	}

	hash, err := s.verifier.DeriveHash(newPassword)
	if err != nil {
		return err
	}
	account.PasswordHash = hash

	return nil
}

// ChangePassword loads the logged-in account, applies SetNewPassword with the old
// password checked, and persists the result.
func (s *AccountService) ChangePassword(ctx context.Context, owner LoggedInUserProvider, newPassword, confirmPassword, oldPassword string) error {
	current, err := owner.GetLoggedInUser()
	if err != nil {
		return models.ErrNotAccountOwner
	}

	account, err := s.store.FindByID(ctx, current.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotAccountOwner
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	if err := s.SetNewPassword(owner, account, newPassword, confirmPassword, true, oldPassword); err != nil {
		s.logger.Info("password change rejected",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return err
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	if err := s.store.Persist(ctx, account); err != nil {
		s.logger.Error("failed to persist password change", slog.String("account_id", account.ID), slog.Any("error", err))
		return fmt.Errorf("failed to persist password: %w", err)
	}

	s.logger.Info("password changed", slog.String("account_id", account.ID))
	return nil
}

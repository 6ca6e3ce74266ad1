package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/warden/internal/hooks"
	"github.com/BradenHooton/warden/internal/models"
)

// DefaultMaxFailedLogins is the lockout threshold used when none is configured.
const DefaultMaxFailedLogins = 10

// LockoutPolicy rejects logins once an account has too many failed attempts since
// its last successful login. It keeps no state of its own: the counter lives on the
// account and every change goes through the store as an atomic operation.
type LockoutPolicy struct {
	store           LockoutStore
	maxFailedLogins int
	logger          *slog.Logger
	now             func() time.Time
}

// NewLockoutPolicy creates a LockoutPolicy; maxFailedLogins below 1 falls back to the default
func NewLockoutPolicy(store LockoutStore, maxFailedLogins int, logger *slog.Logger) *LockoutPolicy {
	if maxFailedLogins < 1 {
		maxFailedLogins = DefaultMaxFailedLogins
	}
	return &LockoutPolicy{
		store:           store,
		maxFailedLogins: maxFailedLogins,
		logger:          logger,
		now:             time.Now,
	}
}

// Register attaches the policy to all three login events.
func (p *LockoutPolicy) Register(d *hooks.Dispatcher) []hooks.Handle {
	return []hooks.Handle{
		d.Register(models.BeforeLogin, p.BeforeLogin),
		d.Register(models.LoggedIn, p.LoggedIn),
		d.Register(models.BadLogin, p.BadLogin),
	}
}

// MaxFailedLogins returns the configured threshold
func (p *LockoutPolicy) MaxFailedLogins() int {
	return p.maxFailedLogins
}

// BeforeLogin vetoes the attempt when the threshold has been reached.
func (p *LockoutPolicy) BeforeLogin(ctx context.Context, account *models.Account) error {
	if account.FailedLogins >= p.maxFailedLogins {
		p.logger.Warn("login rejected: account locked out",
			slog.String("account_id", account.ID),
			slog.Int("failed_logins", account.FailedLogins),
			slog.Int("max_failed_logins", p.maxFailedLogins))
		return models.ErrLockedOut
	}
	return nil
}

// LoggedIn resets the counter and records the login time.
func (p *LockoutPolicy) LoggedIn(ctx context.Context, account *models.Account) error {
	now := p.now()
	if err := p.store.RecordSuccessfulLogin(ctx, account.ID, now); err != nil {
		p.logger.Error("failed to record successful login",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to record successful login: %w", err)
	}

	account.FailedLogins = 0
	account.LastLogin = &now
	return nil
}

// BadLogin increments the counter. The account takes the value returned by the
// store, not a local increment, so concurrent failures are never lost.
func (p *LockoutPolicy) BadLogin(ctx context.Context, account *models.Account) error {
	count, err := p.store.IncrementFailedLogins(ctx, account.ID)
	if err != nil {
		p.logger.Error("failed to record failed login",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to record failed login: %w", err)
	}

	account.FailedLogins = count
	if count >= p.maxFailedLogins {
		p.logger.Warn("account reached failed login threshold",
			slog.String("account_id", account.ID),
			slog.Int("failed_logins", count))
	}
	return nil
}

// RemainingAttempts is for display only; the login flow never consults it.
func (p *LockoutPolicy) RemainingAttempts(account *models.Account) int {
	return max(0, p.maxFailedLogins-account.FailedLogins)
}

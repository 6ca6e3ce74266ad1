package services

import (
	"context"
	"time"

	"github.com/BradenHooton/warden/internal/models"
)

// AccountStore defines the persistence operations the authentication core depends on.
// Lookups return models.ErrNotFound when no account matches. Implementations must
// apply IncrementFailedLogins and RecordSuccessfulLogin atomically, since the same
// account can be attempted from several client contexts at once.
type AccountStore interface {
	FindByLoginIdentifier(ctx context.Context, loginIdentifier string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Persist(ctx context.Context, account *models.Account) error
	EnforceUniqueLoginIdentifier(ctx context.Context, loginIdentifier, exceptID string) error
	LockoutStore
}

// LockoutStore is the subset of AccountStore the lockout policy mutates.
type LockoutStore interface {
	// IncrementFailedLogins adds one to the counter and returns the new value.
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	// RecordSuccessfulLogin resets the counter to zero and stores the login time.
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error
}

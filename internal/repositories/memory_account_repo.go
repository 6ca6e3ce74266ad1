package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/google/uuid"
)

// MemoryAccountRepository is an in-process AccountStore for single-instance
// deployments and tests. All values cross the boundary as copies.
type MemoryAccountRepository struct {
	mu      sync.Mutex
	byID    map[string]*models.Account
	byLogin map[string]string
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byID:    make(map[string]*models.Account),
		byLogin: make(map[string]string),
	}
}

func (r *MemoryAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return account.Clone(), nil
}

func (r *MemoryAccountRepository) FindByLoginIdentifier(ctx context.Context, loginIdentifier string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byLogin[loginIdentifier]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byLogin[account.LoginIdentifier]; taken {
		return nil, models.ErrDuplicateLoginIdentifier
	}

	stored := account.Clone()
	stored.ID = uuid.New().String()
	if stored.Kind == "" {
		stored.Kind = models.DefaultAccountKind
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.byID[stored.ID] = stored
	r.byLogin[stored.LoginIdentifier] = stored.ID

	return stored.Clone(), nil
}

func (r *MemoryAccountRepository) Persist(ctx context.Context, account *models.Account) error {
	if !account.IsPersisted() {
		return models.ErrAccountNotPersisted
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[account.ID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.LoginIdentifier != account.LoginIdentifier {
		if owner, taken := r.byLogin[account.LoginIdentifier]; taken && owner != account.ID {
			return models.ErrDuplicateLoginIdentifier
		}
		delete(r.byLogin, stored.LoginIdentifier)
		r.byLogin[account.LoginIdentifier] = account.ID
	}

	stored.Kind = account.Kind
	stored.LoginIdentifier = account.LoginIdentifier
	stored.Name = account.Name
	stored.PasswordHash = account.PasswordHash
	stored.UpdatedAt = time.Now()
	account.UpdatedAt = stored.UpdatedAt

	return nil
}

func (r *MemoryAccountRepository) EnforceUniqueLoginIdentifier(ctx context.Context, loginIdentifier, exceptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, taken := r.byLogin[loginIdentifier]; taken && owner != exceptID {
		return models.ErrDuplicateLoginIdentifier
	}
	return nil
}

func (r *MemoryAccountRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return 0, models.ErrNotFound
	}
	stored.FailedLogins++
	stored.UpdatedAt = time.Now()
	return stored.FailedLogins, nil
}

func (r *MemoryAccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	stored.FailedLogins = 0
	stored.LastLogin = &at
	stored.UpdatedAt = time.Now()
	return nil
}

// Delete removes an account. The authentication core never deletes accounts;
// this exists for provisioning flows and tests.
func (r *MemoryAccountRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	delete(r.byLogin, stored.LoginIdentifier)
	delete(r.byID, id)
	return nil
}

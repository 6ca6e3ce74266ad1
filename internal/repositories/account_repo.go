package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository is the PostgreSQL AccountStore.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

const accountColumns = `id, kind, login_identifier, name, password_hash, failed_logins, last_login, created_at, updated_at`

// rowScanner interface for scanning account rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var lastLogin *time.Time

	err := scanner.Scan(
		&account.ID, &account.Kind, &account.LoginIdentifier, &account.Name,
		&account.PasswordHash, &account.FailedLogins, &lastLogin,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	account.LastLogin = lastLogin

	return &account, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) FindByLoginIdentifier(ctx context.Context, loginIdentifier string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE login_identifier = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, loginIdentifier))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	stored := account.Clone()
	stored.ID = uuid.New().String()
	if stored.Kind == "" {
		stored.Kind = models.DefaultAccountKind
	}

	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	query := `
		INSERT INTO accounts (id, kind, login_identifier, name, password_hash, failed_logins, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		stored.ID, stored.Kind, stored.LoginIdentifier, stored.Name,
		stored.PasswordHash, stored.FailedLogins, stored.LastLogin,
		stored.CreatedAt, stored.UpdatedAt,
	))
}

// Persist saves the fields owned by account flows. The failed-login counter and
// last login are deliberately excluded; they change only through the atomic methods.
func (r *AccountRepository) Persist(ctx context.Context, account *models.Account) error {
	if !account.IsPersisted() {
		return models.ErrAccountNotPersisted
	}
	account.UpdatedAt = time.Now()

	query := `
		UPDATE accounts SET kind = $1, login_identifier = $2, name = $3, password_hash = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := r.pool.Exec(ctx, query,
		account.Kind, account.LoginIdentifier, account.Name, account.PasswordHash, account.UpdatedAt, account.ID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) EnforceUniqueLoginIdentifier(ctx context.Context, loginIdentifier, exceptID string) error {
	query := `SELECT id FROM accounts WHERE login_identifier = $1`

	var id string
	err := r.pool.QueryRow(ctx, query, loginIdentifier).Scan(&id)
	if err != nil {
		if errors.Is(database.MapPostgresError(err), models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check login identifier: %w", err)
	}
	if id != exceptID {
		return models.ErrDuplicateLoginIdentifier
	}
	return nil
}

func (r *AccountRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE accounts SET failed_logins = failed_logins + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING failed_logins
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE accounts SET failed_logins = 0, last_login = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

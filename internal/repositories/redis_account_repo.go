package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldKind      = "kind"
	fieldLogin     = "login_identifier"
	fieldName      = "name"
	fieldHash      = "password_hash"
	fieldFailed    = "failed_logins"
	fieldLastLogin = "last_login"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// incrementFailedScript bumps the counter only if the account hash exists, so a
// deleted account is not resurrected as a bare counter.
var incrementFailedScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local n = redis.call("HINCRBY", KEYS[1], "failed_logins", 1)
redis.call("HSET", KEYS[1], "updated_at", ARGV[1])
return n
`)

var recordSuccessScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "failed_logins", 0, "last_login", ARGV[1], "updated_at", ARGV[2])
return 1
`)

// createScript claims the login key and writes the account hash in one step, so a
// failed create never leaves a claimed identifier behind.
var createScript = redis.NewScript(`
if redis.call("SETNX", KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
return 1
`)

// persistScript updates the account and moves its login key atomically. ARGV[1] is
// the login key prefix used to find the previous key. Returns -1 when the account
// is gone and 0 when the new identifier belongs to someone else.
var persistScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "login_identifier")
if not current then
  return -1
end
local renamed = current ~= ARGV[3]
if renamed then
  local owner = redis.call("GET", KEYS[2])
  if owner and owner ~= ARGV[2] then
    return 0
  end
  redis.call("SET", KEYS[2], ARGV[2])
end
redis.call("HSET", KEYS[1],
  "kind", ARGV[4],
  "login_identifier", ARGV[3],
  "name", ARGV[5],
  "password_hash", ARGV[6],
  "updated_at", ARGV[7])
if renamed then
  local previous = ARGV[1] .. current
  if redis.call("GET", previous) == ARGV[2] then
    redis.call("DEL", previous)
  end
end
return 1
`)

// RedisAccountRepository is an AccountStore backed by Redis hashes. Each account
// lives at <prefix>acct:<id>; <prefix>login:<identifier> indexes it by login.
type RedisAccountRepository struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisAccountRepository(rdb redis.UniversalClient, prefix string) *RedisAccountRepository {
	return &RedisAccountRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisAccountRepository) accountKey(id string) string {
	return r.prefix + "acct:" + id
}

func (r *RedisAccountRepository) loginKey(loginIdentifier string) string {
	return r.prefix + "login:" + loginIdentifier
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func decodeAccount(id string, fields map[string]string) (*models.Account, error) {
	if len(fields) == 0 {
		return nil, models.ErrNotFound
	}

	failed, err := strconv.Atoi(fields[fieldFailed])
	if err != nil {
		return nil, fmt.Errorf("corrupt failed_logins for account %s: %w", id, err)
	}

	account := &models.Account{
		ID:              id,
		Kind:            fields[fieldKind],
		LoginIdentifier: fields[fieldLogin],
		Name:            fields[fieldName],
		PasswordHash:    fields[fieldHash],
		FailedLogins:    failed,
	}

	if v := fields[fieldLastLogin]; v != "" {
		t, err := parseTime(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt last_login for account %s: %w", id, err)
		}
		account.LastLogin = &t
	}
	if account.CreatedAt, err = parseTime(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("corrupt created_at for account %s: %w", id, err)
	}
	if account.UpdatedAt, err = parseTime(fields[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("corrupt updated_at for account %s: %w", id, err)
	}

	return account, nil
}

func (r *RedisAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	fields, err := r.rdb.HGetAll(ctx, r.accountKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return decodeAccount(id, fields)
}

func (r *RedisAccountRepository) FindByLoginIdentifier(ctx context.Context, loginIdentifier string) (*models.Account, error) {
	id, err := r.rdb.Get(ctx, r.loginKey(loginIdentifier)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve login identifier: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *RedisAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	stored := account.Clone()
	stored.ID = uuid.New().String()
	if stored.Kind == "" {
		stored.Kind = models.DefaultAccountKind
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	lastLogin := ""
	if stored.LastLogin != nil {
		lastLogin = formatTime(*stored.LastLogin)
	}

	keys := []string{r.accountKey(stored.ID), r.loginKey(stored.LoginIdentifier)}
	claimed, err := createScript.Run(ctx, r.rdb, keys,
		stored.ID,
		fieldKind, stored.Kind,
		fieldLogin, stored.LoginIdentifier,
		fieldName, stored.Name,
		fieldHash, stored.PasswordHash,
		fieldFailed, stored.FailedLogins,
		fieldLastLogin, lastLogin,
		fieldCreatedAt, formatTime(stored.CreatedAt),
		fieldUpdatedAt, formatTime(stored.UpdatedAt),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}
	if claimed == 0 {
		return nil, models.ErrDuplicateLoginIdentifier
	}

	return stored, nil
}

func (r *RedisAccountRepository) Persist(ctx context.Context, account *models.Account) error {
	if !account.IsPersisted() {
		return models.ErrAccountNotPersisted
	}

	updatedAt := time.Now()
	keys := []string{r.accountKey(account.ID), r.loginKey(account.LoginIdentifier)}
	result, err := persistScript.Run(ctx, r.rdb, keys,
		r.loginKey(""),
		account.ID,
		account.LoginIdentifier,
		account.Kind,
		account.Name,
		account.PasswordHash,
		formatTime(updatedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to persist account: %w", err)
	}

	switch result {
	case -1:
		return models.ErrNotFound
	case 0:
		return models.ErrDuplicateLoginIdentifier
	}

	account.UpdatedAt = updatedAt
	return nil
}

func (r *RedisAccountRepository) EnforceUniqueLoginIdentifier(ctx context.Context, loginIdentifier, exceptID string) error {
	owner, err := r.rdb.Get(ctx, r.loginKey(loginIdentifier)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to check login identifier: %w", err)
	}
	if owner != exceptID {
		return models.ErrDuplicateLoginIdentifier
	}
	return nil
}

func (r *RedisAccountRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	n, err := incrementFailedScript.Run(ctx, r.rdb, []string{r.accountKey(id)}, formatTime(time.Now())).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment failed logins: %w", err)
	}
	if n < 0 {
		return 0, models.ErrNotFound
	}
	return n, nil
}

func (r *RedisAccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	ok, err := recordSuccessScript.Run(ctx, r.rdb, []string{r.accountKey(id)}, formatTime(at), formatTime(time.Now())).Int()
	if err != nil {
		return fmt.Errorf("failed to record successful login: %w", err)
	}
	if ok == 0 {
		return models.ErrNotFound
	}
	return nil
}

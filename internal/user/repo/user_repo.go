package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/knowledgehub/service-api-go/internal/user/entity"
)

// ErrNotFound is returned when no valid user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when an insert hits the users_email_key
// constraint. The constraint is the guarantee; any pre-insert existence
// check callers perform is only an optimization.
var ErrDuplicateEmail = errors.New("email already registered")

// uniqueViolation is the Postgres error code for constraint class 23505.
const uniqueViolation = "23505"

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  public_id UUID NOT NULL UNIQUE,
  email VARCHAR(255) NOT NULL UNIQUE,
  password_hash VARCHAR(255) NOT NULL,
  display_name VARCHAR(100) NOT NULL,
  is_valid BOOLEAN NOT NULL DEFAULT true,
  created_by BIGINT NOT NULL,
  updated_by BIGINT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new user row, assigning a fresh public id. The audit
// columns are self-referential, so the row's own id is written back into
// created_by/updated_by once the insert has produced it. Insert and
// audit update commit as one transaction: a failure between the two must
// not strand a half-written row the caller believes never existed.
// Returns ErrDuplicateEmail when a concurrent writer already took the email.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, displayName string) (*entity.User, error) {
	u := &entity.User{
		PublicID:     uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		IsValid:      true,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO users (public_id, email, password_hash, display_name, is_valid, created_by, updated_by)
	  VALUES ($1, $2, $3, $4, true, 0, 0)
	  RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, q, u.PublicID, u.Email, u.PasswordHash, u.DisplayName).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	const audit = `UPDATE users SET created_by=$1, updated_by=$1 WHERE id=$1`
	if _, err := tx.ExecContext(ctx, audit, u.ID); err != nil {
		return nil, fmt.Errorf("set audit columns: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit user insert: %w", err)
	}
	u.CreatedBy = u.ID
	u.UpdatedBy = u.ID
	return u, nil
}

// GetByEmail returns the valid user with the given email, or ErrNotFound.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	const q = `SELECT id, public_id, email, password_hash, display_name, is_valid,
		created_by, updated_by, created_at, updated_at
	  FROM users WHERE email=$1 AND is_valid=true`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user by email: %w", err)
	}
	return &u, nil
}

// GetByPublicID returns the valid user with the given public id, or ErrNotFound.
// A session record pointing at a missing row is expected after manual cleanup,
// so callers must treat ErrNotFound as "not authenticated", never as corruption.
func (r *UserRepo) GetByPublicID(ctx context.Context, publicID string) (*entity.User, error) {
	const q = `SELECT id, public_id, email, password_hash, display_name, is_valid,
		created_by, updated_by, created_at, updated_at
	  FROM users WHERE public_id=$1 AND is_valid=true`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, publicID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user by public id: %w", err)
	}
	return &u, nil
}

// DeleteByID removes a user row outright. This is the compensating action
// for a signup whose session creation failed after the insert committed;
// soft delete is not used here because the row never became visible to its
// owner. Deleting an already-missing row is not an error.
func (r *UserRepo) DeleteByID(ctx context.Context, id int64) error {
	const q = `DELETE FROM users WHERE id=$1`
	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

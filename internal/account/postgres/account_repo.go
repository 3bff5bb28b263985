// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

// Package postgres provides PostgreSQL implementations of account repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/skylog/skylog/internal/account"
)

// Unique constraint names from the accounts migration. Insert maps
// violations of these to the matching conflict error.
const (
	usernameConstraint = "accounts_username_key"
	emailConstraint    = "accounts_email_key"
)

// dbPool is the subset of pgxpool.Pool the repositories use. pgxmock
// satisfies it in unit tests.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements account.CredentialDirectory using PostgreSQL.
type AccountRepository struct {
	pool dbPool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool dbPool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// FindByUsername retrieves an account by username. The match is
// case-sensitive; usernames differing only in case are distinct accounts.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM accounts
		WHERE username = $1
	`, username)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_BY_USERNAME_FAILED").
			With("operation", "find account by username").
			With("username", username).
			Wrap(err)
	}
	return acct, nil
}

// FindByEmail retrieves an account by email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`, email)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_BY_EMAIL_FAILED").
			With("operation", "find account by email").
			With("email", email).
			Wrap(err)
	}
	return acct, nil
}

// FindByID retrieves an account by its identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_BY_ID_FAILED").
			With("operation", "find account by id").
			With("id", id).
			Wrap(err)
	}
	return acct, nil
}

// Insert stores a new account and returns it with the database-assigned ID.
// The unique indexes on username and email are the authoritative race-safety
// mechanism; violations surface as ErrUsernameTaken or ErrEmailTaken.
func (r *AccountRepository) Insert(ctx context.Context, acct *account.Account) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, acct.Username, acct.Email, acct.PasswordHash, acct.CreatedAt, acct.UpdatedAt)

	var id int64
	if err := row.Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case usernameConstraint:
				return nil, oops.Code("ACCOUNT_USERNAME_TAKEN").
					With("username", acct.Username).
					Wrap(account.ErrUsernameTaken)
			case emailConstraint:
				return nil, oops.Code("ACCOUNT_EMAIL_TAKEN").
					With("email", acct.Email).
					Wrap(account.ErrEmailTaken)
			}
		}
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "insert account").
			With("username", acct.Username).
			Wrap(err)
	}

	inserted := *acct
	inserted.ID = id
	return &inserted, nil
}

// UpdatePasswordHash replaces the stored hash for an account.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*account.Account, error) {
	var acct account.Account
	err := row.Scan(
		&acct.ID,
		&acct.Username,
		&acct.Email,
		&acct.PasswordHash,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}
	return &acct, nil
}

// Compile-time interface check.
var _ account.CredentialDirectory = (*AccountRepository)(nil)

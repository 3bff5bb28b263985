// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/skylog/skylog/internal/account"
)

// ResetTokenRepository implements account.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool dbPool
}

// NewResetTokenRepository creates a new ResetTokenRepository.
func NewResetTokenRepository(pool dbPool) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

// Create stores a new token row.
func (r *ResetTokenRepository) Create(ctx context.Context, token *account.PasswordResetToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, email, token, expires_at, used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		token.ID.String(),
		token.Email,
		token.Token,
		token.ExpiresAt,
		token.Used,
		token.CreatedAt,
		token.UpdatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset_token").
			With("email", token.Email).
			Wrap(err)
	}
	return nil
}

// GetByToken retrieves a row by its exact token string.
func (r *ResetTokenRepository) GetByToken(ctx context.Context, token string) (*account.PasswordResetToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, token, expires_at, used, created_at, updated_at
		FROM password_reset_tokens
		WHERE token = $1
	`, token)

	reset, err := scanResetToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_BY_TOKEN_FAILED").
			With("operation", "get token").
			Wrap(err)
	}
	return reset, nil
}

// MarkUsed sets the used flag if it is currently unset. The conditional
// update is what makes token consumption safe under double-submit: the
// second updater affects no row and gets ErrTokenUsed.
func (r *ResetTokenRepository) MarkUsed(ctx context.Context, token string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE password_reset_tokens SET used = TRUE, updated_at = now()
		WHERE token = $1 AND used = FALSE
	`, token)
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").
			With("operation", "mark token used").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_ALREADY_USED").Wrap(account.ErrTokenUsed)
	}
	return nil
}

// DeleteExpired removes all expired token rows.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE expires_at < now()
	`)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanResetToken scans a single row into a PasswordResetToken.
// Callers are responsible for handling pgx.ErrNoRows.
func scanResetToken(row pgx.Row) (*account.PasswordResetToken, error) {
	var (
		idStr string
		reset account.PasswordResetToken
	)
	err := row.Scan(
		&idStr,
		&reset.Email,
		&reset.Token,
		&reset.ExpiresAt,
		&reset.Used,
		&reset.CreatedAt,
		&reset.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan password_reset_token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse token id").
			With("id", idStr).
			Wrap(err)
	}
	reset.ID = id

	return &reset, nil
}

// Compile-time interface check.
var _ account.ResetTokenRepository = (*ResetTokenRepository)(nil)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylog/skylog/internal/account"
)

func accountColumns() []string {
	return []string{"id", "username", "email", "password_hash", "created_at", "updated_at"}
}

func TestAccountRepository_FindByUsername(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantID    int64
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(accountColumns()).
					AddRow(int64(7), "alice", "a@x.com", "$argon2id$hash", now, now)
				mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at`).
					WithArgs("alice").
					WillReturnRows(rows)
			},
			wantID: 7,
		},
		{
			name: "not found maps to ErrNotFound",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at`).
					WithArgs("alice").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: account.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			got, err := repo.FindByUsername(context.Background(), "alice")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, got.ID)
				assert.Equal(t, "alice", got.Username)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountRepository_FindByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	rows := pgxmock.NewRows(accountColumns()).
		AddRow(int64(3), "alice", "a@x.com", "$argon2id$hash", now, now)
	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at`).
		WithArgs("a@x.com").
		WillReturnRows(rows)

	repo := NewAccountRepository(mock)
	got, err := repo.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Insert(t *testing.T) {
	now := time.Now().UTC()
	acct := &account.Account{
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "$argon2id$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	t.Run("assigns the database ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs("alice", "a@x.com", "$argon2id$hash", now, now).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		repo := NewAccountRepository(mock)
		inserted, err := repo.Insert(context.Background(), acct)
		require.NoError(t, err)
		assert.Equal(t, int64(42), inserted.ID)
		assert.Zero(t, acct.ID, "input account must not be mutated")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("username constraint violation maps to ErrUsernameTaken", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs("alice", "a@x.com", "$argon2id$hash", now, now).
			WillReturnError(&pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "accounts_username_key",
			})

		repo := NewAccountRepository(mock)
		_, err = repo.Insert(context.Background(), acct)
		assert.ErrorIs(t, err, account.ErrUsernameTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("email constraint violation maps to ErrEmailTaken", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs("alice", "a@x.com", "$argon2id$hash", now, now).
			WillReturnError(&pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "accounts_email_key",
			})

		repo := NewAccountRepository(mock)
		_, err = repo.Insert(context.Background(), acct)
		assert.ErrorIs(t, err, account.ErrEmailTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other database error is not a conflict", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs("alice", "a@x.com", "$argon2id$hash", now, now).
			WillReturnError(errors.New("connection refused"))

		repo := NewAccountRepository(mock)
		_, err = repo.Insert(context.Background(), acct)
		require.Error(t, err)
		assert.NotErrorIs(t, err, account.ErrUsernameTaken)
		assert.NotErrorIs(t, err, account.ErrEmailTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_UpdatePasswordHash(t *testing.T) {
	t.Run("updates the row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts SET password_hash`).
			WithArgs(int64(7), "$argon2id$newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewAccountRepository(mock)
		err = repo.UpdatePasswordHash(context.Background(), 7, "$argon2id$newhash")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts SET password_hash`).
			WithArgs(int64(7), "$argon2id$newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewAccountRepository(mock)
		err = repo.UpdatePasswordHash(context.Background(), 7, "$argon2id$newhash")
		assert.ErrorIs(t, err, account.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

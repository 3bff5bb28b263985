// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package account

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Account represents an identity record. The ID is assigned by the backing
// store on insert and never changes afterwards. Username and email are each
// unique across all accounts; username comparisons are case-sensitive.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount creates an Account ready for insertion. The ID is left zero for
// the backing store to assign.
func NewAccount(username, email, passwordHash string) (*Account, error) {
	if username == "" {
		return nil, oops.Code("ACCOUNT_INVALID").Errorf("username cannot be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, oops.Code("ACCOUNT_INVALID").With("email", email).Errorf("email address is malformed")
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Account{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CredentialDirectory is the identity lookup and uniqueness boundary.
// Implementations are backed by a persistence collaborator; lookups return
// ErrNotFound when no match exists.
type CredentialDirectory interface {
	// FindByUsername retrieves an account by username (case-sensitive).
	FindByUsername(ctx context.Context, username string) (*Account, error)

	// FindByEmail retrieves an account by email.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByID retrieves an account by its identifier.
	FindByID(ctx context.Context, id int64) (*Account, error)

	// Insert stores a new account and returns it with the assigned ID.
	// Uniqueness violations surface as ErrUsernameTaken or ErrEmailTaken;
	// the constraint check at insert time is authoritative under
	// concurrent writers.
	Insert(ctx context.Context, acct *Account) (*Account, error)

	// UpdatePasswordHash replaces the stored hash for an account.
	// Returns ErrNotFound if the account does not exist.
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// Session is the descriptor value handed to callers after a successful login
// or registration. Transport and cookie format are the caller's concern.
type Session struct {
	AccountID int64
	Username  string
}

// NewSession builds a session descriptor for an account.
func NewSession(acct *Account) Session {
	return Session{AccountID: acct.ID, Username: acct.Username}
}

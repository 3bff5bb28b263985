// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes           = 32             // 256 bits of entropy
	DefaultResetTokenLifetime = 24 * time.Hour // expiry from issuance
)

// PasswordResetToken is a single-use, time-limited credential allowing a
// password change without prior authentication. Tokens are keyed by the
// owning email, consistent with account lookup during reset. Expiry and
// used-ness are independent conditions; neither is ever reversed.
type PasswordResetToken struct {
	ID        ulid.ULID
	Email     string
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired returns true if the token expiry has passed.
func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// NewPasswordResetToken creates an issued-state token row.
func NewPasswordResetToken(email, token string, expiresAt time.Time) (*PasswordResetToken, error) {
	if email == "" {
		return nil, oops.Code("RESET_INVALID").Errorf("email cannot be empty")
	}
	if token == "" {
		return nil, oops.Code("RESET_INVALID").Errorf("token cannot be empty")
	}
	if !expiresAt.After(time.Now()) {
		return nil, oops.Code("RESET_INVALID").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}

	now := time.Now().UTC()
	return &PasswordResetToken{
		ID:        ulid.Make(),
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
		Used:      false,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GenerateResetToken creates a URL-safe token from a cryptographically
// secure random source.
func GenerateResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ResetTokenRepository manages reset token persistence.
type ResetTokenRepository interface {
	// Create stores a new token row.
	Create(ctx context.Context, token *PasswordResetToken) error

	// GetByToken retrieves a row by its exact token string.
	// Returns ErrNotFound if no row matches.
	GetByToken(ctx context.Context, token string) (*PasswordResetToken, error)

	// MarkUsed sets the used flag, but only if it is currently unset.
	// Returns ErrTokenUsed when the conditional update affects no row.
	MarkUsed(ctx context.Context, token string) error

	// DeleteExpired removes all expired token rows and reports the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// ResetTokenStore issues and validates password reset tokens.
//
// Issuing never invalidates earlier unexpired tokens for the same email;
// multiple outstanding tokens may coexist.
type ResetTokenStore struct {
	repo     ResetTokenRepository
	lifetime time.Duration
}

// NewResetTokenStore creates a ResetTokenStore. lifetime is the validity
// window from issuance; pass DefaultResetTokenLifetime unless a deployment
// overrides it.
func NewResetTokenStore(repo ResetTokenRepository, lifetime time.Duration) (*ResetTokenStore, error) {
	if repo == nil {
		return nil, oops.Code("ACCOUNT_INVALID_DEPS").Errorf("reset token repository is required")
	}
	if lifetime <= 0 {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").
			With("lifetime", lifetime).
			Errorf("token lifetime must be positive")
	}
	return &ResetTokenStore{repo: repo, lifetime: lifetime}, nil
}

// Issue generates and persists a token for the given email. Callers are
// responsible for confirming the email resolves to an account first.
func (s *ResetTokenStore) Issue(ctx context.Context, email string) (string, error) {
	token, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "GenerateResetToken").
			Wrap(err)
	}

	row, err := NewPasswordResetToken(email, token, time.Now().Add(s.lifetime))
	if err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "NewPasswordResetToken").
			Wrap(err)
	}

	if err := s.repo.Create(ctx, row); err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "Create").
			Wrap(err)
	}

	return token, nil
}

// Validate checks a token and returns the associated email. A token is
// valid only if a row exists with that exact string, the row is unused, and
// the current time is before its expiry. All three failure causes collapse
// to ErrTokenInvalid.
func (s *ResetTokenStore) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrTokenInvalid
	}

	row, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrTokenInvalid
		}
		return "", oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "GetByToken").
			Wrap(err)
	}

	if row.Used || row.IsExpired() {
		return "", ErrTokenInvalid
	}

	return row.Email, nil
}

// MarkUsed consumes a token. Called only after the password change has been
// persisted, so a failed change never burns the token. A concurrent
// double-submit surfaces as ErrTokenUsed from the conditional update.
func (s *ResetTokenStore) MarkUsed(ctx context.Context, token string) error {
	if err := s.repo.MarkUsed(ctx, token); err != nil {
		if errors.Is(err, ErrTokenUsed) {
			return err
		}
		return oops.Code("RESET_MARK_USED_FAILED").
			With("operation", "MarkUsed").
			Wrap(err)
	}
	return nil
}

// PruneExpired removes expired token rows, returning the number deleted.
func (s *ResetTokenStore) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("RESET_PRUNE_FAILED").Wrap(err)
	}
	return n, nil
}

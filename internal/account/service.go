// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/skylog/skylog/internal/observability"
	"github.com/skylog/skylog/pkg/errutil"
)

// RegisterStatus tags the outcome of a registration attempt.
type RegisterStatus int

// Registration outcomes. When several conditions are violated at once the
// first failing check wins: username-taken before email-taken before
// weak-password.
const (
	RegisterSuccess RegisterStatus = iota
	RegisterUsernameTaken
	RegisterEmailTaken
	RegisterWeakPassword
)

// RegisterResult is the tagged result of Register. Account is set only on
// success; Validation only for weak-password rejections.
type RegisterResult struct {
	Status     RegisterStatus
	Account    *Account
	Validation *Outcome
}

// ResetStatus tags the outcome of a password reset attempt.
type ResetStatus int

// Reset outcomes.
const (
	ResetSuccess ResetStatus = iota
	ResetInvalidToken
	ResetWeakPassword
	ResetFailed
)

// ResetResult is the tagged result of ResetPassword. Validation is set only
// for weak-password rejections.
type ResetResult struct {
	Status     ResetStatus
	Validation *Outcome
}

// dummyCredentialHash is verified against when a login lookup misses, so the
// hit and miss paths cost the same. This is NOT a real credential - it is a
// fake hash that will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyCredentialHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service orchestrates registration, login, and password reset over the
// credential directory, hasher, strength evaluator, and reset token store.
type Service struct {
	directory CredentialDirectory
	hasher    CredentialHasher
	strength  *StrengthEvaluator
	resets    *ResetTokenStore
}

// NewService creates a Service. All dependencies are required.
func NewService(
	directory CredentialDirectory,
	hasher CredentialHasher,
	strength *StrengthEvaluator,
	resets *ResetTokenStore,
) (*Service, error) {
	if directory == nil {
		return nil, oops.Code("ACCOUNT_INVALID_DEPS").Errorf("credential directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("ACCOUNT_INVALID_DEPS").Errorf("credential hasher is required")
	}
	if strength == nil {
		return nil, oops.Code("ACCOUNT_INVALID_DEPS").Errorf("strength evaluator is required")
	}
	if resets == nil {
		return nil, oops.Code("ACCOUNT_INVALID_DEPS").Errorf("reset token store is required")
	}
	return &Service{
		directory: directory,
		hasher:    hasher,
		strength:  strength,
		resets:    resets,
	}, nil
}

// Register creates a new account. Checks run in a fixed order: username
// uniqueness, email uniqueness, then password strength with the username and
// email as scorer context. Only after all three pass is the password hashed
// and the account inserted. A uniqueness violation at insert time maps to
// the same taken result as the fast-path lookup.
func (s *Service) Register(ctx context.Context, username, password, email string) (RegisterResult, error) {
	if _, err := s.directory.FindByUsername(ctx, username); err == nil {
		observability.RecordAccountOperation("register", "username_taken")
		return RegisterResult{Status: RegisterUsernameTaken}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return RegisterResult{}, oops.Code("REGISTER_FAILED").
			With("operation", "FindByUsername").
			Wrap(err)
	}

	if _, err := s.directory.FindByEmail(ctx, email); err == nil {
		observability.RecordAccountOperation("register", "email_taken")
		return RegisterResult{Status: RegisterEmailTaken}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return RegisterResult{}, oops.Code("REGISTER_FAILED").
			With("operation", "FindByEmail").
			Wrap(err)
	}

	outcome := s.strength.Evaluate(password, []string{username, email})
	if !outcome.Valid {
		observability.RecordAccountOperation("register", "weak_password")
		return RegisterResult{Status: RegisterWeakPassword, Validation: &outcome}, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return RegisterResult{}, oops.Code("REGISTER_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	acct, err := NewAccount(username, email, hash)
	if err != nil {
		return RegisterResult{}, oops.Code("REGISTER_FAILED").
			With("operation", "NewAccount").
			Wrap(err)
	}

	inserted, err := s.directory.Insert(ctx, acct)
	if err != nil {
		// The pre-checks above are a fast path only; the unique indexes
		// are authoritative under concurrent registration.
		if errors.Is(err, ErrUsernameTaken) {
			observability.RecordAccountOperation("register", "username_taken")
			return RegisterResult{Status: RegisterUsernameTaken}, nil
		}
		if errors.Is(err, ErrEmailTaken) {
			observability.RecordAccountOperation("register", "email_taken")
			return RegisterResult{Status: RegisterEmailTaken}, nil
		}
		return RegisterResult{}, oops.Code("REGISTER_FAILED").
			With("operation", "Insert").
			With("username", username).
			Wrap(err)
	}

	observability.RecordAccountOperation("register", "success")
	return RegisterResult{Status: RegisterSuccess, Account: inserted}, nil
}

// LoginByUsername authenticates by username.
func (s *Service) LoginByUsername(ctx context.Context, username, password string) (*Account, error) {
	return s.login(ctx, password, func() (*Account, error) {
		return s.directory.FindByUsername(ctx, username)
	})
}

// LoginByEmail authenticates by email.
func (s *Service) LoginByEmail(ctx context.Context, email, password string) (*Account, error) {
	return s.login(ctx, password, func() (*Account, error) {
		return s.directory.FindByEmail(ctx, email)
	})
}

// login collapses missing-account and wrong-password into the same
// ErrInvalidCredentials. A dummy hash is verified on the miss path so the
// response time does not reveal whether the account exists. Legacy-format
// hashes never verify, which forces those accounts through re-registration.
func (s *Service) login(ctx context.Context, password string, lookup func() (*Account, error)) (*Account, error) {
	acct, lookupErr := lookup()

	targetHash := dummyCredentialHash
	exists := false
	if lookupErr == nil {
		targetHash = acct.PasswordHash
		exists = true
	} else if !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code("LOGIN_FAILED").
			With("operation", "lookup account").
			Wrap(lookupErr)
	}

	valid := s.hasher.Verify(password, targetHash)
	if !exists || !valid {
		observability.RecordAccountOperation("login", "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	observability.RecordAccountOperation("login", "success")
	return acct, nil
}

// RequestPasswordReset issues a reset token for the account owning the
// email. An unknown email yields an empty token and no error, so callers
// cannot use this API to probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if _, err := s.directory.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordAccountOperation("reset_request", "unknown_email")
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "FindByEmail").
			Wrap(err)
	}

	token, err := s.resets.Issue(ctx, email)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "Issue").
			Wrap(err)
	}

	observability.RecordAccountOperation("reset_request", "success")
	return token, nil
}

// ResetPassword completes a reset. Steps run in a fixed order: token
// validation, account resolution by the token's email, strength policy,
// hash-and-persist, and only then token consumption. Skipping the mark-used
// step on persistence failure is intentional - a transient failure must not
// burn the user's only token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (ResetResult, error) {
	email, err := s.resets.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			observability.RecordAccountOperation("reset", "invalid_token")
			return ResetResult{Status: ResetInvalidToken}, nil
		}
		return ResetResult{Status: ResetFailed}, oops.Code("RESET_FAILED").
			With("operation", "Validate").
			Wrap(err)
	}

	acct, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordAccountOperation("reset", "invalid_token")
			return ResetResult{Status: ResetInvalidToken}, nil
		}
		return ResetResult{Status: ResetFailed}, oops.Code("RESET_FAILED").
			With("operation", "FindByEmail").
			Wrap(err)
	}

	outcome := s.strength.Evaluate(newPassword, []string{acct.Username, acct.Email})
	if !outcome.Valid {
		observability.RecordAccountOperation("reset", "weak_password")
		return ResetResult{Status: ResetWeakPassword, Validation: &outcome}, nil
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return ResetResult{Status: ResetFailed}, oops.Code("RESET_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	if err := s.directory.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		observability.RecordAccountOperation("reset", "failure")
		return ResetResult{Status: ResetFailed}, oops.Code("RESET_FAILED").
			With("operation", "UpdatePasswordHash").
			With("account_id", acct.ID).
			Wrap(err)
	}

	if err := s.resets.MarkUsed(ctx, token); err != nil {
		if errors.Is(err, ErrTokenUsed) {
			// Double-submit race: another request consumed the token
			// between validation and here. Surface a failure rather
			// than report two successes.
			observability.RecordAccountOperation("reset", "failure")
			return ResetResult{Status: ResetFailed}, nil
		}
		// The password was already changed; log and report the failed
		// consumption rather than pretending nothing happened.
		errutil.LogWarn(slog.Default(), "password updated but token consumption failed", err)
		return ResetResult{Status: ResetFailed}, oops.Code("RESET_FAILED").
			With("operation", "MarkUsed").
			Wrap(err)
	}

	observability.RecordAccountOperation("reset", "success")
	return ResetResult{Status: ResetSuccess}, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package account

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned by login when the account does not exist
// or the password does not match. The two causes are deliberately not
// distinguished to avoid account enumeration through the API shape.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrTokenInvalid is returned when a reset token is unknown, expired, or
// already used. The causes are deliberately not distinguished.
var ErrTokenInvalid = errors.New("reset token invalid")

// ErrTokenUsed is returned by a conditional mark-used update that affected no
// row, meaning the token was consumed concurrently or never existed.
var ErrTokenUsed = errors.New("reset token already used")

// ErrUsernameTaken is returned when an insert violates the username
// uniqueness constraint.
var ErrUsernameTaken = errors.New("username already taken")

// ErrEmailTaken is returned when an insert violates the email uniqueness
// constraint.
var ErrEmailTaken = errors.New("email already taken")

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

// Package account implements the credential and session lifecycle core.
//
// # Domain Types
//
// Domain types (Account, PasswordResetToken) should be created using their
// respective constructors:
//   - NewAccount - creates an Account with a validated username, email, and hash
//   - NewPasswordResetToken - creates a PasswordResetToken with validated email and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration, login, and password reset orchestration
//   - ResetTokenStore - reset token issuance, validation, and consumption
//   - StrengthEvaluator - password strength policy decisions
//
// Services are created with New* constructors that validate dependencies.
package account

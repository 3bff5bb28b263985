// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/skylog/skylog/internal/account"
	"github.com/skylog/skylog/internal/account/postgres"
	"github.com/skylog/skylog/internal/config"
	"github.com/skylog/skylog/internal/store"
)

// Default timeout for account admin commands.
const defaultAccountTimeout = 30 * time.Second

// NewAccountCmd creates the account subcommand tree.
func NewAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Administer accounts and password resets",
	}

	cmd.PersistentFlags().Duration("timeout", defaultAccountTimeout, "timeout for database operations (e.g., 30s, 1m)")

	create := &cobra.Command{
		Use:   "create",
		Short: "Register a new account",
		RunE:  runAccountCreate,
	}
	create.Flags().String("username", "", "account username")
	create.Flags().String("email", "", "account email")
	create.Flags().String("password", "", "account password")
	_ = create.MarkFlagRequired("username") //nolint:errcheck // flag exists
	_ = create.MarkFlagRequired("email")    //nolint:errcheck // flag exists
	_ = create.MarkFlagRequired("password") //nolint:errcheck // flag exists

	resetRequest := &cobra.Command{
		Use:   "reset-request",
		Short: "Issue a password reset token",
		RunE:  runAccountResetRequest,
	}
	resetRequest.Flags().String("email", "", "account email")
	_ = resetRequest.MarkFlagRequired("email") //nolint:errcheck // flag exists

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Complete a password reset with a token",
		RunE:  runAccountReset,
	}
	reset.Flags().String("token", "", "reset token")
	reset.Flags().String("password", "", "new password")
	_ = reset.MarkFlagRequired("token")    //nolint:errcheck // flag exists
	_ = reset.MarkFlagRequired("password") //nolint:errcheck // flag exists

	prune := &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete expired password reset tokens",
		RunE:  runAccountPruneTokens,
	}

	cmd.AddCommand(create, resetRequest, reset, prune)
	return cmd
}

// withService connects to the database, assembles the account service, and
// runs fn inside the command timeout.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *account.Service, resets *account.ResetTokenStore) error) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}

	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		timeout = defaultAccountTimeout
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	svc, resets, err := buildService(pool, cfg)
	if err != nil {
		return err
	}

	return fn(ctx, svc, resets)
}

// buildService wires the credential core over a connection pool.
func buildService(pool *pgxpool.Pool, cfg *config.Config) (*account.Service, *account.ResetTokenStore, error) {
	evaluator, err := account.NewStrengthEvaluator(account.NewZxcvbnScorer(), cfg.Password.MinScore)
	if err != nil {
		return nil, nil, err
	}

	resets, err := account.NewResetTokenStore(postgres.NewResetTokenRepository(pool), cfg.Reset.TokenLifetime)
	if err != nil {
		return nil, nil, err
	}

	svc, err := account.NewService(
		postgres.NewAccountRepository(pool),
		account.NewArgon2idHasher(),
		evaluator,
		resets,
	)
	if err != nil {
		return nil, nil, err
	}

	return svc, resets, nil
}

func runAccountCreate(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username") //nolint:errcheck // required flag
	email, _ := cmd.Flags().GetString("email")       //nolint:errcheck // required flag
	password, _ := cmd.Flags().GetString("password") //nolint:errcheck // required flag

	return withService(cmd, func(ctx context.Context, svc *account.Service, _ *account.ResetTokenStore) error {
		result, err := svc.Register(ctx, username, password, email)
		if err != nil {
			return err
		}

		switch result.Status {
		case account.RegisterSuccess:
			cmd.Printf("Created account %d (%s)\n", result.Account.ID, result.Account.Username)
			return nil
		case account.RegisterUsernameTaken:
			return oops.Code("ACCOUNT_USERNAME_TAKEN").Errorf("username %q is already taken", username)
		case account.RegisterEmailTaken:
			return oops.Code("ACCOUNT_EMAIL_TAKEN").Errorf("email %q is already taken", email)
		case account.RegisterWeakPassword:
			cmd.Printf("Password rejected: %s\n", result.Validation.Feedback)
			for _, s := range result.Validation.Suggestions {
				cmd.Printf("  - %s\n", s)
			}
			return oops.Code("ACCOUNT_WEAK_PASSWORD").Errorf("password does not meet the strength policy")
		default:
			return oops.Errorf("unexpected register status %d", result.Status)
		}
	})
}

func runAccountResetRequest(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email") //nolint:errcheck // required flag

	return withService(cmd, func(ctx context.Context, svc *account.Service, _ *account.ResetTokenStore) error {
		token, err := svc.RequestPasswordReset(ctx, email)
		if err != nil {
			return err
		}
		if token == "" {
			// Deliberately the same outward behavior as the web flow: no
			// hint whether the email exists. The operator sees it here.
			cmd.Println("No account with that email; no token issued")
			return nil
		}
		cmd.Printf("Reset token: %s\n", token)
		return nil
	})
}

func runAccountReset(cmd *cobra.Command, _ []string) error {
	token, _ := cmd.Flags().GetString("token")       //nolint:errcheck // required flag
	password, _ := cmd.Flags().GetString("password") //nolint:errcheck // required flag

	return withService(cmd, func(ctx context.Context, svc *account.Service, _ *account.ResetTokenStore) error {
		result, err := svc.ResetPassword(ctx, token, password)
		if err != nil {
			return err
		}

		switch result.Status {
		case account.ResetSuccess:
			cmd.Println("Password updated")
			return nil
		case account.ResetInvalidToken:
			return oops.Code("RESET_TOKEN_INVALID").Errorf("token is invalid, expired, or already used")
		case account.ResetWeakPassword:
			cmd.Printf("Password rejected: %s\n", result.Validation.Feedback)
			return oops.Code("ACCOUNT_WEAK_PASSWORD").Errorf("password does not meet the strength policy")
		case account.ResetFailed:
			return oops.Code("RESET_FAILED").Errorf("reset did not complete")
		default:
			return oops.Errorf("unexpected reset status %d", result.Status)
		}
	})
}

func runAccountPruneTokens(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, _ *account.Service, resets *account.ResetTokenStore) error {
		n, err := resets.PruneExpired(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Deleted %d expired tokens\n", n)
		return nil
	})
}

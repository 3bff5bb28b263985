// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

// Package store provides database bootstrap and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry configuration. Databases restarting under an orchestrator
// come back within a few seconds; anything longer is a real failure.
const (
	connectBaseDelay  = 500 * time.Millisecond
	connectMaxRetries = 5
)

// Connect opens a pgx connection pool and verifies connectivity with an
// exponential-backoff ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectMaxRetries, retry.NewExponential(connectBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping").
			Wrap(err)
	}

	return pool, nil
}

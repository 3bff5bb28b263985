// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/skylog/skylog/internal/observability"
	"github.com/skylog/skylog/internal/store"
)

const opsShutdownTimeout = 10 * time.Second

// NewOpsCmd creates the ops subcommand.
func NewOpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Serve metrics and health probes",
		Long: `Serve Prometheus metrics and Kubernetes-style health probes.
Readiness reflects database connectivity.`,
		RunE: runOps,
	}

	cmd.Flags().String("ops.addr", "", "listen address for the ops endpoint")

	return cmd
}

func runOps(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}

	ctx := cmd.Context()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	ready := func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	}

	srv := observability.NewServer(cfg.Ops.Addr, ready)
	errCh, err := srv.Start()
	if err != nil {
		return oops.Code("OPS_START_FAILED").With("addr", cfg.Ops.Addr).Wrap(err)
	}

	cmd.Printf("Ops endpoint listening on %s\n", srv.Addr())

	// Block until the context is cancelled (SIGINT/SIGTERM) or the server
	// fails on its own.
	select {
	case <-ctx.Done():
	case serveErr, ok := <-errCh:
		if ok && serveErr != nil {
			return oops.Code("OPS_SERVE_FAILED").Wrap(serveErr)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opsShutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

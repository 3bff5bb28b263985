// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

// Package errutil provides helpers for logging and asserting oops errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// attrsFor extracts structured attributes from an error. For oops errors the
// code and context are included alongside the message.
func attrsFor(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// LogError logs an error at ERROR level with structured oops context.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, attrsFor(err)...)
}

// LogWarn logs an error at WARN level with structured oops context.
// Used for best-effort operations whose failure does not fail the request.
func LogWarn(logger *slog.Logger, msg string, err error) {
	logger.Warn(msg, attrsFor(err)...)
}

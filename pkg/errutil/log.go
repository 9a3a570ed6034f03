// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error at ERROR level, unpacking oops errors into their
// structured parts. Portal error codes (AUTH_LOGIN_FAILED, SESSION_RESOLVE_FAILED
// and friends) land under "code", the oops context map under "context", so log
// queries can filter on either. Plain errors log as a bare string.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	logger.Error(msg, attrs...)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package web

import (
	"context"

	"github.com/vysusgroup/training-portal/internal/auth"
)

type accountKey struct{}

// ContextWithAccount attaches the resolved account to a request context.
func ContextWithAccount(ctx context.Context, account *auth.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFromContext returns the account attached by the gate, if any.
func AccountFromContext(ctx context.Context) (*auth.Account, bool) {
	account, ok := ctx.Value(accountKey{}).(*auth.Account)
	return account, ok
}

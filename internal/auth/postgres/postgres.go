// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

// Package postgres provides PostgreSQL implementations of the auth
// repositories and the Transactor.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the query surface the repositories need. Both *pgxpool.Pool and
// pgxmock pools satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier is what a single statement executes against: the pool, or the
// pgx.Tx carried in context by Transactor.InTransaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// db returns the active transaction from ctx if present, else the pool.
// Repository methods route every statement through this so they participate
// in the caller's transaction scope transparently.
func db(ctx context.Context, pool DB) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

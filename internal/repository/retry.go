package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// maxStorageAttempts bounds how often a transient storage failure is
// replayed before it surfaces to the caller.
const maxStorageAttempts = 3

// isTransient reports whether a statement is safe to replay: serialization
// failures and deadlocks (Postgres rolled the work back) and requests pgx
// knows never reached the server. Ambiguous connection drops are excluded
// since the write may have applied, and unique violations are semantic
// signals that must reach the caller untouched.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

type retryingDB struct {
	inner DBTX
}

// NewRetryingDB wraps a pool handle with bounded replay of transient
// failures. Transaction handles are left unwrapped: a failed transaction
// must be restarted by its owner, not statement by statement.
func NewRetryingDB(inner DBTX) DBTX {
	return &retryingDB{inner: inner}
}

func (r *retryingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	var err error
	for attempt := 0; attempt < maxStorageAttempts; attempt++ {
		tag, err = r.inner.Exec(ctx, sql, args...)
		if !isTransient(err) {
			return tag, err
		}
	}
	return tag, err
}

func (r *retryingDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	var rows pgx.Rows
	var err error
	for attempt := 0; attempt < maxStorageAttempts; attempt++ {
		rows, err = r.inner.Query(ctx, sql, args...)
		if !isTransient(err) {
			return rows, err
		}
	}
	return rows, err
}

func (r *retryingDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &retryingRow{db: r.inner, ctx: ctx, sql: sql, args: args}
}

// retryingRow defers execution to Scan, where single-row errors first
// surface.
type retryingRow struct {
	db   DBTX
	ctx  context.Context
	sql  string
	args []any
}

func (r *retryingRow) Scan(dest ...any) error {
	var err error
	for attempt := 0; attempt < maxStorageAttempts; attempt++ {
		err = r.db.QueryRow(r.ctx, r.sql, r.args...).Scan(dest...)
		if !isTransient(err) {
			return err
		}
	}
	return err
}

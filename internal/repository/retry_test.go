package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// flakyDB fails its first N calls with a fixed error, then succeeds.
type flakyDB struct {
	failures int
	calls    int
	err      error
}

func (f *flakyDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	f.calls++
	if f.calls <= f.failures {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *flakyDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return nil, nil
}

func (f *flakyDB) QueryRow(context.Context, string, ...any) pgx.Row {
	f.calls++
	if f.calls <= f.failures {
		return errRow{err: f.err}
	}
	return errRow{}
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

func TestExecReplaysSerializationFailure(t *testing.T) {
	inner := &flakyDB{failures: 2, err: serializationFailure()}
	db := NewRetryingDB(inner)

	tag, err := db.Exec(context.Background(), "UPDATE consultations SET version = version + 1")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if tag.String() != "UPDATE 1" {
		t.Fatalf("unexpected command tag: %s", tag)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestExecGivesUpAfterBoundedAttempts(t *testing.T) {
	inner := &flakyDB{failures: 10, err: serializationFailure()}
	db := NewRetryingDB(inner)

	_, err := db.Exec(context.Background(), "UPDATE consultations SET version = version + 1")
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "40001" {
		t.Fatalf("expected serialization failure to surface, got %v", err)
	}
	if inner.calls != maxStorageAttempts {
		t.Fatalf("expected %d attempts, got %d", maxStorageAttempts, inner.calls)
	}
}

func TestUniqueViolationIsNotReplayed(t *testing.T) {
	inner := &flakyDB{
		failures: 10,
		err:      &pgconn.PgError{Code: "23505", ConstraintName: "uq_consultations_active_slot"},
	}
	db := NewRetryingDB(inner)

	_, err := db.Exec(context.Background(), "INSERT INTO consultations DEFAULT VALUES")
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		t.Fatalf("expected unique violation to surface, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", inner.calls)
	}
}

func TestQueryRowScanReplaysDeadlock(t *testing.T) {
	inner := &flakyDB{failures: 1, err: &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}}
	db := NewRetryingDB(inner)

	if err := db.QueryRow(context.Background(), "SELECT 1").Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", inner.calls)
	}
}

func TestCancelledContextIsNotReplayed(t *testing.T) {
	inner := &flakyDB{failures: 10, err: context.Canceled}
	db := NewRetryingDB(inner)

	if err := db.QueryRow(context.Background(), "SELECT 1").Scan(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", inner.calls)
	}
}

// Package repo contains all database access logic for the cash-up API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner starts a transaction. *pgxpool.Pool starts a real one; pgx.Tx starts a savepoint.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Store groups the repositories that share one connection or transaction.
type Store struct {
	Guides   GuideRepo
	Accounts AccountRepo
	Trips    TripRepo
	Audit    AuditRepo
	Locks    Locker
}

// NewStore builds every repository over the same db handle.
func NewStore(db db) Store {
	return Store{
		Guides:   NewGuideRepo(db),
		Accounts: NewAccountRepo(db),
		Trips:    NewTripRepo(db),
		Audit:    NewAuditRepo(db),
		Locks:    NewLocker(db),
	}
}

// TxRunner runs fn with a Store bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

type pgTxRunner struct {
	db beginner
}

// NewTxRunner returns a TxRunner over a pool (production) or a pgx.Tx (tests,
// where each InTx becomes a savepoint inside the test's rollback-only transaction).
func NewTxRunner(db beginner) TxRunner {
	return &pgTxRunner{db: db}
}

func (r *pgTxRunner) InTx(ctx context.Context, fn func(Store) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(NewStore(tx))
	})
}

// Locker takes transaction-scoped advisory locks.
type Locker interface {
	// LockKey blocks until the lock for key is held. The lock is released when
	// the surrounding transaction ends, so it only serializes work inside InTx.
	LockKey(ctx context.Context, key string) error
}

type pgLocker struct {
	db db
}

// NewLocker constructs a Locker backed by pg_advisory_xact_lock.
func NewLocker(db db) Locker {
	return &pgLocker{db: db}
}

func (l *pgLocker) LockKey(ctx context.Context, key string) error {
	const q = `SELECT pg_advisory_xact_lock(hashtext(@key))`
	if _, err := l.db.Exec(ctx, q, pgx.NamedArgs{"key": key}); err != nil {
		return fmt.Errorf("repo.Locker.LockKey: %w", err)
	}
	return nil
}

// notFound maps pgx.ErrNoRows to domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// uniqueViolation reports whether err is a Postgres unique_violation.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

func textPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

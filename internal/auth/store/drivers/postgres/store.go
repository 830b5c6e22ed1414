// Package postgres is the PostgreSQL store driver. It talks to the database
// through pgx's database/sql adapter and migrates with goose.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store/drivers/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// DBTX is the subset of database/sql used by the repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

// NewStore opens a pgx-backed pool for dsn.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing pool.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// ApplyMigrations runs the embedded goose migrations.
func (s *Store) ApplyMigrations() error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(context.Background(), s.db, ".")
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx}, nil
}

// WithTx begins a transaction, runs fn, and commits on success or rolls back
// on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Identities() store.Identities       { return &identitiesRepo{db: s.db} }
func (s *Store) Invitations() store.Invitations     { return &invitationsRepo{db: s.db} }
func (s *Store) RecoveryCodes() store.RecoveryCodes { return &recoveryCodesRepo{db: s.db} }
func (s *Store) AuditEntries() store.AuditEntries   { return &auditRepo{db: s.db} }

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Commit() error                  { return t.tx.Commit() }
func (t *txStore) Rollback() error                { return t.tx.Rollback() }
func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }
func (t *txStore) ApplyMigrations() error         { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

// identityLockKey is the advisory lock id taken by LockIdentities.
const identityLockKey int64 = 0x73697465_61646d6e // "siteadmn"

// LockIdentities takes a transaction-scoped advisory lock. Under READ
// COMMITTED, statements issued after it see rows committed by the previous
// holder.
func (t *txStore) LockIdentities(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, identityLockKey); err != nil {
		return fmt.Errorf("failed to lock identities: %w", err)
	}
	return nil
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Identities() store.Identities       { return &identitiesRepo{db: t.tx} }
func (t *txStore) Invitations() store.Invitations     { return &invitationsRepo{db: t.tx} }
func (t *txStore) RecoveryCodes() store.RecoveryCodes { return &recoveryCodesRepo{db: t.tx} }
func (t *txStore) AuditEntries() store.AuditEntries   { return &auditRepo{db: t.tx} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return store.ErrAlreadyExists
		case "23503": // foreign_key_violation
			return store.ErrNotFound
		}
	}
	return err
}

func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

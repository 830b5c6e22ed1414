package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // outer DB stays open

// LockIdentities is a no-op. SQLite admits one writer per database file, so
// a second process inserting on a stale read fails with SQLITE_BUSY and
// rolls back.
func (t *txStore) LockIdentities(ctx context.Context) error { return nil }

// Ping is a no-op; the connection is held for the life of the transaction.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Identities() store.Identities       { return &identitiesRepo{db: t.tx} }
func (t *txStore) Invitations() store.Invitations     { return &invitationsRepo{db: t.tx} }
func (t *txStore) RecoveryCodes() store.RecoveryCodes { return &recoveryCodesRepo{db: t.tx} }
func (t *txStore) AuditEntries() store.AuditEntries   { return &auditRepo{db: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx

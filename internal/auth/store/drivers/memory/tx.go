package memory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
)

var errClosed = errors.New("memory: store closed")

type txStore struct {
	parent *Store
	st     *state
	done   bool
}

func (t *txStore) view(fn func(*state) error) error {
	if t.done {
		return sql.ErrTxDone
	}
	return fn(t.st)
}

func (t *txStore) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.parent.st = t.st
	t.parent.mu.Unlock()
	return nil
}

func (t *txStore) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.parent.mu.Unlock()
	return nil
}

// LockIdentities is a no-op: the transaction already holds the store lock.
func (t *txStore) LockIdentities(ctx context.Context) error {
	if t.done {
		return sql.ErrTxDone
	}
	return nil
}

func (t *txStore) ApplyMigrations() error         { return nil }
func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Identities() store.Identities       { return &identitiesRepo{view: t.view} }
func (t *txStore) Invitations() store.Invitations     { return &invitationsRepo{view: t.view} }
func (t *txStore) RecoveryCodes() store.RecoveryCodes { return &recoveryCodesRepo{view: t.view} }
func (t *txStore) AuditEntries() store.AuditEntries   { return &auditRepo{view: t.view} }

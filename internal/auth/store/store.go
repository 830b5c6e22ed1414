package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict reports a conditional update that matched no row, e.g.
	// marking an invitation used that another transaction already used.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers (memory, sqlite,
// postgres) implement this and expose sub-repositories so transactions
// cannot be nested by accident.
//
// Drivers may serialize transactions. While a WithTx callback runs, use only
// the Tx it was given; calling back into the parent Store can block until
// the transaction ends.
type Store interface {
	Identities() Identities
	Invitations() Invitations
	RecoveryCodes() RecoveryCodes
	AuditEntries() AuditEntries

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error

	// LockIdentities blocks until no other transaction, in this process or
	// another one sharing the database, holds the identity creation lock.
	// The lock is released when the transaction ends.
	LockIdentities(ctx context.Context) error
}

type Identities interface {
	// Create inserts an identity. ErrAlreadyExists if the ID or username is taken.
	Create(ctx context.Context, id domain.Identity) error

	GetByID(ctx context.Context, id string) (domain.Identity, error)
	GetByUsername(ctx context.Context, username string) (domain.Identity, error)

	// Count returns the number of identities, active or not.
	Count(ctx context.Context) (int, error)

	UpdateRole(ctx context.Context, id, role string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Deactivate(ctx context.Context, id string) error

	// Delete removes the identity and its recovery codes. Invitations it
	// issued or redeemed are kept.
	Delete(ctx context.Context, id string) error
}

type Invitations interface {
	Create(ctx context.Context, inv domain.Invitation) error

	// GetByTokenHash returns the invitation regardless of state.
	GetByTokenHash(ctx context.Context, hash string) (domain.Invitation, error)

	// MarkUsed flips used false->true. ErrConflict if it was already used,
	// ErrNotFound if the ID is unknown.
	MarkUsed(ctx context.Context, id, usedBy string) error
}

type RecoveryCodes interface {
	// Create stores fingerprints for an identity.
	Create(ctx context.Context, identityID string, hashes []string) error

	// Consume removes a fingerprint, reporting whether it was present.
	Consume(ctx context.Context, identityID, hash string) (bool, error)

	Count(ctx context.Context, identityID string) (int, error)
}

type AuditEntries interface {
	Append(ctx context.Context, e domain.AuditEntry) error

	// List returns matching entries newest first.
	List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error)

	// DeleteBefore removes entries older than cutoff. Only retention
	// housekeeping calls this.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

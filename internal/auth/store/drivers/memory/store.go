// Package memory is an in-process store driver for tests and single-process
// development. Transactions hold the store lock for their whole lifetime and
// work on a private copy that replaces the shared state on commit.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
)

type state struct {
	identities  map[string]domain.Identity // by id
	usernames   map[string]string          // username -> id
	invitations map[string]domain.Invitation
	tokenHashes map[string]string          // token hash -> invitation id
	recovery    map[string]map[string]bool // identity id -> fingerprint set
	audit       []domain.AuditEntry        // ascending by ID

	auditCap int
}

func newState(auditCap int) *state {
	return &state{
		identities:  make(map[string]domain.Identity),
		usernames:   make(map[string]string),
		invitations: make(map[string]domain.Invitation),
		tokenHashes: make(map[string]string),
		recovery:    make(map[string]map[string]bool),
		auditCap:    auditCap,
	}
}

func (s *state) clone() *state {
	rec := make(map[string]map[string]bool, len(s.recovery))
	for id, set := range s.recovery {
		rec[id] = maps.Clone(set)
	}
	return &state{
		identities:  maps.Clone(s.identities),
		usernames:   maps.Clone(s.usernames),
		invitations: maps.Clone(s.invitations),
		tokenHashes: maps.Clone(s.tokenHashes),
		recovery:    rec,
		// Clip so appends inside a tx never write into the shared array.
		audit:    slices.Clip(s.audit),
		auditCap: s.auditCap,
	}
}

// Option configures a Store.
type Option func(*Store)

// WithAuditCapacity bounds the number of retained audit entries. Once full,
// the oldest entry is dropped for each new one. Zero means unbounded.
func WithAuditCapacity(n int) Option {
	return func(s *Store) { s.auditCap = n }
}

type Store struct {
	mu       sync.Mutex
	st       *state
	auditCap int
	closed   bool
}

func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	s.st = newState(s.auditCap)
	return s
}

func (s *Store) view(fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	return fn(s.st)
}

func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.view(func(*state) error { return nil })
}

// Tx locks the store until Commit or Rollback. It honours ctx only while
// waiting for the lock to be free.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	locked := make(chan struct{})
	go func() {
		s.mu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
	case <-ctx.Done():
		// The goroutine still acquires the lock eventually; release it then.
		go func() {
			<-locked
			s.mu.Unlock()
		}()
		return nil, ctx.Err()
	}

	if s.closed {
		s.mu.Unlock()
		return nil, errClosed
	}
	return &txStore{parent: s, st: s.st.clone()}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Identities() store.Identities       { return &identitiesRepo{view: s.view} }
func (s *Store) Invitations() store.Invitations     { return &invitationsRepo{view: s.view} }
func (s *Store) RecoveryCodes() store.RecoveryCodes { return &recoveryCodesRepo{view: s.view} }
func (s *Store) AuditEntries() store.AuditEntries   { return &auditRepo{view: s.view} }

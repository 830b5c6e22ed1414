package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/audit"
	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
)

// RoleSet reports which role names exist.
type RoleSet interface {
	Has(role string) bool
}

// CredentialStore owns identity records. Mutations are serialized on a
// per-instance writer lock and run inside store transactions.
type CredentialStore struct {
	Store  store.Store
	Roles  RoleSet
	Audit  *audit.Recorder
	Hasher cryptox.Hasher
	Issuer string // TOTP issuer label
	Now    func() time.Time

	mu sync.Mutex

	dummyOnce sync.Once
	dummy     string
}

// identityGuard inspects the current target inside the write transaction.
// A non-nil error aborts the mutation.
type identityGuard func(target domain.Identity) error

func (c *CredentialStore) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// dummySalt is only ever used for dummyHash; the digest protects nothing.
var dummySalt = []byte("siteadmin-dummy!")

// dummyHash is a digest with the current parameters, verified against when
// the username is unknown so both paths pay for one KDF run. NewCore builds
// it up front so the first unknown username is not slower.
func (c *CredentialStore) dummyHash() string {
	c.dummyOnce.Do(func() {
		c.dummy = c.Hasher.Hash("siteadmin-dummy-password", dummySalt).Encode()
	})
	return c.dummy
}

// BootstrapOwner creates the first and only owner. It fails with
// ErrAlreadyBootstrapped once any identity exists. The returned identity
// carries the MFA secret and recovery codes in cleartext; they are never
// returned again.
func (c *CredentialStore) BootstrapOwner(ctx context.Context, username, password string) (domain.Identity, error) {
	log := slogx.FromContext(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.Store.Identities().Count(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	if n > 0 {
		log.Warn("attempted bootstrap on already-bootstrapped store")
		return domain.Identity{}, ErrAlreadyBootstrapped
	}

	if err := validateUsername(username); err != nil {
		return domain.Identity{}, err
	}
	if err := BootstrapPasswordPolicy.Check(password); err != nil {
		return domain.Identity{}, err
	}
	if c.Roles != nil && !c.Roles.Has(domain.RoleOwner) {
		return domain.Identity{}, fmt.Errorf("%w: %q is not configured", ErrInvalidRole, domain.RoleOwner)
	}

	owner, mfa, err := c.newIdentity(username, password, domain.RoleOwner, "")
	if err != nil {
		return domain.Identity{}, err
	}

	err = c.Store.WithTx(ctx, func(tx store.Tx) error {
		// Another process may share the database; c.mu only covers this one.
		if err := tx.LockIdentities(ctx); err != nil {
			return err
		}
		n, err := tx.Identities().Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyBootstrapped
		}
		return insertIdentity(ctx, tx, owner, mfa.CodeHashes)
	})
	if err != nil {
		return domain.Identity{}, err
	}

	c.Audit.Record(ctx, domain.ActionOwnerAccountCreated, owner.ID, map[string]string{
		"username": owner.Username,
	})
	log.Info("owner account created", slog.String("identity_id", owner.ID))

	return withSecrets(owner, mfa), nil
}

// CreateIdentity creates an identity with role. Only InvitedPasswordPolicy
// applies. No audit entry is written; callers audit with their own context.
func (c *CredentialStore) CreateIdentity(ctx context.Context, username, password, role, createdBy string) (domain.Identity, error) {
	id, mfa, err := c.prepareIdentity(username, password, role, createdBy, InvitedPasswordPolicy)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := c.createIdentity(ctx, id, mfa.CodeHashes, nil, nil); err != nil {
		return domain.Identity{}, err
	}
	return withSecrets(id, mfa), nil
}

func (c *CredentialStore) prepareIdentity(username, password, role, createdBy string, policy PasswordPolicy) (domain.Identity, secondFactor, error) {
	if err := validateUsername(username); err != nil {
		return domain.Identity{}, secondFactor{}, err
	}
	if c.Roles == nil || !c.Roles.Has(role) {
		return domain.Identity{}, secondFactor{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := policy.Check(password); err != nil {
		return domain.Identity{}, secondFactor{}, err
	}
	return c.newIdentity(username, password, role, createdBy)
}

func (c *CredentialStore) newIdentity(username, password, role, createdBy string) (domain.Identity, secondFactor, error) {
	id, err := cryptox.RandomID()
	if err != nil {
		return domain.Identity{}, secondFactor{}, err
	}
	hash, err := c.Hasher.HashPassword(password)
	if err != nil {
		return domain.Identity{}, secondFactor{}, err
	}
	mfa, err := newSecondFactor(c.Issuer, username)
	if err != nil {
		return domain.Identity{}, secondFactor{}, err
	}

	return domain.Identity{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		MFASecret:    mfa.Secret,
		CreatedAt:    c.now(),
		CreatedBy:    createdBy,
		Active:       true,
	}, mfa, nil
}

// createIdentity persists id under the writer lock. check and then, when
// set, run in the same transaction before and after the insert. A failed
// commit is reported as ErrReconciliationRequired because the outcome is
// unknown.
func (c *CredentialStore) createIdentity(ctx context.Context, id domain.Identity, codeHashes []string, check, then func(tx store.Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.Store.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if check != nil {
		if err := check(tx); err != nil {
			return err
		}
	}
	if err := insertIdentity(ctx, tx, id, codeHashes); err != nil {
		return err
	}
	if then != nil {
		if err := then(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		slogx.FromContext(ctx).Error("identity commit failed",
			slog.String("identity_id", id.ID),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %w", ErrReconciliationRequired, err)
	}
	return nil
}

func insertIdentity(ctx context.Context, tx store.Tx, id domain.Identity, codeHashes []string) error {
	if _, err := tx.Identities().GetByUsername(ctx, id.Username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if err := tx.Identities().Create(ctx, id); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrDuplicateUsername
		}
		return err
	}
	if len(codeHashes) > 0 {
		if err := tx.RecoveryCodes().Create(ctx, id.ID, codeHashes); err != nil {
			return fmt.Errorf("failed to store recovery codes: %w", err)
		}
	}
	return nil
}

func withSecrets(id domain.Identity, mfa secondFactor) domain.Identity {
	id.RecoveryCodes = mfa.RecoveryCodes
	id.OTPAuthURL = mfa.URL
	return id
}

// VerifyPassword reports whether password matches an active identity.
// Unknown and inactive identities return false after the same KDF work.
func (c *CredentialStore) VerifyPassword(ctx context.Context, username, password string) bool {
	_, err := c.Authenticate(ctx, username, password)
	return err == nil
}

// Authenticate returns the identity when password matches an active
// identity, and ErrInvalidCredentials otherwise. Digests produced with older
// KDF parameters are upgraded in place.
func (c *CredentialStore) Authenticate(ctx context.Context, username, password string) (domain.Identity, error) {
	log := slogx.FromContext(ctx)

	id, err := c.Store.Identities().GetByUsername(ctx, username)
	if err != nil {
		_ = c.Hasher.VerifyPassword(password, c.dummyHash())
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("identity lookup failed", slog.Any("error", err))
		}
		return domain.Identity{}, ErrInvalidCredentials
	}

	if err := c.Hasher.VerifyPassword(password, id.PasswordHash); err != nil || !id.Active {
		return domain.Identity{}, ErrInvalidCredentials
	}

	if c.Hasher.NeedsRehash(id.PasswordHash) {
		c.rehash(ctx, id, password)
	}
	return id, nil
}

func (c *CredentialStore) rehash(ctx context.Context, id domain.Identity, password string) {
	log := slogx.FromContext(ctx)

	hash, err := c.Hasher.HashPassword(password)
	if err != nil {
		log.Error("password rehash failed", slog.Any("error", err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Store.Identities().UpdatePasswordHash(ctx, id.ID, hash); err != nil {
		log.Error("failed to store upgraded password hash",
			slog.String("identity_id", id.ID),
			slog.Any("error", err),
		)
		return
	}
	log.Info("password hash upgraded", slog.String("identity_id", id.ID))
}

// SetRole changes the role of targetUsername.
func (c *CredentialStore) SetRole(ctx context.Context, targetUsername, newRole, actingUsername string) (domain.Identity, error) {
	return c.setRole(ctx, targetUsername, newRole, actingUsername, nil)
}

func (c *CredentialStore) setRole(ctx context.Context, targetUsername, newRole, actingUsername string, guard identityGuard) (domain.Identity, error) {
	if targetUsername == actingUsername {
		return domain.Identity{}, ErrSelfRoleChange
	}
	if c.Roles == nil || !c.Roles.Has(newRole) {
		return domain.Identity{}, fmt.Errorf("%w: %q", ErrInvalidRole, newRole)
	}

	var updated domain.Identity
	err := c.mutate(ctx, targetUsername, guard, func(tx store.Tx, target domain.Identity) error {
		if err := tx.Identities().UpdateRole(ctx, target.ID, newRole); err != nil {
			return err
		}
		updated = target
		updated.Role = newRole
		return nil
	})
	return updated, err
}

// Deactivate marks targetUsername inactive. Inactive identities fail
// authentication.
func (c *CredentialStore) Deactivate(ctx context.Context, targetUsername, actingUsername string) error {
	return c.deactivate(ctx, targetUsername, actingUsername, nil)
}

func (c *CredentialStore) deactivate(ctx context.Context, targetUsername, actingUsername string, guard identityGuard) error {
	if targetUsername == actingUsername {
		return ErrSelfDeletion
	}
	return c.mutate(ctx, targetUsername, guard, func(tx store.Tx, target domain.Identity) error {
		return tx.Identities().Deactivate(ctx, target.ID)
	})
}

// Delete removes targetUsername and its recovery codes.
func (c *CredentialStore) Delete(ctx context.Context, targetUsername, actingUsername string) error {
	return c.delete(ctx, targetUsername, actingUsername, nil)
}

func (c *CredentialStore) delete(ctx context.Context, targetUsername, actingUsername string, guard identityGuard) error {
	if targetUsername == actingUsername {
		return ErrSelfDeletion
	}
	return c.mutate(ctx, targetUsername, guard, func(tx store.Tx, target domain.Identity) error {
		return tx.Identities().Delete(ctx, target.ID)
	})
}

// mutate loads targetUsername inside a write transaction, runs guard and
// then apply.
func (c *CredentialStore) mutate(ctx context.Context, targetUsername string, guard identityGuard, apply func(tx store.Tx, target domain.Identity) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Store.WithTx(ctx, func(tx store.Tx) error {
		target, err := tx.Identities().GetByUsername(ctx, targetUsername)
		if err != nil {
			return mapStoreErr(err)
		}
		if guard != nil {
			if err := guard(target); err != nil {
				return err
			}
		}
		return mapStoreErr(apply(tx, target))
	})
}

func (c *CredentialStore) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	i, err := c.Store.Identities().GetByID(ctx, id)
	return i, mapStoreErr(err)
}

func (c *CredentialStore) GetByUsername(ctx context.Context, username string) (domain.Identity, error) {
	i, err := c.Store.Identities().GetByUsername(ctx, username)
	return i, mapStoreErr(err)
}

func (c *CredentialStore) Count(ctx context.Context) (int, error) {
	return c.Store.Identities().Count(ctx)
}

// RemainingRecoveryCodes returns how many unused recovery codes identityID has.
func (c *CredentialStore) RemainingRecoveryCodes(ctx context.Context, identityID string) (int, error) {
	return c.Store.RecoveryCodes().Count(ctx, identityID)
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

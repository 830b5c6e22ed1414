// Package storetest is a behavioural suite every store driver must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/aussiebroadwan/siteadmin/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Identities", func(t *testing.T) { testIdentities(t, newStore(t)) })
	t.Run("Invitations", func(t *testing.T) { testInvitations(t, newStore(t)) })
	t.Run("RecoveryCodes", func(t *testing.T) { testRecoveryCodes(t, newStore(t)) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("ConcurrentMarkUsed", func(t *testing.T) { testConcurrentMarkUsed(t, newStore(t)) })
	t.Run("LockIdentities", func(t *testing.T) { testLockIdentities(t, newStore(t)) })
}

// NewIdentity returns a valid identity with a random ID.
func NewIdentity(username, role string) domain.Identity {
	id, err := cryptox.RandomID()
	if err != nil {
		panic(err)
	}
	return domain.Identity{
		ID:           id,
		Username:     username,
		PasswordHash: "$pbkdf2-sha512$v=1$i=1,l=1$c2FsdA$AA",
		Role:         role,
		MFASecret:    "JBSWY3DPEHPK3PXP",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		Active:       true,
	}
}

func newInvitation(t *testing.T, inviterID string) domain.Invitation {
	t.Helper()
	id, err := cryptox.RandomID()
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.Invitation{
		ID:           id,
		InviteeEmail: "a@x.com",
		InviterID:    inviterID,
		Role:         domain.RoleCoOwner,
		TokenHash:    cryptox.FingerprintToken(cryptox.MustGenerateToken(cryptox.TokenSize256)),
		ExpiresAt:    now.Add(domain.InvitationTTL),
		CreatedAt:    now,
	}
}

func testIdentities(t *testing.T, st store.Store) {
	ctx := context.Background()
	repo := st.Identities()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	root := NewIdentity("root", domain.RoleOwner)
	require.NoError(t, repo.Create(ctx, root))

	t.Run("duplicate username", func(t *testing.T) {
		err := repo.Create(ctx, NewIdentity("root", domain.RoleAdmin))
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("usernames are case-sensitive", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, NewIdentity("Root", domain.RoleAdmin)))
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetByID(ctx, root.ID)
		require.NoError(t, err)
		require.Equal(t, root.Username, got.Username)
		require.Equal(t, root.PasswordHash, got.PasswordHash)
		require.Equal(t, root.MFASecret, got.MFASecret)
		require.True(t, got.Active)
		require.WithinDuration(t, root.CreatedAt, got.CreatedAt, time.Millisecond)

		got, err = repo.GetByUsername(ctx, "root")
		require.NoError(t, err)
		require.Equal(t, root.ID, got.ID)

		_, err = repo.GetByUsername(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("updates", func(t *testing.T) {
		require.NoError(t, repo.UpdateRole(ctx, root.ID, domain.RoleCoOwner))
		require.NoError(t, repo.UpdatePasswordHash(ctx, root.ID, "new-hash"))
		require.NoError(t, repo.Deactivate(ctx, root.ID))

		got, err := repo.GetByID(ctx, root.ID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleCoOwner, got.Role)
		require.Equal(t, "new-hash", got.PasswordHash)
		require.False(t, got.Active)

		require.ErrorIs(t, repo.UpdateRole(ctx, "missing", domain.RoleAdmin), store.ErrNotFound)
		require.ErrorIs(t, repo.Deactivate(ctx, "missing"), store.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, root.ID))
		_, err := repo.GetByID(ctx, root.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, repo.Delete(ctx, root.ID), store.ErrNotFound)

		// The username is free again.
		require.NoError(t, repo.Create(ctx, NewIdentity("root", domain.RoleAdmin)))
	})
}

func testInvitations(t *testing.T, st store.Store) {
	ctx := context.Background()
	inviter := NewIdentity("root", domain.RoleOwner)
	require.NoError(t, st.Identities().Create(ctx, inviter))

	inv := newInvitation(t, inviter.ID)
	require.NoError(t, st.Invitations().Create(ctx, inv))

	got, err := st.Invitations().GetByTokenHash(ctx, inv.TokenHash)
	require.NoError(t, err)
	require.Equal(t, inv.ID, got.ID)
	require.Equal(t, domain.RoleCoOwner, got.Role)
	require.Equal(t, "a@x.com", got.InviteeEmail)
	require.False(t, got.Used)
	require.Empty(t, got.Token)
	require.WithinDuration(t, inv.ExpiresAt, got.ExpiresAt, time.Millisecond)

	_, err = st.Invitations().GetByTokenHash(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)

	redeemer := NewIdentity("alice", domain.RoleCoOwner)
	require.NoError(t, st.Identities().Create(ctx, redeemer))

	require.NoError(t, st.Invitations().MarkUsed(ctx, inv.ID, redeemer.ID))
	require.ErrorIs(t, st.Invitations().MarkUsed(ctx, inv.ID, redeemer.ID), store.ErrConflict)
	require.ErrorIs(t, st.Invitations().MarkUsed(ctx, "missing", redeemer.ID), store.ErrNotFound)

	got, err = st.Invitations().GetByTokenHash(ctx, inv.TokenHash)
	require.NoError(t, err)
	require.True(t, got.Used)
	require.Equal(t, redeemer.ID, got.UsedBy)

	// Invitations outlive the identities involved.
	require.NoError(t, st.Identities().Delete(ctx, inviter.ID))
	_, err = st.Invitations().GetByTokenHash(ctx, inv.TokenHash)
	require.NoError(t, err)
}

func testRecoveryCodes(t *testing.T, st store.Store) {
	ctx := context.Background()
	id := NewIdentity("root", domain.RoleOwner)
	require.NoError(t, st.Identities().Create(ctx, id))

	hashes := []string{"h1", "h2", "h3"}
	require.NoError(t, st.RecoveryCodes().Create(ctx, id.ID, hashes))

	n, err := st.RecoveryCodes().Count(ctx, id.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	ok, err := st.RecoveryCodes().Consume(ctx, id.ID, "h2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.RecoveryCodes().Consume(ctx, id.ID, "h2")
	require.NoError(t, err)
	require.False(t, ok, "a code is consumable once")

	ok, err = st.RecoveryCodes().Consume(ctx, "someone-else", "h1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.Identities().Delete(ctx, id.ID))
	n, err = st.RecoveryCodes().Count(ctx, id.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func testAudit(t *testing.T, st store.Store) {
	ctx := context.Background()
	repo := st.AuditEntries()

	base := time.Now().UTC().Truncate(time.Millisecond).Add(-time.Hour)
	var all []domain.AuditEntry
	for i := range 10 {
		ts := base.Add(time.Duration(i) * time.Minute)
		action := domain.ActionLoginSucceeded
		if i%2 == 1 {
			action = domain.ActionLoginFailed
		}
		e := domain.AuditEntry{
			ID:        idx.NewAt(ts).String(),
			Timestamp: ts,
			Action:    action,
			ActorID:   fmt.Sprintf("actor-%d", i%3),
			Details:   map[string]string{"n": fmt.Sprint(i)},
		}
		require.NoError(t, repo.Append(ctx, e))
		all = append(all, e)
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := repo.List(ctx, domain.AuditFilter{})
		require.NoError(t, err)
		require.Len(t, got, 10)
		for i, e := range got {
			require.Equal(t, all[9-i].ID, e.ID)
		}
		require.Equal(t, "9", got[0].Details["n"])
		require.WithinDuration(t, all[9].Timestamp, got[0].Timestamp, time.Millisecond)
	})

	t.Run("filters", func(t *testing.T) {
		got, err := repo.List(ctx, domain.AuditFilter{Action: domain.ActionLoginFailed})
		require.NoError(t, err)
		require.Len(t, got, 5)

		got, err = repo.List(ctx, domain.AuditFilter{ActorID: "actor-0"})
		require.NoError(t, err)
		require.Len(t, got, 4) // 0, 3, 6, 9

		got, err = repo.List(ctx, domain.AuditFilter{Since: all[7].Timestamp})
		require.NoError(t, err)
		require.Len(t, got, 3)

		got, err = repo.List(ctx, domain.AuditFilter{Until: all[2].Timestamp})
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("keyset paging", func(t *testing.T) {
		page, err := repo.List(ctx, domain.AuditFilter{Limit: 4})
		require.NoError(t, err)
		require.Len(t, page, 4)

		next, err := repo.List(ctx, domain.AuditFilter{Limit: 4, Before: page[3].ID})
		require.NoError(t, err)
		require.Len(t, next, 4)
		require.Equal(t, all[5].ID, next[0].ID)
	})

	t.Run("delete before", func(t *testing.T) {
		n, err := repo.DeleteBefore(ctx, all[3].Timestamp)
		require.NoError(t, err)
		require.EqualValues(t, 3, n)

		got, err := repo.List(ctx, domain.AuditFilter{})
		require.NoError(t, err)
		require.Len(t, got, 7)
	})
}

func testTxRollback(t *testing.T, st store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Identities().Create(ctx, NewIdentity("ghost", domain.RoleAdmin)))
		n, err := tx.Identities().Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Identities().GetByUsername(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Identities().Create(ctx, NewIdentity("real", domain.RoleAdmin))
	}))
	_, err = st.Identities().GetByUsername(ctx, "real")
	require.NoError(t, err)
}

func testConcurrentMarkUsed(t *testing.T, st store.Store) {
	ctx := context.Background()
	inviter := NewIdentity("root", domain.RoleOwner)
	require.NoError(t, st.Identities().Create(ctx, inviter))
	inv := newInvitation(t, inviter.ID)
	require.NoError(t, st.Invitations().Create(ctx, inv))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.WithTx(ctx, func(tx store.Tx) error {
				return tx.Invitations().MarkUsed(ctx, inv.ID, fmt.Sprintf("user-%d", i))
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
}

// testLockIdentities runs lock, count, insert-if-empty from several
// transactions at once. Only the first may insert.
func testLockIdentities(t *testing.T, st store.Store) {
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.WithTx(ctx, func(tx store.Tx) error {
				if err := tx.LockIdentities(ctx); err != nil {
					return err
				}
				n, err := tx.Identities().Count(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					return errors.New("already populated")
				}
				return tx.Identities().Create(ctx, NewIdentity(fmt.Sprintf("owner-%d", i), domain.RoleOwner))
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	n, err := st.Identities().Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

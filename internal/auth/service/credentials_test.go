package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestBootstrapOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.bootstrap(t)
	require.Equal(t, ownerName, owner.Username)
	require.Equal(t, domain.RoleOwner, owner.Role)
	require.True(t, owner.Active)
	require.Empty(t, owner.CreatedBy)
	require.Regexp(t, `^[0-9a-f]{32}$`, owner.ID)

	// Secrets are returned exactly once.
	require.NotEmpty(t, owner.MFASecret)
	require.Contains(t, owner.OTPAuthURL, "otpauth://totp/")
	require.Len(t, owner.RecoveryCodes, 8)

	// The store never holds cleartext recovery codes.
	n, err := f.store.RecoveryCodes().Count(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	ok, err := f.store.RecoveryCodes().Consume(ctx, owner.ID, owner.RecoveryCodes[0])
	require.NoError(t, err)
	require.False(t, ok)

	// Salt and KDF parameters live inside the digest.
	stored, err := f.store.Identities().GetByID(ctx, owner.ID)
	require.NoError(t, err)
	d, err := cryptox.ParseDigest(stored.PasswordHash)
	require.NoError(t, err)
	require.Len(t, d.Salt, cryptox.SaltLength)
	require.Equal(t, fastHasher.Params, d.Params)

	entries := f.auditEntries(t, domain.ActionOwnerAccountCreated)
	require.Len(t, entries, 1)
	require.Equal(t, owner.ID, entries[0].ActorID)
	for _, v := range entries[0].Details {
		require.NotContains(t, v, ownerPassword)
		require.NotContains(t, v, owner.MFASecret)
	}

	_, err = f.core.BootstrapOwner(ctx, "second", ownerPassword)
	require.ErrorIs(t, err, ErrAlreadyBootstrapped)
}

func TestBootstrapOwner_PasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"eleven chars", "elevenchars", ErrWeakCredential},
		{"empty", "", ErrWeakCredential},
		{"twelve chars", "twelve-chars", nil},
		{"twelve runes, multibyte", "пароль密码🔒🔒🔒🔒", nil},
		{"eleven runes, many bytes", "🔒🔒🔒🔒🔒🔒🔒🔒🔒🔒🔒", ErrWeakCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.core.BootstrapOwner(context.Background(), ownerName, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				n, cerr := f.store.Identities().Count(context.Background())
				require.NoError(t, cerr)
				require.Zero(t, n)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBootstrapOwner_AlreadyBootstrappedWins(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)

	_, err := f.core.BootstrapOwner(context.Background(), "other", "short")
	require.ErrorIs(t, err, ErrAlreadyBootstrapped)
}

func TestBootstrapOwner_Concurrent(t *testing.T) {
	f := newFixture(t)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		already   int
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.core.BootstrapOwner(context.Background(), fmt.Sprintf("owner%d", i), ownerPassword)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyBootstrapped):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, callers-1, already)
	require.Len(t, f.auditEntries(t, domain.ActionOwnerAccountCreated), 1)
}

func TestCreateIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.bootstrap(t)

	id, err := f.core.Credentials.CreateIdentity(ctx, "editor", "x", domain.RoleAdmin, owner.ID)
	require.NoError(t, err, "invited policy does not enforce length")
	require.Equal(t, owner.ID, id.CreatedBy)
	require.Len(t, id.RecoveryCodes, 8)

	_, err = f.core.Credentials.CreateIdentity(ctx, "editor", "whatever", domain.RoleAdmin, owner.ID)
	require.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = f.core.Credentials.CreateIdentity(ctx, "ghost", "whatever", "superuser", owner.ID)
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.core.Credentials.CreateIdentity(ctx, "nopass", "", domain.RoleAdmin, owner.ID)
	require.ErrorIs(t, err, ErrMissingPassword)
	require.NotErrorIs(t, err, ErrWeakCredential)

	// Invited identities are not held to the bootstrap strength rule.
	_, err = f.core.Credentials.CreateIdentity(ctx, "shortpass", "x", domain.RoleAdmin, owner.ID)
	require.NoError(t, err)

	for _, bad := range []string{"", " padded", "tab\there", strings.Repeat("u", 65)} {
		_, err = f.core.Credentials.CreateIdentity(ctx, bad, "whatever", domain.RoleAdmin, owner.ID)
		require.ErrorIs(t, err, ErrInvalidUsername, "username %q", bad)
	}

	// Usernames are case-sensitive.
	_, err = f.core.Credentials.CreateIdentity(ctx, "Editor", "whatever", domain.RoleAdmin, owner.ID)
	require.NoError(t, err)

	// Creation alone writes no audit entry.
	entries, err := f.store.AuditEntries().List(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCreateIdentity_ConcurrentSameUsername(t *testing.T) {
	f := newFixture(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.core.Credentials.CreateIdentity(context.Background(), "alice", "pw", domain.RoleAdmin, "")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrDuplicateUsername) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}

func TestVerifyPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bootstrap(t)
	f.addIdentity(t, "alice", domain.RoleAdmin)

	require.True(t, f.core.Credentials.VerifyPassword(ctx, ownerName, ownerPassword))
	require.False(t, f.core.Credentials.VerifyPassword(ctx, ownerName, ownerPassword+"x"))
	require.False(t, f.core.Credentials.VerifyPassword(ctx, ownerName, ""))
	require.False(t, f.core.Credentials.VerifyPassword(ctx, "nobody", ownerPassword))
	require.False(t, f.core.Credentials.VerifyPassword(ctx, "ROOT", ownerPassword))

	require.True(t, f.core.Credentials.VerifyPassword(ctx, "alice", "password-alice"))
	require.NoError(t, f.core.Credentials.Deactivate(ctx, "alice", ownerName))
	require.False(t, f.core.Credentials.VerifyPassword(ctx, "alice", "password-alice"))
}

func TestAuthenticate_UpgradesOldDigests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bootstrap(t)

	f.core.Credentials.Hasher = cryptox.NewHasher(cryptox.KDFParams{Version: 2, Iterations: 1500, KeyLength: 64}, "")

	_, err := f.core.Credentials.Authenticate(ctx, ownerName, ownerPassword)
	require.NoError(t, err)

	stored, err := f.store.Identities().GetByUsername(ctx, ownerName)
	require.NoError(t, err)
	d, err := cryptox.ParseDigest(stored.PasswordHash)
	require.NoError(t, err)
	require.Equal(t, 2, d.Params.Version)
	require.True(t, f.core.Credentials.VerifyPassword(ctx, ownerName, ownerPassword))
}

func TestAuthenticate_UpgradesRaisedIterations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bootstrap(t)

	f.core.Credentials.Hasher = cryptox.NewHasher(cryptox.KDFParams{Version: 1, Iterations: 2000, KeyLength: 64}, "")

	_, err := f.core.Credentials.Authenticate(ctx, ownerName, ownerPassword)
	require.NoError(t, err)

	stored, err := f.store.Identities().GetByUsername(ctx, ownerName)
	require.NoError(t, err)
	d, err := cryptox.ParseDigest(stored.PasswordHash)
	require.NoError(t, err)
	require.Equal(t, 1, d.Params.Version)
	require.Equal(t, 2000, d.Params.Iterations)
	require.False(t, f.core.Credentials.Hasher.NeedsRehash(stored.PasswordHash))
}

func TestNewCore_BuildsDummyHashUpFront(t *testing.T) {
	f := newFixture(t)

	require.NotEmpty(t, f.core.Credentials.dummy)
	d, err := cryptox.ParseDigest(f.core.Credentials.dummy)
	require.NoError(t, err)
	require.Equal(t, fastHasher.Params, d.Params)

	// Unknown usernames verify against the prebuilt digest.
	require.False(t, f.core.Credentials.VerifyPassword(context.Background(), "nobody", "whatever"))
	require.Equal(t, d.Encode(), f.core.Credentials.dummyHash())
}

func TestSetRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bootstrap(t)
	f.addIdentity(t, "alice", domain.RoleModerator)

	t.Run("self change always fails", func(t *testing.T) {
		for _, role := range []string{domain.RoleOwner, domain.RoleAdmin, "ghost", ""} {
			_, err := f.core.Credentials.SetRole(ctx, "alice", role, "alice")
			require.ErrorIs(t, err, ErrSelfRoleChange)
			_, err = f.core.Credentials.SetRole(ctx, "nobody", role, "nobody")
			require.ErrorIs(t, err, ErrSelfRoleChange)
		}
	})

	t.Run("updates role", func(t *testing.T) {
		got, err := f.core.Credentials.SetRole(ctx, "alice", domain.RoleAdmin, ownerName)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, got.Role)

		stored, err := f.core.Credentials.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, stored.Role)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := f.core.Credentials.SetRole(ctx, "nobody", domain.RoleAdmin, ownerName)
		require.ErrorIs(t, err, ErrNotFound)

		_, err = f.core.Credentials.SetRole(ctx, "alice", "superuser", ownerName)
		require.ErrorIs(t, err, ErrInvalidRole)
	})
}

func TestDeactivateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bootstrap(t)
	alice := f.addIdentity(t, "alice", domain.RoleAdmin)

	require.ErrorIs(t, f.core.Credentials.Deactivate(ctx, ownerName, ownerName), ErrSelfDeletion)
	require.ErrorIs(t, f.core.Credentials.Delete(ctx, ownerName, ownerName), ErrSelfDeletion)
	require.ErrorIs(t, f.core.Credentials.Delete(ctx, "nobody", ownerName), ErrNotFound)

	require.NoError(t, f.core.Credentials.Deactivate(ctx, "alice", ownerName))
	got, err := f.core.Credentials.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	require.NoError(t, f.core.Credentials.Delete(ctx, "alice", ownerName))
	_, err = f.core.Credentials.GetByID(ctx, alice.ID)
	require.ErrorIs(t, err, ErrNotFound)

	n, err := f.core.Credentials.RemainingRecoveryCodes(ctx, alice.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPasswordPolicy(t *testing.T) {
	require.NoError(t, InvitedPasswordPolicy.Check("a"))
	require.ErrorIs(t, InvitedPasswordPolicy.Check(""), ErrMissingPassword)
	require.ErrorIs(t, BootstrapPasswordPolicy.Check(""), ErrWeakCredential)

	err := BootstrapPasswordPolicy.Check("short")
	require.ErrorIs(t, err, ErrWeakCredential)
	require.Contains(t, err.Error(), "bootstrap")
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func newSessions(t *testing.T, f *fixture) (*SessionService, jwtx.Verifier) {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager("siteadmin")
	require.NoError(t, err)
	return &SessionService{
		Credentials: f.core.Credentials,
		Audit:       f.core.Audit,
		Signer:      km.Signer,
		Issuer:      "siteadmin",
	}, km.Verifier
}

func TestLogin_TOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.bootstrap(t)
	sessions, verifier := newSessions(t, f)

	code, err := totp.GenerateCode(owner.MFASecret, time.Now())
	require.NoError(t, err)

	sess, err := sessions.Login(ctx, ownerName, ownerPassword, code)
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	require.Equal(t, owner.ID, sess.Identity.ID)
	require.Empty(t, sess.Identity.MFASecret)
	require.Empty(t, sess.Identity.PasswordHash)

	claims, err := verifier.Verify(sess.Token)
	require.NoError(t, err)
	require.Equal(t, owner.ID, claims.Subject)
	require.Equal(t, domain.RoleOwner, claims.Role)
	require.ElementsMatch(t, []string{jwtx.AMRPassword, jwtx.AMRMFA, jwtx.AMROTP}, claims.AMR)
	require.WithinDuration(t, time.Now().Add(jwtx.DefaultSessionTTL), sess.ExpiresAt, 5*time.Second)

	ok := f.auditEntries(t, domain.ActionLoginSucceeded)
	require.Len(t, ok, 1)
	require.Equal(t, owner.ID, ok[0].ActorID)
	require.Equal(t, "totp", ok[0].Details["method"])

	require.NoError(t, sessions.Check(ctx, claims))
}

func TestLogin_RecoveryCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.bootstrap(t)
	sessions, verifier := newSessions(t, f)
	require.Len(t, owner.RecoveryCodes, 8)

	sess, err := sessions.Login(ctx, ownerName, ownerPassword, owner.RecoveryCodes[0])
	require.NoError(t, err)

	claims, err := verifier.Verify(sess.Token)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{jwtx.AMRPassword, jwtx.AMRMFA}, claims.AMR)

	ok := f.auditEntries(t, domain.ActionLoginSucceeded)
	require.Len(t, ok, 1)
	require.Equal(t, "recovery_code", ok[0].Details["method"])
	require.Equal(t, "7", ok[0].Details["recovery_codes_left"])

	_, err = sessions.Login(ctx, ownerName, ownerPassword, owner.RecoveryCodes[0])
	require.ErrorIs(t, err, ErrInvalidCredentials)

	left, err := f.core.Credentials.RemainingRecoveryCodes(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, 7, left)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.bootstrap(t)
	sessions, _ := newSessions(t, f)

	code, err := totp.GenerateCode(owner.MFASecret, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		code     string
		reason   string
	}{
		{"unknown user", "nobody", ownerPassword, code, "password"},
		{"wrong password", ownerName, "wrong-password", code, "password"},
		{"missing code", ownerName, ownerPassword, "", "second_factor"},
		{"wrong code", ownerName, ownerPassword, "not-a-code", "second_factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sessions.Login(ctx, tt.username, tt.password, tt.code)
			require.ErrorIs(t, err, ErrInvalidCredentials)

			failed := f.auditEntries(t, domain.ActionLoginFailed)
			require.NotEmpty(t, failed)
			require.Equal(t, tt.reason, failed[0].Details["reason"])
			require.Equal(t, tt.username, failed[0].Details["username"])
		})
	}

	require.Empty(t, f.auditEntries(t, domain.ActionLoginSucceeded))
}

func TestLogin_DeactivatedIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bootstrap(t)
	mod := f.addIdentity(t, "mod", domain.RoleModerator)
	sessions, _ := newSessions(t, f)

	require.NoError(t, f.core.Credentials.Deactivate(ctx, "mod", ownerName))

	code, err := totp.GenerateCode(mod.MFASecret, time.Now())
	require.NoError(t, err)
	_, err = sessions.Login(ctx, "mod", "password-mod", code)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCheck_Revocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bootstrap(t)
	mod := f.addIdentity(t, "mod", domain.RoleModerator)
	sessions, verifier := newSessions(t, f)

	login := func() jwtx.Claims {
		code, err := totp.GenerateCode(mod.MFASecret, time.Now())
		require.NoError(t, err)
		sess, err := sessions.Login(ctx, "mod", "password-mod", code)
		require.NoError(t, err)
		claims, err := verifier.Verify(sess.Token)
		require.NoError(t, err)
		return claims
	}

	claims := login()
	require.NoError(t, sessions.Check(ctx, claims))

	_, err := f.core.Credentials.SetRole(ctx, "mod", domain.RoleAdmin, ownerName)
	require.NoError(t, err)
	require.ErrorIs(t, sessions.Check(ctx, claims), ErrSessionRevoked)

	claims.Role = domain.RoleAdmin
	require.NoError(t, sessions.Check(ctx, claims))

	require.NoError(t, f.core.Credentials.Deactivate(ctx, "mod", ownerName))
	require.ErrorIs(t, sessions.Check(ctx, claims), ErrSessionRevoked)

	require.NoError(t, f.core.Credentials.Delete(ctx, "mod", ownerName))
	require.ErrorIs(t, sessions.Check(ctx, claims), ErrSessionRevoked)
}

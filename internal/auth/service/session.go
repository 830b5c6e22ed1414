package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/audit"
	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/pkg/jwtx"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
)

var ErrSessionRevoked = errors.New("session no longer valid")

// SessionService authenticates admins with password plus second factor and
// issues short-lived signed session tokens.
type SessionService struct {
	Credentials *CredentialStore
	Audit       *audit.Recorder
	Signer      *jwtx.Signer
	Issuer      string
	TTL         time.Duration // Defaults to jwtx.DefaultSessionTTL
	Now         func() time.Time
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  domain.Identity // Public view
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return jwtx.DefaultSessionTTL
}

// Login checks password and a TOTP or recovery code. Every outcome is
// audited; failures all return ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, username, password, code string) (Session, error) {
	log := slogx.FromContext(ctx)

	id, err := s.Credentials.Authenticate(ctx, username, password)
	if err != nil {
		s.Audit.Record(ctx, domain.ActionLoginFailed, "", map[string]string{
			"username": username,
			"reason":   "password",
		})
		return Session{}, ErrInvalidCredentials
	}

	method, err := s.Credentials.VerifySecondFactor(ctx, id.ID, id.MFASecret, code)
	if err != nil {
		log.Error("second factor check failed", slog.Any("error", err))
		return Session{}, err
	}
	if method == "" {
		s.Audit.Record(ctx, domain.ActionLoginFailed, id.ID, map[string]string{
			"username": username,
			"reason":   "second_factor",
		})
		return Session{}, ErrInvalidCredentials
	}

	amr := []string{jwtx.AMRPassword, jwtx.AMRMFA}
	if method == methodTOTP {
		amr = append(amr, jwtx.AMROTP)
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	claims := jwtx.NewSessionClaims(id.ID, id.Username, id.Role, amr, s.ttl(), s.Issuer, now)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign session: %w", err)
	}

	details := map[string]string{"method": method}
	if method == methodRecoveryCode {
		if n, err := s.Credentials.RemainingRecoveryCodes(ctx, id.ID); err == nil {
			details["recovery_codes_left"] = fmt.Sprint(n)
		}
	}
	s.Audit.Record(ctx, domain.ActionLoginSucceeded, id.ID, details)
	log.Info("admin logged in",
		slog.String("identity_id", id.ID),
		slog.String("method", method),
	)

	return Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Identity:  id.Public(),
	}, nil
}

// Check rejects sessions whose identity was deleted, deactivated or moved to
// another role after the token was issued.
func (s *SessionService) Check(ctx context.Context, claims jwtx.Claims) error {
	id, err := s.Credentials.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrSessionRevoked
		}
		return err
	}
	if !id.Active || id.Role != claims.Role {
		return ErrSessionRevoked
	}
	return nil
}

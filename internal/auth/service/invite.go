package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/audit"
	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
)

// PermissionEvaluator decides whether an identity holds a permission.
type PermissionEvaluator interface {
	Can(identity *domain.Identity, permission string) bool
}

// InvitationService issues and redeems single-use co-owner invitations.
type InvitationService struct {
	Store       store.Store
	Credentials *CredentialStore
	Authorizer  PermissionEvaluator
	Audit       *audit.Recorder
	TTL         time.Duration // Defaults to domain.InvitationTTL
	Now         func() time.Time
}

func (s *InvitationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InvitationService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return domain.InvitationTTL
}

// Invite creates a co-owner invitation on behalf of inviterID, who must hold
// users.invite. The returned invitation carries the raw token; only its
// fingerprint is stored.
func (s *InvitationService) Invite(ctx context.Context, inviterID, inviteeEmail string) (domain.Invitation, error) {
	log := slogx.FromContext(ctx)

	addr, err := mail.ParseAddress(strings.TrimSpace(inviteeEmail))
	if err != nil {
		return domain.Invitation{}, ErrInvalidEmail
	}

	inviter, err := s.Credentials.GetByID(ctx, inviterID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Invitation{}, ErrInsufficientPermission
		}
		return domain.Invitation{}, err
	}
	if !inviter.Active || !s.Authorizer.Can(&inviter, domain.PermUsersInvite) {
		log.Warn("invite denied",
			slog.String("inviter_id", inviterID),
			slog.String("role", inviter.Role),
		)
		return domain.Invitation{}, ErrInsufficientPermission
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Invitation{}, err
	}
	id, err := cryptox.RandomID()
	if err != nil {
		return domain.Invitation{}, err
	}

	now := s.now()
	inv := domain.Invitation{
		ID:           id,
		InviteeEmail: addr.Address,
		InviterID:    inviter.ID,
		Role:         domain.RoleCoOwner,
		TokenHash:    cryptox.FingerprintToken(token),
		ExpiresAt:    now.Add(s.ttl()),
		CreatedAt:    now,
	}
	if err := s.Store.Invitations().Create(ctx, inv); err != nil {
		log.Error("failed to create invitation",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
		return domain.Invitation{}, err
	}

	s.Audit.Record(ctx, domain.ActionCoOwnerInvited, inviter.ID, map[string]string{
		"invitation_id": inv.ID,
		"invitee_email": inv.InviteeEmail,
		"role":          inv.Role,
	})
	log.Debug("invitation created",
		slog.String("invitation_id", inv.ID),
		slog.Time("expires_at", inv.ExpiresAt),
	)

	inv.Token = token
	return inv, nil
}

// Redeem creates an identity from an unused, unexpired invitation. Creating
// the identity and marking the invitation used happen in one transaction,
// and the mark is a conditional update, so concurrent redemptions of the
// same token produce exactly one identity.
func (s *InvitationService) Redeem(ctx context.Context, token, username, password string) (domain.Identity, error) {
	log := slogx.FromContext(ctx)

	if token == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	inv, err := s.Store.Invitations().GetByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, ErrInvalidToken
		}
		return domain.Identity{}, err
	}
	if inv.Used {
		return domain.Identity{}, ErrInvalidToken
	}
	if inv.Expired(s.now()) {
		return domain.Identity{}, ErrExpired
	}

	id, mfa, err := s.Credentials.prepareIdentity(username, password, inv.Role, inv.InviterID, InvitedPasswordPolicy)
	if err != nil {
		return domain.Identity{}, err
	}

	// A concurrent redeem may have won since the lookup above.
	stillUnused := func(tx store.Tx) error {
		cur, err := tx.Invitations().GetByTokenHash(ctx, inv.TokenHash)
		if err != nil {
			return err
		}
		if cur.Used {
			return ErrInvalidToken
		}
		return nil
	}
	err = s.Credentials.createIdentity(ctx, id, mfa.CodeHashes, stillUnused, func(tx store.Tx) error {
		err := tx.Invitations().MarkUsed(ctx, inv.ID, id.ID)
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrReconciliationRequired) {
			log.Error("invitation redemption needs reconciliation",
				slog.String("invitation_id", inv.ID),
				slog.String("identity_id", id.ID),
				slog.String("username", id.Username),
			)
		}
		return domain.Identity{}, err
	}

	s.Audit.Record(ctx, domain.ActionCoOwnerRedeemed, id.ID, map[string]string{
		"invitation_id": inv.ID,
		"inviter_id":    inv.InviterID,
		"username":      id.Username,
		"role":          id.Role,
	})
	log.Info("invitation redeemed",
		slog.String("invitation_id", inv.ID),
		slog.String("identity_id", id.ID),
	)

	return withSecrets(id, mfa), nil
}

package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/audit"
	"github.com/aussiebroadwan/siteadmin/internal/auth/authz"
	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
)

// Core is the facade the admin adapters call. It composes the credential
// store, the invitation service and the authorizer, and audits every
// security-relevant outcome.
type Core struct {
	Credentials *CredentialStore
	Invitations *InvitationService
	Authorizer  *authz.Authorizer
	Audit       *audit.Recorder
}

// CoreConfig carries the optional knobs of NewCore.
type CoreConfig struct {
	Hasher        cryptox.Hasher
	MFAIssuer     string
	InvitationTTL time.Duration
	Now           func() time.Time
}

func NewCore(st store.Store, az *authz.Authorizer, rec *audit.Recorder, cfg CoreConfig) *Core {
	creds := &CredentialStore{
		Store:  st,
		Roles:  az,
		Audit:  rec,
		Hasher: cfg.Hasher,
		Issuer: cfg.MFAIssuer,
		Now:    cfg.Now,
	}
	creds.dummyHash()

	return &Core{
		Credentials: creds,
		Invitations: &InvitationService{
			Store:       st,
			Credentials: creds,
			Authorizer:  az,
			Audit:       rec,
			TTL:         cfg.InvitationTTL,
			Now:         cfg.Now,
		},
		Authorizer: az,
		Audit:      rec,
	}
}

// BootstrapOwner creates the sole owner account.
func (c *Core) BootstrapOwner(ctx context.Context, username, password string) (domain.Identity, error) {
	return c.Credentials.BootstrapOwner(ctx, username, password)
}

// InviteCoOwner issues a co-owner invitation from inviterID.
func (c *Core) InviteCoOwner(ctx context.Context, inviterID, inviteeEmail string) (domain.Invitation, error) {
	inv, err := c.Invitations.Invite(ctx, inviterID, inviteeEmail)
	if errors.Is(err, ErrInsufficientPermission) {
		c.denied(ctx, inviterID, domain.PermUsersInvite, "")
	}
	return inv, err
}

// RedeemInvitation creates a co-owner from an invitation token.
func (c *Core) RedeemInvitation(ctx context.Context, token, username, password string) (domain.Identity, error) {
	return c.Invitations.Redeem(ctx, token, username, password)
}

// Can is the authorizer's decision for identity.
func (c *Core) Can(identity *domain.Identity, permission string) bool {
	return c.Authorizer.Can(identity, permission)
}

// Authorize loads identityID and checks permission. Unknown or inactive
// identities are denied. Every denial is audited.
func (c *Core) Authorize(ctx context.Context, identityID, permission string) error {
	_, err := c.actor(ctx, identityID, permission)
	return err
}

// actor returns the active identity behind identityID if it holds
// permission.
func (c *Core) actor(ctx context.Context, identityID, permission string) (domain.Identity, error) {
	id, err := c.Credentials.GetByID(ctx, identityID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return domain.Identity{}, err
	}
	if err != nil || !id.Active || !c.Authorizer.Can(&id, permission) {
		c.denied(ctx, identityID, permission, "")
		return domain.Identity{}, ErrInsufficientPermission
	}
	return id, nil
}

func (c *Core) denied(ctx context.Context, actorID, permission, target string) {
	details := map[string]string{"permission": permission}
	if target != "" {
		details["target"] = target
	}
	c.Audit.Record(ctx, domain.ActionPermissionDenied, actorID, details)
	slogx.FromContext(ctx).Warn("permission denied",
		slog.String("actor_id", actorID),
		slog.String("permission", permission),
	)
}

// permissionDenied is raised inside write transactions and audited once the
// transaction has ended.
type permissionDenied struct {
	permission string
	target     string
}

func (e *permissionDenied) Error() string { return ErrInsufficientPermission.Error() }
func (e *permissionDenied) Unwrap() error { return ErrInsufficientPermission }

// assignGuard requires actor to hold roles.assign.<role> for the target's
// current role and for every extra role.
func (c *Core) assignGuard(actor domain.Identity, roles ...string) identityGuard {
	return func(target domain.Identity) error {
		for _, r := range append([]string{target.Role}, roles...) {
			perm := domain.PermRolesAssignPrefix + r
			if !c.Authorizer.Can(&actor, perm) {
				return &permissionDenied{permission: perm, target: target.Username}
			}
		}
		return nil
	}
}

// auditDenial records a permissionDenied carried by err.
func (c *Core) auditDenial(ctx context.Context, actorID string, err error) error {
	var pd *permissionDenied
	if errors.As(err, &pd) {
		c.denied(ctx, actorID, pd.permission, pd.target)
		return ErrInsufficientPermission
	}
	return err
}

// ChangeRole sets targetUsername's role. The actor needs users.manage and
// the assign permission for both the current and the new role.
func (c *Core) ChangeRole(ctx context.Context, actorID, targetUsername, newRole string) (domain.Identity, error) {
	actor, err := c.actor(ctx, actorID, domain.PermUsersManage)
	if err != nil {
		return domain.Identity{}, err
	}

	var previous string
	guard := c.assignGuard(actor, newRole)
	updated, err := c.Credentials.setRole(ctx, targetUsername, newRole, actor.Username, func(target domain.Identity) error {
		previous = target.Role
		return guard(target)
	})
	if err != nil {
		return domain.Identity{}, c.auditDenial(ctx, actor.ID, err)
	}

	c.Audit.Record(ctx, domain.ActionRoleChanged, actor.ID, map[string]string{
		"target_id": updated.ID,
		"target":    updated.Username,
		"from":      previous,
		"to":        updated.Role,
	})
	return updated.Public(), nil
}

// Deactivate disables targetUsername.
func (c *Core) Deactivate(ctx context.Context, actorID, targetUsername string) error {
	actor, err := c.actor(ctx, actorID, domain.PermUsersManage)
	if err != nil {
		return err
	}

	var targetID string
	guard := c.assignGuard(actor)
	err = c.Credentials.deactivate(ctx, targetUsername, actor.Username, func(target domain.Identity) error {
		targetID = target.ID
		return guard(target)
	})
	if err != nil {
		return c.auditDenial(ctx, actor.ID, err)
	}

	c.Audit.Record(ctx, domain.ActionIdentityDeactivated, actor.ID, map[string]string{
		"target_id": targetID,
		"target":    targetUsername,
	})
	return nil
}

// Delete removes targetUsername.
func (c *Core) Delete(ctx context.Context, actorID, targetUsername string) error {
	actor, err := c.actor(ctx, actorID, domain.PermUsersManage)
	if err != nil {
		return err
	}

	var targetID string
	guard := c.assignGuard(actor)
	err = c.Credentials.delete(ctx, targetUsername, actor.Username, func(target domain.Identity) error {
		targetID = target.ID
		return guard(target)
	})
	if err != nil {
		return c.auditDenial(ctx, actor.ID, err)
	}

	c.Audit.Record(ctx, domain.ActionIdentityDeleted, actor.ID, map[string]string{
		"target_id": targetID,
		"target":    targetUsername,
	})
	return nil
}

// QueryAudit streams audit entries, newest first, for an actor holding
// audit.read.
func (c *Core) QueryAudit(ctx context.Context, actorID string, f domain.AuditFilter) (iter.Seq2[domain.AuditEntry, error], error) {
	if _, err := c.actor(ctx, actorID, domain.PermAuditRead); err != nil {
		return nil, err
	}
	return c.Audit.Query(ctx, f), nil
}

// HierarchyOrder returns role names by descending level.
func (c *Core) HierarchyOrder() []string {
	return c.Authorizer.HierarchyOrder()
}

// Roles returns every role definition in hierarchy order.
func (c *Core) Roles() []domain.RoleDefinition {
	return c.Authorizer.Roles()
}

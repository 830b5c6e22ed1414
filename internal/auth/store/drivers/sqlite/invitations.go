package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
)

type invitationsRepo struct {
	db DBTX
}

func (r *invitationsRepo) Create(ctx context.Context, inv domain.Invitation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (id, token_hash, invitee_email, inviter_id, role, expires_at, used, used_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.TokenHash, inv.InviteeEmail, inv.InviterID, inv.Role,
		inv.ExpiresAt.UTC(), inv.Used, mapStringNull(inv.UsedBy), inv.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *invitationsRepo) GetByTokenHash(ctx context.Context, hash string) (domain.Invitation, error) {
	var (
		inv    domain.Invitation
		usedBy sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, token_hash, invitee_email, inviter_id, role, expires_at, used, used_by, created_at
		 FROM invitations WHERE token_hash = ?`, hash,
	).Scan(&inv.ID, &inv.TokenHash, &inv.InviteeEmail, &inv.InviterID, &inv.Role,
		&inv.ExpiresAt, &inv.Used, &usedBy, &inv.CreatedAt)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	inv.UsedBy = mapNullString(usedBy)
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	return inv, nil
}

// MarkUsed is a conditional update; zero rows means the invitation was
// already used or never existed.
func (r *invitationsRepo) MarkUsed(ctx context.Context, id, usedBy string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET used = 1, used_by = ? WHERE id = ? AND used = 0`,
		mapStringNull(usedBy), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM invitations WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return mapNotFound(err)
	}
	return store.ErrConflict
}

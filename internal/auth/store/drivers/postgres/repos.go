package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
)

// Identities

type identitiesRepo struct {
	db DBTX
}

const identityColumns = `id, username, password_hash, role, mfa_secret, created_at, created_by, active`

func scanIdentity(row *sql.Row) (domain.Identity, error) {
	var (
		i         domain.Identity
		createdBy sql.NullString
	)
	if err := row.Scan(&i.ID, &i.Username, &i.PasswordHash, &i.Role, &i.MFASecret, &i.CreatedAt, &createdBy, &i.Active); err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	i.CreatedBy = createdBy.String
	i.CreatedAt = i.CreatedAt.UTC()
	return i, nil
}

func (r *identitiesRepo) Create(ctx context.Context, i domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		i.ID, i.Username, i.PasswordHash, i.Role, i.MFASecret, i.CreatedAt.UTC(), nullString(i.CreatedBy), i.Active,
	)
	return mapConstraint(err)
}

func (r *identitiesRepo) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	return scanIdentity(r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
}

func (r *identitiesRepo) GetByUsername(ctx context.Context, username string) (domain.Identity, error) {
	return scanIdentity(r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE username = $1`, username))
}

func (r *identitiesRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n)
	return n, err
}

func (r *identitiesRepo) UpdateRole(ctx context.Context, id, role string) error {
	return requireRow(r.db.ExecContext(ctx, `UPDATE identities SET role = $1 WHERE id = $2`, role, id))
}

func (r *identitiesRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return requireRow(r.db.ExecContext(ctx, `UPDATE identities SET password_hash = $1 WHERE id = $2`, hash, id))
}

func (r *identitiesRepo) Deactivate(ctx context.Context, id string) error {
	return requireRow(r.db.ExecContext(ctx, `UPDATE identities SET active = FALSE WHERE id = $1`, id))
}

func (r *identitiesRepo) Delete(ctx context.Context, id string) error {
	return requireRow(r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id))
}

// Invitations

type invitationsRepo struct {
	db DBTX
}

func (r *invitationsRepo) Create(ctx context.Context, inv domain.Invitation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (id, token_hash, invitee_email, inviter_id, role, expires_at, used, used_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.TokenHash, inv.InviteeEmail, inv.InviterID, inv.Role,
		inv.ExpiresAt.UTC(), inv.Used, nullString(inv.UsedBy), inv.CreatedAt.UTC(),
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
		 FROM invitations WHERE token_hash = $1`, hash,
	).Scan(&inv.ID, &inv.TokenHash, &inv.InviteeEmail, &inv.InviterID, &inv.Role,
		&inv.ExpiresAt, &inv.Used, &usedBy, &inv.CreatedAt)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	inv.UsedBy = usedBy.String
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	return inv, nil
}

func (r *invitationsRepo) MarkUsed(ctx context.Context, id, usedBy string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET used = TRUE, used_by = $1 WHERE id = $2 AND used = FALSE`,
		nullString(usedBy), id,
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
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM invitations WHERE id = $1`, id).Scan(&exists); err != nil {
		return mapNotFound(err)
	}
	return store.ErrConflict
}

// Recovery codes

type recoveryCodesRepo struct {
	db DBTX
}

func (r *recoveryCodesRepo) Create(ctx context.Context, identityID string, hashes []string) error {
	for _, h := range hashes {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO recovery_codes (identity_id, code_hash) VALUES ($1, $2)`, identityID, h)
		if err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *recoveryCodesRepo) Consume(ctx context.Context, identityID, hash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_codes WHERE identity_id = $1 AND code_hash = $2`, identityID, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *recoveryCodesRepo) Count(ctx context.Context, identityID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recovery_codes WHERE identity_id = $1`, identityID).Scan(&n)
	return n, err
}

// Audit entries

type auditRepo struct {
	db DBTX
}

func (r *auditRepo) Append(ctx context.Context, e domain.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	if e.Details == nil {
		details = []byte("{}")
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, ts, action, actor_id, details) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Timestamp.UTC(), e.Action, e.ActorID, string(details),
	)
	return mapConstraint(err)
}

// auditQuery builds the List statement. Split out so tests can assert on it.
func auditQuery(f domain.AuditFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if !f.Since.IsZero() {
		add("ts >= $%d", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		add("ts < $%d", f.Until.UTC())
	}
	if f.Before != "" {
		add("id < $%d", f.Before)
	}

	q := `SELECT id, ts, action, actor_id, details FROM audit_entries`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return q, args
}

func (r *auditRepo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	q, args := auditQuery(f)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e       domain.AuditEntry
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.ActorID, &details); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_entries WHERE ts < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
)

type identitiesRepo struct {
	db DBTX
}

const identityColumns = `id, username, password_hash, role, mfa_secret, created_at, created_by, active`

func scanIdentity(row interface{ Scan(...any) error }) (domain.Identity, error) {
	var (
		i         domain.Identity
		createdBy sql.NullString
	)
	err := row.Scan(&i.ID, &i.Username, &i.PasswordHash, &i.Role, &i.MFASecret, &i.CreatedAt, &createdBy, &i.Active)
	if err != nil {
		return domain.Identity{}, err
	}
	i.CreatedBy = mapNullString(createdBy)
	i.CreatedAt = i.CreatedAt.UTC()
	return i, nil
}

func (r *identitiesRepo) Create(ctx context.Context, i domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Username, i.PasswordHash, i.Role, i.MFASecret, i.CreatedAt.UTC(), mapStringNull(i.CreatedBy), i.Active,
	)
	return mapConstraint(err)
}

func (r *identitiesRepo) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	i, err := scanIdentity(row)
	return i, mapNotFound(err)
}

func (r *identitiesRepo) GetByUsername(ctx context.Context, username string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE username = ?`, username)
	i, err := scanIdentity(row)
	return i, mapNotFound(err)
}

func (r *identitiesRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n)
	return n, err
}

func (r *identitiesRepo) UpdateRole(ctx context.Context, id, role string) error {
	return requireRow(r.db.ExecContext(ctx, `UPDATE identities SET role = ? WHERE id = ?`, role, id))
}

func (r *identitiesRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return requireRow(r.db.ExecContext(ctx, `UPDATE identities SET password_hash = ? WHERE id = ?`, hash, id))
}

func (r *identitiesRepo) Deactivate(ctx context.Context, id string) error {
	return requireRow(r.db.ExecContext(ctx, `UPDATE identities SET active = 0 WHERE id = ?`, id))
}

func (r *identitiesRepo) Delete(ctx context.Context, id string) error {
	return requireRow(r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id))
}


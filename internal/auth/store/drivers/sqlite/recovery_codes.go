package sqlite

import (
	"context"

	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
)

type recoveryCodesRepo struct {
	db DBTX
}

func (r *recoveryCodesRepo) Create(ctx context.Context, identityID string, hashes []string) error {
	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM identities WHERE id = ?`, identityID).Scan(&exists); err != nil {
		return mapNotFound(err)
	}
	for _, h := range hashes {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO recovery_codes (identity_id, code_hash) VALUES (?, ?)`, identityID, h)
		if err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *recoveryCodesRepo) Consume(ctx context.Context, identityID, hash string) (bool, error) {
	err := requireRow(r.db.ExecContext(ctx,
		`DELETE FROM recovery_codes WHERE identity_id = ? AND code_hash = ?`, identityID, hash))
	if err == store.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *recoveryCodesRepo) Count(ctx context.Context, identityID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recovery_codes WHERE identity_id = ?`, identityID).Scan(&n)
	return n, err
}

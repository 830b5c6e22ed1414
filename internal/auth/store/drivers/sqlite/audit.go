package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
)

type auditRepo struct {
	db DBTX
}

func (r *auditRepo) Append(ctx context.Context, e domain.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, ts, action, actor_id, details) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UnixNano(), e.Action, e.ActorID, string(details),
	)
	return mapConstraint(err)
}

func (r *auditRepo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if !f.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		where = append(where, "ts < ?")
		args = append(args, f.Until.UnixNano())
	}
	if f.Before != "" {
		where = append(where, "id < ?")
		args = append(args, f.Before)
	}

	q := `SELECT id, ts, action, actor_id, details FROM audit_entries`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e       domain.AuditEntry
			ts      int64
			details string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Action, &e.ActorID, &details); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_entries WHERE ts < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

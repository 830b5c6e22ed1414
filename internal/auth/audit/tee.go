package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
)

// TeeSink writes to a primary sink and then to every mirror. Only the
// primary is authoritative: mirror errors are logged and dropped, and reads
// go to the primary alone.
type TeeSink struct {
	primary Sink
	mirrors []Writer
}

func Tee(primary Sink, mirrors ...Writer) *TeeSink {
	return &TeeSink{primary: primary, mirrors: mirrors}
}

func (t *TeeSink) Write(ctx context.Context, e domain.AuditEntry) error {
	if err := t.primary.Write(ctx, e); err != nil {
		return err
	}
	for _, m := range t.mirrors {
		if err := m.Write(ctx, e); err != nil {
			slogx.FromContext(ctx).WarnContext(ctx, "audit mirror write failed",
				slog.String("audit_id", e.ID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (t *TeeSink) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	return t.primary.List(ctx, f)
}

func (t *TeeSink) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	p, ok := t.primary.(Pruner)
	if !ok {
		return 0, ErrPruneUnsupported
	}
	return p.Prune(ctx, cutoff)
}

package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
)

// AuditSink adapts a Store to the audit package's Sink interface.
type AuditSink struct {
	Store Store
}

// NewAuditSink returns a sink that persists entries through st.
func NewAuditSink(st Store) *AuditSink {
	return &AuditSink{Store: st}
}

func (a *AuditSink) Write(ctx context.Context, e domain.AuditEntry) error {
	return a.Store.AuditEntries().Append(ctx, e)
}

func (a *AuditSink) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	return a.Store.AuditEntries().List(ctx, f)
}

func (a *AuditSink) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return a.Store.AuditEntries().DeleteBefore(ctx, cutoff)
}

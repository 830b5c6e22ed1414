// Package audit records security-relevant events. Entries are append-only;
// the Recorder bounds every write with a timeout so a stalled sink never
// wedges the caller.
package audit

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/pkg/idx"
)

var (
	// ErrAuditWriteTimeout is returned by Append when the sink does not
	// acknowledge a write within the configured timeout.
	ErrAuditWriteTimeout = errors.New("audit write timeout")

	// ErrPruneUnsupported is returned by Prune when the sink cannot delete.
	ErrPruneUnsupported = errors.New("audit sink does not support pruning")
)

const (
	DefaultWriteTimeout = 2 * time.Second
	DefaultPageSize     = 100
)

// Writer accepts entries. Mirrors such as AMQPPublisher only write.
type Writer interface {
	Write(ctx context.Context, e domain.AuditEntry) error
}

// Sink is durable audit storage.
type Sink interface {
	Writer
	// List returns entries matching f, newest first.
	List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error)
}

// Pruner is implemented by sinks that support retention.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type Recorder struct {
	sink     Sink
	timeout  time.Duration
	pageSize int
	fallback *slog.Logger
	now      func() time.Time

	failures atomic.Uint64
}

type Option func(*Recorder)

// WithTimeout bounds each sink write. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithFallback sets the logger that receives entries Record could not write.
func WithFallback(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.fallback = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithPageSize sets how many entries Query fetches per sink call.
func WithPageSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

func NewRecorder(sink Sink, opts ...Option) *Recorder {
	r := &Recorder{
		sink:     sink,
		timeout:  DefaultWriteTimeout,
		pageSize: DefaultPageSize,
		fallback: slog.Default().With("component", "audit_fallback"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append writes a new entry and returns it. If the sink does not finish
// within the timeout, Append returns ErrAuditWriteTimeout; the write may
// still land later.
func (r *Recorder) Append(ctx context.Context, action, actorID string, details map[string]string) (domain.AuditEntry, error) {
	ts := r.now().UTC()
	e := domain.AuditEntry{
		ID:        idx.NewAt(ts).String(),
		Timestamp: ts,
		Action:    action,
		ActorID:   actorID,
		Details:   maps.Clone(details),
	}

	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.sink.Write(wctx, e)
	}()

	select {
	case err := <-done:
		if err != nil {
			return domain.AuditEntry{}, err
		}
		return e, nil
	case <-wctx.Done():
		if ctx.Err() != nil {
			return domain.AuditEntry{}, ctx.Err()
		}
		return domain.AuditEntry{}, ErrAuditWriteTimeout
	}
}

// Record is Append for callers that must not fail because of auditing. A
// failed write is logged to the fallback logger and counted.
func (r *Recorder) Record(ctx context.Context, action, actorID string, details map[string]string) {
	if _, err := r.Append(ctx, action, actorID, details); err != nil {
		r.failures.Add(1)

		attrs := []any{
			slog.String("action", action),
			slog.String("actor_id", actorID),
			slog.Any("details", details),
			slog.Any("error", err),
		}
		r.fallback.ErrorContext(ctx, "audit write failed", attrs...)
	}
}

// Failures returns the number of entries Record could not write.
func (r *Recorder) Failures() uint64 {
	return r.failures.Load()
}

// Query returns entries matching f, newest first. The sequence fetches pages
// lazily and every iteration starts again from the newest entry. f.Limit caps
// the total number of entries yielded.
func (r *Recorder) Query(ctx context.Context, f domain.AuditFilter) iter.Seq2[domain.AuditEntry, error] {
	return func(yield func(domain.AuditEntry, error) bool) {
		remaining := f.Limit
		page := f

		for {
			page.Limit = r.pageSize
			if remaining > 0 && remaining < page.Limit {
				page.Limit = remaining
			}

			entries, err := r.sink.List(ctx, page)
			if err != nil {
				yield(domain.AuditEntry{}, err)
				return
			}
			for _, e := range entries {
				if !yield(e, nil) {
					return
				}
			}

			if remaining > 0 {
				remaining -= len(entries)
				if remaining <= 0 {
					return
				}
			}
			if len(entries) < page.Limit {
				return
			}
			page.Before = entries[len(entries)-1].ID
		}
	}
}

// Prune deletes entries older than cutoff when the sink supports it.
func (r *Recorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	p, ok := r.sink.(Pruner)
	if !ok {
		return 0, ErrPruneUnsupported
	}
	return p.Prune(ctx, cutoff)
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[domain.AuditEntry, error]) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

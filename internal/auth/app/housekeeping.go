package app

import (
	"context"
	"log/slog"
	"time"
)

// AuditPruner deletes audit entries older than a cutoff.
type AuditPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// HousekeepingService periodically rotates the audit trail by deleting
// entries older than Retention. A zero Retention disables pruning. It is an
// operational collaborator of the application; the service package itself
// never removes audit entries and runs no timers.
type HousekeepingService struct {
	Audit     AuditPruner
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(audit AuditPruner, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Audit:     audit,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started",
		"interval", s.Interval,
		"audit_retention", s.Retention,
	)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup prunes expired audit entries. Errors are logged and retried on the
// next tick.
func (s *HousekeepingService) cleanup() {
	if s.Retention <= 0 {
		return
	}

	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-s.Retention)

	n, err := s.Audit.Prune(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to prune audit entries", "error", err)
		return
	}
	s.Logger.Info("housekeeping cleanup completed",
		"audit_entries_pruned", n,
		"cutoff", cutoff,
	)
}

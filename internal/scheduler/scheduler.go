package scheduler

import (
	"context"
	"log/slog"
	"time"

	"transcript_sync/internal/domain"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Name() string
	Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncReport, error)
}

// Scheduler runs an incremental sync of every syncer, one after another,
// on a fixed interval.
type Scheduler struct {
	syncers    []Syncer
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(syncers []Syncer, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncers:    syncers,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "sources", len(s.syncers))

	s.runAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	for _, syncer := range s.syncers {
		if ctx.Err() != nil {
			return
		}
		s.runSync(ctx, syncer)
	}
}

func (s *Scheduler) runSync(ctx context.Context, syncer Syncer) {
	syncCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	// No one is at the terminal to confirm an initial sync.
	report, err := syncer.Sync(syncCtx, domain.SyncOptions{Yes: true})
	if err != nil {
		s.logger.Error("sync failed", "source", syncer.Name(), "error", err)
		return
	}

	s.logger.Info("scheduled sync finished",
		"source", syncer.Name(),
		"mode", report.Mode,
		"synced", report.Synced,
		"failed", report.Failed,
	)
}

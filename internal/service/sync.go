package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"transcript_sync/internal/domain"
)

type SyncService struct {
	source      Source
	transcripts TranscriptStore
	state       StateStore
	runs        RunLedger
	publisher   Publisher
	decider     Decider
	logger      *slog.Logger
	export      io.Writer
	now         func() time.Time
}

func NewSyncService(
	source Source,
	transcripts TranscriptStore,
	state StateStore,
	runs RunLedger,
	publisher Publisher,
	decider Decider,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		source:      source,
		transcripts: transcripts,
		state:       state,
		runs:        runs,
		publisher:   publisher,
		decider:     decider,
		logger:      logger.With("source", source.Name()),
		export:      os.Stdout,
		now:         time.Now,
	}
}

// Name returns the name of the source this service syncs.
func (s *SyncService) Name() string {
	return s.source.Name()
}

// Sync runs an initial or incremental sync depending on the stored cursor.
func (s *SyncService) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncReport, error) {
	startTime := s.now()
	source := s.source.Name()

	previous, err := s.loadCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	mode := domain.SyncModeIncremental
	since := previous
	if opts.Full || previous == nil {
		mode = domain.SyncModeInitial
		since = nil
	}

	s.logger.Info("starting sync", "mode", mode, "dry_run", opts.DryRun)

	remote, err := s.source.ListRemote(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list remote: %w", err)
	}

	toFetch, alreadyLocal, err := s.diff(ctx, remote)
	if err != nil {
		return nil, fmt.Errorf("diff against local store: %w", err)
	}

	report := &domain.SyncReport{
		Source:       source,
		Mode:         mode,
		RemoteTotal:  len(remote),
		AlreadyLocal: alreadyLocal,
		DryRun:       opts.DryRun,
	}

	s.logger.Info("compared remote listing",
		"remote_total", report.RemoteTotal,
		"already_local", alreadyLocal,
		"new", len(toFetch),
	)

	if opts.DryRun {
		report.ToFetch = toFetch
		report.Skipped = len(toFetch)
		report.Duration = s.now().Sub(startTime)
		return report, nil
	}

	if len(toFetch) == 0 {
		run, err := s.recordRun(ctx, mode, report.RemoteTotal, alreadyLocal)
		if err != nil {
			return nil, err
		}
		report.RunID = run.ID
		if err := s.advanceCursor(ctx, previous); err != nil {
			return report, fmt.Errorf("advance cursor: %w", err)
		}
		report.Duration = s.now().Sub(startTime)
		return report, nil
	}

	if mode == domain.SyncModeInitial && !opts.Yes {
		proceed, err := s.decider.ConfirmInitialSync(ctx, source, len(toFetch))
		if err != nil {
			return nil, fmt.Errorf("confirm initial sync: %w", err)
		}
		if !proceed {
			s.logger.Info("initial sync declined", "pending", len(toFetch))
			run, err := s.recordRun(ctx, mode, report.RemoteTotal, len(toFetch))
			if err != nil {
				return nil, err
			}
			report.RunID = run.ID
			report.Declined = true
			report.Skipped = len(toFetch)
			report.Duration = s.now().Sub(startTime)
			return report, nil
		}
	}

	runID, err := s.runs.Start(ctx, source, mode)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	report.RunID = runID

	result := s.fetchAndStore(ctx, toFetch)
	report.Synced = result.synced
	report.Failed = result.failed
	report.Published = result.published

	// Bookkeeping must land even when the caller's context was cancelled
	// between items.
	finalizeCtx := context.WithoutCancel(ctx)
	if err := s.completeRun(finalizeCtx, &domain.SyncRun{
		ID:          runID,
		Mode:        mode,
		RemoteTotal: report.RemoteTotal,
		Synced:      result.synced,
		Skipped:     alreadyLocal,
		Errors:      result.failed,
		Status:      domain.FinalStatus(result.synced, result.failed),
	}); err != nil {
		return report, err
	}
	report.Duration = s.now().Sub(startTime)

	if result.interrupted != nil {
		report.Skipped = len(toFetch) - result.attempted
		return report, fmt.Errorf("sync interrupted: %w", result.interrupted)
	}

	if err := s.advanceCursor(finalizeCtx, previous); err != nil {
		return report, fmt.Errorf("advance cursor: %w", err)
	}

	s.logger.Info("sync completed",
		"mode", mode,
		"synced", report.Synced,
		"failed", report.Failed,
		"already_local", report.AlreadyLocal,
		"published", report.Published,
		"duration", report.Duration,
	)

	return report, nil
}

func (s *SyncService) diff(ctx context.Context, remote []domain.RemoteTranscript) ([]domain.RemoteTranscript, int, error) {
	var toFetch []domain.RemoteTranscript
	alreadyLocal := 0
	for _, rt := range remote {
		exists, err := s.transcripts.Exists(ctx, rt.ID)
		if err != nil {
			return nil, 0, err
		}
		if exists {
			alreadyLocal++
			continue
		}
		toFetch = append(toFetch, rt)
	}
	return toFetch, alreadyLocal, nil
}

type fetchResult struct {
	attempted   int
	synced      int
	failed      int
	published   int
	interrupted error
}

// fetchAndStore fetches and upserts each entry in order. Per-item failures
// are counted and never abort the loop. Cancellation is only honoured
// between items: an item that has started runs to completion, bounded by
// the connector's HTTP timeout.
func (s *SyncService) fetchAndStore(ctx context.Context, entries []domain.RemoteTranscript) fetchResult {
	var res fetchResult
	total := len(entries)
	itemCtx := context.WithoutCancel(ctx)

	for i, rt := range entries {
		if err := ctx.Err(); err != nil {
			res.interrupted = err
			s.logger.Warn("stopping before next item", "remaining", total-i, "error", err)
			break
		}
		res.attempted++

		progress := fmt.Sprintf("%d/%d", i+1, total)

		transcript, err := s.source.FetchOne(itemCtx, rt.ID)
		if err != nil {
			res.failed++
			s.logger.Warn("failed to fetch transcript",
				"progress", progress,
				"id", rt.ID,
				"title", rt.Title,
				"error", err,
			)
			continue
		}

		if err := s.transcripts.Upsert(itemCtx, transcript); err != nil {
			res.failed++
			s.logger.Warn("failed to store transcript",
				"progress", progress,
				"id", rt.ID,
				"title", rt.Title,
				"error", err,
			)
			continue
		}
		res.synced++

		s.logger.Info("synced transcript",
			"progress", progress,
			"id", rt.ID,
			"title", rt.Title,
			"date", domain.FormatDate(rt.Date),
			"segments", len(transcript.Segments),
			"action_items", len(transcript.ActionItems),
		)

		if s.publish(itemCtx, domain.TranscriptEvent{
			Action:       domain.EventSynced,
			Source:       transcript.Source,
			TranscriptID: transcript.ID,
			Title:        transcript.Title,
			Date:         transcript.Date,
		}) {
			res.published++
		}
	}

	return res
}

func (s *SyncService) publish(ctx context.Context, event domain.TranscriptEvent) bool {
	if s.publisher == nil {
		return false
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			"action", event.Action,
			"id", event.TranscriptID,
			"error", err,
		)
		return false
	}
	return true
}

func (s *SyncService) loadCursor(ctx context.Context) (*time.Time, error) {
	value, ok, err := s.state.Get(ctx, domain.CursorKey(s.source.Name()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	cursor, err := domain.ParseDate(value)
	if err != nil {
		s.logger.Warn("ignoring unparseable cursor", "value", value, "error", err)
		return nil, nil
	}
	return &cursor, nil
}

// advanceCursor moves the cursor to now. It never moves it backwards.
func (s *SyncService) advanceCursor(ctx context.Context, previous *time.Time) error {
	now := s.now().UTC().Truncate(time.Second)
	if previous != nil && previous.After(now) {
		s.logger.Warn("stored cursor is ahead of clock, keeping it",
			"cursor", domain.FormatDate(*previous),
			"now", domain.FormatDate(now),
		)
		return nil
	}
	return s.state.Set(ctx, domain.CursorKey(s.source.Name()), domain.FormatDate(now))
}

// recordRun opens and immediately closes a run for outcomes that did no
// per-item work.
func (s *SyncService) recordRun(ctx context.Context, mode domain.SyncMode, remoteTotal, skipped int) (*domain.SyncRun, error) {
	runID, err := s.runs.Start(ctx, s.source.Name(), mode)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	run := &domain.SyncRun{
		ID:          runID,
		Mode:        mode,
		RemoteTotal: remoteTotal,
		Skipped:     skipped,
		Status:      domain.RunStatusCompleted,
	}
	if err := s.completeRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SyncService) completeRun(ctx context.Context, run *domain.SyncRun) error {
	completedAt := s.now().UTC()
	run.Source = s.source.Name()
	run.CompletedAt = &completedAt
	if err := s.runs.Complete(ctx, run); err != nil {
		return fmt.Errorf("complete run %d: %w", run.ID, err)
	}
	return nil
}

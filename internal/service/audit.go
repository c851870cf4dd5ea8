package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"transcript_sync/internal/domain"
)

// Audit compares the complete remote listing against every locally stored
// transcript of the source and applies at most one remediation.
func (s *SyncService) Audit(ctx context.Context, opts domain.SyncOptions) (*domain.AuditReport, error) {
	source := s.source.Name()
	s.logger.Info("starting audit", "dry_run", opts.DryRun)

	remote, err := s.source.ListRemote(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list remote: %w", err)
	}

	localIDs, err := s.transcripts.LocalIDs(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("list local ids: %w", err)
	}

	report := Reconcile(source, remote, localIDs)
	report.DryRun = opts.DryRun

	s.logger.Info("audit compared",
		"remote_total", report.RemoteTotal,
		"local_total", report.LocalTotal,
		"missing_locally", len(report.MissingLocally),
		"orphaned_locally", len(report.OrphanedLocally),
	)

	if opts.DryRun {
		return report, nil
	}

	if report.InSync() {
		run, err := s.recordRun(ctx, domain.SyncModeAudit, report.RemoteTotal, report.LocalTotal)
		if err != nil {
			return nil, err
		}
		report.RunID = run.ID
		return report, nil
	}

	options := DispositionOptions(report)
	choice, err := s.decider.ChooseDisposition(ctx, report, options)
	if err != nil {
		return nil, fmt.Errorf("choose disposition: %w", err)
	}
	if !slices.Contains(options, choice) {
		s.logger.Warn("disposition not applicable, taking no action", "disposition", choice)
		choice = domain.DispositionNone
	}
	report.Disposition = choice

	runID, err := s.runs.Start(ctx, source, domain.SyncModeAudit)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	report.RunID = runID

	run := &domain.SyncRun{
		ID:          runID,
		Mode:        domain.SyncModeAudit,
		RemoteTotal: report.RemoteTotal,
		Skipped:     report.LocalTotal,
		Status:      domain.RunStatusCompleted,
	}

	var actionErr error
	switch choice {
	case domain.DispositionSyncMissing:
		result := s.fetchAndStore(ctx, report.MissingLocally)
		report.Synced = result.synced
		report.Failed = result.failed
		run.Synced = result.synced
		run.Errors = result.failed
		run.Status = domain.FinalStatus(result.synced, result.failed)
		if result.interrupted != nil {
			actionErr = fmt.Errorf("audit sync interrupted: %w", result.interrupted)
		}
	case domain.DispositionDeleteOrphans:
		deleted, failed, interrupted := s.deleteOrphans(ctx, report.OrphanedLocally)
		report.Deleted, report.Failed = deleted, failed
		run.Errors = failed
		run.Status = domain.FinalStatus(deleted, failed)
		if interrupted != nil {
			actionErr = fmt.Errorf("audit delete interrupted: %w", interrupted)
		}
	case domain.DispositionExport:
		if err := s.exportReport(report); err != nil {
			actionErr = fmt.Errorf("export audit: %w", err)
		}
	default:
		s.logger.Info("no changes made")
	}

	if err := s.completeRun(context.WithoutCancel(ctx), run); err != nil {
		return report, err
	}

	s.logger.Info("audit completed",
		"disposition", choice,
		"synced", report.Synced,
		"deleted", report.Deleted,
		"failed", report.Failed,
	)

	return report, actionErr
}

// Reconcile computes the two discrepancy sets between a remote listing and
// the local ids of one source. Missing entries keep listing order; orphaned
// ids are sorted.
func Reconcile(source string, remote []domain.RemoteTranscript, localIDs map[string]struct{}) *domain.AuditReport {
	remoteIDs := make(map[string]struct{}, len(remote))
	missing := make([]domain.RemoteTranscript, 0)
	for _, rt := range remote {
		if _, dup := remoteIDs[rt.ID]; dup {
			continue
		}
		remoteIDs[rt.ID] = struct{}{}
		if _, ok := localIDs[rt.ID]; !ok {
			missing = append(missing, rt)
		}
	}

	orphaned := make([]string, 0)
	for id := range localIDs {
		if _, ok := remoteIDs[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	slices.Sort(orphaned)

	return &domain.AuditReport{
		Source:          source,
		RemoteTotal:     len(remote),
		LocalTotal:      len(localIDs),
		MissingLocally:  missing,
		OrphanedLocally: orphaned,
		Disposition:     domain.DispositionNone,
	}
}

// DispositionOptions lists the remediations that make sense for a report.
func DispositionOptions(report *domain.AuditReport) []domain.Disposition {
	var options []domain.Disposition
	if len(report.MissingLocally) > 0 {
		options = append(options, domain.DispositionSyncMissing)
	}
	if len(report.OrphanedLocally) > 0 {
		options = append(options, domain.DispositionDeleteOrphans)
	}
	return append(options, domain.DispositionExport, domain.DispositionNone)
}

// deleteOrphans removes ids one at a time, stopping between items once ctx
// is cancelled.
func (s *SyncService) deleteOrphans(ctx context.Context, ids []string) (deleted, failed int, interrupted error) {
	itemCtx := context.WithoutCancel(ctx)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("stopping before next delete", "remaining", len(ids)-i, "error", err)
			return deleted, failed, err
		}
		ok, err := s.transcripts.Delete(itemCtx, id)
		if err != nil {
			failed++
			s.logger.Warn("failed to delete orphan", "id", id, "error", err)
			continue
		}
		if !ok {
			s.logger.Warn("orphan not found during delete", "id", id)
			continue
		}
		deleted++
		s.publish(itemCtx, domain.TranscriptEvent{
			Action:       domain.EventDeleted,
			Source:       s.source.Name(),
			TranscriptID: id,
		})
	}
	return deleted, failed, nil
}

type auditExport struct {
	Source          string            `json:"source"`
	RemoteTotal     int               `json:"remote_total"`
	LocalTotal      int               `json:"local_total"`
	MissingLocally  []exportedListing `json:"missing_locally"`
	OrphanedLocally []string          `json:"orphaned_locally"`
}

type exportedListing struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

func (s *SyncService) exportReport(report *domain.AuditReport) error {
	export := auditExport{
		Source:          report.Source,
		RemoteTotal:     report.RemoteTotal,
		LocalTotal:      report.LocalTotal,
		MissingLocally:  make([]exportedListing, 0, len(report.MissingLocally)),
		OrphanedLocally: report.OrphanedLocally,
	}
	for _, rt := range report.MissingLocally {
		export.MissingLocally = append(export.MissingLocally, exportedListing{
			ID:    rt.ID,
			Title: rt.Title,
			Date:  domain.FormatDate(rt.Date),
		})
	}

	enc := json.NewEncoder(s.export)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}

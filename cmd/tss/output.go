package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"transcript_sync/internal/domain"
)

// renderSyncReport prints JSON to stdout, or a human summary to stderr so
// stdout stays clean for piping.
func renderSyncReport(stdout, stderr io.Writer, r *domain.SyncReport, asJSON bool) error {
	if asJSON {
		return writeJSON(stdout, r)
	}

	fmt.Fprintf(stderr, "%s %s sync: %d remote, %d already local\n", r.Source, r.Mode, r.RemoteTotal, r.AlreadyLocal)

	switch {
	case r.DryRun:
		fmt.Fprintf(stderr, "[dry-run] Would sync %d transcripts\n", len(r.ToFetch))
		for _, rt := range r.ToFetch {
			fmt.Fprintf(stderr, "  %s  %s  %s\n", domain.FormatDate(rt.Date), rt.ID, rt.Title)
		}
	case r.Declined:
		fmt.Fprintf(stderr, "Cancelled. %d transcripts not downloaded.\n", r.Skipped)
	default:
		fmt.Fprintf(stderr, "Synced %d, failed %d, skipped %d in %s\n", r.Synced, r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
	}
	return nil
}

// renderAuditReport keeps stdout to a single JSON document: after an export
// the exported discrepancies already occupy it.
func renderAuditReport(stdout, stderr io.Writer, r *domain.AuditReport, asJSON bool) error {
	if asJSON {
		if r.Disposition == domain.DispositionExport && !r.DryRun {
			return nil
		}
		return writeJSON(stdout, r)
	}

	fmt.Fprintf(stderr, "Remote: %d transcripts\n", r.RemoteTotal)
	fmt.Fprintf(stderr, "Local:  %d transcripts (source=%s)\n", r.LocalTotal, r.Source)

	if r.InSync() {
		fmt.Fprintln(stderr, "No discrepancies found. Local and remote are in sync.")
		return nil
	}

	fmt.Fprintf(stderr, "Missing locally (%d):\n", len(r.MissingLocally))
	for _, rt := range r.MissingLocally {
		fmt.Fprintf(stderr, "  %s  %s  %s\n", domain.FormatDate(rt.Date), rt.ID, rt.Title)
	}
	fmt.Fprintf(stderr, "Orphaned locally (%d):\n", len(r.OrphanedLocally))
	for _, id := range r.OrphanedLocally {
		fmt.Fprintf(stderr, "  %s\n", id)
	}

	switch {
	case r.DryRun:
		fmt.Fprintln(stderr, "[dry-run] No changes made.")
	case r.Disposition == domain.DispositionSyncMissing:
		fmt.Fprintf(stderr, "Synced %d missing transcripts, %d failed.\n", r.Synced, r.Failed)
	case r.Disposition == domain.DispositionDeleteOrphans:
		fmt.Fprintf(stderr, "Deleted %d orphaned transcripts, %d failed.\n", r.Deleted, r.Failed)
	case r.Disposition == domain.DispositionExport:
		fmt.Fprintln(stderr, "Exported discrepancies to stdout.")
	default:
		fmt.Fprintln(stderr, "No changes made.")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

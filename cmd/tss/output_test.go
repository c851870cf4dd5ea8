package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript_sync/internal/domain"
)

func TestRenderSyncReport_Text(t *testing.T) {
	var stdout, stderr bytes.Buffer
	report := &domain.SyncReport{
		Source:       "fireflies",
		Mode:         domain.SyncModeIncremental,
		RemoteTotal:  5,
		AlreadyLocal: 2,
		Synced:       2,
		Failed:       1,
		Duration:     1500 * time.Millisecond,
	}

	require.NoError(t, renderSyncReport(&stdout, &stderr, report, false))

	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "fireflies incremental sync: 5 remote, 2 already local")
	assert.Contains(t, stderr.String(), "Synced 2, failed 1, skipped 0 in 1.5s")
}

func TestRenderSyncReport_DryRunListsPending(t *testing.T) {
	var stdout, stderr bytes.Buffer
	report := &domain.SyncReport{
		Source: "pocket",
		Mode:   domain.SyncModeInitial,
		DryRun: true,
		ToFetch: []domain.RemoteTranscript{
			{ID: "r1", Title: "Standup", Date: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)},
		},
	}

	require.NoError(t, renderSyncReport(&stdout, &stderr, report, false))

	assert.Contains(t, stderr.String(), "[dry-run] Would sync 1 transcripts")
	assert.Contains(t, stderr.String(), "2026-01-05T09:00:00Z  r1  Standup")
}

func TestRenderSyncReport_JSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	report := &domain.SyncReport{Source: "pocket", Mode: domain.SyncModeInitial, Synced: 3}

	require.NoError(t, renderSyncReport(&stdout, &stderr, report, true))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	assert.Equal(t, "pocket", decoded["source"])
	assert.Equal(t, float64(3), decoded["synced"])
	assert.Empty(t, stderr.String())
}

func TestRenderAuditReport(t *testing.T) {
	tests := []struct {
		name     string
		report   *domain.AuditReport
		contains []string
	}{
		{
			name:     "in sync",
			report:   &domain.AuditReport{Source: "fireflies", RemoteTotal: 2, LocalTotal: 2},
			contains: []string{"No discrepancies found"},
		},
		{
			name: "deleted orphans",
			report: &domain.AuditReport{
				Source:          "fireflies",
				OrphanedLocally: []string{"z"},
				Disposition:     domain.DispositionDeleteOrphans,
				Deleted:         1,
			},
			contains: []string{"Orphaned locally (1):", "  z", "Deleted 1 orphaned transcripts, 0 failed."},
		},
		{
			name: "dry run",
			report: &domain.AuditReport{
				Source:         "pocket",
				MissingLocally: []domain.RemoteTranscript{{ID: "x", Title: "Call"}},
				DryRun:         true,
			},
			contains: []string{"Missing locally (1):", "x  Call", "[dry-run] No changes made."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			require.NoError(t, renderAuditReport(&stdout, &stderr, tt.report, false))
			for _, want := range tt.contains {
				assert.Contains(t, stderr.String(), want)
			}
		})
	}
}

func TestRenderAuditReport_JSONAfterExportLeavesStdoutToExport(t *testing.T) {
	var stdout, stderr bytes.Buffer
	report := &domain.AuditReport{
		Source:          "fireflies",
		OrphanedLocally: []string{"z"},
		Disposition:     domain.DispositionExport,
	}

	require.NoError(t, renderAuditReport(&stdout, &stderr, report, true))

	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRenderAuditReport_JSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	report := &domain.AuditReport{
		Source:          "pocket",
		OrphanedLocally: []string{"z"},
		Disposition:     domain.DispositionDeleteOrphans,
		Deleted:         1,
	}

	require.NoError(t, renderAuditReport(&stdout, &stderr, report, true))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	assert.Equal(t, "delete_orphans", decoded["disposition"])
	assert.Equal(t, float64(1), decoded["deleted"])
}

func TestRenderRuns(t *testing.T) {
	var buf bytes.Buffer
	runs := []domain.SyncRun{
		{ID: 4, Mode: domain.SyncModeAudit, StartedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), Status: domain.RunStatusCompleted, RemoteTotal: 9, Synced: 1},
	}

	require.NoError(t, renderRuns(&buf, runs))

	assert.Contains(t, buf.String(), "STATUS")
	assert.Contains(t, buf.String(), "2026-03-01T08:00:00Z")
	assert.Contains(t, buf.String(), "completed")
}

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()
	assert.True(t, setupLogger("debug", "").Enabled(ctx, slog.LevelDebug))
	assert.False(t, setupLogger("error", "").Enabled(ctx, slog.LevelInfo))
	assert.True(t, setupLogger("bogus", "").Enabled(ctx, slog.LevelInfo))
}

func TestSetupLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tss.log")

	setupLogger("info", path).Info("hello", "source", "pocket")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"source":"pocket"`)
}

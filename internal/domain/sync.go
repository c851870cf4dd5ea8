package domain

import (
	"fmt"
	"time"
)

type SyncMode string

const (
	SyncModeInitial     SyncMode = "initial"
	SyncModeIncremental SyncMode = "incremental"
	SyncModeAudit       SyncMode = "audit"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// FinalStatus reports a run as failed only when nothing succeeded and
// something went wrong. Partial failures stay visible via the error count.
func FinalStatus(succeeded, errors int) RunStatus {
	if succeeded == 0 && errors > 0 {
		return RunStatusFailed
	}
	return RunStatusCompleted
}

// SyncRun is one entry of the append-only run ledger.
type SyncRun struct {
	ID          int64      `db:"id" json:"id"`
	Source      string     `db:"source" json:"source"`
	Mode        SyncMode   `db:"mode" json:"mode"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	RemoteTotal int        `db:"remote_total" json:"remote_total"`
	Synced      int        `db:"synced" json:"synced"`
	Skipped     int        `db:"skipped" json:"skipped"`
	Errors      int        `db:"errors" json:"errors"`
	Status      RunStatus  `db:"status" json:"status"`
}

// CursorKey is the sync_state key holding a source's last successful sync time.
func CursorKey(source string) string {
	return fmt.Sprintf("%s.last_sync_at", source)
}

// SyncOptions controls a single sync or audit invocation.
type SyncOptions struct {
	// Full forces an initial-mode re-scan even when a cursor exists.
	Full   bool
	Yes    bool
	DryRun bool
}

// SyncReport holds the outcome of an initial or incremental sync.
type SyncReport struct {
	Source       string             `json:"source"`
	Mode         SyncMode           `json:"mode"`
	RunID        int64              `json:"run_id,omitempty"`
	RemoteTotal  int                `json:"remote_total"`
	AlreadyLocal int                `json:"already_local"`
	Synced       int                `json:"synced"`
	Skipped      int                `json:"skipped"`
	Failed       int                `json:"failed"`
	Published    int                `json:"published"`
	DryRun       bool               `json:"dry_run,omitempty"`
	Declined     bool               `json:"declined,omitempty"`
	ToFetch      []RemoteTranscript `json:"to_fetch,omitempty"`
	Duration     time.Duration      `json:"duration"`
}

// Disposition is the single remediation chosen after an audit.
type Disposition string

const (
	DispositionNone          Disposition = "none"
	DispositionSyncMissing   Disposition = "sync_missing"
	DispositionDeleteOrphans Disposition = "delete_orphans"
	DispositionExport        Disposition = "export"
)

// AuditReport holds the outcome of a full reconciliation.
type AuditReport struct {
	Source          string             `json:"source"`
	RunID           int64              `json:"run_id,omitempty"`
	RemoteTotal     int                `json:"remote_total"`
	LocalTotal      int                `json:"local_total"`
	MissingLocally  []RemoteTranscript `json:"missing_locally"`
	OrphanedLocally []string           `json:"orphaned_locally"`
	Disposition     Disposition        `json:"disposition"`
	Synced          int                `json:"synced"`
	Deleted         int                `json:"deleted"`
	Failed          int                `json:"failed"`
	DryRun          bool               `json:"dry_run,omitempty"`
}

// InSync reports whether the audit found no discrepancies.
func (r *AuditReport) InSync() bool {
	return len(r.MissingLocally) == 0 && len(r.OrphanedLocally) == 0
}

// TranscriptEvent is published after a transcript is stored or removed.
type TranscriptEvent struct {
	Action       string    `json:"action"`
	Source       string    `json:"source"`
	TranscriptID string    `json:"transcript_id"`
	Title        string    `json:"title,omitempty"`
	Date         time.Time `json:"date,omitzero"`
}

const (
	EventSynced  = "synced"
	EventDeleted = "deleted"
)

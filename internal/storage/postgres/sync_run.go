package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"transcript_sync/internal/domain"
)

// RunStore is the append-only ledger of sync runs.
type RunStore struct {
	db *sqlx.DB
}

func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

// Start records a new run in the running state and returns its id.
func (s *RunStore) Start(ctx context.Context, source string, mode domain.SyncMode) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &id, `
		INSERT INTO sync_runs (source, mode, status)
		VALUES ($1, $2, $3)
		RETURNING id`,
		source, mode, domain.RunStatusRunning,
	)
	if err != nil {
		return 0, domain.NewStorageError("start run", err)
	}
	return id, nil
}

// Complete stores the final counters of a run.
func (s *RunStore) Complete(ctx context.Context, run *domain.SyncRun) error {
	query := `
		UPDATE sync_runs SET
			completed_at = :completed_at,
			remote_total = :remote_total,
			synced = :synced,
			skipped = :skipped,
			errors = :errors,
			status = :status
		WHERE id = :id`

	_, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, run)
	return domain.NewStorageError("complete run", err)
}

// Recent returns the latest runs of a source, newest first.
func (s *RunStore) Recent(ctx context.Context, source string, limit int) ([]domain.SyncRun, error) {
	var runs []domain.SyncRun
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &runs, `
		SELECT id, source, mode, started_at, completed_at, remote_total, synced, skipped, errors, status
		FROM sync_runs
		WHERE source = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2`, source, limit)
	if err != nil {
		return nil, domain.NewStorageError("list runs", err)
	}
	return runs, nil
}

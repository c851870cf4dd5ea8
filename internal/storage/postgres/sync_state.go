package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"transcript_sync/internal/domain"
)

// SyncStateStore is the key/value table holding cursors and cached lookups.
type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &value,
		"SELECT value FROM sync_state WHERE key = $1", key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.NewStorageError("get sync state "+key, err)
	}
	return value, true, nil
}

func (s *SyncStateStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, key, value)
	return domain.NewStorageError("set sync state "+key, err)
}

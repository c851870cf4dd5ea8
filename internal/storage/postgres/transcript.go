package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"transcript_sync/internal/domain"
)

// rows per multi-row insert; keeps bind parameters under the protocol limit
const insertChunk = 1000

type TranscriptStore struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewTranscriptStore(db *sqlx.DB, tm *TransactionManager) *TranscriptStore {
	return &TranscriptStore{db: db, tm: tm}
}

type segmentRow struct {
	TranscriptID string `db:"transcript_id"`
	domain.Segment
}

type actionItemRow struct {
	TranscriptID string         `db:"transcript_id"`
	Position     int            `db:"position"`
	Text         string         `db:"text"`
	Metadata     sql.NullString `db:"metadata"`
}

func (s *TranscriptStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &exists,
		"SELECT EXISTS (SELECT 1 FROM transcripts WHERE id = $1)", id)
	if err != nil {
		return false, domain.NewStorageError("check transcript", err)
	}
	return exists, nil
}

// Upsert writes the transcript row and replaces every child row in one
// transaction, so a re-fetch never leaves stale segments behind.
func (s *TranscriptStore) Upsert(ctx context.Context, t *domain.Transcript) error {
	err := s.tm.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.db)

		query := `
			INSERT INTO transcripts (
				id, title, date, duration_seconds, source, summary, raw_text, metadata
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8
			)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				date = EXCLUDED.date,
				duration_seconds = EXCLUDED.duration_seconds,
				source = EXCLUDED.source,
				summary = EXCLUDED.summary,
				raw_text = EXCLUDED.raw_text,
				metadata = EXCLUDED.metadata,
				updated_at = NOW()`

		if _, err := exec.ExecContext(ctx, query,
			t.ID,
			t.Title,
			t.Date,
			t.DurationSeconds,
			t.Source,
			t.Summary,
			t.RawText,
			nullableJSON(t.Metadata),
		); err != nil {
			return err
		}

		for _, table := range []string{"speakers", "segments", "tags", "keywords", "action_items"} {
			if _, err := exec.ExecContext(ctx, "DELETE FROM "+table+" WHERE transcript_id = $1", t.ID); err != nil {
				return err
			}
		}

		if err := insertNames(ctx, exec, "speakers", "name", t.ID, t.Speakers); err != nil {
			return err
		}
		if err := insertNames(ctx, exec, "keywords", "keyword", t.ID, t.Keywords); err != nil {
			return err
		}
		if err := insertTags(ctx, exec, t.ID, t.Tags); err != nil {
			return err
		}
		if err := s.insertSegments(ctx, exec, t.ID, t.Segments); err != nil {
			return err
		}
		return s.insertActionItems(ctx, exec, t.ID, t.ActionItems)
	})
	return domain.NewStorageError("upsert transcript "+t.ID, err)
}

// insertNames stores a set of labels for one transcript. Duplicates collapse.
func insertNames(ctx context.Context, exec sqlx.ExtContext, table, column, transcriptID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	query := "INSERT INTO " + table + " (transcript_id, " + column + ") " +
		"SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING"
	_, err := exec.ExecContext(ctx, query, transcriptID, pq.Array(names))
	return err
}

func (s *TranscriptStore) insertSegments(ctx context.Context, exec sqlx.ExtContext, transcriptID string, segments []domain.Segment) error {
	rows := make([]segmentRow, 0, len(segments))
	for _, seg := range segments {
		rows = append(rows, segmentRow{TranscriptID: transcriptID, Segment: seg})
	}

	query := `
		INSERT INTO segments (transcript_id, speaker, text, start_time, end_time, segment_index)
		VALUES (:transcript_id, :speaker, :text, :start_time, :end_time, :segment_index)`

	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if _, err := sqlx.NamedExecContext(ctx, exec, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *TranscriptStore) insertActionItems(ctx context.Context, exec sqlx.ExtContext, transcriptID string, items []domain.ActionItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]actionItemRow, 0, len(items))
	for i, item := range items {
		row := actionItemRow{TranscriptID: transcriptID, Position: i, Text: item.Text}
		if len(item.Metadata) > 0 {
			row.Metadata = sql.NullString{String: string(item.Metadata), Valid: true}
		}
		rows = append(rows, row)
	}

	query := `
		INSERT INTO action_items (transcript_id, position, text, metadata)
		VALUES (:transcript_id, :position, :text, :metadata)`

	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if _, err := sqlx.NamedExecContext(ctx, exec, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *TranscriptStore) LocalIDs(ctx context.Context, source string) (map[string]struct{}, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &ids,
		"SELECT id FROM transcripts WHERE source = $1", source); err != nil {
		return nil, domain.NewStorageError("list local ids", err)
	}

	result := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		result[id] = struct{}{}
	}
	return result, nil
}

// Delete removes a transcript; child rows go with it through ON DELETE CASCADE.
func (s *TranscriptStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM transcripts WHERE id = $1", id)
	if err != nil {
		return false, domain.NewStorageError("delete transcript "+id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.NewStorageError("delete transcript "+id, err)
	}
	return affected > 0, nil
}

// Get loads a stored transcript with all child rows.
func (s *TranscriptStore) Get(ctx context.Context, id string) (*domain.Transcript, error) {
	exec := GetExecutor(ctx, s.db)

	var row struct {
		ID              string         `db:"id"`
		Title           string         `db:"title"`
		Date            sql.NullTime   `db:"date"`
		DurationSeconds float64        `db:"duration_seconds"`
		Source          string         `db:"source"`
		Summary         string         `db:"summary"`
		RawText         string         `db:"raw_text"`
		Metadata        sql.NullString `db:"metadata"`
	}
	err := sqlx.GetContext(ctx, exec, &row, `
		SELECT id, title, date, duration_seconds, source, summary, raw_text, metadata
		FROM transcripts
		WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("get transcript "+id, err)
	}

	t := &domain.Transcript{
		ID:              row.ID,
		Title:           row.Title,
		Date:            row.Date.Time.UTC(),
		DurationSeconds: row.DurationSeconds,
		Source:          row.Source,
		Summary:         row.Summary,
		RawText:         row.RawText,
	}
	if row.Metadata.Valid {
		t.Metadata = json.RawMessage(row.Metadata.String)
	}

	if err := sqlx.SelectContext(ctx, exec, &t.Speakers,
		"SELECT name FROM speakers WHERE transcript_id = $1 ORDER BY name", id); err != nil {
		return nil, domain.NewStorageError("get speakers", err)
	}
	if err := sqlx.SelectContext(ctx, exec, &t.Keywords,
		"SELECT keyword FROM keywords WHERE transcript_id = $1 ORDER BY keyword", id); err != nil {
		return nil, domain.NewStorageError("get keywords", err)
	}
	if t.Tags, err = getTags(ctx, exec, id); err != nil {
		return nil, domain.NewStorageError("get tags", err)
	}
	if err := sqlx.SelectContext(ctx, exec, &t.Segments, `
		SELECT speaker, text, start_time, end_time, segment_index
		FROM segments
		WHERE transcript_id = $1
		ORDER BY segment_index`, id); err != nil {
		return nil, domain.NewStorageError("get segments", err)
	}

	var items []actionItemRow
	if err := sqlx.SelectContext(ctx, exec, &items, `
		SELECT transcript_id, position, text, metadata
		FROM action_items
		WHERE transcript_id = $1
		ORDER BY position`, id); err != nil {
		return nil, domain.NewStorageError("get action items", err)
	}
	for _, item := range items {
		ai := domain.ActionItem{Text: item.Text}
		if item.Metadata.Valid {
			ai.Metadata = json.RawMessage(item.Metadata.String)
		}
		t.ActionItems = append(t.ActionItems, ai)
	}

	return t, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

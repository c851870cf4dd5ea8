package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
)

func insertTags(ctx context.Context, exec sqlx.ExtContext, transcriptID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO tags (transcript_id, name) VALUES ")
	valueArgs := make([]interface{}, 0, len(tags)+1)
	valueArgs = append(valueArgs, transcriptID)

	for i, tag := range tags {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($1, $")
		sb.WriteString(itoa(i + 2))
		sb.WriteString(")")
		valueArgs = append(valueArgs, tag)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	_, err := exec.ExecContext(ctx, sb.String(), valueArgs...)
	return err
}

func getTags(ctx context.Context, q sqlx.QueryerContext, transcriptID string) ([]string, error) {
	var tags []string
	err := sqlx.SelectContext(ctx, q, &tags,
		"SELECT name FROM tags WHERE transcript_id = $1 ORDER BY name", transcriptID)
	return tags, err
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return itoa(i/10) + string(rune('0'+i%10))
}

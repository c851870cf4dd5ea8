package pocket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"transcript_sync/internal/domain"
)

// TagCache persists resolved tag ids between runs.
type TagCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

func tagCacheKey(name string) string {
	return fmt.Sprintf("pocket.tag_id.%s", name)
}

// resolveTag maps a tag name to its provider id, consulting the cache first.
func (s *Source) resolveTag(ctx context.Context, name string, cache TagCache) (string, error) {
	key := tagCacheKey(name)
	if cache != nil {
		id, ok, err := cache.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("read tag cache: %w", err)
		}
		if ok && id != "" {
			s.logger.Debug("tag resolved from cache", "tag", name, "tag_id", id)
			return id, nil
		}
	}

	tags, err := s.listTags(ctx)
	if err != nil {
		return "", err
	}

	available := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag.Name == nil {
			continue
		}
		available = append(available, *tag.Name)
		if !strings.EqualFold(*tag.Name, name) {
			continue
		}
		if tag.ID == "" {
			return "", domain.NewMalformedError(Name, "list tags", fmt.Errorf("tag %q has no id", name))
		}

		id := string(tag.ID)
		if cache != nil {
			if err := cache.Set(ctx, key, id); err != nil {
				return "", fmt.Errorf("write tag cache: %w", err)
			}
		}
		s.logger.Info("resolved tag", "tag", name, "tag_id", id)
		return id, nil
	}

	return "", &domain.TagNotFoundError{Tag: name, Available: available}
}

func (s *Source) listTags(ctx context.Context) ([]APITag, error) {
	body, err := s.get(ctx, "list tags", "/public/tags")
	if err != nil {
		return nil, err
	}

	// The endpoint answers with {"data": [...]} or a bare array.
	payload := bytes.TrimSpace(body)
	if len(payload) > 0 && payload[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &wrapped); err != nil {
			return nil, domain.NewMalformedError(Name, "list tags", err)
		}
		payload = wrapped.Data
	}

	var tags []APITag
	if err := json.Unmarshal(payload, &tags); err != nil {
		return nil, domain.NewMalformedError(Name, "list tags", err)
	}
	return tags, nil
}

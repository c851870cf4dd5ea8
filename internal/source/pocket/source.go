package pocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"transcript_sync/internal/domain"
)

const (
	Name            = "pocket"
	DefaultBaseURL  = "https://public.heypocketai.com/api/v1"
	DefaultPageSize = 50

	// MaxRawTextChars caps the stored raw text of a recording.
	MaxRawTextChars = 100_000

	untitled       = "Untitled"
	unknownSpeaker = "Unknown"
)

// Config holds Pocket connector configuration.
type Config struct {
	APIKey   string
	BaseURL  string
	Tag      string
	PageSize int
	Timeout  time.Duration
}

// Source implements service.Source against the Pocket REST API.
type Source struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	tagID      string
	pageSize   int
	logger     *slog.Logger
}

// New creates a Pocket source. When cfg.Tag is set it is resolved to a tag
// id up front, so an unknown tag fails before any listing happens.
func New(ctx context.Context, cfg Config, cache TagCache, logger *slog.Logger) (*Source, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	s := &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		logger:   logger.With("connector", Name),
	}

	if cfg.Tag != "" {
		tagID, err := s.resolveTag(ctx, cfg.Tag, cache)
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", cfg.Tag, err)
		}
		s.tagID = tagID
	}

	return s, nil
}

func (s *Source) Name() string {
	return Name
}

// ListRemote walks /public/recordings page by page until meta.last_page.
func (s *Source) ListRemote(ctx context.Context, since *time.Time) ([]domain.RemoteTranscript, error) {
	var all []domain.RemoteTranscript

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", fmt.Sprint(page))
		query.Set("per_page", fmt.Sprint(s.pageSize))
		if s.tagID != "" {
			query.Set("tag_ids", s.tagID)
		}

		body, err := s.get(ctx, "list recordings", "/public/recordings?"+query.Encode())
		if err != nil {
			return nil, err
		}

		var resp ListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, domain.NewMalformedError(Name, "list recordings", err)
		}
		if resp.Data == nil {
			return nil, domain.NewMalformedError(Name, "list recordings",
				fmt.Errorf("page %d has no data array", page))
		}
		entries := *resp.Data
		s.logger.Debug("fetched page", "page", page, "entries", len(entries))

		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			raw := entry.CreatedAt
			if raw == "" {
				raw = entry.Date
			}
			date, err := domain.ParseDate(raw)
			if err != nil {
				if since != nil {
					s.logger.Warn("skipping recording with unparseable date", "id", entry.ID, "date", raw)
					continue
				}
				date = time.Time{}
			}
			if since != nil && !date.After(*since) {
				continue
			}

			title := entry.Title
			if title == "" {
				title = untitled
			}
			all = append(all, domain.RemoteTranscript{
				ID:    string(entry.ID),
				Title: title,
				Date:  date,
			})
		}

		lastPage := 1
		if resp.Meta != nil && resp.Meta.LastPage > 0 {
			lastPage = resp.Meta.LastPage
		}
		if page >= lastPage {
			break
		}
	}

	slices.SortStableFunc(all, func(a, b domain.RemoteTranscript) int {
		return b.Date.Compare(a.Date)
	})

	return all, nil
}

// FetchOne retrieves one recording with transcript and summarizations.
func (s *Source) FetchOne(ctx context.Context, id string) (*domain.Transcript, error) {
	path := fmt.Sprintf("/public/recordings/%s?include_transcript=true&include_summarizations=true", url.PathEscape(id))
	body, err := s.get(ctx, "fetch recording", path)
	if err != nil {
		return nil, err
	}

	payload, err := unwrapData(body)
	if err != nil {
		return nil, domain.NewMalformedError(Name, "fetch recording", err)
	}

	var rec Recording
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, domain.NewMalformedError(Name, "fetch recording", err)
	}

	return s.transform(&rec), nil
}

func (s *Source) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(Name, op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.NewProviderError(Name, op, resp.StatusCode, errors.New(strings.TrimSpace(string(snippet))))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewProviderError(Name, op, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// unwrapData returns the object under "data" when the response is wrapped,
// otherwise the body itself.
func unwrapData(body []byte) ([]byte, error) {
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	data := bytes.TrimSpace(wrapped.Data)
	if len(data) > 0 && data[0] == '{' {
		return data, nil
	}
	return body, nil
}

func (s *Source) transform(rec *Recording) *domain.Transcript {
	id := string(rec.ID)
	if id == "" {
		id = uuid.NewString()
		s.logger.Warn("recording has no id, generated one", "id", id)
	}

	title := rec.Title
	if title == "" {
		title = untitled
	}

	raw := rec.CreatedAt
	if raw == "" {
		raw = rec.Date
	}
	date, err := domain.ParseDate(raw)
	if err != nil && raw != "" {
		s.logger.Warn("failed to parse date", "id", id, "date", raw)
	}

	transcript := &domain.Transcript{
		ID:     id,
		Title:  title,
		Date:   date,
		Source: Name,
	}
	if rec.Duration != nil {
		transcript.DurationSeconds = *rec.Duration
	}

	var lines []string
	if rec.Transcript != nil {
		seen := make(map[string]struct{})
		transcript.Segments = make([]domain.Segment, 0, len(rec.Transcript.Segments))
		for i, seg := range rec.Transcript.Segments {
			speaker := unknownSpeaker
			if seg.Speaker != nil {
				speaker = *seg.Speaker
			}
			text := deref(seg.Text)

			if _, ok := seen[speaker]; !ok && speaker != "" {
				seen[speaker] = struct{}{}
				transcript.Speakers = append(transcript.Speakers, speaker)
			}
			lines = append(lines, speaker+": "+text)

			transcript.Segments = append(transcript.Segments, domain.Segment{
				Speaker:   speaker,
				Text:      text,
				StartTime: derefFloat(seg.Start),
				EndTime:   derefFloat(seg.End),
				Index:     i,
			})
		}
	}

	if rec.Transcript != nil && rec.Transcript.Text != nil {
		transcript.RawText = *rec.Transcript.Text
	} else {
		transcript.RawText = strings.Join(lines, "\n")
	}
	transcript.RawText = truncateRunes(transcript.RawText, MaxRawTextChars)

	transcript.Summary, transcript.ActionItems = s.parseSummarizations(id, rec.Summarizations)

	for _, tag := range rec.Tags {
		if tag.Name != nil {
			transcript.Tags = append(transcript.Tags, *tag.Name)
		}
	}

	return transcript
}

func (s *Source) parseSummarizations(id string, raw json.RawMessage) (string, []domain.ActionItem) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return "", nil
	}

	var sums summarizations
	if err := json.Unmarshal(raw, &sums); err != nil {
		s.logger.Warn("ignoring unreadable summarizations", "id", id, "error", err)
		return "", nil
	}

	var summary string
	v2 := bytes.TrimSpace(sums.V2Summary)
	switch {
	case len(v2) == 0:
	case v2[0] == '{':
		var md markdownSummary
		if err := json.Unmarshal(v2, &md); err == nil {
			summary = md.Markdown
		}
	case v2[0] == '"':
		_ = json.Unmarshal(v2, &summary)
	}

	var items []domain.ActionItem
	if sums.V2ActionItems != nil {
		for _, a := range sums.V2ActionItems.Actions {
			text := a.Label
			if text == "" {
				text = a.Context
			}
			if text != "" {
				items = append(items, domain.ActionItem{Text: text})
			}
		}
	}

	return summary, items
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

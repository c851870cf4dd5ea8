package fireflies

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"transcript_sync/internal/domain"
)

const (
	Name            = "fireflies"
	DefaultEndpoint = "https://api.fireflies.ai/graphql"
	DefaultPageSize = 50

	untitled       = "Untitled"
	unknownSpeaker = "Unknown"
)

// Config holds Fireflies connector configuration.
type Config struct {
	APIKey   string
	Endpoint string
	PageSize int
	Timeout  time.Duration
}

// Source implements service.Source against the Fireflies GraphQL API.
type Source struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	pageSize   int
	logger     *slog.Logger
}

// New creates a new Fireflies source.
func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		logger:   logger.With("connector", Name),
	}
}

func (s *Source) Name() string {
	return Name
}

// ListRemote pages through all transcripts with limit/skip. The API has no
// server-side date filter, so since is applied to each entry here.
func (s *Source) ListRemote(ctx context.Context, since *time.Time) ([]domain.RemoteTranscript, error) {
	var sinceMillis int64
	if since != nil {
		sinceMillis = since.UnixMilli()
	}

	var all []domain.RemoteTranscript
	for skip := 0; ; skip += s.pageSize {
		var data listData
		err := s.query(ctx, "list transcripts", listQuery, map[string]any{
			"limit": s.pageSize,
			"skip":  skip,
		}, &data)
		if err != nil {
			return nil, err
		}

		if data.Transcripts == nil {
			return nil, domain.NewMalformedError(Name, "list transcripts",
				fmt.Errorf("page at skip %d has no transcripts array", skip))
		}
		page := *data.Transcripts
		s.logger.Debug("fetched page", "skip", skip, "entries", len(page))

		for _, entry := range page {
			if since != nil && int64(entry.Date) <= sinceMillis {
				continue
			}
			title := entry.Title
			if title == "" {
				title = untitled
			}
			all = append(all, domain.RemoteTranscript{
				ID:    entry.ID,
				Title: title,
				Date:  entry.Date.Time(),
			})
		}

		if len(page) < s.pageSize {
			break
		}
	}

	slices.SortStableFunc(all, func(a, b domain.RemoteTranscript) int {
		return b.Date.Compare(a.Date)
	})

	return all, nil
}

// FetchOne retrieves a single transcript with sentences and summary.
func (s *Source) FetchOne(ctx context.Context, id string) (*domain.Transcript, error) {
	var data fetchData
	if err := s.query(ctx, "fetch transcript", fetchQuery, map[string]any{
		"transcriptId": id,
	}, &data); err != nil {
		return nil, err
	}
	if data.Transcript == nil {
		return nil, domain.NewProviderError(Name, "fetch transcript", 0, fmt.Errorf("transcript %s not found", id))
	}

	return s.transform(data.Transcript)
}

func (s *Source) query(ctx context.Context, op, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.NewProviderError(Name, op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewProviderError(Name, op, resp.StatusCode, errors.New(strings.TrimSpace(string(snippet))))
	}

	envelope := graphQLResponse[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return domain.NewMalformedError(Name, op, err)
	}
	if len(envelope.Errors) > 0 && string(envelope.Errors) != "null" {
		return domain.NewProviderError(Name, op, resp.StatusCode, fmt.Errorf("graphql errors: %s", envelope.Errors))
	}
	if envelope.Data == nil {
		return domain.NewMalformedError(Name, op, errors.New("missing data"))
	}
	if err := json.Unmarshal(*envelope.Data, out); err != nil {
		return domain.NewMalformedError(Name, op, err)
	}

	return nil
}

func (s *Source) transform(t *APITranscript) (*domain.Transcript, error) {
	title := t.Title
	if title == "" {
		title = untitled
	}

	transcript := &domain.Transcript{
		ID:       t.ID,
		Title:    title,
		Date:     t.Date.Time(),
		Source:   Name,
		Segments: make([]domain.Segment, 0, len(t.Sentences)),
	}
	if t.Duration != nil {
		transcript.DurationSeconds = *t.Duration * 60
	}

	seen := make(map[string]struct{})
	lines := make([]string, 0, len(t.Sentences))
	for i, sentence := range t.Sentences {
		speaker := unknownSpeaker
		if sentence.SpeakerName != nil {
			speaker = *sentence.SpeakerName
		}
		text := deref(sentence.Text)

		if _, ok := seen[speaker]; !ok && speaker != "" {
			seen[speaker] = struct{}{}
			transcript.Speakers = append(transcript.Speakers, speaker)
		}
		lines = append(lines, speaker+": "+text)

		transcript.Segments = append(transcript.Segments, domain.Segment{
			Speaker:   speaker,
			Text:      text,
			StartTime: derefFloat(sentence.StartTime),
			EndTime:   derefFloat(sentence.EndTime),
			Index:     i,
		})
	}
	transcript.RawText = strings.Join(lines, "\n")

	if t.Summary != nil {
		var parts []string
		if overview := deref(t.Summary.Overview); overview != "" {
			parts = append(parts, overview)
		}
		if bullets := deref(t.Summary.ShorthandBullet); bullets != "" {
			parts = append(parts, bullets)
		}
		transcript.Summary = strings.Join(parts, "\n\n")
		transcript.Keywords = t.Summary.Keywords
		if t.Summary.ActionItems != nil {
			transcript.ActionItems = parseActionItems(*t.Summary.ActionItems)
		}
	}

	if t.OrganizerEmail != nil || t.Participants != nil {
		metadata, err := json.Marshal(meetingMetadata{
			OrganizerEmail: t.OrganizerEmail,
			Participants:   t.Participants,
		})
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		transcript.Metadata = metadata
	}

	return transcript, nil
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

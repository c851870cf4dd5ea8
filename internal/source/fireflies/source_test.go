package fireflies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"transcript_sync/internal/domain"
)

type SourceTestSuite struct {
	suite.Suite
	server  *httptest.Server
	handler func(w http.ResponseWriter, req graphQLRequest)
	source  *Source
	calls   int
}

func (s *SourceTestSuite) SetupTest() {
	s.calls = 0
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls++
		s.Equal(http.MethodPost, r.Method)
		s.Equal("Bearer test-key", r.Header.Get("Authorization"))

		var req graphQLRequest
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		s.handler(w, req)
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.source = New(Config{
		APIKey:   "test-key",
		Endpoint: s.server.URL,
		PageSize: 2,
		Timeout:  5 * time.Second,
	}, logger)
}

func (s *SourceTestSuite) TearDownTest() {
	s.server.Close()
}

func TestSourceTestSuite(t *testing.T) {
	suite.Run(t, new(SourceTestSuite))
}

func ms(t time.Time) int64 {
	return t.UnixMilli()
}

func (s *SourceTestSuite) TestListRemote_PaginatesUntilShortPage() {
	d1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC)
	d3 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	var skips []float64
	s.handler = func(w http.ResponseWriter, req graphQLRequest) {
		s.Contains(req.Query, "transcripts(limit: $limit, skip: $skip)")
		skip := req.Variables["skip"].(float64)
		skips = append(skips, skip)
		switch skip {
		case 0:
			fmt.Fprintf(w, `{"data":{"transcripts":[{"id":"a","title":"First","date":%d},{"id":"b","title":"Second","date":"%d"}]}}`, ms(d1), ms(d2))
		default:
			fmt.Fprintf(w, `{"data":{"transcripts":[{"id":"c","title":null,"date":%d}]}}`, ms(d3))
		}
	}

	got, err := s.source.ListRemote(context.Background(), nil)

	s.Require().NoError(err)
	s.Equal([]float64{0, 2}, skips)
	s.Require().Len(got, 3)
	s.Equal("b", got[0].ID)
	s.Equal("c", got[1].ID)
	s.Equal("Untitled", got[1].Title)
	s.Equal("a", got[2].ID)
	s.Equal(d2, got[0].Date)
}

func (s *SourceTestSuite) TestListRemote_StopsOnEmptyPage() {
	s.handler = func(w http.ResponseWriter, req graphQLRequest) {
		if req.Variables["skip"].(float64) == 0 {
			fmt.Fprint(w, `{"data":{"transcripts":[{"id":"a","date":1},{"id":"b","date":2}]}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"transcripts":[]}}`)
	}

	got, err := s.source.ListRemote(context.Background(), nil)

	s.NoError(err)
	s.Len(got, 2)
	s.Equal(2, s.calls)
}

func (s *SourceTestSuite) TestListRemote_PageWithoutTranscriptsFails() {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty data object", body: `{"data":{}}`},
		{name: "null transcripts", body: `{"data":{"transcripts":null}}`},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.calls = 0
			s.handler = func(w http.ResponseWriter, req graphQLRequest) {
				if req.Variables["skip"].(float64) == 0 {
					fmt.Fprint(w, `{"data":{"transcripts":[{"id":"a","date":1},{"id":"b","date":2}]}}`)
					return
				}
				fmt.Fprint(w, tt.body)
			}

			got, err := s.source.ListRemote(context.Background(), nil)

			s.Nil(got)
			s.ErrorIs(err, domain.ErrMalformedResponse)
			var perr *domain.ProviderError
			s.Require().True(errors.As(err, &perr))
			s.Equal("list transcripts", perr.Op)
			s.Equal(2, s.calls)
		})
	}
}

func (s *SourceTestSuite) TestListRemote_SinceIsStrict() {
	since := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	s.handler = func(w http.ResponseWriter, _ graphQLRequest) {
		fmt.Fprintf(w, `{"data":{"transcripts":[{"id":"older","date":%d},{"id":"equal","date":%d},{"id":"newer","date":%d}]}}`,
			ms(since.Add(-time.Hour)), ms(since), ms(since.Add(time.Second)))
	}

	got, err := s.source.ListRemote(context.Background(), &since)

	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("newer", got[0].ID)
	for _, rt := range got {
		s.True(rt.Date.After(since))
	}
}

func (s *SourceTestSuite) TestListRemote_SubSecondEntryAfterCursorIsListed() {
	since := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	s.handler = func(w http.ResponseWriter, _ graphQLRequest) {
		fmt.Fprintf(w, `{"data":{"transcripts":[{"id":"same-second","date":%d},{"id":"exact","date":%d}]}}`,
			ms(since.Add(400*time.Millisecond)), ms(since))
	}

	got, err := s.source.ListRemote(context.Background(), &since)

	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("same-second", got[0].ID)
	s.Equal(since, got[0].Date, "listed dates keep second precision")
}

func (s *SourceTestSuite) TestListRemote_GraphQLErrors() {
	s.handler = func(w http.ResponseWriter, _ graphQLRequest) {
		fmt.Fprint(w, `{"data":null,"errors":[{"message":"invalid api key"}]}`)
	}

	_, err := s.source.ListRemote(context.Background(), nil)

	var perr *domain.ProviderError
	s.Require().True(errors.As(err, &perr))
	s.Equal("fireflies", perr.Provider)
	s.Contains(err.Error(), "invalid api key")
}

func (s *SourceTestSuite) TestListRemote_HTTPError() {
	s.handler = func(w http.ResponseWriter, _ graphQLRequest) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `unauthorized`)
	}

	_, err := s.source.ListRemote(context.Background(), nil)

	var perr *domain.ProviderError
	s.Require().True(errors.As(err, &perr))
	s.Equal(http.StatusUnauthorized, perr.StatusCode)
}

func (s *SourceTestSuite) TestListRemote_MalformedBody() {
	s.handler = func(w http.ResponseWriter, _ graphQLRequest) {
		fmt.Fprint(w, `{"data":{"transcripts":"nope"}}`)
	}

	_, err := s.source.ListRemote(context.Background(), nil)

	s.ErrorIs(err, domain.ErrMalformedResponse)
}

func (s *SourceTestSuite) TestFetchOne_Normalizes() {
	date := time.Date(2026, 2, 14, 15, 30, 0, 0, time.UTC)
	s.handler = func(w http.ResponseWriter, req graphQLRequest) {
		s.Equal("tx-1", req.Variables["transcriptId"])
		fmt.Fprintf(w, `{"data":{"transcript":{
			"id":"tx-1","title":"Planning","date":%d,"duration":1.5,
			"organizer_email":"ada@example.com","participants":["ada@example.com","bob@example.com"],
			"summary":{
				"keywords":["roadmap","budget"],
				"overview":"We planned Q2.",
				"shorthand_bullet":"- roadmap\n- budget",
				"action_items":"**Ada**\n- Send the budget draft\nok\n• Book the venue for March\n"
			},
			"sentences":[
				{"text":"Hello all","speaker_name":"Ada","start_time":0.5,"end_time":1.5},
				{"text":"Hi","speaker_name":null,"start_time":2,"end_time":2.5},
				{"text":"Let's start","speaker_name":"Ada","start_time":3,"end_time":4}
			]}}}`, ms(date))
	}

	got, err := s.source.FetchOne(context.Background(), "tx-1")

	s.Require().NoError(err)
	s.Equal("tx-1", got.ID)
	s.Equal("fireflies", got.Source)
	s.Equal(date, got.Date)
	s.InDelta(90.0, got.DurationSeconds, 0.0001)
	s.Equal("We planned Q2.\n\n- roadmap\n- budget", got.Summary)
	s.Equal([]string{"roadmap", "budget"}, got.Keywords)
	s.Equal([]string{"Ada", "Unknown"}, got.Speakers)
	s.Equal("Ada: Hello all\nUnknown: Hi\nAda: Let's start", got.RawText)

	s.Require().Len(got.Segments, 3)
	s.Equal(domain.Segment{Speaker: "Unknown", Text: "Hi", StartTime: 2, EndTime: 2.5, Index: 1}, got.Segments[1])

	s.Require().Len(got.ActionItems, 2)
	s.Equal("Send the budget draft", got.ActionItems[0].Text)
	s.Equal("Book the venue for March", got.ActionItems[1].Text)

	s.JSONEq(`{"organizer_email":"ada@example.com","participants":["ada@example.com","bob@example.com"]}`, string(got.Metadata))
}

func (s *SourceTestSuite) TestFetchOne_NullTranscript() {
	s.handler = func(w http.ResponseWriter, _ graphQLRequest) {
		fmt.Fprint(w, `{"data":{"transcript":null}}`)
	}

	got, err := s.source.FetchOne(context.Background(), "missing")

	s.Nil(got)
	var perr *domain.ProviderError
	s.True(errors.As(err, &perr))
}

func (s *SourceTestSuite) TestFetchOne_SparseRecord() {
	s.handler = func(w http.ResponseWriter, _ graphQLRequest) {
		fmt.Fprint(w, `{"data":{"transcript":{"id":"tx-2","date":null}}}`)
	}

	got, err := s.source.FetchOne(context.Background(), "tx-2")

	s.Require().NoError(err)
	s.Equal("Untitled", got.Title)
	s.Equal(time.Unix(0, 0).UTC(), got.Date)
	s.Empty(got.Segments)
	s.Empty(got.RawText)
	s.Nil(got.Metadata)
	s.Zero(got.DurationSeconds)
}

func TestParseActionItems(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		expected []string
	}{
		{
			name:     "headers and short lines skipped",
			block:    "**Ada Lovelace**\n- Review the pull request\nabc\n\n",
			expected: []string{"Review the pull request"},
		},
		{
			name:     "bullet markers stripped",
			block:    "* Ship the release notes\n• Update the changelog\n-- Email the team",
			expected: []string{"Ship the release notes", "Update the changelog", "Email the team"},
		},
		{
			name:     "plain lines kept",
			block:    "Follow up with legal",
			expected: []string{"Follow up with legal"},
		},
		{
			name:  "only markers",
			block: "-----\n*****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := parseActionItems(tt.block)
			var texts []string
			for _, item := range items {
				texts = append(texts, item.Text)
			}
			assert.Equal(t, tt.expected, texts)
		})
	}
}

func TestEpochMillis(t *testing.T) {
	tests := []struct {
		raw      string
		expected int64
	}{
		{`1700000000000`, 1700000000000},
		{`"1700000000000"`, 1700000000000},
		{`1.7e12`, 1700000000000},
		{`null`, 0},
		{`"soon"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var m epochMillis
			assert.NoError(t, json.Unmarshal([]byte(tt.raw), &m))
			assert.Equal(t, tt.expected, int64(m))
		})
	}
}

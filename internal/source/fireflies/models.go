package fireflies

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

const listQuery = `query Transcripts($limit: Int, $skip: Int) {
  transcripts(limit: $limit, skip: $skip) { id title date }
}`

const fetchQuery = `query Transcript($transcriptId: String!) {
  transcript(id: $transcriptId) {
    id title date duration organizer_email participants
    summary { keywords action_items overview shorthand_bullet }
    sentences { text speaker_name start_time end_time }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the standard GraphQL envelope. Any non-null errors
// member fails the request even when data is present.
type graphQLResponse[T any] struct {
	Data   *T              `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// listData keeps Transcripts as a pointer so a missing or null field is not
// mistaken for the final, empty page.
type listData struct {
	Transcripts *[]ListEntry `json:"transcripts"`
}

type ListEntry struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Date  epochMillis `json:"date"`
}

type fetchData struct {
	Transcript *APITranscript `json:"transcript"`
}

type APITranscript struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Date           epochMillis `json:"date"`
	Duration       *float64    `json:"duration"`
	OrganizerEmail *string     `json:"organizer_email"`
	Participants   []string    `json:"participants"`
	Summary        *APISummary `json:"summary"`
	Sentences      []Sentence  `json:"sentences"`
}

type APISummary struct {
	Keywords        []string `json:"keywords"`
	ActionItems     *string  `json:"action_items"`
	Overview        *string  `json:"overview"`
	ShorthandBullet *string  `json:"shorthand_bullet"`
}

type Sentence struct {
	Text        *string  `json:"text"`
	SpeakerName *string  `json:"speaker_name"`
	StartTime   *float64 `json:"start_time"`
	EndTime     *float64 `json:"end_time"`
}

type meetingMetadata struct {
	OrganizerEmail *string  `json:"organizer_email,omitempty"`
	Participants   []string `json:"participants,omitempty"`
}

// epochMillis decodes a millisecond timestamp sent either as a JSON number
// or as a numeric string. Anything else decodes to zero.
type epochMillis int64

func (m *epochMillis) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*m = epochMillis(n)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*m = epochMillis(int64(f))
		return nil
	}
	*m = 0
	return nil
}

// Time truncates to whole seconds, matching the stored date precision.
func (m epochMillis) Time() time.Time {
	return time.Unix(int64(m)/1000, 0).UTC()
}

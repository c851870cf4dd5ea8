package pocket

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ListResponse is one page of /public/recordings. Data is a pointer so a
// page without a data array can be told apart from an empty one.
type ListResponse struct {
	Data *[]ListEntry `json:"data"`
	Meta *PageMeta    `json:"meta"`
}

type PageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type ListEntry struct {
	ID        flexibleID `json:"id"`
	Title     string     `json:"title"`
	CreatedAt string     `json:"created_at"`
	Date      string     `json:"date"`
}

// Recording is the detail payload including transcript and summarizations.
type Recording struct {
	ID             flexibleID      `json:"id"`
	Title          string          `json:"title"`
	CreatedAt      string          `json:"created_at"`
	Date           string          `json:"date"`
	Duration       *float64        `json:"duration"`
	Transcript     *APITranscript  `json:"transcript"`
	Summarizations json.RawMessage `json:"summarizations"`
	Tags           []APITag        `json:"tags"`
}

type APITranscript struct {
	Text     *string      `json:"text"`
	Segments []APISegment `json:"segments"`
}

type APISegment struct {
	Speaker *string  `json:"speaker"`
	Text    *string  `json:"text"`
	Start   *float64 `json:"start"`
	End     *float64 `json:"end"`
}

type APITag struct {
	ID   flexibleID `json:"id"`
	Name *string    `json:"name"`
}

type summarizations struct {
	V2Summary     json.RawMessage `json:"v2_summary"`
	V2ActionItems *struct {
		Actions []action `json:"actions"`
	} `json:"v2_action_items"`
}

type action struct {
	Label   string `json:"label"`
	Context string `json:"context"`
}

type markdownSummary struct {
	Markdown string `json:"markdown"`
}

// flexibleID accepts ids sent as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		if i, err := n.Int64(); err == nil {
			*f = flexibleID(strconv.FormatInt(i, 10))
			return nil
		}
		*f = flexibleID(n.String())
	}
	return nil
}

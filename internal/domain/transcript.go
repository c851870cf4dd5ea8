package domain

import (
	"encoding/json"
	"time"
)

// RemoteTranscript is a lightweight listing entry used for diffing.
type RemoteTranscript struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// Transcript is the normalized record produced by a connector's full fetch.
// ID is the provider-native identifier and the primary key across all sources.
type Transcript struct {
	ID              string
	Title           string
	Date            time.Time
	DurationSeconds float64
	Source          string
	Summary         string
	RawText         string
	Metadata        json.RawMessage
	Speakers        []string
	Segments        []Segment
	Tags            []string
	Keywords        []string
	ActionItems     []ActionItem
}

type Segment struct {
	Speaker   string  `db:"speaker"`
	Text      string  `db:"text"`
	StartTime float64 `db:"start_time"`
	EndTime   float64 `db:"end_time"`
	Index     int     `db:"segment_index"`
}

type ActionItem struct {
	Text     string
	Metadata json.RawMessage
}

// FormatDate renders a timestamp as second-precision ISO-8601 UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// ParseDate accepts RFC 3339 (with or without fractional seconds).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

package source

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript_sync/internal/domain"
)

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		source   string
		expected string
		err      error
	}{
		{name: "fireflies", source: "fireflies", expected: "fireflies"},
		{name: "pocket without tag", source: "pocket", expected: "pocket"},
		{name: "case insensitive", source: "Fireflies", expected: "fireflies"},
		{name: "unknown", source: "otter", err: domain.ErrUnknownSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := New(context.Background(), tt.source, Options{APIKey: "k"}, nil, logger)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Contains(t, err.Error(), "fireflies, pocket")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, src.Name())
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("pocket"))
	assert.NoError(t, Validate("POCKET"))
	assert.ErrorIs(t, Validate("zoom"), domain.ErrUnknownSource)
}

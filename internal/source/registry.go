package source

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"transcript_sync/internal/domain"
	"transcript_sync/internal/service"
	"transcript_sync/internal/source/fireflies"
	"transcript_sync/internal/source/pocket"
)

// Options carries the per-source settings resolved from flags and config.
type Options struct {
	APIKey  string
	BaseURL string
	// Tag restricts Pocket listings to one tag. Ignored by Fireflies.
	Tag     string
	Timeout time.Duration
}

// Supported lists the source names New accepts.
func Supported() []string {
	return []string{fireflies.Name, pocket.Name}
}

// Validate reports ErrUnknownSource for names New does not accept.
func Validate(name string) error {
	if slices.Contains(Supported(), strings.ToLower(name)) {
		return nil
	}
	return fmt.Errorf("%w %q (supported: %s)", domain.ErrUnknownSource, name, strings.Join(Supported(), ", "))
}

// New builds the connector registered under name.
func New(ctx context.Context, name string, opts Options, state pocket.TagCache, logger *slog.Logger) (service.Source, error) {
	switch strings.ToLower(name) {
	case fireflies.Name:
		return fireflies.New(fireflies.Config{
			APIKey:   opts.APIKey,
			Endpoint: opts.BaseURL,
			Timeout:  opts.Timeout,
		}, logger), nil
	case pocket.Name:
		src, err := pocket.New(ctx, pocket.Config{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Tag:     opts.Tag,
			Timeout: opts.Timeout,
		}, state, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, Validate(name)
	}
}

package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"transcript_sync/internal/domain"
)

// Source is the connector capability implemented once per provider.
type Source interface {
	Name() string
	// ListRemote returns remote items newest-first. A nil since lists
	// everything; otherwise only items strictly newer than since.
	ListRemote(ctx context.Context, since *time.Time) ([]domain.RemoteTranscript, error)
	FetchOne(ctx context.Context, id string) (*domain.Transcript, error)
}

type TranscriptStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, transcript *domain.Transcript) error
	LocalIDs(ctx context.Context, source string) (map[string]struct{}, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type RunLedger interface {
	Start(ctx context.Context, source string, mode domain.SyncMode) (int64, error)
	Complete(ctx context.Context, run *domain.SyncRun) error
}

type Publisher interface {
	Publish(ctx context.Context, event domain.TranscriptEvent) error
	Close() error
}

// Decider answers the interactive questions of the sync and audit flows.
type Decider interface {
	ConfirmInitialSync(ctx context.Context, source string, count int) (bool, error)
	ChooseDisposition(ctx context.Context, report *domain.AuditReport, options []domain.Disposition) (domain.Disposition, error)
}

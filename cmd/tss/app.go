package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"transcript_sync/internal/config"
	"transcript_sync/internal/publisher"
	"transcript_sync/internal/service"
	"transcript_sync/internal/source"
	"transcript_sync/internal/storage/postgres"
)

// app holds the long-lived collaborators shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB

	transcripts *postgres.TranscriptStore
	state       *postgres.SyncStateStore
	runs        *postgres.RunStore
	publisher   service.Publisher
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := postgres.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	logger.Debug("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		transcripts: postgres.NewTranscriptStore(db, postgres.NewTransactionManager(db)),
		state:       postgres.NewSyncStateStore(db),
		runs:        postgres.NewRunStore(db),
	}

	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			BindingKey: cfg.RabbitMQ.BindingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.publisher = rabbitMQ
	}

	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close publisher", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

// sourceFlags are the per-invocation overrides for building a connector.
type sourceFlags struct {
	apiKey string
	tag    string
}

// syncService builds the connector for name and wraps it in a SyncService.
func (a *app) syncService(ctx context.Context, name string, flags sourceFlags, decider service.Decider) (*service.SyncService, error) {
	if err := source.Validate(name); err != nil {
		return nil, err
	}
	name = strings.ToLower(name)
	srcCfg := a.cfg.Source(name)

	apiKey, err := config.ResolveCredential(ctx, name, flags.apiKey, srcCfg)
	if err != nil {
		return nil, err
	}

	tag := flags.tag
	if tag == "" {
		tag = srcCfg.DefaultTag
	}

	src, err := source.New(ctx, name, source.Options{
		APIKey:  apiKey,
		BaseURL: srcCfg.BaseURL,
		Tag:     tag,
		Timeout: a.cfg.API.Timeout,
	}, a.state, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build %s connector: %w", name, err)
	}

	return service.NewSyncService(src, a.transcripts, a.state, a.runs, a.publisher, decider, a.logger), nil
}

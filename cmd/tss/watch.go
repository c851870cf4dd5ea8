package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"transcript_sync/internal/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run incremental syncs on an interval",
	Long: `Run an incremental sync of every source listed under sync.sources,
one after another, every sync.interval until interrupted. Initial syncs
are not confirmed interactively.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(logger)
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		syncers := make([]scheduler.Syncer, 0, len(cfg.Sync.Sources))
		for _, name := range cfg.Sync.Sources {
			svc, err := a.syncService(ctx, name, sourceFlags{}, nil)
			if err != nil {
				logger.Warn("skipping source", "source", name, "error", err)
				continue
			}
			syncers = append(syncers, svc)
		}
		if len(syncers) == 0 {
			return errors.New("no usable sources configured under sync.sources")
		}

		logger.Info("starting transcript watcher",
			"sources", len(syncers),
			"interval", cfg.Sync.Interval,
			"run_timeout", cfg.Sync.RunTimeout,
		)

		sched := scheduler.NewScheduler(syncers, cfg.Sync.Interval, cfg.Sync.RunTimeout, logger)
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

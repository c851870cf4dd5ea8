package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transcript_sync/internal/domain"
	"transcript_sync/internal/prompt"
	"transcript_sync/internal/source"
)

var (
	syncAudit  bool
	syncFull   bool
	syncYes    bool
	syncDryRun bool
	syncFlags  sourceFlags
)

var syncCmd = &cobra.Command{
	Use:   "sync <source>",
	Short: "Sync transcripts from a remote source",
	Long: `Sync transcripts from a remote source into the local store.

The first run (or --full) lists everything remotely and asks before
downloading. Later runs only list items newer than the last successful
sync. --audit compares every remote item against the local store and
offers to sync missing items, delete orphans, or export the differences.

Supported sources: ` + strings.Join(source.Supported(), ", ") + `

Examples:
  tss sync fireflies
  tss sync pocket --tag Work --dry-run
  tss sync fireflies --audit`,
	Args: cobra.ExactArgs(1),
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

		svc, err := a.syncService(ctx, args[0], syncFlags, prompt.NewTerminal())
		if err != nil {
			return err
		}

		opts := domain.SyncOptions{
			Full:   syncFull,
			Yes:    syncYes,
			DryRun: syncDryRun,
		}

		if syncAudit {
			report, err := svc.Audit(ctx, opts)
			if report != nil {
				if rerr := renderAuditReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), report, jsonOutput); rerr != nil {
					return rerr
				}
			}
			return err
		}

		report, err := svc.Sync(ctx, opts)
		if report != nil {
			if rerr := renderSyncReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), report, jsonOutput); rerr != nil {
				return rerr
			}
		}
		if err != nil {
			return fmt.Errorf("sync %s: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncAudit, "audit", false, "compare all remote items against the local store")
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "ignore the cursor and re-scan everything")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "skip the confirmation prompt")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "list what would be synced without downloading")
	syncCmd.Flags().StringVar(&syncFlags.apiKey, "api-key", "", "API key (overrides env and config)")
	syncCmd.Flags().StringVar(&syncFlags.tag, "tag", "", "only sync items with this tag (pocket)")
	rootCmd.AddCommand(syncCmd)
}

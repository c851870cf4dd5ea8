package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"transcript_sync/internal/domain"
	"transcript_sync/internal/source"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs <source>",
	Short: "Show recent sync runs of a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := source.Validate(args[0]); err != nil {
			return err
		}

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

		runs, err := a.runs.Recent(ctx, strings.ToLower(args[0]), runsLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), runs)
		}
		return renderRuns(cmd.OutOrStdout(), runs)
	},
}

func renderRuns(w io.Writer, runs []domain.SyncRun) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "MODE", "STARTED", "STATUS", "REMOTE", "SYNCED", "SKIPPED", "ERRORS")
	for _, r := range runs {
		t.Row(
			strconv.FormatInt(r.ID, 10),
			string(r.Mode),
			domain.FormatDate(r.StartedAt),
			string(r.Status),
			strconv.Itoa(r.RemoteTotal),
			strconv.Itoa(r.Synced),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Errors),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

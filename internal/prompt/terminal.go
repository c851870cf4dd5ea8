package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"transcript_sync/internal/domain"
)

// Terminal asks the sync and audit questions on the controlling terminal.
// When stdin is not a TTY it falls back to huh's accessible line prompts.
type Terminal struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

func NewTerminal() *Terminal {
	return &Terminal{
		in:         os.Stdin,
		out:        os.Stderr,
		accessible: !term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// ConfirmInitialSync defaults to yes. Aborting the prompt counts as no.
func (t *Terminal) ConfirmInitialSync(ctx context.Context, source string, count int) (bool, error) {
	proceed := true
	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("Initial %s sync: %d transcripts to download.", source, count)).
		Description("Proceed?").
		Affirmative("Yes").
		Negative("No").
		Value(&proceed)

	if err := t.run(ctx, confirm); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	return proceed, nil
}

// ChooseDisposition offers the applicable remediations. Aborting means none.
func (t *Terminal) ChooseDisposition(ctx context.Context, report *domain.AuditReport, options []domain.Disposition) (domain.Disposition, error) {
	choice := domain.DispositionNone
	opts := make([]huh.Option[domain.Disposition], 0, len(options))
	for _, d := range options {
		opts = append(opts, huh.NewOption(DispositionLabel(d, report), d))
	}

	sel := huh.NewSelect[domain.Disposition]().
		Title(fmt.Sprintf("%s: %d missing locally, %d orphaned locally", report.Source, len(report.MissingLocally), len(report.OrphanedLocally))).
		Description("Action?").
		Options(opts...).
		Value(&choice)

	if err := t.run(ctx, sel); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return domain.DispositionNone, nil
		}
		return domain.DispositionNone, fmt.Errorf("disposition prompt: %w", err)
	}
	return choice, nil
}

func (t *Terminal) run(ctx context.Context, field huh.Field) error {
	return huh.NewForm(huh.NewGroup(field)).
		WithAccessible(t.accessible).
		WithInput(t.in).
		WithOutput(t.out).
		RunWithContext(ctx)
}

// DispositionLabel renders a menu entry for a remediation.
func DispositionLabel(d domain.Disposition, report *domain.AuditReport) string {
	switch d {
	case domain.DispositionSyncMissing:
		return fmt.Sprintf("Sync %d missing transcripts", len(report.MissingLocally))
	case domain.DispositionDeleteOrphans:
		return fmt.Sprintf("Delete %d orphaned transcripts", len(report.OrphanedLocally))
	case domain.DispositionExport:
		return "Export discrepancies as JSON"
	default:
		return "Do nothing"
	}
}

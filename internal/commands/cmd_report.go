package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/farepilot/internal/farepilot"
)

type ReportCmd struct {
	flags *Flags
	app   *farepilot.App

	// flags
	since time.Duration
	raw   bool
}

// NewReportCmd creates a new report command.
func NewReportCmd(flags *Flags, app *farepilot.App) *ReportCmd {
	return &ReportCmd{flags: flags, app: app}
}

// Register adds the report command to the application.
func (cmd *ReportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "report",
		Usage:       "Summarize recent activity from the journal",
		UsageText:   "farepilot report [options]",
		Description: "Prints accepted orders, common rejection reasons and faults for a time window as markdown.",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "since",
				Usage:       "window to report on",
				Value:       24 * time.Hour,
				Destination: &cmd.since,
			},
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "print markdown without terminal styling",
				Destination: &cmd.raw,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ReportCmd) run(ctx context.Context, c *cli.Command) error {
	report, err := cmd.app.BuildReport(ctx, time.Now().Add(-cmd.since))
	if err != nil {
		return err
	}
	md := report.Markdown()

	w := c.Root().Writer
	if cmd.raw || !isTerminal(w) {
		_, err := io.WriteString(w, md)
		return err
	}

	width := 100
	if f, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			width = min(tw, 120)
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

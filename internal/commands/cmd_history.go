package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/farepilot/internal/core/notify"
	"github.com/colonyops/farepilot/internal/core/styles"
	"github.com/colonyops/farepilot/internal/farepilot"
	"github.com/colonyops/farepilot/internal/printer"
	"github.com/colonyops/farepilot/pkg/iojson"
)

const historyTimeLayout = "2006-01-02 15:04:05"

type HistoryCmd struct {
	flags *Flags
	app   *farepilot.App

	// flags
	limit     int
	format    string
	since     time.Duration
	olderThan time.Duration
	clear     bool
	level     string
}

// NewHistoryCmd creates a new history command.
func NewHistoryCmd(flags *Flags, app *farepilot.App) *HistoryCmd {
	return &HistoryCmd{flags: flags, app: app}
}

// Register adds the history command to the application.
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	limitFlag := func() cli.Flag {
		return &cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "maximum rows to show",
			Value:       20,
			Destination: &cmd.limit,
		}
	}
	formatFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:        "format",
			Usage:       "output format (text, json)",
			Value:       "text",
			Destination: &cmd.format,
			Validator:   iojson.ValidFormat,
		}
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "Inspect the engine journal",
		UsageText: "farepilot history <command> [options]",
		Description: `Reads what past runs recorded: state transitions, record verdicts,
accepted orders, handler faults and notifications.`,
		Commands: []*cli.Command{
			{
				Name:          "transitions",
				Usage:         "List state transitions, newest first",
				UsageText:     "farepilot history transitions [cycle-id]",
				Flags:         []cli.Flag{limitFlag(), formatFlag()},
				ShellComplete: CycleIDCompleter(cmd.app),
				Action:        cmd.runTransitions,
			},
			{
				Name:          "evaluations",
				Usage:         "List record verdicts, newest first",
				UsageText:     "farepilot history evaluations [cycle-id]",
				Flags:         []cli.Flag{limitFlag(), formatFlag()},
				ShellComplete: CycleIDCompleter(cmd.app),
				Action:        cmd.runEvaluations,
			},
			{
				Name:   "accepted",
				Usage:  "List accepted orders, newest first",
				Flags:  []cli.Flag{limitFlag(), formatFlag()},
				Action: cmd.runAccepted,
			},
			{
				Name:   "faults",
				Usage:  "List handler faults, newest first",
				Flags:  []cli.Flag{limitFlag(), formatFlag()},
				Action: cmd.runFaults,
			},
			{
				Name:  "notifications",
				Usage: "List stored notifications",
				Flags: []cli.Flag{
					limitFlag(),
					formatFlag(),
					&cli.StringFlag{
						Name:        "level",
						Usage:       "lowest level to show (info, warning, error)",
						Value:       "info",
						Destination: &cmd.level,
						Validator: func(s string) error {
							_, err := notify.ParseLevel(s)
							return err
						},
					},
					&cli.BoolFlag{
						Name:        "clear",
						Usage:       "delete all notifications after listing",
						Destination: &cmd.clear,
					},
				},
				Action: cmd.runNotifications,
			},
			{
				Name:  "summary",
				Usage: "Count and total accepted orders",
				Flags: []cli.Flag{
					formatFlag(),
					&cli.DurationFlag{
						Name:        "since",
						Usage:       "window to summarize",
						Value:       24 * time.Hour,
						Destination: &cmd.since,
					},
				},
				Action: cmd.runSummary,
			},
			{
				Name:  "prune",
				Usage: "Delete old transitions and evaluations",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:        "older-than",
						Usage:       "delete rows older than this",
						Value:       30 * 24 * time.Hour,
						Destination: &cmd.olderThan,
					},
				},
				Action: cmd.runPrune,
			},
		},
	})
	return app
}

func (cmd *HistoryCmd) journal() error {
	if cmd.app.Journal == nil {
		return errors.New("journal is not available")
	}
	return nil
}

func (cmd *HistoryCmd) json() bool { return cmd.format == iojson.FormatJSON }

func (cmd *HistoryCmd) runTransitions(ctx context.Context, c *cli.Command) error {
	if err := cmd.journal(); err != nil {
		return err
	}
	rows, err := cmd.app.Journal.Transitions(ctx, c.Args().First(), cmd.limit)
	if err != nil {
		return err
	}
	if cmd.json() {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, rows)
	}

	p := printer.Ctx(ctx)
	if len(rows) == 0 {
		p.Infof("No transitions recorded")
		return nil
	}
	for _, t := range rows {
		p.Printf("%s  %s  %s → %s  %s",
			styles.TextMutedStyle.Render(t.At.Format(historyTimeLayout)),
			shortID(t.CycleID),
			t.From,
			styles.StateStyle.Render(t.To),
			styles.TextMutedStyle.Render(t.Reason))
	}
	return nil
}

func (cmd *HistoryCmd) runEvaluations(ctx context.Context, c *cli.Command) error {
	if err := cmd.journal(); err != nil {
		return err
	}
	rows, err := cmd.app.Journal.Evaluations(ctx, c.Args().First(), cmd.limit)
	if err != nil {
		return err
	}
	if cmd.json() {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, rows)
	}

	p := printer.Ctx(ctx)
	if len(rows) == 0 {
		p.Infof("No evaluations recorded")
		return nil
	}
	for _, e := range rows {
		line := fmt.Sprintf("%s  %s → %s  %d", e.At.Format(historyTimeLayout), e.Origin, e.Destination, e.Price)
		if e.Accepted {
			p.Printf("%s %s %s", styles.AcceptedStyle.Render(styles.IconPass), line, styles.TextMutedStyle.Render(e.Branch))
		} else {
			p.Printf("%s %s %s", styles.RejectedStyle.Render(styles.IconFail), line, styles.TextMutedStyle.Render(e.Reason))
		}
	}
	return nil
}

func (cmd *HistoryCmd) runAccepted(ctx context.Context, c *cli.Command) error {
	if err := cmd.journal(); err != nil {
		return err
	}
	rows, err := cmd.app.Journal.Acceptances(ctx, cmd.limit)
	if err != nil {
		return err
	}
	if cmd.json() {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, rows)
	}

	p := printer.Ctx(ctx)
	if len(rows) == 0 {
		p.Infof("No accepted orders")
		return nil
	}
	for _, a := range rows {
		p.Printf("%s  %s → %s  %s  %s",
			styles.TextMutedStyle.Render(a.At.Format(historyTimeLayout)),
			a.Origin, a.Destination,
			styles.HighlightStyle.Render(fmt.Sprint(a.Price)),
			styles.TextMutedStyle.Render(a.Scheduled))
	}
	return nil
}

func (cmd *HistoryCmd) runFaults(ctx context.Context, c *cli.Command) error {
	if err := cmd.journal(); err != nil {
		return err
	}
	rows, err := cmd.app.Journal.Faults(ctx, cmd.limit)
	if err != nil {
		return err
	}
	if cmd.json() {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, rows)
	}

	p := printer.Ctx(ctx)
	if len(rows) == 0 {
		p.Infof("No faults recorded")
		return nil
	}
	for _, f := range rows {
		p.Printf("%s  %s  %s  %s",
			styles.TextMutedStyle.Render(f.At.Format(historyTimeLayout)),
			f.State,
			styles.TextErrorStyle.Render(f.Class),
			f.Message)
	}
	return nil
}

func (cmd *HistoryCmd) runNotifications(ctx context.Context, c *cli.Command) error {
	store := cmd.app.Notifications
	if store == nil {
		return errors.New("notification store is not available")
	}
	level, err := notify.ParseLevel(cmd.level)
	if err != nil {
		return err
	}
	rows, err := store.List(ctx, notify.Query{Limit: cmd.limit, MinLevel: level})
	if err != nil {
		return err
	}

	if cmd.json() {
		if err := iojson.WriteWith(c.Root().Writer, os.Stderr, rows); err != nil {
			return err
		}
	} else {
		p := printer.Ctx(ctx)
		if len(rows) == 0 {
			p.Infof("No notifications")
		}
		for _, n := range rows {
			msg := n.Message
			switch n.Level {
			case notify.LevelError:
				msg = styles.TextErrorStyle.Render(msg)
			case notify.LevelWarning:
				msg = styles.TextWarningStyle.Render(msg)
			}
			p.Printf("%s  %-8s %s", styles.TextMutedStyle.Render(n.CreatedAt.Format(historyTimeLayout)), n.Source, msg)
		}
	}

	if cmd.clear {
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("clear notifications: %w", err)
		}
		if !cmd.json() {
			printer.Ctx(ctx).Successf("Cleared notifications")
		}
	}
	return nil
}

func (cmd *HistoryCmd) runSummary(ctx context.Context, c *cli.Command) error {
	if err := cmd.journal(); err != nil {
		return err
	}
	since := time.Now().Add(-cmd.since)
	sum, err := cmd.app.Journal.SummarySince(ctx, since)
	if err != nil {
		return err
	}
	if cmd.json() {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, struct {
			Since time.Time `json:"since"`
			Count int       `json:"count"`
			Total int       `json:"total"`
		}{since, sum.Count, sum.Total})
	}

	printer.Ctx(ctx).Printf("%d accepted, total %d since %s", sum.Count, sum.Total, since.Format(historyTimeLayout))
	return nil
}

func (cmd *HistoryCmd) runPrune(ctx context.Context, _ *cli.Command) error {
	if err := cmd.journal(); err != nil {
		return err
	}
	n, err := cmd.app.Journal.Prune(ctx, time.Now().Add(-cmd.olderThan))
	if err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Removed %d journal row(s)", n)
	return nil
}

func shortID(id string) string {
	if id == "" {
		return "--------"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/farepilot/internal/core/filter"
	"github.com/colonyops/farepilot/internal/core/styles"
	"github.com/colonyops/farepilot/internal/farepilot"
	"github.com/colonyops/farepilot/internal/printer"
	"github.com/colonyops/farepilot/internal/settings"
	"github.com/colonyops/farepilot/pkg/iojson"
)

type ReplayCmd struct {
	flags *Flags
	app   *farepilot.App

	// flags
	globs   []string
	filters string
	at      string
	format  string
}

// NewReplayCmd creates a new replay command.
func NewReplayCmd(flags *Flags, app *farepilot.App) *ReplayCmd {
	return &ReplayCmd{flags: flags, app: app}
}

// Register adds the replay command to the application.
func (cmd *ReplayCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "replay",
		Usage:     "Run extraction and filters over saved HTML captures",
		UsageText: "farepilot replay [options] [file...]",
		Description: `Parses each capture, extracts every record in the list container and
prints the verdict the engine would reach. Nothing is clicked.

Examples:
  farepilot replay captures/list.html
  farepilot replay --glob 'captures/**/*.html' --format json`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "glob",
				Aliases:     []string{"g"},
				Usage:       "doublestar pattern selecting captures (repeatable)",
				Destination: &cmd.globs,
			},
			&cli.StringFlag{
				Name:        "filters",
				Usage:       "filters file to evaluate with (defaults to the configured one)",
				Destination: &cmd.filters,
			},
			&cli.StringFlag{
				Name:        "at",
				Usage:       "evaluate as if at this local time (" + filter.DateTimeLayout + ")",
				Destination: &cmd.at,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
				Validator:   iojson.ValidFormat,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ReplayCmd) run(ctx context.Context, c *cli.Command) error {
	files, err := cmd.resolve(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no captures given; pass files or --glob")
	}

	path := cmd.filters
	if path == "" {
		path = cmd.app.Config.FiltersPath()
	}
	rules, err := settings.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load filters: %w", err)
	}

	now := time.Now()
	if cmd.at != "" {
		now, err = time.ParseInLocation(filter.DateTimeLayout, cmd.at, time.Local)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}

	results := make([]replayOutput, 0, len(files))
	for _, file := range files {
		results = append(results, cmd.replayFile(file, rules, now))
	}

	if cmd.format == iojson.FormatJSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, results)
	}
	return cmd.outputText(printer.Ctx(ctx), results)
}

// resolve merges positional files with glob matches, keeping order and
// dropping duplicates.
func (cmd *ReplayCmd) resolve(args []string) ([]string, error) {
	files := slices.Clone(args)
	for _, pattern := range cmd.globs {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		slices.Sort(matches)
		files = append(files, matches...)
	}

	seen := make(map[string]bool, len(files))
	out := files[:0]
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

type replayOutput struct {
	farepilot.ReplayResult
	Error string `json:"error,omitempty"`
}

func (cmd *ReplayCmd) replayFile(path string, rules filter.Config, now time.Time) replayOutput {
	f, err := os.Open(path)
	if err != nil {
		return replayOutput{ReplayResult: farepilot.ReplayResult{Source: path}, Error: err.Error()}
	}
	defer func() { _ = f.Close() }()

	res, err := cmd.app.Replay(path, f, rules, now)
	out := replayOutput{ReplayResult: res}
	out.Source = path
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func (cmd *ReplayCmd) outputText(p *printer.Printer, results []replayOutput) error {
	failed := 0
	for i, res := range results {
		if i > 0 {
			p.Printf("")
		}
		p.Section(res.Source)

		if res.Error != "" {
			failed++
			p.FailItem("error", res.Error)
			continue
		}
		if len(res.Items) == 0 {
			p.WarnItem("no records extracted", "")
			continue
		}

		for _, it := range res.Items {
			label := fmt.Sprintf("%s → %s  %d", it.Origin, it.Destination, it.Price)
			if it.Accepted {
				detail := it.Branch
				if it.Matched != "" {
					detail += " " + it.Matched
				}
				p.CheckItem(label, detail+" · "+it.Confidence)
			} else {
				p.FailItem(label, it.Reason+" · "+it.Confidence)
			}
		}
		if res.Best != nil {
			p.Printf("  %s %s",
				styles.TextMutedStyle.Render("target"),
				styles.HighlightStyle.Render(fmt.Sprintf("#%d %s → %s  %d", res.Best.Index, res.Best.Origin, res.Best.Destination, res.Best.Price)))
		}
	}

	if failed > 0 {
		p.Printf("")
		p.Errorf("%d of %d capture(s) failed", failed, len(results))
		return cli.Exit("", 1)
	}
	return nil
}

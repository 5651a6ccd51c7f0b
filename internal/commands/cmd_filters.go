package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	initcmd "github.com/colonyops/farepilot/internal/commands/init"
	"github.com/colonyops/farepilot/internal/core/filter"
	"github.com/colonyops/farepilot/internal/farepilot"
	"github.com/colonyops/farepilot/internal/printer"
	"github.com/colonyops/farepilot/internal/settings"
	"github.com/colonyops/farepilot/pkg/iojson"
)

type FiltersCmd struct {
	flags *Flags
	app   *farepilot.App

	// flags
	yes      bool
	force    bool
	defaults bool
	format   string
	reader   iojson.FileReader[settings.File]
}

// NewFiltersCmd creates a new filters command.
func NewFiltersCmd(flags *Flags, app *farepilot.App) *FiltersCmd {
	return &FiltersCmd{flags: flags, app: app}
}

// Register adds the filters command to the application.
func (cmd *FiltersCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "filters",
		Usage: "Manage the acceptance rules",
		Description: `The filters file holds the rules every extracted record is checked
against. A running engine reloads it when it changes.`,
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Create the filters file interactively",
				UsageText: "farepilot filters init [options]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "yes",
						Aliases:     []string{"y"},
						Usage:       "skip prompts and write the starting rules",
						Destination: &cmd.yes,
					},
					&cli.BoolFlag{
						Name:        "force",
						Usage:       "overwrite an existing file (a backup is kept)",
						Destination: &cmd.force,
					},
					&cli.BoolFlag{
						Name:        "defaults",
						Usage:       "start from the stock rules instead of the current file",
						Destination: &cmd.defaults,
					},
				},
				Action: cmd.runInit,
			},
			{
				Name:      "show",
				Usage:     "Print the effective rules",
				UsageText: "farepilot filters show [--format yaml|json]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (yaml, json)",
						Value:       "yaml",
						Destination: &cmd.format,
						Validator: func(s string) error {
							if s == "yaml" || s == iojson.FormatJSON {
								return nil
							}
							return fmt.Errorf("unknown format %q (want yaml or json)", s)
						},
					},
				},
				Action: cmd.runShow,
			},
			{
				Name:        "import",
				Usage:       "Replace the rules from JSON or YAML",
				UsageText:   "farepilot filters import -f shared-filters.yaml",
				Description: "Reads rules from --file or stdin, validates them and writes the filters file.",
				Flags:       []cli.Flag{cmd.reader.Flag()},
				Action:      cmd.runImport,
			},
			{
				Name:  "path",
				Usage: "Print the filters file location",
				Action: func(_ context.Context, c *cli.Command) error {
					_, err := fmt.Fprintln(c.Root().Writer, cmd.app.Config.FiltersPath())
					return err
				},
			},
		},
	})
	return app
}

func (cmd *FiltersCmd) runInit(ctx context.Context, _ *cli.Command) error {
	path := cmd.app.Config.FiltersPath()

	start := filter.Default()
	if !cmd.defaults {
		current, err := settings.LoadFile(path)
		if err != nil {
			printer.Ctx(ctx).Warnf("Current filters unreadable, starting from defaults: %v", err)
		} else {
			start = current
		}
	}

	return initcmd.NewWizard(initcmd.WizardOptions{
		Path:  path,
		Yes:   cmd.yes,
		Force: cmd.force,
		Start: start,
	}).Run(ctx)
}

func (cmd *FiltersCmd) runShow(_ context.Context, c *cli.Command) error {
	cfg, err := settings.LoadFile(cmd.app.Config.FiltersPath())
	if err != nil {
		return err
	}
	f := settings.FromConfig(cfg)

	if cmd.format == iojson.FormatJSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, f)
	}

	data, err := f.Marshal()
	if err != nil {
		return err
	}
	_, err = c.Root().Writer.Write(data)
	return err
}

func (cmd *FiltersCmd) runImport(ctx context.Context, _ *cli.Command) error {
	f, err := cmd.reader.Read()
	if err != nil {
		return err
	}
	cfg, err := f.Config()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}

	p := printer.Ctx(ctx)
	path := cmd.app.Config.FiltersPath()
	backup, err := initcmd.BackupFile(path)
	if err != nil {
		return err
	}
	if backup != "" {
		p.Successf("Backed up filters to: %s", backup)
	}
	if err := settings.Write(path, cfg); err != nil {
		return err
	}
	p.Successf("Wrote filters: %s", path)
	return nil
}

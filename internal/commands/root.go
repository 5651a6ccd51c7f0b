package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/farepilot/internal/farepilot"
)

// NewRoot builds the command tree with global flags bound to flags. The
// caller installs Before and After hooks that populate app.
func NewRoot(flags *Flags, app *farepilot.App, version string) *cli.Command {
	root := &cli.Command{
		Name:      "farepilot",
		Usage:     "Watch a dispatch list and take the orders worth taking",
		UsageText: "farepilot [global options] command [command options]",
		Description: `farepilot watches a dispatch list in a browser, extracts every order,
checks it against your acceptance rules and walks the accept flow for the
best match.

Run 'farepilot filters init' to set up acceptance rules.
Run 'farepilot replay <capture.html>' to check rules against saved pages.
Run 'farepilot run' to start.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("FAREPILOT_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/farepilot.log)",
				Sources:     cli.EnvVars("FAREPILOT_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("FAREPILOT_CONFIG"),
				Value:       DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("FAREPILOT_DATA_DIR"),
				Value:       DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
	}

	root = NewRunCmd(flags, app).Register(root)
	root = NewReplayCmd(flags, app).Register(root)
	root = NewHistoryCmd(flags, app).Register(root)
	root = NewReportCmd(flags, app).Register(root)
	root = NewFiltersCmd(flags, app).Register(root)
	root = NewConfigValidateCmd(flags).Register(root)
	root = NewDoctorCmd(flags, app).Register(root)

	root.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'farepilot --help' for usage", c.Args().First())
		}
		return cli.ShowRootCommandHelp(c)
	}

	return root
}

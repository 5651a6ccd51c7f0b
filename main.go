package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/farepilot/internal/commands"
	"github.com/colonyops/farepilot/internal/core/config"
	"github.com/colonyops/farepilot/internal/core/logging"
	"github.com/colonyops/farepilot/internal/core/styles"
	"github.com/colonyops/farepilot/internal/data/db"
	"github.com/colonyops/farepilot/internal/data/stores"
	"github.com/colonyops/farepilot/internal/farepilot"
	"github.com/colonyops/farepilot/internal/printer"
	"github.com/colonyops/farepilot/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func buildInfo() farepilot.BuildInfo {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	return farepilot.BuildInfo{Version: v, Commit: c, Date: d}
}

func build() string {
	b := buildInfo()
	short := b.Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s) %s", b.Version, short, b.Date)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		app       = &farepilot.App{}
		database  *db.DB
	)

	flags := &commands.Flags{}

	root := commands.NewRoot(flags, app, build())
	root.Before = func(ctx context.Context, c *cli.Command) (context.Context, error) {
		ctx = printer.NewContext(ctx, printer.New(os.Stderr))

		cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
		if err != nil {
			return ctx, fmt.Errorf("load config: %w", err)
		}
		flags.Config = cfg

		// Always log to a file; use explicit path or default to <datadir>/farepilot.log
		if flags.LogFile == "" {
			flags.LogFile = cfg.LogFile()
		}
		logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
		if err != nil {
			return ctx, fmt.Errorf("setup logger: %w", err)
		}
		logging.Install(logger)
		logCloser = closer

		// Apply configured theme (validation ensures name is valid)
		palette, _ := styles.GetPalette(cfg.Dashboard.Theme)
		styles.SetTheme(palette)

		var moved string
		database, moved, err = stores.OpenJournal(cfg.DataDir, db.OpenOptions{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			BusyTimeout:  cfg.Database.BusyTimeout,
		})
		if err != nil {
			return ctx, fmt.Errorf("open database: %w", err)
		}
		if moved != "" {
			log.Warn().Str("moved_to", moved).Msg("journal was corrupt; started a new one")
		}

		// Populate the pre-allocated App struct (commands already hold a pointer to it)
		*app = *farepilot.NewApp(cfg, database, buildInfo())

		return ctx, nil
	}
	root.After = func(ctx context.Context, c *cli.Command) error {
		if database != nil {
			if err := database.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close database")
				return err
			}
		}

		if logCloser != nil {
			logCloser()
		}
		return nil
	}

	exitCode := 0
	runErr := root.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}

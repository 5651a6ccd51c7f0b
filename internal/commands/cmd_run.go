package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/farepilot/internal/core/logging"
	"github.com/colonyops/farepilot/internal/core/styles"
	"github.com/colonyops/farepilot/internal/core/uitree"
	"github.com/colonyops/farepilot/internal/driver/browser"
	"github.com/colonyops/farepilot/internal/farepilot"
	"github.com/colonyops/farepilot/internal/tui"
	"github.com/colonyops/farepilot/pkg/logutils"
)

type RunCmd struct {
	flags *Flags
	app   *farepilot.App

	// flags
	url       string
	remote    string
	headless  bool
	dashboard string
	paused    bool
}

// NewRunCmd creates a new run command.
func NewRunCmd(flags *Flags, app *farepilot.App) *RunCmd {
	return &RunCmd{flags: flags, app: app}
}

// Register adds the run command to the application.
func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Drive the live target until interrupted",
		UsageText: "farepilot run [options]",
		Description: `Opens the target in Chrome, feeds page snapshots into the engine and
acts on records that pass the filters.

The dashboard is shown when stdout is a terminal. With --dashboard=off, or
when output is redirected, logs are mirrored to stderr instead.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "target URL (overrides target.url)",
				Destination: &cmd.url,
			},
			&cli.StringFlag{
				Name:        "remote",
				Usage:       "DevTools URL of a running browser (overrides browser.remote_url)",
				Destination: &cmd.remote,
			},
			&cli.BoolFlag{
				Name:        "headless",
				Usage:       "launch Chrome without a window",
				Destination: &cmd.headless,
			},
			&cli.StringFlag{
				Name:        "dashboard",
				Usage:       "dashboard mode (auto, on, off)",
				Value:       "auto",
				Destination: &cmd.dashboard,
				Validator: func(s string) error {
					switch s {
					case "auto", "on", "off":
						return nil
					}
					return fmt.Errorf("invalid dashboard mode %q", s)
				},
			},
			&cli.BoolFlag{
				Name:        "paused",
				Usage:       "start with the engine paused",
				Destination: &cmd.paused,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *RunCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.app.Config

	bc := browser.Config{
		URL:        cfg.Target.URL,
		RemoteURL:  cfg.Browser.RemoteURL,
		Headless:   cfg.Browser.Headless || cmd.headless,
		Stealth:    cfg.Browser.Stealth,
		Context:    cfg.Target.Context,
		Screen:     uitree.Size{Width: cfg.Browser.ScreenWidth, Height: cfg.Browser.ScreenHeight},
		Privileged: cfg.Screens.PrivilegedConfirm,
	}
	if cmd.url != "" {
		bc.URL = cmd.url
	}
	if cmd.remote != "" {
		bc.RemoteURL = cmd.remote
	}
	if bc.URL == "" && bc.RemoteURL == "" {
		return errors.New("no target: set target.url or browser.remote_url, or pass --url")
	}

	// Without a dashboard logs are mirrored to stderr. With one, warnings
	// are held and printed after it closes.
	dashboard := cmd.wantDashboard()
	var held logutils.Deferred
	var (
		logger zerolog.Logger
		closer func()
		err    error
	)
	if dashboard {
		logger, closer, err = logutils.NewWithMirrorLevel(cmd.flags.LogLevel, cmd.flags.LogFile, &held, zerolog.WarnLevel)
	} else {
		logger, closer, err = logutils.NewWithMirror(cmd.flags.LogLevel, cmd.flags.LogFile, os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer closer()
	logging.Install(logger)
	defer func() { _ = held.Flush(os.Stderr) }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := browser.Open(ctx, bc)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Warn().Err(err).Msg("close browser")
		}
	}()

	var bell *farepilot.Bell
	if dashboard {
		// the dashboard owns stdout; the bell still rings through stderr
		bell = farepilot.NewBell(os.Stderr, logging.Component("notify"))
	} else {
		bell = farepilot.NewBell(os.Stdout, logging.Component("notify"))
	}
	notifiers := farepilot.Notifiers{bell}
	if cfg.Hooks.OnAccept != "" {
		hook, err := farepilot.NewHook(cfg.Hooks.OnAccept, cfg.Hooks.Timeout, nil, logging.Component("hook"))
		if err != nil {
			return err
		}
		defer hook.Wait()
		notifiers = append(notifiers, hook)
	}

	session, err := cmd.app.NewSession(farepilot.SessionOptions{
		Device:       driver,
		Notifier:     notifiers,
		WatchFilters: true,
	})
	if err != nil {
		return err
	}

	var events *tui.EventBuffer
	if dashboard {
		events = tui.NewEventBuffer(cfg.Dashboard.Rows * 4)
		events.Attach(session.Bus)
	}

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer session.Close()

	if cmd.paused {
		session.Engine.Pause()
	}

	feeder := browser.NewFeeder(driver, session.Engine, cfg.Browser.CaptureInterval, logging.Component("feeder"))
	feedErr := make(chan error, 1)
	go func() { feedErr <- feeder.Run(ctx) }()

	log.Info().
		Str("url", bc.URL).
		Str("remote", bc.RemoteURL).
		Bool("dashboard", dashboard).
		Msg("engine running")

	if dashboard {
		palette, _ := styles.GetPalette(cfg.Dashboard.Theme)
		styles.SetTheme(palette)

		m := tui.New(session.Engine, events, tui.Opts{
			Rows:        cfg.Dashboard.Rows,
			Target:      bc.URL,
			MetricsAddr: session.MetricsAddr(),
			BuildInfo:   tui.BuildInfo(cmd.app.Build),
		})
		if err := tui.Run(ctx, m); err != nil {
			return err
		}
		stop()
	} else {
		select {
		case <-ctx.Done():
		case err := <-feedErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("capture loop: %w", err)
			}
		}
	}

	log.Info().Msg("shutting down")
	return nil
}

// wantDashboard resolves --dashboard against the config and the terminal.
func (cmd *RunCmd) wantDashboard() bool {
	switch cmd.dashboard {
	case "on":
		return true
	case "off":
		return false
	}
	if e := cmd.app.Config.Dashboard.Enabled; e != nil && !*e {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

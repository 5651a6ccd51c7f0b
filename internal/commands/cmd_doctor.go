package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/farepilot/internal/core/doctor"
	"github.com/colonyops/farepilot/internal/core/styles"
	"github.com/colonyops/farepilot/internal/farepilot"
	"github.com/colonyops/farepilot/internal/printer"
	"github.com/colonyops/farepilot/pkg/iojson"
)

type DoctorCmd struct {
	flags  *Flags
	app    *farepilot.App
	format string
}

func NewDoctorCmd(flags *Flags, app *farepilot.App) *DoctorCmd {
	return &DoctorCmd{flags: flags, app: app}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your farepilot setup",
		UsageText:   "farepilot doctor [options]",
		Description: "Checks the configuration, filters file, data directory, journal schema and browser.",
		Flags: []cli.Flag{
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

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	results := cmd.app.Doctor.RunChecks(ctx, cmd.flags.ConfigPath)
	passed, warned, failed := doctor.Summary(results)

	if cmd.format == iojson.FormatJSON {
		err := iojson.WriteWith(c.Root().Writer, os.Stderr, doctorReport{
			Healthy: failed == 0,
			Summary: doctorSummary{Passed: passed, Warned: warned, Failed: failed},
			Checks:  results,
		})
		if err != nil {
			return err
		}
	} else {
		p := printer.Ctx(ctx)
		p.Section("farepilot doctor")
		for _, r := range results {
			p.Printf("%s %s", styles.TextForegroundBoldStyle.Render(r.Name),
				styles.TextMutedStyle.Render(r.Took.Round(time.Millisecond).String()))
			for _, item := range r.Items {
				switch item.Status {
				case doctor.StatusFail:
					p.FailItem(item.Label, item.Detail)
				case doctor.StatusWarn:
					p.WarnItem(item.Label, item.Detail)
				default:
					p.CheckItem(item.Label, item.Detail)
				}
			}
		}
		p.Printf("")
		p.Printf("%s  %s  %s",
			styles.TextSuccessStyle.Render(fmt.Sprintf("%d passed", passed)),
			styles.TextWarningStyle.Render(fmt.Sprintf("%d warnings", warned)),
			styles.TextErrorStyle.Render(fmt.Sprintf("%d failed", failed)))
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

type doctorReport struct {
	Healthy bool            `json:"healthy"`
	Summary doctorSummary   `json:"summary"`
	Checks  []doctor.Result `json:"checks"`
}

type doctorSummary struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

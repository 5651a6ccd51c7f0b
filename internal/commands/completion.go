package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/farepilot/internal/farepilot"
)

// CycleIDCompleter returns a ShellCompleteFunc that suggests recent cycle
// ids from the journal as positional completions.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func CycleIDCompleter(app *farepilot.App) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		if app.Journal == nil {
			return
		}
		transitions, err := app.Journal.Transitions(ctx, "", 200)
		if err != nil {
			return
		}

		w := cmd.Root().Writer
		seen := make(map[string]bool)
		for _, t := range transitions {
			if t.CycleID == "" || seen[t.CycleID] {
				continue
			}
			seen[t.CycleID] = true
			_, _ = fmt.Fprintln(w, t.CycleID)
		}
	}
}

package farepilot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/farepilot/internal/core/engine"
	"github.com/colonyops/farepilot/internal/core/record"
	"github.com/colonyops/farepilot/pkg/executil"
	"github.com/colonyops/farepilot/pkg/tmpl"
)

// HookData is what on_accept templates are rendered with.
type HookData struct {
	Origin      string
	Destination string
	Price       int
	Scheduled   string
	Category    string
	Confidence  string
	At          time.Time
}

func newHookData(r record.Record, at time.Time) HookData {
	return HookData{
		Origin:      r.Origin(),
		Destination: r.Destination(),
		Price:       r.Price(),
		Scheduled:   r.Scheduled(),
		Category:    r.Category(),
		Confidence:  r.Confidence().String(),
		At:          at,
	}
}

// env exposes the record to the command as FAREPILOT_* variables.
func (d HookData) env() []string {
	return []string{
		"FAREPILOT_ORIGIN=" + d.Origin,
		"FAREPILOT_DESTINATION=" + d.Destination,
		"FAREPILOT_PRICE=" + strconv.Itoa(d.Price),
		"FAREPILOT_SCHEDULED=" + d.Scheduled,
		"FAREPILOT_CATEGORY=" + d.Category,
		"FAREPILOT_CONFIDENCE=" + d.Confidence,
	}
}

// Hook runs a shell command for every accepted record. Commands run in the
// background so a slow hook never holds up the engine.
type Hook struct {
	tpl     *tmpl.Template
	runner  executil.Runner
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

var _ engine.Notifier = (*Hook)(nil)

// NewHook parses command. A nil runner uses the system shell.
func NewHook(command string, timeout time.Duration, runner executil.Runner, log zerolog.Logger) (*Hook, error) {
	tpl, err := tmpl.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("hooks.on_accept: %w", err)
	}
	if runner == nil {
		runner = executil.Shell{}
	}
	return &Hook{tpl: tpl, runner: runner, timeout: timeout, log: log, now: time.Now}, nil
}

func (h *Hook) Accepted(ctx context.Context, r record.Record) {
	data := newHookData(r, h.now())
	cmd, err := h.tpl.Execute(data)
	if err != nil {
		h.log.Error().Err(err).Msg("render on_accept hook")
		return
	}

	// The engine context ends with the session; hooks get their own timeout.
	ctx = context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if h.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}

		start := time.Now()
		if err := h.runner.RunSh(ctx, cmd, data.env()); err != nil {
			h.log.Warn().Err(err).Str("command", cmd).Msg("on_accept hook failed")
			return
		}
		h.log.Debug().Str("command", cmd).Dur("took", time.Since(start)).Msg("on_accept hook ran")
	}()
}

// Wait blocks until every started command has finished.
func (h *Hook) Wait() {
	h.wg.Wait()
}

// Notifiers fans an acceptance out to each notifier in order.
type Notifiers []engine.Notifier

var _ engine.Notifier = Notifiers(nil)

func (ns Notifiers) Accepted(ctx context.Context, r record.Record) {
	for _, n := range ns {
		n.Accepted(ctx, r)
	}
}

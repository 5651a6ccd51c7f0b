// Package tui renders the live dashboard shown while the engine runs.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/farepilot/internal/core/engine"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/notify"
)

const statusInterval = 250 * time.Millisecond

// Controller is the part of the engine the dashboard drives.
type Controller interface {
	Status() engine.Status
	Pause()
	Resume()
}

// BuildInfo holds build-time metadata for display in the header.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Opts configures the dashboard.
type Opts struct {
	Rows        int // evaluations and notifications kept on screen
	Target      string
	MetricsAddr string
	BuildInfo   BuildInfo
}

type statusTickMsg time.Time

// evaluation is one row of the evaluations panel.
type evaluation struct {
	at      time.Time
	payload eventbus.RecordEvaluatedPayload
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctrl   Controller
	events *EventBuffer
	opts   Opts
	keys   keyMap
	help   help.Model

	now         time.Time
	status      engine.Status
	last        eventbus.StateChangedPayload
	transitions int
	evaluations []evaluation
	notes       []notify.Notification
	accepted    int
	acceptedSum int
	width       int
}

// New builds the dashboard model. events must already be attached to the
// bus.
func New(ctrl Controller, events *EventBuffer, opts Opts) Model {
	if opts.Rows <= 0 {
		opts.Rows = 8
	}
	return Model{
		ctrl:   ctrl,
		events: events,
		opts:   opts,
		keys:   defaultKeyMap(),
		help:   help.New(),
		now:    time.Now(),
		status: ctrl.Status(),
	}
}

func tickStatus() tea.Cmd {
	return tea.Tick(statusInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// Init starts status polling and event draining.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickStatus(), m.events.WaitForSignal())
}

// Update handles key presses, status ticks and drained bus events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.ctrl.Pause()
			m.status = m.ctrl.Status()
		case key.Matches(msg, m.keys.Resume):
			m.ctrl.Resume()
			m.status = m.ctrl.Status()
		case key.Matches(msg, m.keys.Clear):
			m.evaluations = nil
			m.notes = nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case statusTickMsg:
		m.now = time.Time(msg)
		m.status = m.ctrl.Status()
		return m, tickStatus()

	case drainEventsMsg:
		for _, ev := range m.events.Drain() {
			m.apply(ev)
		}
		return m, m.events.WaitForSignal()
	}

	return m, nil
}

func (m *Model) apply(ev any) {
	switch p := ev.(type) {
	case eventbus.StateChangedPayload:
		m.last = p
		m.transitions++
	case eventbus.RecordEvaluatedPayload:
		m.evaluations = prepend(m.evaluations, evaluation{at: m.now, payload: p}, m.opts.Rows)
	case eventbus.OrderAcceptedPayload:
		m.accepted++
		m.acceptedSum += p.Record.Price()
	case eventbus.NotificationPublishedPayload:
		m.notes = prepend(m.notes, notify.Notification{
			Level:     p.Level,
			Message:   p.Message,
			CreatedAt: m.now,
		}, m.opts.Rows)
	}
}

// prepend puts v first and keeps at most limit items.
func prepend[T any](list []T, v T, limit int) []T {
	list = append([]T{v}, list...)
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

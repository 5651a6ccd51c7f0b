package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/farepilot/internal/core/notify"
	"github.com/colonyops/farepilot/internal/core/styles"
)

// View renders the dashboard.
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderStatus(),
		m.renderEvaluations(),
		m.renderNotifications(),
		styles.HelpStyle.Render(m.help.View(m.keys)),
	}
	out := sections[:0]
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func (m Model) renderHeader() string {
	title := styles.HeaderStyle.Render("farepilot")
	parts := []string{title}
	if v := m.opts.BuildInfo.Version; v != "" {
		parts = append(parts, styles.TextMutedStyle.Render(v))
	}
	if m.opts.Target != "" {
		parts = append(parts, styles.TextMutedStyle.Render(m.opts.Target))
	}
	if m.opts.MetricsAddr != "" {
		parts = append(parts, styles.TextMutedStyle.Render("metrics "+m.opts.MetricsAddr))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderStatus() string {
	st := m.status

	var b strings.Builder
	b.WriteString(styles.StateStyle.Render(string(st.State)))
	if !st.EnteredAt.IsZero() {
		fmt.Fprintf(&b, " %s", styles.TextMutedStyle.Render("for "+since(m.now, st.EnteredAt)))
	}
	switch {
	case st.Paused:
		b.WriteString("  " + styles.PausedStyle.Render("PAUSED"))
	case !st.Running:
		b.WriteString("  " + styles.TextMutedStyle.Render("stopped"))
	}
	b.WriteString("\n")

	cycle := st.CycleID
	if len(cycle) > 8 {
		cycle = cycle[:8]
	}
	if cycle == "" {
		cycle = "-"
	}
	fmt.Fprintf(&b, "cycle %s  transitions %d  accepted %d (%d)",
		cycle, m.transitions, m.accepted, m.acceptedSum)

	if st.Target != nil {
		fmt.Fprintf(&b, "\ntarget %s",
			styles.HighlightStyle.Render(fmt.Sprintf("%s → %s  %d", st.Target.Origin(), st.Target.Destination(), st.Target.Price())))
	}
	if m.last.Reason != "" {
		fmt.Fprintf(&b, "\n%s", styles.TextMutedStyle.Render(
			fmt.Sprintf("last: %s → %s (%s)", m.last.From, m.last.To, m.last.Reason)))
	}

	return m.panel("Engine", b.String())
}

func (m Model) renderEvaluations() string {
	if len(m.evaluations) == 0 {
		return m.panel("Evaluations", styles.TextMutedStyle.Render("no records yet"))
	}

	lines := make([]string, 0, len(m.evaluations))
	for _, ev := range m.evaluations {
		r := ev.payload.Record
		line := fmt.Sprintf("%s %-9s %s → %s  %d", ev.at.Format(time.TimeOnly),
			r.Confidence(), r.Origin(), r.Destination(), r.Price())
		if ev.payload.Accepted {
			lines = append(lines, styles.AcceptedStyle.Render("✔ "+line+" ["+string(ev.payload.Branch)+"]"))
		} else {
			lines = append(lines, styles.RejectedStyle.Render("✘ "+line+" "+ev.payload.Reason))
		}
	}
	return m.panel("Evaluations", strings.Join(lines, "\n"))
}

func (m Model) renderNotifications() string {
	if len(m.notes) == 0 {
		return ""
	}

	lines := make([]string, 0, len(m.notes))
	for _, n := range m.notes {
		var style lipgloss.Style
		switch n.Level {
		case notify.LevelError:
			style = styles.TextErrorStyle
		case notify.LevelWarning:
			style = styles.TextWarningStyle
		default:
			style = styles.TextSuccessStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s",
			styles.TextMutedStyle.Render(n.CreatedAt.Format(time.TimeOnly)),
			style.Render(n.Message)))
	}
	return m.panel("Notifications", strings.Join(lines, "\n"))
}

func (m Model) panel(title, body string) string {
	style := styles.PanelStyle
	if m.width > 4 {
		style = style.Width(m.width - 2)
	}
	return style.Render(styles.PanelTitle.Render(title) + "\n" + body)
}

func since(now, then time.Time) string {
	d := now.Sub(then)
	if d < 0 {
		d = 0
	}
	return d.Round(100 * time.Millisecond).String()
}

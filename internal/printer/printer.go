// Package printer writes styled, human-oriented command output.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/colonyops/farepilot/internal/core/styles"
)

type ctxKey struct{}

// Printer writes status lines to an output stream.
type Printer struct {
	w io.Writer
}

// New creates a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// NewContext stores p in ctx.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the Printer stored in ctx, or one writing to stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

func (p *Printer) line(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

// Printf writes an unstyled line.
func (p *Printer) Printf(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

// Successf writes a line prefixed with a success mark.
func (p *Printer) Successf(format string, args ...any) {
	p.line(styles.TextSuccessStyle.Render(styles.IconPass) + " " + fmt.Sprintf(format, args...))
}

// Infof writes a muted informational line.
func (p *Printer) Infof(format string, args ...any) {
	p.line(styles.TextMutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Warnf writes a line prefixed with a warning mark.
func (p *Printer) Warnf(format string, args ...any) {
	p.line(styles.TextWarningStyle.Render(styles.IconWarn) + " " + fmt.Sprintf(format, args...))
}

// Errorf writes a line prefixed with a failure mark.
func (p *Printer) Errorf(format string, args ...any) {
	p.line(styles.TextErrorStyle.Render(styles.IconFail) + " " + fmt.Sprintf(format, args...))
}

// Section writes a bold heading.
func (p *Printer) Section(title string) {
	p.line(styles.TextForegroundBoldStyle.Render(title))
}

// CheckItem writes an indented passing item.
func (p *Printer) CheckItem(label, detail string) {
	p.item(styles.TextSuccessStyle.Render(styles.IconPass), label, detail)
}

// WarnItem writes an indented warning item.
func (p *Printer) WarnItem(label, detail string) {
	p.item(styles.TextWarningStyle.Render(styles.IconWarn), label, detail)
}

// FailItem writes an indented failing item.
func (p *Printer) FailItem(label, detail string) {
	p.item(styles.TextErrorStyle.Render(styles.IconFail), label, detail)
}

func (p *Printer) item(icon, label, detail string) {
	if detail != "" {
		detail = " " + styles.TextMutedStyle.Render(detail)
	}
	p.line(fmt.Sprintf("  %s %s%s", icon, label, detail))
}

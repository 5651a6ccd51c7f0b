// Package tmpl renders user-written command templates.
package tmpl

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// shellQuote wraps s in single quotes, escaping embedded quotes as '\''.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// money formats n with comma thousands separators.
func money(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

var funcs = template.FuncMap{
	"shq":   shellQuote,
	"join":  strings.Join,
	"money": money,
	"clock": func(t time.Time) string { return t.Format(time.TimeOnly) },
}

// Template is a parsed command template.
type Template struct {
	t *template.Template
}

// Parse parses text. Templates fail on missing keys.
//
// Functions:
//   - shq: shell-quote a string
//   - join: join a string slice with a separator
//   - money: 42000 -> 42,000
//   - clock: format a time as 15:04:05
func Parse(text string) (*Template, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return &Template{t: t}, nil
}

// Execute renders the template with data.
func (t *Template) Execute(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// Render parses and executes text in one step.
func Render(text string, data any) (string, error) {
	t, err := Parse(text)
	if err != nil {
		return "", err
	}
	return t.Execute(data)
}

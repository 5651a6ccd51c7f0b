// Package initcmd implements the interactive filters wizard.
package initcmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/colonyops/farepilot/internal/core/filter"
	"github.com/colonyops/farepilot/internal/printer"
	"github.com/colonyops/farepilot/internal/settings"
)

// WizardOptions configures the wizard behavior.
type WizardOptions struct {
	Path  string
	Yes   bool // skip prompts, write Start as-is
	Force bool // overwrite an existing file

	// Start seeds the form. The current filters when the file exists,
	// otherwise the defaults.
	Start filter.Config
}

// Wizard collects acceptance rules and writes the filters file.
type Wizard struct {
	opts WizardOptions
}

// NewWizard creates a new filters wizard.
func NewWizard(opts WizardOptions) *Wizard {
	return &Wizard{opts: opts}
}

// Run executes the wizard.
func (w *Wizard) Run(ctx context.Context) error {
	p := printer.Ctx(ctx)

	if FileExists(w.opts.Path) && !w.opts.Force {
		if w.opts.Yes {
			return fmt.Errorf("filters exist at %s; use --force to overwrite", w.opts.Path)
		}

		var overwrite bool
		err := huh.NewConfirm().
			Title("Filters file already exists").
			Description(w.opts.Path + "\nOverwrite? (a backup will be created)").
			Value(&overwrite).
			Run()
		if err != nil {
			return err
		}
		if !overwrite {
			p.Infof("Init cancelled")
			return nil
		}
	}

	cfg := w.opts.Start
	if !w.opts.Yes {
		a := newAnswers(cfg)
		if err := w.prompt(&a); err != nil {
			return err
		}
		var err error
		cfg, err = a.apply(cfg)
		if err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}

	if FileExists(w.opts.Path) {
		backupPath, err := BackupFile(w.opts.Path)
		if err != nil {
			return fmt.Errorf("backup filters: %w", err)
		}
		if backupPath != "" {
			p.Successf("Backed up filters to: %s", backupPath)
		}
	}

	if err := settings.Write(w.opts.Path, cfg); err != nil {
		return fmt.Errorf("write filters: %w", err)
	}
	p.Successf("Created filters: %s", w.opts.Path)

	p.Printf("")
	p.Section("Rules")
	p.CheckItem("mode", string(cfg.Mode))
	switch cfg.Mode {
	case filter.ModeOriginRestricted:
		p.CheckItem("origins", fmt.Sprintf("%s at %d+", strings.Join(cfg.OriginAllowList, ", "), cfg.OriginMinAmount))
	default:
		p.CheckItem("amount", strconv.Itoa(cfg.MinAmount))
		if len(cfg.Keywords) > 0 {
			p.CheckItem("keywords", fmt.Sprintf("%s at %d+", strings.Join(cfg.Keywords, ", "), cfg.KeywordMinAmount))
		} else {
			p.WarnItem("keywords", "none")
		}
	}
	if len(cfg.ExcludedCategories) > 0 {
		p.CheckItem("excluded", strings.Join(cfg.ExcludedCategories, ", "))
	}
	p.Printf("")
	p.Infof("A running engine picks up changes to this file without a restart.")

	return nil
}

func (w *Wizard) prompt(a *answers) error {
	mode := huh.NewSelect[string]().
		Title("Acceptance mode").
		Options(
			huh.NewOption("Amount or keyword", string(filter.ModeAmountOrKeyword)),
			huh.NewOption("Origin allow-list only", string(filter.ModeOriginRestricted)),
		).
		Value(&a.Mode)

	form := huh.NewForm(
		huh.NewGroup(mode),
		huh.NewGroup(
			huh.NewInput().
				Title("Minimum amount").
				Description("Accept any record at or above this price").
				Validate(validateAmount).
				Value(&a.MinAmount),
			huh.NewInput().
				Title("Keywords").
				Description("Comma-separated; matched against origin and destination").
				Value(&a.Keywords),
			huh.NewInput().
				Title("Keyword minimum amount").
				Validate(validateAmount).
				Value(&a.KeywordMinAmount),
		).WithHideFunc(func() bool { return a.Mode != string(filter.ModeAmountOrKeyword) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Allowed origins").
				Description("Comma-separated origin markers").
				Value(&a.OriginAllowList),
			huh.NewInput().
				Title("Origin minimum amount").
				Validate(validateAmount).
				Value(&a.OriginMinAmount),
		).WithHideFunc(func() bool { return a.Mode != string(filter.ModeOriginRestricted) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Excluded categories").
				Description("Comma-separated; matching records are always rejected").
				Value(&a.ExcludedCategories),
		),
	)

	return form.Run()
}

// answers is the form state. Numbers stay strings until apply.
type answers struct {
	Mode               string
	MinAmount          string
	KeywordMinAmount   string
	OriginMinAmount    string
	Keywords           string
	OriginAllowList    string
	ExcludedCategories string
}

func newAnswers(c filter.Config) answers {
	return answers{
		Mode:               string(c.Mode),
		MinAmount:          strconv.Itoa(c.MinAmount),
		KeywordMinAmount:   strconv.Itoa(c.KeywordMinAmount),
		OriginMinAmount:    strconv.Itoa(c.OriginMinAmount),
		Keywords:           strings.Join(c.Keywords, ", "),
		OriginAllowList:    strings.Join(c.OriginAllowList, ", "),
		ExcludedCategories: strings.Join(c.ExcludedCategories, ", "),
	}
}

// apply overlays the answers on base. Windows are kept from base.
func (a answers) apply(base filter.Config) (filter.Config, error) {
	c := base.Clone()
	c.Mode = filter.Mode(a.Mode)

	var err error
	if c.MinAmount, err = parseAmount("minimum amount", a.MinAmount); err != nil {
		return filter.Config{}, err
	}
	if c.KeywordMinAmount, err = parseAmount("keyword minimum amount", a.KeywordMinAmount); err != nil {
		return filter.Config{}, err
	}
	if c.OriginMinAmount, err = parseAmount("origin minimum amount", a.OriginMinAmount); err != nil {
		return filter.Config{}, err
	}

	c.Keywords = splitList(a.Keywords)
	c.OriginAllowList = splitList(a.OriginAllowList)
	c.ExcludedCategories = splitList(a.ExcludedCategories)
	return c, nil
}

func validateAmount(s string) error {
	_, err := parseAmount("amount", s)
	return err
}

func parseAmount(name, s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative whole number", name)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

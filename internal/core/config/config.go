// Package config handles configuration loading and validation for farepilot.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/engine"
	"github.com/colonyops/farepilot/internal/core/extract"
	"github.com/colonyops/farepilot/internal/core/styles"
)

// Config holds the application configuration.
type Config struct {
	Target      TargetConfig     `yaml:"target"`
	Browser     BrowserConfig    `yaml:"browser"`
	Engine      EngineConfig     `yaml:"engine"`
	Extraction  ExtractionConfig `yaml:"extraction"`
	Screens     ScreensConfig    `yaml:"screens"`
	FiltersFile string           `yaml:"filters_file"` // relative paths resolve against DataDir
	Metrics     MetricsConfig    `yaml:"metrics"`
	Database    DatabaseConfig   `yaml:"database"`
	Dashboard   DashboardConfig  `yaml:"dashboard"`
	Hooks       HooksConfig      `yaml:"hooks"`
	DataDir     string           `yaml:"-"` // set by caller, not from config file
}

// TargetConfig identifies the driven application.
type TargetConfig struct {
	URL     string `yaml:"url"`
	Context string `yaml:"context"` // snapshots from any other context are ignored
}

// BrowserConfig configures the rod driver.
type BrowserConfig struct {
	RemoteURL       string        `yaml:"remote_url"` // attach to a running browser instead of launching one
	Headless        bool          `yaml:"headless"`
	Stealth         bool          `yaml:"stealth"`
	CaptureInterval time.Duration `yaml:"capture_interval"`
	ScreenWidth     int           `yaml:"screen_width"`
	ScreenHeight    int           `yaml:"screen_height"`
}

// EngineConfig tunes the scheduling loop. Map keys are state names.
type EngineConfig struct {
	Delays             map[string]time.Duration `yaml:"delays"`
	Timeouts           map[string]time.Duration `yaml:"timeouts"`
	DefaultDelay       time.Duration            `yaml:"default_delay"`
	Timeout            time.Duration            `yaml:"timeout"`
	ConfirmTimeout     time.Duration            `yaml:"confirm_timeout"`
	PausedDelay        time.Duration            `yaml:"paused_delay"`
	InvalidatedDelay   time.Duration            `yaml:"invalidated_delay"`
	PrivilegedDelay    time.Duration            `yaml:"privileged_delay"`
	FaultDelay         time.Duration            `yaml:"fault_delay"`
	RefreshInterval    float64                  `yaml:"refresh_interval"` // seconds
	RefreshLogInterval time.Duration            `yaml:"refresh_log_interval"`
	PauseOnFailure     bool                     `yaml:"pause_on_failure"`
	TargetAttempts     int                      `yaml:"target_attempts"`
	DetailGraceTicks   int                      `yaml:"detail_grace_ticks"`
	ConfirmAttempts    int                      `yaml:"confirm_attempts"`
	ConfirmStableTicks int                      `yaml:"confirm_stable_ticks"`
	ConfirmWaitTicks   int                      `yaml:"confirm_wait_ticks"`
}

// ExtractionConfig configures the record extraction chain.
type ExtractionConfig struct {
	ScheduleID       string   `yaml:"schedule_id"`
	RouteID          string   `yaml:"route_id"`
	FareID           string   `yaml:"fare_id"`
	Delimiter        string   `yaml:"delimiter"`
	Arrow            string   `yaml:"arrow"`
	PricePattern     string   `yaml:"price_pattern"`
	TimePattern      string   `yaml:"time_pattern"`
	RoutePattern     string   `yaml:"route_pattern"`
	CurrencyMarkers  []string `yaml:"currency_markers"`
	FeeMarkers       []string `yaml:"fee_markers"`
	MinSegmentLength int      `yaml:"min_segment_length"`
	Strategies       []string `yaml:"strategies"` // empty enables all
	Mode             string   `yaml:"mode"`       // first | best
}

// ScreensConfig holds the markers and controls of the target's screens.
type ScreensConfig struct {
	ListMarkers          []string `yaml:"list_markers"`
	ListContainerID      string   `yaml:"list_container_id"`
	DetailMarkers        []string `yaml:"detail_markers"`
	RefreshID            string   `yaml:"refresh_id"`
	RefreshTexts         []string `yaml:"refresh_texts"`
	ActionID             string   `yaml:"action_id"`
	ActionTexts          []string `yaml:"action_texts"`
	ConfirmID            string   `yaml:"confirm_id"`
	ConfirmTexts         []string `yaml:"confirm_texts"`
	DismissID            string   `yaml:"dismiss_id"`
	DismissTexts         []string `yaml:"dismiss_texts"`
	AlreadyAssignedTexts []string `yaml:"already_assigned_texts"`
	CanceledTexts        []string `yaml:"canceled_texts"`
	PrivilegedConfirm    bool     `yaml:"privileged_confirm"`
}

// MetricsConfig configures the prometheus endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// DashboardConfig configures the terminal dashboard shown by `run`.
type DashboardConfig struct {
	Theme   string `yaml:"theme"`
	Enabled *bool  `yaml:"enabled"` // nil shows it whenever stdout is a terminal
	Rows    int    `yaml:"rows"`    // recent evaluations kept on screen
}

// HooksConfig holds shell commands run on engine events. Commands are Go
// templates rendered with the accepted record.
type HooksConfig struct {
	OnAccept string        `yaml:"on_accept"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures the journal database.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	opts := engine.DefaultOptions()
	rules := extract.DefaultRules()
	s := opts.Screens

	delays := make(map[string]time.Duration, len(opts.Delays))
	for st, d := range opts.Delays {
		delays[string(st)] = d
	}

	return Config{
		Target: TargetConfig{
			Context: "com.example.driver",
		},
		Browser: BrowserConfig{
			Headless:        true,
			Stealth:         true,
			CaptureInterval: 100 * time.Millisecond,
			ScreenWidth:     1080,
			ScreenHeight:    2400,
		},
		Engine: EngineConfig{
			Delays:             delays,
			Timeouts:           map[string]time.Duration{},
			DefaultDelay:       opts.DefaultDelay,
			Timeout:            opts.Timeout,
			ConfirmTimeout:     opts.ConfirmTimeout,
			PausedDelay:        opts.PausedDelay,
			InvalidatedDelay:   opts.InvalidatedDelay,
			PrivilegedDelay:    opts.PrivilegedDelay,
			FaultDelay:         opts.FaultDelay,
			RefreshInterval:    opts.RefreshInterval,
			RefreshLogInterval: opts.RefreshLogInterval,
			TargetAttempts:     opts.TargetAttempts,
			DetailGraceTicks:   opts.DetailGraceTicks,
			ConfirmAttempts:    opts.ConfirmAttempts,
			ConfirmStableTicks: opts.ConfirmStableTicks,
			ConfirmWaitTicks:   opts.ConfirmWaitTicks,
		},
		Extraction: ExtractionConfig{
			ScheduleID:       rules.ScheduleID,
			RouteID:          rules.RouteID,
			FareID:           rules.FareID,
			Delimiter:        rules.Delimiter,
			Arrow:            rules.Arrow,
			PricePattern:     rules.PricePattern,
			TimePattern:      rules.TimePattern,
			RoutePattern:     rules.RoutePattern,
			CurrencyMarkers:  rules.CurrencyMarkers,
			FeeMarkers:       rules.FeeMarkers,
			MinSegmentLength: rules.MinSegmentLength,
			Mode:             string(extract.ModeFirst),
		},
		Screens: ScreensConfig{
			ListMarkers:          s.ListMarkers,
			ListContainerID:      s.ListContainerID,
			DetailMarkers:        s.DetailMarkers,
			RefreshID:            s.RefreshID,
			RefreshTexts:         s.RefreshTexts,
			ActionID:             s.ActionID,
			ActionTexts:          s.ActionTexts,
			ConfirmID:            s.ConfirmID,
			ConfirmTexts:         s.ConfirmTexts,
			DismissID:            s.DismissID,
			DismissTexts:         s.DismissTexts,
			AlreadyAssignedTexts: s.AlreadyAssignedTexts,
			CanceledTexts:        s.CanceledTexts,
			PrivilegedConfirm:    s.PrivilegedConfirm,
		},
		FiltersFile: "filters.yaml",
		Dashboard: DashboardConfig{
			Theme: styles.DefaultTheme,
			Rows:  8,
		},
		Hooks: HooksConfig{
			Timeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 2,
			MaxIdleConns: 2,
			BusyTimeout:  5000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
// User delay overrides are merged over the stock per-state delays.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	delays := defaults.Engine.Delays
	maps.Copy(delays, c.Engine.Delays)
	c.Engine.Delays = delays
	if c.Engine.Timeouts == nil {
		c.Engine.Timeouts = map[string]time.Duration{}
	}

	e, de := &c.Engine, defaults.Engine
	setDuration(&e.DefaultDelay, de.DefaultDelay)
	setDuration(&e.Timeout, de.Timeout)
	setDuration(&e.ConfirmTimeout, de.ConfirmTimeout)
	setDuration(&e.PausedDelay, de.PausedDelay)
	setDuration(&e.InvalidatedDelay, de.InvalidatedDelay)
	setDuration(&e.PrivilegedDelay, de.PrivilegedDelay)
	setDuration(&e.FaultDelay, de.FaultDelay)
	setDuration(&e.RefreshLogInterval, de.RefreshLogInterval)
	setInt(&e.TargetAttempts, de.TargetAttempts)
	setInt(&e.DetailGraceTicks, de.DetailGraceTicks)
	setInt(&e.ConfirmAttempts, de.ConfirmAttempts)
	setInt(&e.ConfirmStableTicks, de.ConfirmStableTicks)
	setInt(&e.ConfirmWaitTicks, de.ConfirmWaitTicks)
	if e.RefreshInterval == 0 {
		e.RefreshInterval = de.RefreshInterval
	}

	if c.Extraction.Mode == "" {
		c.Extraction.Mode = defaults.Extraction.Mode
	}
	setInt(&c.Extraction.MinSegmentLength, defaults.Extraction.MinSegmentLength)

	setDuration(&c.Browser.CaptureInterval, defaults.Browser.CaptureInterval)
	setInt(&c.Browser.ScreenWidth, defaults.Browser.ScreenWidth)
	setInt(&c.Browser.ScreenHeight, defaults.Browser.ScreenHeight)

	setInt(&c.Database.MaxOpenConns, defaults.Database.MaxOpenConns)
	setInt(&c.Database.MaxIdleConns, defaults.Database.MaxIdleConns)
	setInt(&c.Database.BusyTimeout, defaults.Database.BusyTimeout)

	if c.FiltersFile == "" {
		c.FiltersFile = defaults.FiltersFile
	}

	if c.Dashboard.Theme == "" {
		c.Dashboard.Theme = defaults.Dashboard.Theme
	}
	setInt(&c.Dashboard.Rows, defaults.Dashboard.Rows)
	setDuration(&c.Hooks.Timeout, defaults.Hooks.Timeout)
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	for name := range c.Engine.Delays {
		if !control.State(name).IsValid() {
			return fmt.Errorf("engine.delays: unknown state %q", name)
		}
	}
	for name := range c.Engine.Timeouts {
		if !control.State(name).IsValid() {
			return fmt.Errorf("engine.timeouts: unknown state %q", name)
		}
	}

	if c.Engine.Timeout < 0 || c.Engine.ConfirmTimeout < 0 {
		return fmt.Errorf("engine timeouts cannot be negative")
	}
	if c.Engine.RefreshInterval < 0 {
		return fmt.Errorf("engine.refresh_interval cannot be negative")
	}
	if c.Engine.TargetAttempts < 1 || c.Engine.ConfirmAttempts < 1 {
		return fmt.Errorf("engine attempt bounds must be at least 1")
	}

	switch extract.Mode(c.Extraction.Mode) {
	case extract.ModeFirst, extract.ModeBest:
	default:
		return fmt.Errorf("extraction.mode %q must be %q or %q", c.Extraction.Mode, extract.ModeFirst, extract.ModeBest)
	}

	if c.Screens.ListContainerID == "" {
		return fmt.Errorf("screens.list_container_id cannot be empty")
	}
	if len(c.Screens.ListMarkers) == 0 || len(c.Screens.DetailMarkers) == 0 {
		return fmt.Errorf("screens need at least one list marker and one detail marker")
	}

	if c.Hooks.Timeout < 0 {
		return fmt.Errorf("hooks.timeout cannot be negative")
	}

	if c.Browser.CaptureInterval < 0 {
		return fmt.Errorf("browser.capture_interval cannot be negative")
	}

	if _, ok := styles.GetPalette(c.Dashboard.Theme); !ok {
		return fmt.Errorf("dashboard.theme %q is not one of %v", c.Dashboard.Theme, styles.ThemeNames())
	}

	return nil
}

// EngineOptions converts the engine and screens sections.
func (c *Config) EngineOptions() engine.Options {
	e, s := c.Engine, c.Screens

	opts := engine.Options{
		Context:            c.Target.Context,
		Delays:             make(map[control.State]time.Duration, len(e.Delays)),
		Timeouts:           make(map[control.State]time.Duration, len(e.Timeouts)),
		DefaultDelay:       e.DefaultDelay,
		NoSnapshotDelay:    e.DefaultDelay,
		PausedDelay:        e.PausedDelay,
		InvalidatedDelay:   e.InvalidatedDelay,
		PrivilegedDelay:    e.PrivilegedDelay,
		FaultDelay:         e.FaultDelay,
		Timeout:            e.Timeout,
		ConfirmTimeout:     e.ConfirmTimeout,
		RefreshInterval:    e.RefreshInterval,
		RefreshLogInterval: e.RefreshLogInterval,
		PauseOnFailure:     e.PauseOnFailure,
		TargetAttempts:     e.TargetAttempts,
		DetailGraceTicks:   e.DetailGraceTicks,
		ConfirmAttempts:    e.ConfirmAttempts,
		ConfirmStableTicks: e.ConfirmStableTicks,
		ConfirmWaitTicks:   e.ConfirmWaitTicks,
		Screens: engine.Screens{
			ListMarkers:          s.ListMarkers,
			ListContainerID:      s.ListContainerID,
			DetailMarkers:        s.DetailMarkers,
			RefreshID:            s.RefreshID,
			RefreshTexts:         s.RefreshTexts,
			ActionID:             s.ActionID,
			ActionTexts:          s.ActionTexts,
			ConfirmID:            s.ConfirmID,
			ConfirmTexts:         s.ConfirmTexts,
			DismissID:            s.DismissID,
			DismissTexts:         s.DismissTexts,
			AlreadyAssignedTexts: s.AlreadyAssignedTexts,
			CanceledTexts:        s.CanceledTexts,
			PrivilegedConfirm:    s.PrivilegedConfirm,
		},
	}
	for name, d := range e.Delays {
		opts.Delays[control.State(name)] = d
	}
	for name, d := range e.Timeouts {
		opts.Timeouts[control.State(name)] = d
	}
	return opts
}

// ExtractionRules converts the extraction section.
func (c *Config) ExtractionRules() extract.Rules {
	x := c.Extraction
	return extract.Rules{
		ScheduleID:       x.ScheduleID,
		RouteID:          x.RouteID,
		FareID:           x.FareID,
		Delimiter:        x.Delimiter,
		Arrow:            x.Arrow,
		PricePattern:     x.PricePattern,
		TimePattern:      x.TimePattern,
		RoutePattern:     x.RoutePattern,
		CurrencyMarkers:  x.CurrencyMarkers,
		FeeMarkers:       x.FeeMarkers,
		MinSegmentLength: x.MinSegmentLength,
	}
}

// Chain builds the extraction chain described by the extraction section.
func (c *Config) Chain() (*extract.Chain, error) {
	return extract.New(c.ExtractionRules(), extract.Mode(c.Extraction.Mode), c.Extraction.Strategies...)
}

// FiltersPath returns the absolute location of the filters file.
func (c *Config) FiltersPath() string {
	if filepath.IsAbs(c.FiltersFile) {
		return c.FiltersFile
	}
	return filepath.Join(c.DataDir, c.FiltersFile)
}

// DatabaseFile returns the path to the journal database.
func (c *Config) DatabaseFile() string {
	return filepath.Join(c.DataDir, "farepilot.db")
}

// LogFile returns the default log location inside the data directory.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, "farepilot.log")
}

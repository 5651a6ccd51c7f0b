package config

import (
	"fmt"
	"os"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/farepilot/internal/settings"
	"github.com/colonyops/farepilot/pkg/tmpl"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration including
// regex patterns, the extraction chain, and file accessibility. The configPath
// argument specifies the config file location to validate (empty string skips
// config file check). This calls Validate() first for basic structural
// validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateExtraction(),
		c.validateFilters(),
		c.validateHooks(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Target.URL == "" && c.Browser.RemoteURL == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Target",
			Message:  "neither target.url nor browser.remote_url is set; only replay will work",
		})
	}
	if c.Target.Context == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Target",
			Item:     "context",
			Message:  "empty context accepts snapshots from any page",
		})
	}
	if c.Screens.PrivilegedConfirm {
		warnings = append(warnings, ValidationWarning{
			Category: "Screens",
			Item:     "privileged_confirm",
			Message:  "privileged touch injection is enabled for the confirm control",
		})
	}
	if c.Engine.ConfirmTimeout < c.Engine.Timeout {
		warnings = append(warnings, ValidationWarning{
			Category: "Engine",
			Item:     "confirm_timeout",
			Message:  "confirm_timeout is shorter than the default timeout",
		})
	}

	return warnings
}

// validateFileAccess checks config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

// validateExtraction compiles the patterns and builds the chain.
func (c *Config) validateExtraction() error {
	var errs criterio.FieldErrorsBuilder
	if err := c.ExtractionRules().Validate(); err != nil {
		errs = errs.Append("extraction", err)
	} else if _, err := c.Chain(); err != nil {
		errs = errs.Append("extraction.strategies", err)
	}
	return errs.ToError()
}

// validateFilters loads the filters file if present and checks its rules.
func (c *Config) validateFilters() error {
	path := c.FiltersPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // defaults are used
	}

	f, err := settings.LoadFile(path)
	if err != nil {
		return criterio.NewFieldErrors("filters_file", err)
	}
	if err := f.Validate(); err != nil {
		return criterio.NewFieldErrors("filters_file", err)
	}
	return nil
}

// validateHooks parses every hook template.
func (c *Config) validateHooks() error {
	if c.Hooks.OnAccept == "" {
		return nil
	}
	if _, err := tmpl.Parse(c.Hooks.OnAccept); err != nil {
		return criterio.NewFieldErrors("hooks.on_accept", err)
	}
	return nil
}

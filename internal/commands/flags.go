package commands

import (
	"os"
	"path/filepath"

	"github.com/colonyops/farepilot/internal/core/config"
)

const appDir = "farepilot"

// Flags holds the global flag values shared by every subcommand.
type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the root Before hook.
	Config *config.Config
}

// xdgDir resolves an XDG base directory, falling back to a path under the
// user's home when the variable is unset or relative.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); filepath.IsAbs(dir) {
		return filepath.Join(dir, appDir)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(append(append([]string{home}, fallback...), appDir)...)
}

// DefaultConfigPath is $XDG_CONFIG_HOME/farepilot/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.yaml")
}

// DefaultDataDir is $XDG_DATA_HOME/farepilot.
func DefaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/engine"
	"github.com/colonyops/farepilot/internal/core/extract"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load(filepath.Join(dataDir, "nope.yaml"), dataDir)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, def.Engine.Timeout, cfg.Engine.Timeout)
	assert.Equal(t, def.Extraction.RoutePattern, cfg.Extraction.RoutePattern)
	assert.Equal(t, filepath.Join(dataDir, "filters.yaml"), cfg.FiltersPath())
	assert.Equal(t, filepath.Join(dataDir, "farepilot.db"), cfg.DatabaseFile())
	assert.Equal(t, "tokyo-night", cfg.Dashboard.Theme)
	assert.Equal(t, 8, cfg.Dashboard.Rows)
	assert.Nil(t, cfg.Dashboard.Enabled)
	assert.Empty(t, cfg.Hooks.OnAccept)
	assert.Equal(t, 10*time.Second, cfg.Hooks.Timeout)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
target:
  url: https://driver.example.com
  context: com.example.other
engine:
  timeout: 15s
  confirm_timeout: 30s
  refresh_interval: 2.5
  pause_on_failure: true
  delays:
    refreshing: 1s
  timeouts:
    analyzing: 3s
extraction:
  mode: best
  strategies: [identifier, pattern]
screens:
  privileged_confirm: true
filters_file: /etc/farepilot/filters.yaml
hooks:
  on_accept: notify-send {{ shq .Origin }}
  timeout: 3s
`)
	dataDir := t.TempDir()

	cfg, err := Load(path, dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir, "data dir is never read from the file")
	assert.Equal(t, "com.example.other", cfg.Target.Context)
	assert.Equal(t, 15*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, time.Second, cfg.Engine.Delays["refreshing"])
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.Delays["analyzing"], "unset delays keep their defaults")
	assert.Equal(t, "/etc/farepilot/filters.yaml", cfg.FiltersPath())
	assert.Equal(t, "notify-send {{ shq .Origin }}", cfg.Hooks.OnAccept)
	assert.Equal(t, 3*time.Second, cfg.Hooks.Timeout)

	opts := cfg.EngineOptions()
	assert.Equal(t, "com.example.other", opts.Context)
	assert.Equal(t, 2.5, opts.RefreshInterval)
	assert.True(t, opts.PauseOnFailure)
	assert.True(t, opts.Screens.PrivilegedConfirm)
	assert.Equal(t, time.Second, opts.Delays[control.StateRefreshing])
	assert.Equal(t, 3*time.Second, opts.Timeouts[control.StateAnalyzing])
	assert.Equal(t, 30*time.Second, opts.ConfirmTimeout)

	c, err := cfg.Chain()
	require.NoError(t, err)
	assert.Equal(t, extract.ModeBest, c.Mode())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "unknown delay state",
			body:    "engine:\n  delays:\n    sleeping: 1s\n",
			wantErr: `unknown state "sleeping"`,
		},
		{
			name:    "unknown timeout state",
			body:    "engine:\n  timeouts:\n    napping: 1s\n",
			wantErr: `unknown state "napping"`,
		},
		{
			name:    "bad extraction mode",
			body:    "extraction:\n  mode: random\n",
			wantErr: "extraction.mode",
		},
		{
			name:    "negative refresh",
			body:    "engine:\n  refresh_interval: -1\n",
			wantErr: "refresh_interval",
		},
		{
			name:    "unknown theme",
			body:    "dashboard:\n  theme: neon\n",
			wantErr: "dashboard.theme",
		},
		{
			name:    "negative hook timeout",
			body:    "hooks:\n  timeout: -1s\n",
			wantErr: "hooks.timeout",
		},
		{
			name:    "malformed yaml",
			body:    "engine: [",
			wantErr: "parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRequiresDataDir(t *testing.T) {
	_, err := Load("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data directory")
}

func TestDefaultsRoundTripToEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.applyDefaults()
	require.NoError(t, cfg.Validate())

	got := cfg.EngineOptions()
	want := engine.DefaultOptions()

	assert.Equal(t, want.Delays, got.Delays)
	assert.Equal(t, want.Timeout, got.Timeout)
	assert.Equal(t, want.ConfirmTimeout, got.ConfirmTimeout)
	assert.Equal(t, want.TargetAttempts, got.TargetAttempts)
	assert.Equal(t, want.ConfirmWaitTicks, got.ConfirmWaitTicks)
	assert.Equal(t, want.Screens, got.Screens)
	assert.Equal(t, extract.DefaultRules(), cfg.ExtractionRules())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config with all required fields set for testing.
func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.applyDefaults()
	return &cfg
}

func TestValidateDeep_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.ValidateDeep(""))
}

func TestValidateDeep_InvalidPattern(t *testing.T) {
	cfg := validConfig(t)
	cfg.Extraction.TimePattern = `(\d`

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "extraction", fieldErrs[0].Field)
	assert.Contains(t, fieldErrs[0].Err.Error(), "time pattern")
}

func TestValidateDeep_UnknownStrategy(t *testing.T) {
	cfg := validConfig(t)
	cfg.Extraction.Strategies = []string{"identifier", "vision"}

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "extraction.strategies", fieldErrs[0].Field)
}

func TestValidateDeep_Filters(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "valid",
			body: "mode: amount-or-keyword\nmin_amount: 25000\nkeywords: [Airport]\n",
		},
		{
			name:    "invalid rules",
			body:    "mode: anything\n",
			wantErr: "mode",
		},
		{
			name:    "malformed",
			body:    "keywords: [",
			wantErr: "filters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			require.NoError(t, os.WriteFile(cfg.FiltersPath(), []byte(tt.body), 0o644))

			err := cfg.ValidateDeep("")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			assert.Equal(t, "filters_file", fieldErrs[0].Field)
			assert.Contains(t, fieldErrs[0].Err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDeep_ConfigFileIsDirectory(t *testing.T) {
	cfg := validConfig(t)
	dir := t.TempDir()

	err := cfg.ValidateDeep(dir)

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "config_file", fieldErrs[0].Field)
	assert.Contains(t, fieldErrs[0].Err.Error(), "is a directory")
}

func TestValidateDeep_DataDirIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	cfg.DataDir = file
	cfg.FiltersFile = filepath.Join(t.TempDir(), "filters.yaml")

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "data_dir", fieldErrs[0].Field)
}

func TestValidateDeep_Hooks(t *testing.T) {
	cfg := validConfig(t)
	cfg.Hooks.OnAccept = `notify-send {{ shq .Origin }} {{ money .Price }}`
	require.NoError(t, cfg.ValidateDeep(""))

	cfg.Hooks.OnAccept = `notify-send {{ .Origin }`
	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "hooks.on_accept", fieldErrs[0].Field)
}

func TestWarnings(t *testing.T) {
	cfg := validConfig(t)
	cfg.Screens.PrivilegedConfirm = true

	var items []string
	for _, w := range cfg.Warnings() {
		items = append(items, w.Category+"/"+w.Item)
	}

	assert.Contains(t, items, "Target/")
	assert.Contains(t, items, "Screens/privileged_confirm")
	assert.NotContains(t, items, "Engine/confirm_timeout")
}

package logutils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "farepilot.log")

	l, closer, err := New("info", file)
	require.NoError(t, err)

	l.Debug().Msg("hidden")
	l.Info().Str("state", "idle").Msg("visible")
	closer()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"visible"`)
	assert.Contains(t, string(data), `"state":"idle"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewAppends(t *testing.T) {
	file := filepath.Join(t.TempDir(), "farepilot.log")

	for _, msg := range []string{"first", "second"} {
		l, closer, err := New("info", file)
		require.NoError(t, err)
		l.Info().Msg(msg)
		closer()
	}

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}

func TestNewWithMirror(t *testing.T) {
	file := filepath.Join(t.TempDir(), "farepilot.log")
	var console bytes.Buffer

	l, closer, err := NewWithMirror("debug", file, &console)
	require.NoError(t, err)
	defer closer()

	l.Warn().Msg("timed out")

	assert.Contains(t, console.String(), "timed out")
	assert.NotContains(t, console.String(), `"message"`)
}

func TestNewInvalidLevel(t *testing.T) {
	_, _, err := New("loud", "")
	require.Error(t, err)
}

package iojson

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteWith(t *testing.T) {
	var out, errOut bytes.Buffer

	err := WriteWith(&out, &errOut, map[string]int{"accepted": 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"accepted":2}`, out.String())
	assert.Empty(t, errOut.String())
}

func TestWriteWithMarshalFailure(t *testing.T) {
	var out, errOut bytes.Buffer

	err := WriteWith(&out, &errOut, map[string]any{"bad": make(chan int)})
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "json_error")
}

func TestMarshalError(t *testing.T) {
	got := MarshalError("replay failed", map[string]any{"file": "a.html"})
	assert.JSONEq(t, `{"message":"replay failed","data":{"file":"a.html"}}`, got)

	escaped := jsonError(`quote "me"`, errors.New("boom"))
	assert.JSONEq(t, `{"message":"quote \"me\"","data":{"json_error":"boom"}}`, escaped)
}

func TestValidFormat(t *testing.T) {
	require.NoError(t, ValidFormat(FormatText))
	require.NoError(t, ValidFormat(FormatJSON))
	require.Error(t, ValidFormat("yaml"))
}

type rules struct {
	Mode      string `json:"mode" yaml:"mode"`
	MinAmount int    `json:"min_amount" yaml:"min_amount"`
}

func TestFileReader(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"mode":"amount-or-keyword","min_amount":40}`), 0o644))

		fr := &FileReader[rules]{fileFlagValue: path}
		got, err := fr.Read()
		require.NoError(t, err)
		assert.Equal(t, rules{Mode: "amount-or-keyword", MinAmount: 40}, got)
	})

	t.Run("stdin", func(t *testing.T) {
		fr := &FileReader[rules]{stdin: strings.NewReader(`{"min_amount":5}`)}
		got, err := fr.Read()
		require.NoError(t, err)
		assert.Equal(t, 5, got.MinAmount)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "filters.yaml")
		require.NoError(t, os.WriteFile(path, []byte("mode: amount\nmin_amount: 30000\n"), 0o644))

		fr := &FileReader[rules]{fileFlagValue: path}
		got, err := fr.Read()
		require.NoError(t, err)
		assert.Equal(t, rules{Mode: "amount", MinAmount: 30000}, got)
	})

	t.Run("yaml stdin", func(t *testing.T) {
		fr := &FileReader[rules]{stdin: strings.NewReader("\n  min_amount: 7\n")}
		got, err := fr.Read()
		require.NoError(t, err)
		assert.Equal(t, 7, got.MinAmount)
	})

	t.Run("json stdin with leading whitespace", func(t *testing.T) {
		fr := &FileReader[rules]{stdin: strings.NewReader("\n\t {\"min_amount\":9}")}
		got, err := fr.Read()
		require.NoError(t, err)
		assert.Equal(t, 9, got.MinAmount)
	})

	t.Run("unknown yaml field", func(t *testing.T) {
		fr := &FileReader[rules]{stdin: strings.NewReader("minimum: 5\n")}
		_, err := fr.Read()
		require.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		fr := &FileReader[rules]{stdin: strings.NewReader(`{"minimum":5}`)}
		_, err := fr.Read()
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		fr := &FileReader[rules]{fileFlagValue: filepath.Join(t.TempDir(), "nope.json")}
		_, err := fr.Read()
		require.Error(t, err)
	})
}

package iojson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// FileReader decodes a T from the --file flag or, when unset, from piped
// stdin. Input is JSON unless the file ends in .yaml/.yml or piped input
// does not start with '{'. Unknown fields are rejected in both forms.
type FileReader[T any] struct {
	fileFlagValue string
	stdin         io.Reader
}

func (fr *FileReader[T]) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "path to a JSON or YAML file (reads stdin if not provided)",
		Destination: &fr.fileFlagValue,
		TakesFile:   true,
	}
}

func (fr *FileReader[T]) Read() (T, error) {
	var input T

	var r *bufio.Reader
	isYAML := false
	switch {
	case fr.fileFlagValue != "":
		f, err := os.Open(fr.fileFlagValue)
		if err != nil {
			return input, fmt.Errorf("open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = bufio.NewReader(f)
		ext := strings.ToLower(filepath.Ext(fr.fileFlagValue))
		isYAML = ext == ".yaml" || ext == ".yml"
	default:
		in := fr.stdin
		if in == nil {
			if term.IsTerminal(int(os.Stdin.Fd())) {
				return input, fmt.Errorf("no input provided (stdin is a terminal); use -f or pipe input")
			}
			in = os.Stdin
		}
		r = bufio.NewReader(in)
		isYAML = !startsWithBrace(r)
	}

	if isYAML {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&input); err != nil {
			return input, fmt.Errorf("decode YAML: %w", err)
		}
		return input, nil
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return input, fmt.Errorf("decode JSON: %w", err)
	}
	return input, nil
}

// startsWithBrace peeks past leading whitespace for a JSON object.
func startsWithBrace(r *bufio.Reader) bool {
	for n := 1; ; n++ {
		b, err := r.Peek(n)
		if len(b) < n {
			return false
		}
		c := b[n-1]
		if bytes.IndexByte([]byte(" \t\r\n"), c) >= 0 {
			if err != nil {
				return false
			}
			continue
		}
		return c == '{'
	}
}

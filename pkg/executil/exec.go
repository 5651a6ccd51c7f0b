// Package executil runs user-supplied shell commands.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

const maxStderrLen = 500

// cappedBuffer keeps at most max bytes and discards the rest.
type cappedBuffer struct {
	buf bytes.Buffer
	max int
}

func (w *cappedBuffer) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

// Runner runs a shell command line with extra environment variables.
type Runner interface {
	RunSh(ctx context.Context, cmd string, env []string) error
}

// Shell runs commands through sh -c. The zero value is ready to use.
type Shell struct {
	Dir    string    // empty inherits the working directory
	Stdout io.Writer // nil discards
}

var _ Runner = Shell{}

// RunSh runs cmd with env appended to the process environment. On failure
// the first 500 bytes of stderr become the error message and the
// *exec.ExitError stays reachable through errors.As.
func (s Shell) RunSh(ctx context.Context, cmd string, env []string) error {
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Dir = s.Dir
	c.Env = append(os.Environ(), env...)
	c.Stdout = s.Stdout
	if c.Stdout == nil {
		c.Stdout = io.Discard
	}

	stderr := &cappedBuffer{max: maxStderrLen}
	c.Stderr = stderr
	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.buf.String()); msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return err
	}
	return nil
}

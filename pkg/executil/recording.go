package executil

import (
	"context"
	"sync"
)

// RecordedCommand is one command seen by a Recorder.
type RecordedCommand struct {
	Cmd string
	Env []string
}

// Recorder captures commands instead of running them.
type Recorder struct {
	mu       sync.Mutex
	Commands []RecordedCommand
	Err      error // returned from every call
}

var _ Runner = (*Recorder)(nil)

func (r *Recorder) RunSh(_ context.Context, cmd string, env []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, RecordedCommand{Cmd: cmd, Env: append([]string(nil), env...)})
	return r.Err
}

// Recorded returns a copy of the captured commands.
func (r *Recorder) Recorded() []RecordedCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedCommand(nil), r.Commands...)
}

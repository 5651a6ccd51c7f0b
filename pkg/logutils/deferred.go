package logutils

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Deferred holds log output while something else owns the terminal and
// replays it on Flush. Once Limit bytes are held further writes are counted
// and discarded. Safe for concurrent use.
type Deferred struct {
	Limit int // zero means 256 KiB

	mu      sync.Mutex
	buf     bytes.Buffer
	dropped int
}

const defaultDeferredLimit = 256 << 10

// Write buffers p, or drops it once the limit is reached. It never fails so
// a full buffer cannot break logging.
func (d *Deferred) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	limit := d.Limit
	if limit <= 0 {
		limit = defaultDeferredLimit
	}
	if d.buf.Len()+len(p) > limit {
		d.dropped++
		return len(p), nil
	}
	return d.buf.Write(p)
}

// Flush writes everything held to w, notes how many writes were dropped
// and resets the buffer.
func (d *Deferred) Flush(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buf.Len() > 0 {
		if _, err := d.buf.WriteTo(w); err != nil {
			return err
		}
	}
	if d.dropped > 0 {
		if _, err := fmt.Fprintf(w, "(%d more log lines dropped)\n", d.dropped); err != nil {
			return err
		}
	}
	d.buf.Reset()
	d.dropped = 0
	return nil
}

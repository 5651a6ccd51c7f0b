package farepilot

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/farepilot/internal/core/engine"
	"github.com/colonyops/farepilot/internal/core/record"
)

// Bell rings the terminal and logs every accepted record.
type Bell struct {
	mu  sync.Mutex
	w   io.Writer
	log zerolog.Logger
}

var _ engine.Notifier = (*Bell)(nil)

// NewBell writes the bell character to w. A nil w only logs.
func NewBell(w io.Writer, log zerolog.Logger) *Bell {
	return &Bell{w: w, log: log}
}

func (b *Bell) Accepted(ctx context.Context, r record.Record) {
	b.log.Info().Ctx(ctx).
		Str("origin", r.Origin()).
		Str("destination", r.Destination()).
		Int("price", r.Price()).
		Str("scheduled", r.Scheduled()).
		Msg("order accepted")

	if b.w == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.w, "\a")
}

package browser

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/colonyops/farepilot/internal/core/uitree"
)

// Capturer produces snapshots of the target.
type Capturer interface {
	Capture(ctx context.Context) (*uitree.Snapshot, error)
}

// Sink receives snapshots; the engine implements it.
type Sink interface {
	SubmitSnapshot(*uitree.Snapshot)
}

// Feeder captures the target on a fixed interval and hands every snapshot to
// the sink. The sink only ever keeps the newest one.
type Feeder struct {
	src      Capturer
	sink     Sink
	interval time.Duration
	log      zerolog.Logger
	errLog   *rate.Limiter
}

// NewFeeder builds a feeder. Capture errors are logged at most once every
// five seconds.
func NewFeeder(src Capturer, sink Sink, interval time.Duration, log zerolog.Logger) *Feeder {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Feeder{
		src:      src,
		sink:     sink,
		interval: interval,
		log:      log,
		errLog:   rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// Run feeds until ctx is done.
func (f *Feeder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		f.once(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (f *Feeder) once(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 2*f.interval+time.Second)
	defer cancel()

	snap, err := f.src.Capture(cctx)
	if err != nil {
		if ctx.Err() == nil && f.errLog.Allow() {
			f.log.Warn().Err(err).Msg("capture failed")
		}
		return
	}
	f.sink.SubmitSnapshot(snap)
}

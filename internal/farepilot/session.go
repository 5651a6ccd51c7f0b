package farepilot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/farepilot/internal/core/engine"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/logging"
	"github.com/colonyops/farepilot/internal/metrics"
	"github.com/colonyops/farepilot/internal/settings"
)

const busSize = 256

// SessionOptions supplies the parts of a session that depend on how the
// target is reached.
type SessionOptions struct {
	Device   engine.Device
	Notifier engine.Notifier

	// Clock and Rand are for tests; nil uses the real ones.
	Clock engine.Clock
	Rand  func() float64

	// WatchFilters reloads the filters file when it changes on disk.
	WatchFilters bool
}

// Session is one live engine run: the bus, the hot-reloaded filters, the
// journal and metrics subscriptions and the engine itself.
type Session struct {
	Engine   *engine.Engine
	Bus      *eventbus.EventBus
	Filters  *settings.Store
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	app    *App
	opts   SessionOptions
	server *metrics.Server
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession builds a session around the device. Nothing runs until Start.
func (a *App) NewSession(opts SessionOptions) (*Session, error) {
	if opts.Device == nil {
		return nil, errors.New("session: device is required")
	}

	bus := eventbus.New(busSize)
	eventbus.RegisterDebugLogger(bus, logging.Component("bus"))

	filters, err := settings.Open(a.Config.FiltersPath(), bus)
	if err != nil {
		return nil, fmt.Errorf("open filters: %w", err)
	}

	chain, err := a.Config.Chain()
	if err != nil {
		return nil, fmt.Errorf("build extraction chain: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.Register(bus)

	eventbus.NewNotificationRouter(bus).Register()
	if a.Journal != nil {
		a.Journal.Register(bus)
	}
	if a.Notifications != nil {
		a.Notifications.Register(bus)
	}

	eng, err := engine.New(a.Config.EngineOptions(), engine.Deps{
		Device:      opts.Device,
		Filters:     filters,
		Chain:       chain,
		Bus:         bus,
		Clock:       opts.Clock,
		Rand:        opts.Rand,
		Notifier:    opts.Notifier,
		Instruments: m,
		Logger:      logging.Component("engine"),
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		Engine:   eng,
		Bus:      bus,
		Filters:  filters,
		Metrics:  m,
		Registry: reg,
		app:      a,
		opts:     opts,
	}
	if addr := a.Config.Metrics.Listen; addr != "" {
		s.server = metrics.NewServer(addr, reg)
	}
	return s, nil
}

// Start runs the bus, the filters watcher and the metrics endpoint, then
// starts the engine.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Bus.Start(ctx)
	}()

	if s.opts.WatchFilters {
		if err := s.Filters.Watch(ctx); err != nil {
			s.Close()
			return fmt.Errorf("watch filters: %w", err)
		}
	}

	if s.server != nil {
		if err := s.server.Start(ctx); err != nil {
			s.server = nil
			s.Close()
			return fmt.Errorf("start metrics server: %w", err)
		}
		log.Info().
			Str("url", fmt.Sprintf("http://%s/metrics", s.server.Addr())).
			Msg("metrics endpoint available")
	}

	return s.Engine.Start(ctx)
}

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (s *Session) MetricsAddr() string {
	if s.server == nil {
		return ""
	}
	return s.server.Addr()
}

// Close stops the engine and releases everything Start acquired. It is
// safe to call more than once.
func (s *Session) Close() {
	s.Engine.Stop()

	if err := s.Filters.Close(); err != nil {
		log.Warn().Err(err).Msg("close filters watcher")
	}

	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
		cancel()
		s.server = nil
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Package metrics exposes engine activity as prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/eventbus"
)

const namespace = "farepilot"

// Metrics holds the engine collectors. Tick and AnalysisDuration are called
// by the engine directly; everything else is fed from the event bus.
type Metrics struct {
	Ticks            *prometheus.CounterVec
	AnalysisSeconds  prometheus.Histogram
	Transitions      *prometheus.CounterVec
	Timeouts         *prometheus.CounterVec
	Faults           *prometheus.CounterVec
	Clicks           *prometheus.CounterVec
	Evaluations      *prometheus.CounterVec
	AcceptedTotal    prometheus.Counter
	AcceptedFare     prometheus.Counter
	Paused           prometheus.Gauge
	State            *prometheus.GaugeVec
	FilterReloads    prometheus.Counter
	lastAcceptedUnix prometheus.Gauge
}

// New creates the collectors and registers them with reg.
//
// Metrics:
//   - farepilot_engine_ticks_total{state}
//   - farepilot_engine_analysis_seconds
//   - farepilot_engine_transitions_total{from,to,kind}
//   - farepilot_engine_timeouts_total{state}
//   - farepilot_engine_faults_total{class}
//   - farepilot_clicks_total{channel,ok}
//   - farepilot_records_evaluated_total{accepted,branch}
//   - farepilot_orders_accepted_total
//   - farepilot_orders_accepted_fare_total
//   - farepilot_engine_paused
//   - farepilot_engine_state{state}
//   - farepilot_filters_reloads_total
//   - farepilot_orders_last_accepted_timestamp_seconds
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	m := &Metrics{
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Handler invocations by state.",
		}, []string{"state"}),
		AnalysisSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "analysis_seconds",
			Help:      "Time spent extracting and evaluating one list.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transitions_total",
			Help:      "Applied state changes.",
		}, []string{"from", "to", "kind"}),
		Timeouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "timeouts_total",
			Help:      "States that outlived their timeout.",
		}, []string{"state"}),
		Faults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "faults_total",
			Help:      "Handler failures by class.",
		}, []string{"class"}),
		Clicks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Input attempts by channel and outcome.",
		}, []string{"channel", "ok"}),
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_evaluated_total",
			Help:      "Filter verdicts by outcome and accepting branch.",
		}, []string{"accepted", "branch"}),
		AcceptedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_accepted_total",
			Help:      "Completed accept workflows.",
		}),
		AcceptedFare: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_accepted_fare_total",
			Help:      "Sum of fares of accepted orders.",
		}),
		Paused: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "paused",
			Help:      "1 while the engine is paused.",
		}),
		State: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "state",
			Help:      "1 for the current state, 0 for every other.",
		}, []string{"state"}),
		FilterReloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filters",
			Name:      "reloads_total",
			Help:      "Successful filter file reloads.",
		}),
		lastAcceptedUnix: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "last_accepted_timestamp_seconds",
			Help:      "Unix time of the last accepted order.",
		}),
	}

	for _, s := range control.AllStates() {
		m.State.WithLabelValues(string(s)).Set(0)
	}
	m.State.WithLabelValues(string(control.StateIdle)).Set(1)

	return m
}

// Tick counts one handler invocation.
func (m *Metrics) Tick(state control.State) {
	m.Ticks.WithLabelValues(string(state)).Inc()
}

// AnalysisDuration observes one analysis pass.
func (m *Metrics) AnalysisDuration(d time.Duration) {
	m.AnalysisSeconds.Observe(d.Seconds())
}

// Register subscribes the collectors to the bus.
func (m *Metrics) Register(bus *eventbus.EventBus) {
	bus.SubscribeEngineStateChanged(func(p eventbus.StateChangedPayload) {
		m.Transitions.WithLabelValues(string(p.From), string(p.To), p.Kind.String()).Inc()
		m.State.WithLabelValues(string(p.From)).Set(0)
		m.State.WithLabelValues(string(p.To)).Set(1)
	})

	bus.SubscribeEngineTimeout(func(p eventbus.EngineTimeoutPayload) {
		m.Timeouts.WithLabelValues(string(p.State)).Inc()
	})

	bus.SubscribeEngineFault(func(p eventbus.EngineFaultPayload) {
		m.Faults.WithLabelValues(p.Class).Inc()
	})

	bus.SubscribeEnginePaused(func(p eventbus.EnginePausedPayload) {
		if p.Paused {
			m.Paused.Set(1)
		} else {
			m.Paused.Set(0)
		}
	})

	bus.SubscribeClickAttempted(func(p eventbus.ClickAttemptedPayload) {
		m.Clicks.WithLabelValues(p.Channel, strconv.FormatBool(p.OK)).Inc()
	})

	bus.SubscribeRecordEvaluated(func(p eventbus.RecordEvaluatedPayload) {
		m.Evaluations.WithLabelValues(strconv.FormatBool(p.Accepted), string(p.Branch)).Inc()
	})

	bus.SubscribeOrderAccepted(func(p eventbus.OrderAcceptedPayload) {
		m.AcceptedTotal.Inc()
		m.AcceptedFare.Add(float64(p.Record.Price()))
		at := p.At
		if at.IsZero() {
			at = time.Now()
		}
		m.lastAcceptedUnix.Set(float64(at.Unix()))
	})

	bus.SubscribeFiltersReloaded(func(eventbus.FiltersReloadedPayload) {
		m.FilterReloads.Inc()
	})
}

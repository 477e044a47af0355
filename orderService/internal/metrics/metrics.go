package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
)

const namespace = "order_trigger"

// Metrics holds the prometheus collectors of the order service. It also
// implements memory.Observer to count committed transitions.
type Metrics struct {
	ticks          prometheus.Counter
	tickDuration   prometheus.Histogram
	oracleFailures prometheus.Counter
	decisions      *prometheus.CounterVec
	swapOutcomes   *prometheus.CounterVec
	swapDuration   prometheus.Histogram
	inFlight       prometheus.Gauge
	created        prometheus.Counter
	transitions    *prometheus.CounterVec
	sinkFailures   *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_ticks_total",
			Help:      "Number of completed monitor ticks.",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "monitor_tick_duration_seconds",
			Help:      "Time spent evaluating and dispatching one tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		oracleFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_failures_total",
			Help:      "Ticks where the price oracle returned an error.",
		}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_decisions_total",
			Help:      "Trigger evaluations by decision.",
		}, []string{"decision"}),
		swapOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_outcomes_total",
			Help:      "Swap attempts by outcome.",
		}, []string{"outcome"}),
		swapDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "swap_duration_seconds",
			Help:      "Duration of swap executor calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_in_flight",
			Help:      "Execution pipelines currently running.",
		}),
		created: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders accepted into the store.",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Committed order status transitions.",
		}, []string{"from", "to"}),
		sinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_failures_total",
			Help:      "Failed writes to order history sinks.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) RecordTick(duration time.Duration) {
	m.ticks.Inc()
	m.tickDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordOracleFailure() {
	m.oracleFailures.Inc()
}

func (m *Metrics) RecordDecision(decision models.Decision) {
	m.decisions.WithLabelValues(decision.String()).Inc()
}

func (m *Metrics) RecordSwap(outcome string, duration time.Duration) {
	m.swapOutcomes.WithLabelValues(outcome).Inc()
	m.swapDuration.Observe(duration.Seconds())
}

func (m *Metrics) PipelineStarted() {
	m.inFlight.Inc()
}

func (m *Metrics) PipelineFinished() {
	m.inFlight.Dec()
}

func (m *Metrics) RecordSinkFailure(sink string) {
	m.sinkFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) OrderInserted(_ context.Context, _ models.Order) {
	m.created.Inc()
}

func (m *Metrics) OrderTransitioned(_ context.Context, order models.Order, from models.Status) {
	m.transitions.WithLabelValues(from.String(), order.Status.String()).Inc()
}

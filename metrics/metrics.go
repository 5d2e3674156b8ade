package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trustytail"

// Sweep names used as label values.
const (
	SweepReminder   = "reminder"
	SweepEscalation = "escalation"
	SweepBroadcast  = "broadcast"
)

// Metrics holds the bot's collectors, registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	sweepRunsTotal     *prometheus.CounterVec
	sweepChatsTotal    *prometheus.CounterVec
	sweepFailuresTotal *prometheus.CounterVec
	sweepDuration      *prometheus.HistogramVec

	updatesTotal   *prometheus.CounterVec
	updatesDropped prometheus.Counter
	updateDuration *prometheus.HistogramVec
	messagesSent   *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry, including Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		sweepRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_runs_total",
				Help:      "Total number of sweep runs by sweep and result",
			},
			[]string{"sweep", "result"},
		),
		sweepChatsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_chats_total",
				Help:      "Chats processed by sweeps",
			},
			[]string{"sweep"},
		),
		sweepFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_step_failures_total",
				Help:      "Per-chat sweep steps that failed",
			},
			[]string{"sweep", "step"},
		),
		sweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Sweep run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"sweep"},
		),

		updatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Inbound Telegram updates by kind and result",
			},
			[]string{"kind", "result"},
		),
		updatesDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_dropped_total",
				Help:      "Updates rejected because the dispatcher was stopped",
			},
		),
		updateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "update_duration_seconds",
				Help:      "Time spent handling one update",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		messagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Outbound messages by purpose and result",
			},
			[]string{"purpose", "result"},
		),
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSweep records one finished sweep run.
func (m *Metrics) ObserveSweep(sweep string, chats int, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.sweepRunsTotal.WithLabelValues(sweep, resultLabel(err)).Inc()
	m.sweepChatsTotal.WithLabelValues(sweep).Add(float64(chats))
	m.sweepDuration.WithLabelValues(sweep).Observe(took.Seconds())
}

func (m *Metrics) StepFailed(sweep, step string) {
	if m == nil {
		return
	}
	m.sweepFailuresTotal.WithLabelValues(sweep, step).Inc()
}

func (m *Metrics) MessageSent(purpose string, err error) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(purpose, resultLabel(err)).Inc()
}

func (m *Metrics) UpdateHandled(kind string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.updatesTotal.WithLabelValues(kind, resultLabel(err)).Inc()
	m.updateDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) UpdateDropped() {
	if m == nil {
		return
	}
	m.updatesDropped.Inc()
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

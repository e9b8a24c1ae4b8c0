package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

// Metrics holds the bot's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	progressTotal     *prometheus.CounterVec
	rolloverTotal     *prometheus.CounterVec
	rolloverDuration  prometheus.Histogram
	broadcastFailures *prometheus.CounterVec
	commandsTotal     *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
}

var _ streaks.Observer = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		progressTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streakbot_progress_total",
				Help: "Progress messages by outcome",
			},
			[]string{"result"},
		),
		rolloverTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streakbot_rollover_total",
				Help: "Per-guild daily rollovers by status",
			},
			[]string{"status"},
		),
		rolloverDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "streakbot_rollover_duration_seconds",
				Help:    "Duration of a single guild rollover",
				Buckets: prometheus.DefBuckets,
			},
		),
		broadcastFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streakbot_broadcast_failures_total",
				Help: "Failed outbound announcements and direct messages",
			},
			[]string{"kind"},
		),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streakbot_commands_total",
				Help: "Handled commands by name and status",
			},
			[]string{"command", "status"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streakbot_command_duration_seconds",
				Help:    "Command handling duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
	}

	m.registry.MustRegister(
		m.progressTotal,
		m.rolloverTotal,
		m.rolloverDuration,
		m.broadcastFailures,
		m.commandsTotal,
		m.commandDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveProgress(result string) {
	m.progressTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRollover(_ string, took time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.rolloverTotal.WithLabelValues(status).Inc()
	m.rolloverDuration.Observe(took.Seconds())
}

// BroadcastFailed counts a failed announcement, warning or DM.
func (m *Metrics) BroadcastFailed(kind string) {
	m.broadcastFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveCommand(name string, took time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.commandsTotal.WithLabelValues(name, status).Inc()
	m.commandDuration.WithLabelValues(name).Observe(took.Seconds())
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

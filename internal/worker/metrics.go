package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments a single worker. Every Metrics has its own prometheus
// registry, so several workers (and tests) do not collide.
type Metrics struct {
	TicksTotal       prometheus.Counter
	TickDuration     prometheus.Histogram
	Alpha            prometheus.Gauge
	Bodies           prometheus.Gauge
	Links            prometheus.Gauge
	UpdatesEmitted   prometheus.Counter
	UpdatesDropped   prometheus.Counter
	CommandsTotal    *prometheus.CounterVec
	ConfigsRejected  prometheus.Counter
	ConvergenceTotal prometheus.Counter

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "layout_ticks_total",
			Help: "Total number of simulation ticks",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "layout_tick_duration_seconds",
			Help:    "Time spent computing a single simulation tick",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.032, 0.064},
		}),
		Alpha: factory.NewGauge(prometheus.GaugeOpts{
			Name: "layout_alpha",
			Help: "Current temperature of the simulation",
		}),
		Bodies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "layout_bodies",
			Help: "Number of simulated bodies",
		}),
		Links: factory.NewGauge(prometheus.GaugeOpts{
			Name: "layout_links",
			Help: "Number of links with both ends present",
		}),
		UpdatesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "layout_position_updates_emitted_total",
			Help: "Position snapshots handed to the consumer",
		}),
		UpdatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "layout_position_updates_dropped_total",
			Help: "Position snapshots replaced by a newer one before the consumer received them",
		}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "layout_commands_total",
			Help: "Commands processed by the worker",
		}, []string{"command"}),
		ConfigsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "layout_configs_rejected_total",
			Help: "Invalid simulation configs received with init",
		}),
		ConvergenceTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "layout_convergence_total",
			Help: "Number of times the simulation cooled down below alphaMin",
		}),
	}
}

// Handler serves the metrics of this worker in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) GetPrometheusRegistry() *prometheus.Registry {
	return m.registry
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for tile generation.
type Metrics struct {
	Generations        *prometheus.CounterVec // labels: status={success,degraded,failed}
	GenerationDuration prometheus.Histogram
	LayerFetches       *prometheus.CounterVec // labels: kind={base,radar,cloud}, outcome={success,error}
	MetadataFailures   prometheus.Counter
	Sweeps             prometheus.Counter
	SweepFailures      prometheus.Counter
	SchedulerRunning   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Generations,
		m.GenerationDuration,
		m.LayerFetches,
		m.MetadataFailures,
		m.Sweeps,
		m.SweepFailures,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so multiple instances
// can coexist without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar_tiles",
			Name:      "generations_total",
			Help:      "Tile generation runs by outcome.",
		}, []string{"status"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar_tiles",
			Name:      "generation_duration_seconds",
			Help:      "Duration of a complete tile generation run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LayerFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar_tiles",
			Name:      "layer_fetches_total",
			Help:      "Layer acquisitions by layer kind and outcome.",
		}, []string{"kind", "outcome"}),
		MetadataFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_tiles",
			Name:      "metadata_failures_total",
			Help:      "Failed lookups of the current radar dataset.",
		}),
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_tiles",
			Name:      "sweeps_total",
			Help:      "Completed scheduler sweeps.",
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_tiles",
			Name:      "sweep_tile_failures_total",
			Help:      "Tiles that failed to generate during a scheduled sweep.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar_tiles",
			Name:      "scheduler_running",
			Help:      "1 while the periodic scheduler is active.",
		}),
	}
}

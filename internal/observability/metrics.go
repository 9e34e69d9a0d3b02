package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "locator"

// Metrics holds the Prometheus counters, histograms, and gauges for fix acquisition.
type Metrics struct {
	CyclesStarted prometheus.Counter
	CyclesStopped *prometheus.CounterVec // labels: reason={user,accuracy,timeout,error,stuck}
	Acquiring     prometheus.Gauge

	// Reading filter metrics.
	Readings       *prometheus.CounterVec // labels: outcome={accepted,stale,invalid,rejected}
	ProviderErrors *prometheus.CounterVec // labels: kind
	FixAccuracy    prometheus.Histogram
	TimeToFix      prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={reverse}, outcome={success,error,empty,rate_limited,stale}
	GeocodeCache       *prometheus.CounterVec   // labels: method={reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={reverse}
	GeocodeEnabled     prometheus.Gauge

	// Feed metrics.
	SnapshotsPublished *prometheus.CounterVec // labels: sink={ws,kafka}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_started_total",
			Help:      "Total acquisition cycles started.",
		}),
		CyclesStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_stopped_total",
			Help:      "Acquisition cycles stopped, by reason.",
		}, []string{"reason"}),
		Acquiring: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "acquiring",
			Help:      "1 while an acquisition cycle is active, 0 otherwise.",
		}),
		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Provider readings by filter outcome.",
		}, []string{"outcome"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Location provider errors by kind.",
		}, []string{"kind"}),
		FixAccuracy: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fix_accuracy_meters",
			Help:      "Horizontal accuracy of accepted readings.",
			Buckets:   []float64{1, 5, 10, 25, 50, 65, 100, 250, 500, 1000},
		}),
		TimeToFix: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "time_to_fix_seconds",
			Help:      "Time from cycle start to the accuracy-threshold stop.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7.5, 10},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when reverse geocoding is enabled, 0 otherwise.",
		}),
		SnapshotsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "State snapshots delivered to push sinks.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CyclesStarted,
		m.CyclesStopped,
		m.Acquiring,
		m.Readings,
		m.ProviderErrors,
		m.FixAccuracy,
		m.TimeToFix,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.SnapshotsPublished,
	}
}

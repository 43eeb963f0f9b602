package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wage_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// classification service.
type Metrics struct {
	// Wage table loading. labels: outcome={success,error,canceled}
	WageTableFetches       *prometheus.CounterVec
	WageTableFetchDuration prometheus.Histogram

	// Annotation passes.
	AnnotationDuration prometheus.Histogram
	CountiesClassified *prometheus.GaugeVec // labels: level={1,2,3,4,none}
	UpdatesSuperseded  prometheus.Counter
	OrchestratorState  *prometheus.GaugeVec // labels: state={idle,loading,ready,failed}

	// Rendering surfaces. labels: surface, operation={data,style}, outcome={success,error}
	SurfacePublishes *prometheus.CounterVec

	// County click lookups. labels: method={identity,coordinate}, outcome={found,missing,error}
	CountyLookups     *prometheus.CounterVec
	MapboxAPIDuration prometheus.Histogram
	BaseDataCounties  prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		WageTableFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wage_table_fetches_total",
			Help:      "Wage table loads by outcome.",
		}, []string{"outcome"}),
		WageTableFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wage_table_fetch_duration_seconds",
			Help:      "Duration of a wage table load.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		AnnotationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "annotation_duration_seconds",
			Help:      "Duration of one county join and classification pass.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		CountiesClassified: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "counties_classified",
			Help:      "Counties per wage level in the most recently rendered layer.",
		}, []string{"level"}),
		UpdatesSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_superseded_total",
			Help:      "Updates discarded because a newer selection was issued.",
		}),
		OrchestratorState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orchestrator_state",
			Help:      "1 for the orchestrator's current state, 0 for the others.",
		}, []string{"state"}),
		SurfacePublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surface_publishes_total",
			Help:      "Layer and style pushes to rendering surfaces.",
		}, []string{"surface", "operation", "outcome"}),
		CountyLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "county_lookups_total",
			Help:      "County detail lookups by method and outcome.",
		}, []string{"method", "outcome"}),
		MapboxAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mapbox_api_duration_seconds",
			Help:      "Mapbox reverse geocoding request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		BaseDataCounties: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "base_data_counties",
			Help:      "Number of county features in the loaded master collection.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.WageTableFetches,
		m.WageTableFetchDuration,
		m.AnnotationDuration,
		m.CountiesClassified,
		m.UpdatesSuperseded,
		m.OrchestratorState,
		m.SurfacePublishes,
		m.CountyLookups,
		m.MapboxAPIDuration,
		m.BaseDataCounties,
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}

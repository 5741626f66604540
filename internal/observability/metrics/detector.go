package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/preloadwatch/internal/detector"
)

// DetectorMetrics tracks the queries the detector sees and the notices it
// produces.
type DetectorMetrics struct {
	UnitsOfWorkTotal prometheus.Counter       // Units of work checked
	NoticesTotal     *prometheus.CounterVec   // Notices by kind and class
	TrackedObjects   prometheus.Histogram     // Objects tracked per unit of work
	QueriesObserved  *prometheus.CounterVec   // Model queries seen by the gorm plugin, by class
	RowsObserved     *prometheus.CounterVec   // Rows materialized by those queries, by class
	RowsPerQuery     *prometheus.HistogramVec // Rows per query, by class

	registry *prometheus.Registry
}

// NewDetectorMetrics creates the collectors and registers them with registry.
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detector metrics: %w", err)
	}
	return m, nil
}

func (m *DetectorMetrics) initMetrics() {
	m.UnitsOfWorkTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "preloadwatch_units_of_work_total",
			Help: "Total number of units of work checked by the detector",
		},
	)

	m.NoticesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preloadwatch_notices_total",
			Help: "Total number of notices raised, by kind and model class",
		},
		[]string{"kind", "class"}, // kind: n_plus_one_query, unused_eager_loading
	)

	m.TrackedObjects = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preloadwatch_tracked_objects",
			Help:    "Number of objects tracked in one unit of work",
			Buckets: prometheus.ExponentialBuckets(BucketStart1, BucketFactor2, BucketCount12),
		},
	)

	m.QueriesObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preloadwatch_queries_observed_total",
			Help: "Total number of model queries observed, by class",
		},
		[]string{"class"},
	)

	m.RowsObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preloadwatch_rows_observed_total",
			Help: "Total number of rows materialized by observed queries, by class",
		},
		[]string{"class"},
	)

	m.RowsPerQuery = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preloadwatch_rows_per_query",
			Help:    "Rows materialized by a single observed query",
			Buckets: prometheus.ExponentialBuckets(BucketStart1, BucketFactor2, BucketCount12),
		},
		[]string{"class"},
	)
}

// ObserveQuery records one model query. It satisfies gormhook.Observer.
func (m *DetectorMetrics) ObserveQuery(class string, rows int) {
	class = labelOrUnknown(class)
	m.QueriesObserved.WithLabelValues(class).Inc()
	m.RowsObserved.WithLabelValues(class).Add(float64(rows))
	m.RowsPerQuery.WithLabelValues(class).Observe(float64(rows))
}

// RecordUnitOfWork records the outcome of one checked unit of work.
func (m *DetectorMetrics) RecordUnitOfWork(stats detector.Stats, notices []detector.Notice) {
	m.UnitsOfWorkTotal.Inc()
	m.TrackedObjects.Observe(float64(stats.TrackedObjects))
	for _, n := range notices {
		m.NoticesTotal.WithLabelValues(n.Kind.String(), labelOrUnknown(n.Class)).Inc()
	}
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.UnitsOfWorkTotal.Collect(ch)
	m.NoticesTotal.Collect(ch)
	m.TrackedObjects.Collect(ch)
	m.QueriesObserved.Collect(ch)
	m.RowsObserved.Collect(ch)
	m.RowsPerQuery.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.UnitsOfWorkTotal.Describe(ch)
	m.NoticesTotal.Describe(ch)
	m.TrackedObjects.Describe(ch)
	m.QueriesObserved.Describe(ch)
	m.RowsObserved.Describe(ch)
	m.RowsPerQuery.Describe(ch)
}

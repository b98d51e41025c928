package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CandidatesDiscovered prometheus.Counter
	ListingsCommitted    prometheus.Counter
	ListingsSkipped      *prometheus.CounterVec
	FailuresTotal        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the counters against reg. Tests pass their own
// registry so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CandidatesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_candidates_discovered_total",
			Help: "The total number of candidate links found on the index page",
		}),
		ListingsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_listings_committed_total",
			Help: "The total number of listings written to the store",
		}),
		ListingsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_listings_skipped_total",
			Help: "The total number of candidates skipped without a write",
		}, []string{"reason"}), // 'already_known', 'no_photos'
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_failures_total",
			Help: "The total number of failures encountered",
		}, []string{"stage"}), // e.g. 'index_fetch', 'detail_fetch', 'commit'
	}
}

func (m *Metrics) AddDiscovered(n int) {
	m.CandidatesDiscovered.Add(float64(n))
}

func (m *Metrics) IncCommitted() {
	m.ListingsCommitted.Inc()
}

func (m *Metrics) IncSkipped(reason string) {
	m.ListingsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncFailures(stage string) {
	m.FailuresTotal.WithLabelValues(stage).Inc()
}

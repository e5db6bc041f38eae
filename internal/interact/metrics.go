package interact

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts interaction attempts and outcomes.
type Metrics struct {
	attempts  *prometheus.CounterVec
	exhausted *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	advisory  *prometheus.CounterVec
}

// NewMetrics registers the interaction collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "uisuite_interaction_attempts_total",
			Help: "Attempts of retry-wrapped interactions by action and result",
		}, []string{"action", "result"}),
		exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "uisuite_interaction_exhausted_total",
			Help: "Interactions that failed on every permitted attempt",
		}, []string{"action"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uisuite_interaction_duration_seconds",
			Help:    "Wall time of interactions including retries and backoff",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"action"}),
		advisory: f.NewCounterVec(prometheus.CounterOpts{
			Name: "uisuite_advisory_wait_total",
			Help: "Advisory waits by whether the condition was observed",
		}, []string{"action", "result"}),
	}
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// DefaultMetrics is registered with the default Prometheus registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) attempt(action string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.attempts.WithLabelValues(action, result).Inc()
}

func (m *Metrics) exhaust(action string) {
	m.exhausted.WithLabelValues(action).Inc()
}

func (m *Metrics) observe(action string, d time.Duration) {
	m.duration.WithLabelValues(action).Observe(d.Seconds())
}

func (m *Metrics) advise(action string, v Visibility) {
	m.advisory.WithLabelValues(action, v.String()).Inc()
}

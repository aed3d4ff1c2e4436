package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "phonelist"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "mutations_total",
			Help:      "Document mutations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	mutationAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "mutation_attempts",
			Help:      "Read-merge-write attempts used per mutation.",
			Buckets:   []float64{1, 2, 3, 5, 10},
		},
		[]string{"operation"},
	)
	versionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "version_conflicts_total",
			Help:      "Conditional writes rejected because the document changed.",
		},
	)
	addedPhones = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "phones_added_total",
			Help:      "Phone numbers persisted.",
		},
	)
	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"path"},
	)
)

// RegisterPrometheusCollectors registers the service's collectors with the
// default registry. It is safe to call multiple times.
func RegisterPrometheusCollectors() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			mutations,
			mutationAttempts,
			versionConflicts,
			addedPhones,
			rateLimited,
		)
	})
}

// PrometheusHandler serves the default registry in the Prometheus exposition format
func PrometheusHandler() http.Handler {
	RegisterPrometheusCollectors()
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterPrometheusCollectors()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordMutation(operation, outcome string, attempts uint, added int) {
	RegisterPrometheusCollectors()
	mutations.WithLabelValues(operation, outcome).Inc()
	if attempts > 0 {
		mutationAttempts.WithLabelValues(operation).Observe(float64(attempts))
	}
	if added > 0 {
		addedPhones.Add(float64(added))
	}
}

func RecordVersionConflict() {
	RegisterPrometheusCollectors()
	versionConflicts.Inc()
}

func RecordRateLimited(path string) {
	RegisterPrometheusCollectors()
	rateLimited.WithLabelValues(path).Inc()
}

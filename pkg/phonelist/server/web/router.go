package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/code-payments/phonelist-server/pkg/metrics"
	"github.com/code-payments/phonelist-server/pkg/rate"
)

const (
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// NewRouter mounts the API handlers alongside health and Prometheus endpoints.
// A nil limiter disables rate limiting, and a nil app disables New Relic
// transactions.
func NewRouter(s *Server, limiter rate.Limiter, app *newrelic.Application) chi.Router {
	if limiter == nil {
		limiter = &rate.NoLimiter{}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(WithRequestId)
	r.Use(WithMetrics)

	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, MetricsPath, metrics.PrometheusHandler())

	r.Group(func(r chi.Router) {
		r.Use(WithRateLimit(limiter))
		for path, handler := range s.GetHandlers() {
			r.HandleFunc(path, metrics.WrapHandler(app, path, handler))
		}
	})

	return r
}

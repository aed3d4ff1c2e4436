package web

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/phonelist-server/pkg/metrics"
	"github.com/code-payments/phonelist-server/pkg/rate"
)

const (
	RequestIdHeaderName = "X-Request-Id"

	allowOriginHeaderName  = "Access-Control-Allow-Origin"
	allowMethodsHeaderName = "Access-Control-Allow-Methods"
	allowHeadersHeaderName = "Access-Control-Allow-Headers"

	unmatchedRoutePattern = "unmatched"
)

type requestIdContextKey struct{}

// RequestIdFromContext returns the request id assigned by WithRequestId, if any
func RequestIdFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIdContextKey{}).(string)
	return id
}

// WithRequestId assigns every request an id, reusing a well formed one supplied
// by the caller, and echoes it in the response headers.
func WithRequestId(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIdHeaderName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIdHeaderName, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIdContextKey{}, id)))
	})
}

// WithRateLimit rejects requests with 429 once a client exceeds the limiter.
// Clients are keyed by remote IP.
func WithRateLimit(limiter rate.Limiter) func(http.Handler) http.Handler {
	log := logrus.StandardLogger().WithField("type", "phonelist/server/web/ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := clientKey(r)
			allowed, err := limiter.Allow(key)
			if err != nil {
				log.WithError(err).Warn("failure checking rate limit, allowing request")
				allowed = true
			}

			if !allowed {
				metrics.RecordRateLimited(knownPath(r.URL.Path))
				log.WithFields(logrus.Fields{
					"client":     key,
					"path":       r.URL.Path,
					"request_id": RequestIdFromContext(r.Context()),
				}).Debug("request rate limited")

				setCorsHeaders(w, nil)
				if err := writeJsonResponse(w, http.StatusTooManyRequests, NewGenericApiFailureResponseBody(tooManyRequestsMessage)); err != nil {
					log.WithError(err).Info("failed to write body")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithMetrics records a Prometheus observation for every request, labelled by
// the matched route pattern.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		metrics.RecordHTTPRequest(r.Method, routePattern(r), recorder.statusCode, time.Since(start))
	})
}

// withAllowedMethods answers CORS preflights and rejects unsupported methods
// with 405.
func withAllowedMethods(next http.HandlerFunc, methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCorsHeaders(w, methods)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		for _, method := range methods {
			if r.Method == method {
				next(w, r)
				return
			}
		}

		w.Header().Set("Allow", strings.Join(append(methods, http.MethodOptions), ", "))
		if err := writeJsonResponse(w, http.StatusMethodNotAllowed, NewGenericApiFailureResponseBody(methodNotAllowedMessage)); err != nil {
			logrus.StandardLogger().WithField("type", "phonelist/server/web").WithError(err).Info("failed to write body")
		}
	}
}

func setCorsHeaders(w http.ResponseWriter, methods []string) {
	w.Header().Set(allowOriginHeaderName, "*")
	w.Header().Set(allowHeadersHeaderName, "Content-Type")
	if len(methods) > 0 {
		w.Header().Set(allowMethodsHeaderName, strings.Join(append(methods, http.MethodOptions), ", "))
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// knownPath bounds metric label cardinality to the API routes
func knownPath(path string) string {
	switch path {
	case AddPath, BulkAddPath, GetPath:
		return path
	}
	return unmatchedRoutePattern
}

func routePattern(r *http.Request) string {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		return unmatchedRoutePattern
	}

	pattern := routeCtx.RoutePattern()
	if len(pattern) == 0 {
		return unmatchedRoutePattern
	}
	return pattern
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	if !r.wroteHeader {
		r.statusCode = statusCode
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

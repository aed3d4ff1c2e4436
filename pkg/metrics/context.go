package metrics

import (
	"context"
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type newRelicContextKey struct{}

// NewContext returns a context carrying the New Relic application, which enables
// the Record* functions for downstream code. A nil app leaves the context as is.
func NewContext(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, newRelicContextKey{}, app)
}

func fromContext(ctx context.Context) (*newrelic.Application, bool) {
	nr, ok := ctx.Value(newRelicContextKey{}).(*newrelic.Application)
	return nr, ok && nr != nil
}

// WrapHandler instruments an HTTP handler with a New Relic transaction named
// after the pattern, and makes the application available through the request
// context. With a nil app the handler is returned unmodified.
func WrapHandler(app *newrelic.Application, pattern string, handler http.HandlerFunc) http.HandlerFunc {
	if app == nil {
		return handler
	}

	_, wrapped := newrelic.WrapHandleFunc(app, pattern, func(w http.ResponseWriter, r *http.Request) {
		handler(w, r.WithContext(NewContext(r.Context(), app)))
	})
	return wrapped
}

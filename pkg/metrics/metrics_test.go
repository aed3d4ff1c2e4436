package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopWithoutNewRelic(t *testing.T) {
	ctx := NewContext(context.Background(), nil)

	_, ok := fromContext(ctx)
	assert.False(t, ok)

	// None of these should panic without an application in the context
	RecordCount(ctx, "count", 1)
	RecordDuration(ctx, "duration", time.Second)
	RecordEvent(ctx, "event", map[string]interface{}{"key": "value"})

	tracer := TraceMethodCall(ctx, "metrics", "Test")
	assert.Nil(t, tracer)
	tracer.AddAttribute("key", "value")
	tracer.OnError(assert.AnError)
	tracer.End()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	external := TraceExternalRequest(req)
	assert.Nil(t, external)
	external.End(nil)
}

func TestWrapHandlerWithoutNewRelic(t *testing.T) {
	var called bool
	handler := WrapHandler(nil, "/path", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/path", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

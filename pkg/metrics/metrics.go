package metrics

import (
	"context"
	"time"
)

// RecordCount records a count metric against the New Relic application in the
// context. It's a no-op when the context has no application.
func RecordCount(ctx context.Context, metricName string, count uint64) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomMetric(metricName, float64(count))
	}
}

// RecordDuration records a duration metric, in milliseconds
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomMetric(metricName, float64(duration)/float64(time.Millisecond))
	}
}

// RecordEvent records a custom event with a name and set of key-value pairs
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomEvent(eventName, kvPairs)
	}
}

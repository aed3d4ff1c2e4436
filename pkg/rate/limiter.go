package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keys that haven't been seen for this long have their limiter state dropped
const defaultIdleTimeout = 10 * time.Minute

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localRateLimiter struct {
	limit       rate.Limit
	burst       int
	idleTimeout time.Duration
	now         func() time.Time

	sync.Mutex
	limiters  map[string]*keyedLimiter
	lastSweep time.Time
}

// NewLocalRateLimiter returns an in memory limiter allowing limit operations per
// second for each key. A burst below 1 defaults to the limit.
func NewLocalRateLimiter(limit rate.Limit, burst int) Limiter {
	if burst < 1 {
		burst = int(limit)
		if burst < 1 {
			burst = 1
		}
	}

	return &localRateLimiter{
		limit:       limit,
		burst:       burst,
		idleTimeout: defaultIdleTimeout,
		now:         time.Now,
		limiters:    make(map[string]*keyedLimiter),
		lastSweep:   time.Now(),
	}
}

// Allow implements limiter.Allow.
func (l *localRateLimiter) Allow(key string) (bool, error) {
	now := l.now()

	l.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &keyedLimiter{
			limiter: rate.NewLimiter(l.limit, l.burst),
		}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	if now.Sub(l.lastSweep) >= l.idleTimeout {
		l.sweep(now)
	}
	l.Unlock()

	return entry.limiter.AllowN(now, 1), nil
}

func (l *localRateLimiter) sweep(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.idleTimeout {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements limiter.Allow.
func (n *NoLimiter) Allow(key string) (bool, error) {
	return true, nil
}

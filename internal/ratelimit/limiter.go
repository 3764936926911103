// Package ratelimit throttles inbound events per connection. A local
// token bucket is always present; when Redis is available the counter
// moves there so limits survive the occasional gateway restart.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atriumverse/atrium/internal/infra/cache"
	"golang.org/x/time/rate"
)

type Limiter struct {
	cache   *cache.Cache
	enabled bool

	eventsPerMinute int
	burst           int

	mu          sync.Mutex
	local       map[string]*rate.Limiter
	cleanupDone chan struct{}
}

func NewLimiter(c *cache.Cache, eventsPerMinute, burst int, enabled bool) *Limiter {
	l := &Limiter{
		cache:           c,
		enabled:         enabled,
		eventsPerMinute: eventsPerMinute,
		burst:           burst,
		local:           make(map[string]*rate.Limiter),
		cleanupDone:     make(chan struct{}),
	}

	if enabled {
		go l.cleanup()
	}

	return l
}

// Allow reports whether the connection may submit another event. Redis
// errors fall back to the local bucket instead of failing the event.
func (l *Limiter) Allow(ctx context.Context, connID string) (bool, error) {
	if !l.enabled {
		return true, nil
	}

	if l.cache != nil {
		return l.allowRedis(ctx, connID)
	}

	return l.allowLocal(connID), nil
}

func (l *Limiter) allowLocal(connID string) bool {
	l.mu.Lock()
	limiter, ok := l.local[connID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(l.eventsPerMinute)/60.0), l.burst)
		l.local[connID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

func (l *Limiter) allowRedis(ctx context.Context, connID string) (bool, error) {
	key := fmt.Sprintf("ratelimit:conn:%s", connID)

	count, err := l.cache.Incr(ctx, key)
	if err != nil {
		return l.allowLocal(connID), nil
	}

	if count == 1 {
		_ = l.cache.Expire(ctx, key, time.Minute)
	}

	return count <= int64(l.eventsPerMinute), nil
}

// Forget drops a connection's bucket once it disconnects.
func (l *Limiter) Forget(ctx context.Context, connID string) error {
	l.mu.Lock()
	delete(l.local, connID)
	l.mu.Unlock()

	if l.cache != nil {
		return l.cache.Delete(ctx, fmt.Sprintf("ratelimit:conn:%s", connID))
	}

	return nil
}

// cleanup bounds the local map; buckets reset every few minutes, which is
// acceptable for a per-minute limit.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			l.local = make(map[string]*rate.Limiter)
			l.mu.Unlock()
		case <-l.cleanupDone:
			return
		}
	}
}

func (l *Limiter) Close() {
	close(l.cleanupDone)
}

package channels

import (
	"sync"
	"time"
)

const (
	// defaultWebhookHits is the per-source delivery cap inside one window.
	defaultWebhookHits = 30

	// defaultWebhookWindow is the counting window for webhook deliveries.
	defaultWebhookWindow = time.Minute

	// maxTrackedSources caps the sources the limiter remembers, so an
	// attacker rotating addresses cannot grow the map without bound.
	maxTrackedSources = 4096
)

type hitWindow struct {
	start time.Time
	hits  int
}

// WebhookRateLimiter caps inbound webhook deliveries per source over a
// fixed window. Safe for concurrent use.
type WebhookRateLimiter struct {
	mu      sync.Mutex
	maxHits int
	window  time.Duration
	now     func() time.Time
	sources map[string]*hitWindow
}

// NewWebhookRateLimiter creates a limiter allowing maxHits deliveries
// per source inside each window. Non-positive arguments use the
// defaults.
func NewWebhookRateLimiter(maxHits int, window time.Duration) *WebhookRateLimiter {
	if maxHits <= 0 {
		maxHits = defaultWebhookHits
	}
	if window <= 0 {
		window = defaultWebhookWindow
	}
	return &WebhookRateLimiter{
		maxHits: maxHits,
		window:  window,
		now:     time.Now,
		sources: make(map[string]*hitWindow),
	}
}

// Allow counts one delivery from the source and reports whether it is
// still inside its window's budget. An expired window restarts the count.
func (l *WebhookRateLimiter) Allow(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if len(l.sources) >= maxTrackedSources {
		l.evict(now)
	}

	w, ok := l.sources[source]
	if !ok || now.Sub(w.start) >= l.window {
		l.sources[source] = &hitWindow{start: now, hits: 1}
		return true
	}

	w.hits++
	return w.hits <= l.maxHits
}

// evict drops expired windows, then arbitrary ones until under the cap.
// Called with the lock held.
func (l *WebhookRateLimiter) evict(now time.Time) {
	for src, w := range l.sources {
		if now.Sub(w.start) >= l.window {
			delete(l.sources, src)
		}
	}
	for len(l.sources) >= maxTrackedSources {
		for src := range l.sources {
			delete(l.sources, src)
			break
		}
	}
}

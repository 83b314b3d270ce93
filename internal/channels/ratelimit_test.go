package channels

import (
	"fmt"
	"testing"
	"time"
)

func newTestLimiter(maxHits int, window time.Duration) (*WebhookRateLimiter, *time.Time) {
	l := NewWebhookRateLimiter(maxHits, window)
	now := time.Now()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestWebhookRateLimiter_CapsPerSource(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("delivery %d denied inside budget", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("delivery over budget allowed")
	}
	// Another source has its own budget.
	if !l.Allow("5.6.7.8") {
		t.Error("independent source denied")
	}
}

func TestWebhookRateLimiter_WindowResets(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute)

	if !l.Allow("1.2.3.4") {
		t.Fatal("first delivery denied")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("second delivery in window allowed")
	}

	*now = now.Add(time.Minute)
	if !l.Allow("1.2.3.4") {
		t.Error("delivery after window expiry denied")
	}
}

func TestWebhookRateLimiter_TrackedSourcesBounded(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)

	for i := 0; i < maxTrackedSources+100; i++ {
		l.Allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	if len(l.sources) > maxTrackedSources {
		t.Errorf("tracked sources = %d, cap %d", len(l.sources), maxTrackedSources)
	}
}

func TestWebhookRateLimiter_Defaults(t *testing.T) {
	l := NewWebhookRateLimiter(0, 0)
	if l.maxHits != defaultWebhookHits || l.window != defaultWebhookWindow {
		t.Errorf("defaults = %d/%s", l.maxHits, l.window)
	}
}

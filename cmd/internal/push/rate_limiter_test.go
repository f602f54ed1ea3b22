package push

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsUpToLimitThenBlocks(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, 10*time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow(now) {
			t.Fatalf("event %d should be allowed", i)
		}
	}
	if rl.Allow(now) {
		t.Fatalf("event over the limit should be blocked")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 10*time.Second)

	rl.Allow(now)
	rl.Allow(now)
	if rl.Allow(now.Add(5 * time.Second)) {
		t.Fatalf("still inside the window, should be blocked")
	}
	if !rl.Allow(now.Add(11 * time.Second)) {
		t.Fatalf("window elapsed, should be allowed again")
	}
}

func TestRateLimiter_DefendsAgainstBadConfig(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, 0)
	if !rl.Allow(time.Now().UTC()) {
		t.Fatalf("defaulted limiter should allow the first event")
	}
}

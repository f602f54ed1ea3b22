package push

import (
	"sync"
	"time"
)

// Envelope budget per connection. A signer acking reliable deliveries and
// responding to requests stays far under this; only a misbehaving or
// looping client trips it.
const (
	defaultEnvelopeBudget = 120
	defaultEnvelopeWindow = 10 * time.Second
)

// RateLimiter bounds inbound envelopes per connection over a sliding
// window. Each websocket connection owns one; it is never shared across
// sessions.
type RateLimiter struct {
	mu     sync.Mutex
	stamps []time.Time
	budget int
	window time.Duration
}

// NewRateLimiter falls back to the envelope-budget defaults on
// non-positive inputs.
func NewRateLimiter(budget int, window time.Duration) *RateLimiter {
	if budget <= 0 {
		budget = defaultEnvelopeBudget
	}
	if window <= 0 {
		window = defaultEnvelopeWindow
	}
	return &RateLimiter{
		stamps: make([]time.Time, 0, budget),
		budget: budget,
		window: window,
	}
}

// Allow reports whether an envelope arriving at "now" fits the budget,
// recording it when it does. Stamps older than one window are discarded
// first, so a blocked connection recovers as soon as the window slides.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cut := now.Add(-r.window)
	live := r.stamps[:0]
	for _, ts := range r.stamps {
		if ts.After(cut) {
			live = append(live, ts)
		}
	}
	r.stamps = live

	if len(r.stamps) >= r.budget {
		return false
	}
	r.stamps = append(r.stamps, now)
	return true
}

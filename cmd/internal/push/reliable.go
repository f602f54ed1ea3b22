package push

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	v1 "tether/shared/contracts/pairing/v1"
)

// TrackerConfig holds the reliable-delivery tunables.
type TrackerConfig struct {
	// AckWindow is the per-attempt acknowledgment deadline (default 5s).
	AckWindow time.Duration
	// RetryInterval is the sweep period (default 2s).
	RetryInterval time.Duration
	// MaxRetries bounds re-sends before the delivery is reported failed
	// (default 3).
	MaxRetries int
}

const (
	defaultAckWindow     = 5 * time.Second
	defaultRetryInterval = 2 * time.Second
	defaultMaxRetries    = 3
)

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.AckWindow <= 0 {
		c.AckWindow = defaultAckWindow
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// pendingDelivery tracks one unacknowledged reliable envelope.
type pendingDelivery struct {
	messageID string
	sessionID string
	role      v1.Role // empty means all subscribers
	env       v1.Envelope
	retries   int
	deadline  time.Time
}

// Tracker wraps critical envelopes with an ack requirement, retries them on
// timeout, and reports terminal delivery failure to the whole session.
//
// A pending entry is removed exactly once: either by Acknowledge or by
// exhausting the retry budget. Both paths go through the tracker mutex, so
// a sweep can never race an ack for the same id.
type Tracker struct {
	log *slog.Logger
	hub *Hub
	cfg TrackerConfig

	// now is swappable in tests.
	now func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingDelivery

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTracker constructs a Tracker bound to a hub.
func NewTracker(log *slog.Logger, hub *Hub, cfg TrackerConfig) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		log:     log,
		hub:     hub,
		cfg:     cfg.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
		pending: make(map[string]*pendingDelivery),
		stop:    make(chan struct{}),
	}
}

// Start launches the retry sweeper.
func (t *Tracker) Start() {
	t.wg.Add(1)
	go t.sweepLoop()
}

// Stop terminates the sweeper and waits for it to exit. Idempotent.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.wg.Wait()
}

// Send marks the envelope as requiring acknowledgment, records the pending
// entry, and performs the initial broadcast. An empty role targets all
// subscribers of the session.
func (t *Tracker) Send(sessionID string, role v1.Role, env v1.Envelope) {
	env.Ack = true

	now := t.now()

	t.mu.Lock()
	t.pending[env.ID] = &pendingDelivery{
		messageID: env.ID,
		sessionID: sessionID,
		role:      role,
		env:       env,
		deadline:  now.Add(t.cfg.AckWindow),
	}
	t.mu.Unlock()

	reliableSent.Inc()
	t.deliver(sessionID, role, env)
}

// Acknowledge removes the pending entry for a message id. Unknown or
// already-removed ids are a silent no-op, so duplicate or late acks are
// harmless and suppress any further retries.
func (t *Tracker) Acknowledge(messageID string) {
	t.mu.Lock()
	_, ok := t.pending[messageID]
	delete(t.pending, messageID)
	t.mu.Unlock()

	if ok {
		t.log.Debug("reliable.ack", "message_id", messageID)
	}
}

// Pending reports the number of tracked deliveries.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Tracker) sweepLoop() {
	defer t.wg.Done()

	tick := time.NewTicker(t.cfg.RetryInterval)
	defer tick.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-tick.C:
			t.Sweep()
		}
	}
}

// Sweep runs one retry pass. Exported so tests can drive it directly.
func (t *Tracker) Sweep() {
	now := t.now()

	type resend struct {
		sessionID string
		role      v1.Role
		env       v1.Envelope
	}
	var resends []resend
	var failed []*pendingDelivery

	// The check-then-remove is atomic with respect to Acknowledge: the
	// entry's fate is decided under the mutex.
	t.mu.Lock()
	for id, p := range t.pending {
		if now.Before(p.deadline) {
			continue
		}
		if p.retries < t.cfg.MaxRetries {
			p.retries++
			p.deadline = now.Add(t.cfg.AckWindow)
			resends = append(resends, resend{sessionID: p.sessionID, role: p.role, env: p.env})
			continue
		}
		delete(t.pending, id)
		failed = append(failed, p)
	}
	t.mu.Unlock()

	for _, r := range resends {
		reliableRetried.Inc()
		t.log.Info("reliable.retry", "message_id", r.env.ID, "session_id", r.sessionID)
		t.deliver(r.sessionID, r.role, r.env)
	}

	for _, p := range failed {
		reliableFailed.Inc()
		t.log.Warn("reliable.give_up", "message_id", p.messageID, "session_id", p.sessionID)

		original, err := json.Marshal(p.env)
		if err != nil {
			original = nil
		}
		env := newEnvelope(v1.TypeDeliveryFailed, v1.DeliveryFailedPayload{
			SessionID: p.sessionID,
			MessageID: p.messageID,
			Original:  original,
		}, now)
		t.hub.Broadcast(p.sessionID, env)
	}
}

func (t *Tracker) deliver(sessionID string, role v1.Role, env v1.Envelope) {
	if role == "" {
		t.hub.Broadcast(sessionID, env)
		return
	}
	t.hub.BroadcastToRole(sessionID, role, env)
}

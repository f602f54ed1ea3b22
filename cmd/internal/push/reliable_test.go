package push

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	v1 "tether/shared/contracts/pairing/v1"
)

type trackerClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTrackerClock() *trackerClock {
	return &trackerClock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *trackerClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *trackerClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTracker(t *testing.T) (*Tracker, *Hub, *trackerClock) {
	t.Helper()

	hub := NewHub(nil)
	clock := newTrackerClock()
	tr := NewTracker(nil, hub, TrackerConfig{})
	tr.now = clock.Now
	t.Cleanup(tr.Stop)
	return tr, hub, clock
}

func TestTracker_SendMarksAckAndDelivers(t *testing.T) {
	t.Parallel()

	tr, hub, _ := newTestTracker(t)
	signer := NewClient("c1", 8)
	hub.Subscribe(signer, "s1", v1.RoleSigner)

	tr.Send("s1", v1.RoleSigner, testEnvelope(v1.TypeSigningRequest))

	got := drain(signer)
	if len(got) != 1 {
		t.Fatalf("delivered %d envelopes, want 1", len(got))
	}
	if !got[0].Ack {
		t.Fatalf("reliable envelope must require ack")
	}
	if tr.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", tr.Pending())
	}
}

func TestTracker_AcknowledgeStopsRetries(t *testing.T) {
	t.Parallel()

	tr, hub, clock := newTestTracker(t)
	signer := NewClient("c1", 8)
	hub.Subscribe(signer, "s1", v1.RoleSigner)

	env := testEnvelope(v1.TypeSigningRequest)
	tr.Send("s1", v1.RoleSigner, env)
	drain(signer)

	tr.Acknowledge(env.ID)
	if tr.Pending() != 0 {
		t.Fatalf("Pending = %d after ack", tr.Pending())
	}

	clock.Advance(time.Minute)
	tr.Sweep()

	if got := drain(signer); len(got) != 0 {
		t.Fatalf("retry after ack: %+v", got)
	}
}

func TestTracker_AcknowledgeUnknownIDIsNoop(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTestTracker(t)
	tr.Acknowledge("never-sent")
	tr.Acknowledge("never-sent")
}

func TestTracker_RetriesThenReportsFailure(t *testing.T) {
	t.Parallel()

	tr, hub, clock := newTestTracker(t)
	signer := NewClient("c1", 16)
	requester := NewClient("c2", 16)
	hub.Subscribe(signer, "s1", v1.RoleSigner)
	hub.Subscribe(requester, "s1", v1.RoleRequester)

	env := testEnvelope(v1.TypeSigningRequest)
	tr.Send("s1", v1.RoleSigner, env)

	if got := drain(signer); len(got) != 1 {
		t.Fatalf("initial delivery: %+v", got)
	}

	// Each sweep past the deadline produces one retry, up to the budget.
	for i := 1; i <= 3; i++ {
		clock.Advance(6 * time.Second)
		tr.Sweep()

		got := drain(signer)
		if len(got) != 1 || got[0].ID != env.ID {
			t.Fatalf("retry %d: got %+v", i, got)
		}
		if tr.Pending() != 1 {
			t.Fatalf("retry %d: Pending = %d", i, tr.Pending())
		}
	}

	// Budget exhausted: the next sweep removes the entry and announces the
	// failure to every subscriber, not just the target role.
	clock.Advance(6 * time.Second)
	tr.Sweep()

	if tr.Pending() != 0 {
		t.Fatalf("Pending = %d after give-up", tr.Pending())
	}

	signerGot := drain(signer)
	requesterGot := drain(requester)
	if len(signerGot) != 1 || signerGot[0].Type != v1.TypeDeliveryFailed {
		t.Fatalf("signer failure notice: %+v", signerGot)
	}
	if len(requesterGot) != 1 || requesterGot[0].Type != v1.TypeDeliveryFailed {
		t.Fatalf("requester failure notice: %+v", requesterGot)
	}

	var payload v1.DeliveryFailedPayload
	if err := json.Unmarshal(signerGot[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal failure payload: %v", err)
	}
	if payload.SessionID != "s1" || payload.MessageID != env.ID {
		t.Fatalf("failure payload: %+v", payload)
	}

	var original v1.Envelope
	if err := json.Unmarshal(payload.Original, &original); err != nil {
		t.Fatalf("unmarshal original envelope: %v", err)
	}
	if original.ID != env.ID || original.Type != v1.TypeSigningRequest {
		t.Fatalf("original envelope: %+v", original)
	}

	// Exactly one terminal notice: a further sweep stays silent.
	clock.Advance(time.Minute)
	tr.Sweep()
	if got := drain(signer); len(got) != 0 {
		t.Fatalf("notice repeated: %+v", got)
	}
}

func TestTracker_SweepBeforeDeadlineDoesNothing(t *testing.T) {
	t.Parallel()

	tr, hub, clock := newTestTracker(t)
	signer := NewClient("c1", 8)
	hub.Subscribe(signer, "s1", v1.RoleSigner)

	tr.Send("s1", v1.RoleSigner, testEnvelope(v1.TypeSigningRequest))
	drain(signer)

	clock.Advance(time.Second) // under the 5s ack window
	tr.Sweep()

	if got := drain(signer); len(got) != 0 {
		t.Fatalf("premature retry: %+v", got)
	}
}

func TestTracker_EmptyRoleTargetsAllSubscribers(t *testing.T) {
	t.Parallel()

	tr, hub, _ := newTestTracker(t)
	signer := NewClient("c1", 8)
	requester := NewClient("c2", 8)
	hub.Subscribe(signer, "s1", v1.RoleSigner)
	hub.Subscribe(requester, "s1", v1.RoleRequester)

	tr.Send("s1", "", testEnvelope(v1.TypeRequestTimeout))

	if got := drain(signer); len(got) != 1 {
		t.Fatalf("signer: %+v", got)
	}
	if got := drain(requester); len(got) != 1 {
		t.Fatalf("requester: %+v", got)
	}
}

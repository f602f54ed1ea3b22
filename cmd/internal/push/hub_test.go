package push

import (
	"testing"

	v1 "tether/shared/contracts/pairing/v1"
)

func drain(c *Client) []v1.Envelope {
	var out []v1.Envelope
	for {
		select {
		case env := <-c.Send:
			out = append(out, env)
		default:
			return out
		}
	}
}

func testEnvelope(typ string) v1.Envelope {
	return v1.Envelope{V: v1.Version, Type: typ, ID: "msg-" + typ, Payload: []byte(`{}`)}
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	signer := NewClient("c1", 8)
	requester := NewClient("c2", 8)

	hub.Subscribe(signer, "s1", v1.RoleSigner)
	hub.Subscribe(requester, "s1", v1.RoleRequester)

	hub.Broadcast("s1", testEnvelope(v1.TypePaired))

	if got := drain(signer); len(got) != 1 || got[0].Type != v1.TypePaired {
		t.Fatalf("signer got %+v", got)
	}
	if got := drain(requester); len(got) != 1 {
		t.Fatalf("requester got %+v", got)
	}
}

func TestHub_BroadcastToRoleFilters(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	signer := NewClient("c1", 8)
	requester := NewClient("c2", 8)

	hub.Subscribe(signer, "s1", v1.RoleSigner)
	hub.Subscribe(requester, "s1", v1.RoleRequester)

	hub.BroadcastToRole("s1", v1.RoleSigner, testEnvelope(v1.TypeSigningRequest))

	if got := drain(signer); len(got) != 1 {
		t.Fatalf("signer got %+v", got)
	}
	if got := drain(requester); len(got) != 0 {
		t.Fatalf("requester should receive nothing, got %+v", got)
	}
}

func TestHub_BroadcastIsSessionScoped(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	a := NewClient("c1", 8)
	b := NewClient("c2", 8)

	hub.Subscribe(a, "s1", v1.RoleSigner)
	hub.Subscribe(b, "s2", v1.RoleSigner)

	hub.Broadcast("s1", testEnvelope(v1.TypePaired))

	if got := drain(b); len(got) != 0 {
		t.Fatalf("cross-session leak: %+v", got)
	}
}

func TestHub_RoleIsFixedAtSubscribeTime(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	c := NewClient("c1", 8)

	hub.Subscribe(c, "s1", v1.RoleSigner)
	hub.Subscribe(c, "s1", v1.RoleRequester) // no-op, keeps original role

	role, ok := hub.Role("c1", "s1")
	if !ok || role != v1.RoleSigner {
		t.Fatalf("role = %q ok=%v, want signer", role, ok)
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	c := NewClient("c1", 8)

	hub.Subscribe(c, "s1", v1.RoleSigner)
	hub.Unsubscribe(c, "s1")
	hub.Unsubscribe(c, "s1") // repeat is harmless

	hub.Broadcast("s1", testEnvelope(v1.TypePaired))

	if got := drain(c); len(got) != 0 {
		t.Fatalf("delivery after unsubscribe: %+v", got)
	}
	if _, ok := hub.Role("c1", "s1"); ok {
		t.Fatalf("binding survived unsubscribe")
	}
}

func TestHub_DropConnectionRemovesAllBindings(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	c := NewClient("c1", 8)

	hub.Subscribe(c, "s1", v1.RoleSigner)
	hub.Subscribe(c, "s2", v1.RoleRequester)

	hub.DropConnection(c)

	if _, ok := hub.Role("c1", "s1"); ok {
		t.Fatalf("s1 binding survived drop")
	}
	if _, ok := hub.Role("c1", "s2"); ok {
		t.Fatalf("s2 binding survived drop")
	}

	select {
	case <-c.Done():
	default:
		t.Fatalf("drop did not signal client shutdown")
	}

	// A second drop must not panic or deadlock.
	hub.DropConnection(c)
}

func TestHub_BroadcastDropsUnderBackpressure(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	c := NewClient("c1", 1)
	hub.Subscribe(c, "s1", v1.RoleSigner)

	hub.Broadcast("s1", testEnvelope(v1.TypePaired))
	hub.Broadcast("s1", testEnvelope(v1.TypeSessionStatus)) // queue full: dropped

	got := drain(c)
	if len(got) != 1 || got[0].Type != v1.TypePaired {
		t.Fatalf("got %+v, want only the first envelope", got)
	}
}

func TestHub_BroadcastSkipsClosedClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	c := NewClient("c1", 8)
	hub.Subscribe(c, "s1", v1.RoleSigner)
	c.Close()

	hub.Broadcast("s1", testEnvelope(v1.TypePaired))

	if got := drain(c); len(got) != 0 {
		t.Fatalf("delivery to closed client: %+v", got)
	}
}

// Package push implements Tether's push channel: per-session role-keyed
// subscription fanout, the reliable-delivery tracker, and the WebSocket
// gateway that binds both to the wire.
package push

import (
	"log/slog"
	"sync"

	v1 "tether/shared/contracts/pairing/v1"
)

// subscription binds one connection to one session under a fixed role.
type subscription struct {
	client *Client
	role   v1.Role
}

// Hub multiplexes transport connections over pairing sessions.
//
// Concurrency guarantees:
// - Subscribe/Unsubscribe/DropConnection are safe under concurrent broadcast.
// - Broadcasts never block (drop under backpressure) and never abort on a
//   single dead member.
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Hub struct {
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[string]map[string]subscription // sessionID -> connID -> sub
	byConn   map[string]map[string]struct{}     // connID -> set of sessionIDs
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:      log,
		sessions: make(map[string]map[string]subscription),
		byConn:   make(map[string]map[string]struct{}),
	}
}

// Subscribe registers the connection under the session keyed by role.
// The role is fixed at subscribe time per connection+session pair;
// re-subscribing the same pair is a no-op that keeps the original role.
func (h *Hub) Subscribe(client *Client, sessionID string, role v1.Role) {
	if h == nil || client == nil || client.ConnID == "" || sessionID == "" {
		return
	}

	h.mu.Lock()
	subs := h.sessions[sessionID]
	if subs == nil {
		subs = make(map[string]subscription)
		h.sessions[sessionID] = subs
	}
	if _, exists := subs[client.ConnID]; !exists {
		subs[client.ConnID] = subscription{client: client, role: role}

		set := h.byConn[client.ConnID]
		if set == nil {
			set = make(map[string]struct{})
			h.byConn[client.ConnID] = set
		}
		set[sessionID] = struct{}{}
		liveSubscriptions.Inc()
	}
	h.mu.Unlock()

	h.log.Info("push.subscribe", "session_id", sessionID, "conn_id", client.ConnID, "role", role)
}

// Unsubscribe removes one connection+session binding. Safe to call multiple times.
func (h *Hub) Unsubscribe(client *Client, sessionID string) {
	if h == nil || client == nil {
		return
	}

	h.mu.Lock()
	removed := h.removeLocked(client.ConnID, sessionID)
	h.mu.Unlock()

	if removed {
		h.log.Info("push.unsubscribe", "session_id", sessionID, "conn_id", client.ConnID)
	}
}

// DropConnection removes the connection from every session it had joined
// and signals client shutdown. Safe to call multiple times.
func (h *Hub) DropConnection(client *Client) {
	if h == nil || client == nil {
		return
	}

	h.mu.Lock()
	for sessionID := range h.byConn[client.ConnID] {
		h.removeLocked(client.ConnID, sessionID)
	}
	h.mu.Unlock()

	// Signal shutdown after membership removal so broadcasters never hold a
	// pointer to a client mid-teardown.
	client.Close()

	h.log.Info("push.drop_connection", "conn_id", client.ConnID)
}

// removeLocked deletes a binding; callers hold the write lock.
func (h *Hub) removeLocked(connID, sessionID string) bool {
	subs := h.sessions[sessionID]
	if _, ok := subs[connID]; !ok {
		return false
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(h.sessions, sessionID)
	}

	set := h.byConn[connID]
	delete(set, sessionID)
	if len(set) == 0 {
		delete(h.byConn, connID)
	}

	liveSubscriptions.Dec()
	return true
}

// Role reports the fixed role of a connection within a session.
func (h *Hub) Role(connID, sessionID string) (v1.Role, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sub, ok := h.sessions[sessionID][connID]
	if !ok {
		return "", false
	}
	return sub.role, true
}

// Broadcast fans an envelope out to every live subscriber of the session.
func (h *Hub) Broadcast(sessionID string, env v1.Envelope) {
	h.broadcast(sessionID, env, "", false)
}

// BroadcastToRole fans an envelope out to subscribers whose role matches exactly.
func (h *Hub) BroadcastToRole(sessionID string, role v1.Role, env v1.Envelope) {
	h.broadcast(sessionID, env, role, true)
}

func (h *Hub) broadcast(sessionID string, env v1.Envelope, role v1.Role, filter bool) {
	if h == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.sessions[sessionID] {
		if sub.client == nil {
			continue
		}
		if filter && sub.role != role {
			continue
		}

		select {
		case <-sub.client.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case sub.client.Send <- env:
			envelopesDelivered.Inc()
		default:
			// Drop rather than block the whole session.
			envelopesDropped.Inc()
		}
	}
}

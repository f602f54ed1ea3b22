package push

import (
	"encoding/json"
	"log/slog"
	"time"

	"tether/cmd/internal/pairing"
	v1 "tether/shared/contracts/pairing/v1"
)

// Notifier adapts pairing registry events onto the push channel. It is the
// pairing.EventSink the service is wired with at startup.
//
// Audience and reliability per event:
//   - paired, session_expired, request_timeout, session_status: fire-and-forget.
//   - signing_request (signer role) and signing_response (requester role):
//     reliable via the Tracker.
//
// All methods are non-blocking: fanout drops under backpressure and the
// tracker only records state before broadcasting.
type Notifier struct {
	log     *slog.Logger
	hub     *Hub
	tracker *Tracker
	now     func() time.Time
}

// NewNotifier constructs the event-sink adapter.
func NewNotifier(log *slog.Logger, hub *Hub, tracker *Tracker) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		log:     log,
		hub:     hub,
		tracker: tracker,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// DevicePaired announces the requester connection to all subscribers.
func (n *Notifier) DevicePaired(sessionID string, requesterInfo json.RawMessage) {
	env := newEnvelope(v1.TypePaired, v1.PairedPayload{
		SessionID:     sessionID,
		RequesterInfo: requesterInfo,
	}, n.now())
	n.hub.Broadcast(sessionID, env)
}

// DeviceDisconnected announces teardown as a final status broadcast.
func (n *Notifier) DeviceDisconnected(sessionID string) {
	env := newEnvelope(v1.TypeSessionStatus, v1.SessionStatusPayload{
		SessionID: sessionID,
		Connected: false,
	}, n.now())
	n.hub.Broadcast(sessionID, env)
}

// SessionExpired announces sweeper-driven session expiry to all subscribers.
func (n *Notifier) SessionExpired(sessionID string) {
	env := newEnvelope(v1.TypeSessionExpired, v1.SessionExpiredPayload{
		SessionID: sessionID,
	}, n.now())
	n.hub.Broadcast(sessionID, env)
}

// SigningRequestCreated pushes the request reliably to the signer role.
func (n *Notifier) SigningRequestCreated(sessionID string, req pairing.RequestView) {
	env := newEnvelope(v1.TypeSigningRequest, v1.SigningRequestPayload{
		SessionID:     sessionID,
		RequestID:     req.RequestID,
		Type:          req.Type,
		Payload:       req.Payload,
		RequesterInfo: req.RequesterInfo,
		CreatedAt:     req.CreatedAt,
		ExpiresAt:     req.ExpiresAt,
	}, n.now())
	n.tracker.Send(sessionID, v1.RoleSigner, env)
}

// SigningResponded pushes the terminal outcome reliably to the requester role.
func (n *Notifier) SigningResponded(sessionID string, req pairing.RequestView) {
	env := newEnvelope(v1.TypeSigningResponse, v1.SigningResultPayload{
		SessionID:   sessionID,
		RequestID:   req.RequestID,
		Success:     req.Status == pairing.StatusCompleted,
		Response:    req.Response,
		Error:       req.Error,
		CompletedAt: req.CompletedAt,
	}, n.now())
	n.tracker.Send(sessionID, v1.RoleRequester, env)
}

// RequestTimedOut announces request expiry with identical content to both roles.
func (n *Notifier) RequestTimedOut(sessionID string, req pairing.RequestView) {
	env := newEnvelope(v1.TypeRequestTimeout, v1.RequestTimeoutPayload{
		SessionID: sessionID,
		RequestID: req.RequestID,
		Type:      req.Type,
	}, n.now())
	n.hub.Broadcast(sessionID, env)
}

var _ pairing.EventSink = (*Notifier)(nil)

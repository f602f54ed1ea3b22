package pairing

import "encoding/json"

// EventSink receives lifecycle notifications from the registries.
//
// The registries call the sink unconditionally after the corresponding state
// transition has committed; the push transport registers itself as the sink
// at startup and decides audience and reliability per event. Sink methods
// must not call back into the Service.
type EventSink interface {
	// DevicePaired fires when a requester connects to a session.
	DevicePaired(sessionID string, requesterInfo json.RawMessage)

	// DeviceDisconnected fires when a session is destroyed by an explicit
	// disconnect (not by expiry alone).
	DeviceDisconnected(sessionID string)

	// SessionExpired fires when the sweeper detects an expired session,
	// before the session is torn down.
	SessionExpired(sessionID string)

	// SigningRequestCreated fires for each new pending request. Transports
	// should deliver it reliably to the signer role.
	SigningRequestCreated(sessionID string, req RequestView)

	// SigningResponded fires when a request reaches completed or failed.
	// Transports should deliver it reliably to the requester role.
	SigningResponded(sessionID string, req RequestView)

	// RequestTimedOut fires when a pending request expires. Transports
	// deliver it to both roles with identical content.
	RequestTimedOut(sessionID string, req RequestView)
}

// NopSink discards all events. Useful for tests and for callers that only
// exercise the registries.
type NopSink struct{}

func (NopSink) DevicePaired(string, json.RawMessage)        {}
func (NopSink) DeviceDisconnected(string)                   {}
func (NopSink) SessionExpired(string)                       {}
func (NopSink) SigningRequestCreated(string, RequestView)   {}
func (NopSink) SigningResponded(string, RequestView)        {}
func (NopSink) RequestTimedOut(string, RequestView)         {}

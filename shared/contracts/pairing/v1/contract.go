// Package v1 defines the Tether pairing push-channel contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Client -> server type constants (wire-stable).
const (
	// TypeSubscribe joins a pairing session under a role.
	TypeSubscribe = "subscribe"
	// TypeUnsubscribe leaves a pairing session.
	TypeUnsubscribe = "unsubscribe"
	// TypeHeartbeat is a client liveness hint. Liveness is enforced by
	// server pings; the kind exists so well-behaved clients have a no-op.
	TypeHeartbeat = "heartbeat"
	// TypeAck acknowledges receipt of a reliable server envelope.
	TypeAck = "ack"
)

// Bidirectional type constants.
const (
	// TypeSigningResponse is the signer's answer to a signing request
	// (client -> server), and the reliable push of that answer to the
	// requester (server -> client).
	TypeSigningResponse = "signing_response"
)

// Server -> client type constants (wire-stable).
const (
	// TypeSessionStatus reports current session state to one subscriber.
	TypeSessionStatus = "session_status"
	// TypePaired announces that a requester connected to the session.
	TypePaired = "paired"
	// TypeSigningRequest pushes a new signing request to the signer role.
	TypeSigningRequest = "signing_request"
	// TypeRequestTimeout announces a request that expired unanswered.
	TypeRequestTimeout = "request_timeout"
	// TypeSessionExpired announces session expiry to all subscribers.
	TypeSessionExpired = "session_expired"
	// TypeDeliveryFailed announces a reliable message that exhausted retries.
	TypeDeliveryFailed = "delivery_failed"
	// TypeResponseAccepted confirms a signing response to the responding signer.
	TypeResponseAccepted = "response_accepted"
	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Role is the capability a subscription has within a session.
type Role string

const (
	// RoleSigner is the key-holding side of a session.
	RoleSigner Role = "signer"
	// RoleRequester is the side asking for signatures.
	RoleRequester Role = "requester"
)

// ParseRole validates a wire role string.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RoleSigner:
		return RoleSigner, nil
	case RoleRequester:
		return RoleRequester, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// Envelope is the canonical wire wrapper.
//
// Ack marks envelopes that require an explicit ack from the receiver;
// unacked envelopes are retried a bounded number of times server-side.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Ack     bool            `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
// The type set is closed: unknown kinds are rejected here, not defaulted.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeSubscribe,
		TypeUnsubscribe,
		TypeHeartbeat,
		TypeAck,
		TypeSigningResponse,
		TypeSessionStatus,
		TypePaired,
		TypeSigningRequest,
		TypeRequestTimeout,
		TypeSessionExpired,
		TypeDeliveryFailed,
		TypeResponseAccepted,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Client -> server payloads ----

// SubscribePayload joins a session under a fixed role.
type SubscribePayload struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

// UnsubscribePayload leaves a session.
type UnsubscribePayload struct {
	SessionID string `json:"session_id"`
}

// AckPayload acknowledges a reliable envelope by message id.
type AckPayload struct {
	MessageID string `json:"message_id"`
}

// SigningResponsePayload carries the signer's answer over the push channel.
// Exactly one of Response or Error should be set.
type SigningResponsePayload struct {
	SessionID string          `json:"session_id"`
	RequestID string          `json:"request_id"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ---- Server -> client payloads ----

// SessionStatusPayload reports the current state of a session.
type SessionStatusPayload struct {
	SessionID       string    `json:"session_id"`
	Connected       bool      `json:"connected"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
	PendingRequests int       `json:"pending_requests,omitempty"`
}

// PairedPayload announces the requester connection.
type PairedPayload struct {
	SessionID     string          `json:"session_id"`
	RequesterInfo json.RawMessage `json:"requester_info,omitempty"`
}

// SigningRequestPayload pushes a pending request to the signer role.
type SigningRequestPayload struct {
	SessionID     string          `json:"session_id"`
	RequestID     string          `json:"request_id"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	RequesterInfo json.RawMessage `json:"requester_info,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// SigningResultPayload pushes the terminal outcome to the requester role.
type SigningResultPayload struct {
	SessionID   string          `json:"session_id"`
	RequestID   string          `json:"request_id"`
	Success     bool            `json:"success"`
	Response    json.RawMessage `json:"response,omitempty"`
	Error       string          `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// RequestTimeoutPayload announces an expired request. It is delivered with
// identical content to both roles.
type RequestTimeoutPayload struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	Type      string `json:"type"`
}

// SessionExpiredPayload announces session expiry.
type SessionExpiredPayload struct {
	SessionID string `json:"session_id"`
}

// DeliveryFailedPayload reports a reliable envelope that exhausted its retry
// budget, carrying the original envelope for client-side recovery.
type DeliveryFailedPayload struct {
	SessionID string          `json:"session_id"`
	MessageID string          `json:"message_id"`
	Original  json.RawMessage `json:"original,omitempty"`
}

// ResponseAcceptedPayload confirms a signing response to the signer that sent it.
type ResponseAcceptedPayload struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

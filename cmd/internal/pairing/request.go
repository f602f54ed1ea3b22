package pairing

import (
	"encoding/json"
	"time"
)

// Status is the signing-request lifecycle state.
type Status string

const (
	// StatusPending means the request awaits a signer response.
	StatusPending Status = "pending"
	// StatusCompleted means the signer responded without error.
	StatusCompleted Status = "completed"
	// StatusFailed means the signer responded with an error.
	StatusFailed Status = "failed"
	// StatusExpired means the request timed out unanswered.
	StatusExpired Status = "expired"
)

// Terminal reports whether a status is one-way final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// signingRequest is the internal request record, guarded by the Service mutex.
// done is closed exactly once, on the transition out of pending; waiters
// block on it instead of polling.
type signingRequest struct {
	id        string
	sessionID string

	typ     string
	payload json.RawMessage

	status   Status
	response json.RawMessage
	errMsg   string

	createdAt   time.Time
	expiresAt   time.Time
	completedAt time.Time

	done chan struct{}
}

func (r *signingRequest) expiredAt(now time.Time) bool {
	return r.status == StatusPending && now.After(r.expiresAt)
}

// finish commits the single transition out of pending and wakes waiters.
// Callers must hold the Service mutex and must have checked status first.
func (r *signingRequest) finish(status Status, response json.RawMessage, errMsg string, now time.Time) {
	r.status = status
	r.response = response
	r.errMsg = errMsg
	r.completedAt = now
	close(r.done)
}

// RequestView is an immutable snapshot of a signing request handed to
// callers and event sinks.
type RequestView struct {
	RequestID     string
	SessionID     string
	Type          string
	Payload       json.RawMessage
	Status        Status
	Response      json.RawMessage
	Error         string
	RequesterInfo json.RawMessage
	CreatedAt     time.Time
	ExpiresAt     time.Time
	CompletedAt   time.Time
}

func (r *signingRequest) view(requesterInfo json.RawMessage) RequestView {
	return RequestView{
		RequestID:     r.id,
		SessionID:     r.sessionID,
		Type:          r.typ,
		Payload:       r.payload,
		Status:        r.status,
		Response:      r.response,
		Error:         r.errMsg,
		RequesterInfo: requesterInfo,
		CreatedAt:     r.createdAt,
		ExpiresAt:     r.expiresAt,
		CompletedAt:   r.completedAt,
	}
}

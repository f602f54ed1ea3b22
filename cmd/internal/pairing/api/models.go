package pairingapi

import (
	"encoding/json"
	"time"
)

type createPairingRequest struct {
	DeviceInfo json.RawMessage `json:"device_info,omitempty"`
}

type createPairingResponse struct {
	PairCode  string `json:"pair_code"`
	SessionID string `json:"session_id"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

type connectRequest struct {
	PairCode   string          `json:"pair_code"`
	DeviceInfo json.RawMessage `json:"device_info,omitempty"`
}

type signerInfo struct {
	Identity string          `json:"identity"`
	Device   json.RawMessage `json:"device,omitempty"`
}

type connectResponse struct {
	SessionID  string     `json:"session_id"`
	SignerInfo signerInfo `json:"signer_info"`
}

type createRequestRequest struct {
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	TimeoutMs int64           `json:"timeout_ms,omitempty"`
}

type createRequestResponse struct {
	RequestID string `json:"request_id"`
}

type pendingRequest struct {
	RequestID     string          `json:"request_id"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	RequesterInfo json.RawMessage `json:"requester_info,omitempty"`
}

type pendingResponse struct {
	Requests []pendingRequest `json:"requests"`
}

type respondRequest struct {
	SessionID string          `json:"session_id"`
	RequestID string          `json:"request_id"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type waitRequest struct {
	RequestID string `json:"request_id"`
	TimeoutMs int64  `json:"timeout_ms,omitempty"`
}

type requestResult struct {
	RequestID   string          `json:"request_id"`
	Status      string          `json:"status"`
	Response    json.RawMessage `json:"response,omitempty"`
	Error       string          `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
}

type disconnectRequest struct {
	SessionID string `json:"session_id"`
}

type ackResponse struct {
	OK bool `json:"ok"`
}

type statusResponse struct {
	SessionID       string    `json:"session_id"`
	Connected       bool      `json:"connected"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
	LastActivityAt  time.Time `json:"last_activity_at,omitempty"`
	PendingRequests int       `json:"pending_requests,omitempty"`
}

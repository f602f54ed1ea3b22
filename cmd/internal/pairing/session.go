package pairing

import (
	"encoding/json"
	"time"
)

// session is the internal session record. A session owns its requests and
// its pairing-code mapping; destruction walks that ownership deterministically.
// All fields are guarded by the Service mutex.
type session struct {
	id   string
	code string

	signerIdentity string
	signerDevice   json.RawMessage

	requesterConnected bool
	requesterInfo      json.RawMessage

	createdAt      time.Time
	expiresAt      time.Time
	lastActivityAt time.Time

	requests map[string]*signingRequest
}

func (s *session) expired(now time.Time) bool {
	return now.After(s.expiresAt)
}

func (s *session) touch(now time.Time) {
	s.lastActivityAt = now
}

func (s *session) pendingCount() int {
	n := 0
	for _, r := range s.requests {
		if r.status == StatusPending {
			n++
		}
	}
	return n
}

// PairingInfo is the result of CreatePairing.
type PairingInfo struct {
	SessionID string
	PairCode  string
	ExpiresIn time.Duration
}

// ConnectResult is the result of Connect.
type ConnectResult struct {
	SessionID      string
	SignerIdentity string
	SignerDevice   json.RawMessage
}

// StatusView is the read-only snapshot returned by Status.
//
// Unknown and destroyed sessions yield the zero StatusView: callers must
// treat Connected=false as "not paired or not found", never as an error.
type StatusView struct {
	SessionID       string
	Connected       bool
	SignerIdentity  string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	LastActivityAt  time.Time
	PendingRequests int
}

// Package pairing implements the device-pairing and remote-signing session
// registries: pairing codes, session lifecycle, signing requests, and the
// expiry sweeper that retires both.
package pairing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"tether/cmd/internal/ids"
)

// Service owns the in-memory session, code, and request indexes.
//
// Concurrency model:
//   - One mutex serializes every mutation of every record; no two writers
//     can transition the same request concurrently.
//   - Sink notifications are emitted under the mutex, after the transition
//     committed, so per-session causal order is preserved. Sinks must be
//     non-blocking and must not call back into the Service.
//   - WaitForResult is the only suspending operation and never holds the
//     mutex while suspended.
//   - Mirror writes run on their own goroutines with a bounded timeout.
type Service struct {
	log    *slog.Logger
	cfg    Config
	sink   EventSink
	mirror Mirror

	// now is swappable in tests.
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	codes    map[string]string // pairCode -> sessionID
	requests map[string]*signingRequest

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// mirrorMu gates mirrorWG.Add against Stop's Wait: once draining is
	// set no new mirror goroutine may start.
	mirrorMu sync.Mutex
	mirrorWG sync.WaitGroup
	draining bool
}

// NewService constructs a Service with its dependencies injected.
// A nil sink or mirror falls back to the no-op implementation.
func NewService(log *slog.Logger, cfg Config, sink EventSink, mirror Mirror) *Service {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = NopSink{}
	}
	if mirror == nil {
		mirror = NopMirror{}
	}
	return &Service{
		log:      log,
		cfg:      cfg.withDefaults(),
		sink:     sink,
		mirror:   mirror,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*session),
		codes:    make(map[string]string),
		requests: make(map[string]*signingRequest),
		stop:     make(chan struct{}),
	}
}

// SetSink replaces the event sink. Call before Start, never after.
func (s *Service) SetSink(sink EventSink) {
	if sink != nil {
		s.sink = sink
	}
}

// Start launches the expiry sweeper.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.sweepLoop()
}

// Stop terminates the sweeper, drains in-flight mirror writes, and waits
// for both to exit. Idempotent. Mirror writes requested after Stop are
// dropped rather than racing the drain.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mirrorMu.Lock()
	s.draining = true
	s.mirrorMu.Unlock()

	s.mirrorWG.Wait()
	s.wg.Wait()
}

// ---- Session Registry ----

// CreatePairing issues a fresh pairing code and session for a signer.
func (s *Service) CreatePairing(ctx context.Context, signerIdentity string, deviceInfo json.RawMessage) (PairingInfo, error) {
	now := s.now()

	id, err := ids.NewULID(now)
	if err != nil {
		return PairingInfo{}, err
	}
	code, err := NewPairCode()
	if err != nil {
		return PairingInfo{}, err
	}

	sess := &session{
		id:             id,
		code:           code,
		signerIdentity: strings.TrimSpace(signerIdentity),
		signerDevice:   deviceInfo,
		createdAt:      now,
		expiresAt:      now.Add(s.cfg.SessionTTL),
		lastActivityAt: now,
		requests:       make(map[string]*signingRequest),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.codes[code] = id
	s.mu.Unlock()

	sessionsCreated.Inc()
	s.log.Info("session.create", "session_id", id, "signer", sess.signerIdentity, "expires_at", sess.expiresAt)

	s.mirrorWrite("session_created", func(mctx context.Context) error {
		return s.mirror.SessionCreated(mctx, id, hashPairCode(code), sess.signerIdentity, now, sess.expiresAt)
	})

	return PairingInfo{SessionID: id, PairCode: code, ExpiresIn: s.cfg.SessionTTL}, nil
}

// Connect binds a requester to the session behind a pairing code.
// A stale session found via its code is destroyed on the spot.
func (s *Service) Connect(ctx context.Context, pairCode string, requesterInfo json.RawMessage) (ConnectResult, error) {
	now := s.now()
	code := strings.ToUpper(strings.TrimSpace(pairCode))

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.codes[code]
	if !ok {
		return ConnectResult{}, ErrInvalidOrExpiredCode
	}
	sess, ok := s.sessions[id]
	if !ok {
		delete(s.codes, code)
		return ConnectResult{}, ErrInvalidOrExpiredCode
	}
	if sess.expired(now) {
		s.destroyLocked(sess, "expired", false)
		return ConnectResult{}, ErrInvalidOrExpiredCode
	}
	if sess.requesterConnected {
		return ConnectResult{}, ErrAlreadyConnected
	}

	sess.requesterConnected = true
	sess.requesterInfo = requesterInfo
	sess.touch(now)

	sessionsPaired.Inc()
	s.log.Info("session.paired", "session_id", sess.id)

	// Transition committed above; notify in causal order.
	s.sink.DevicePaired(sess.id, requesterInfo)

	s.mirrorWrite("session_paired", func(mctx context.Context) error {
		return s.mirror.SessionPaired(mctx, sess.id, now)
	})

	return ConnectResult{
		SessionID:      sess.id,
		SignerIdentity: sess.signerIdentity,
		SignerDevice:   sess.signerDevice,
	}, nil
}

// Status is a pure read. Unknown or destroyed sessions return the zero
// view with Connected=false; callers must not treat that as an error.
// A session past expiry that the sweeper has not reclaimed yet reports
// Connected=false so no operation observes a live pairing after the TTL.
func (s *Service) Status(sessionID string) StatusView {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return StatusView{SessionID: sessionID}
	}
	return StatusView{
		SessionID:       sess.id,
		Connected:       sess.requesterConnected && !sess.expired(now),
		SignerIdentity:  sess.signerIdentity,
		CreatedAt:       sess.createdAt,
		ExpiresAt:       sess.expiresAt,
		LastActivityAt:  sess.lastActivityAt,
		PendingRequests: sess.pendingCount(),
	}
}

// Live reports whether a session exists and is not past expiry.
// Transports use it to validate subscriptions.
func (s *Service) Live(sessionID string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	return ok && !sess.expired(now)
}

// Disconnect destroys a session, its pairing code, and all of its requests.
// Idempotent: unknown sessions are a silent no-op.
func (s *Service) Disconnect(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	s.destroyLocked(sess, "disconnect", true)
}

// destroyLocked removes a session and walks its owned children: the code
// mapping first, then every request (waking pending waiters), then the
// session itself. Callers must hold the mutex.
func (s *Service) destroyLocked(sess *session, reason string, notify bool) {
	now := s.now()

	delete(s.codes, sess.code)
	for id, req := range sess.requests {
		if req.status == StatusPending {
			req.finish(StatusExpired, nil, "", now)
		}
		delete(s.requests, id)
	}
	delete(s.sessions, sess.id)

	s.log.Info("session.destroy", "session_id", sess.id, "reason", reason)

	if notify {
		s.sink.DeviceDisconnected(sess.id)
	}

	s.mirrorWrite("session_closed", func(mctx context.Context) error {
		return s.mirror.SessionClosed(mctx, sess.id, reason, now)
	})
}

// ---- Request Registry ----

// CreateRequest records a pending signing request against a paired,
// unexpired session. A non-positive timeout falls back to the default.
func (s *Service) CreateRequest(ctx context.Context, sessionID, typ string, payload json.RawMessage, timeout time.Duration) (string, error) {
	now := s.now()
	if timeout <= 0 {
		timeout = s.cfg.DefaultRequestTimeout
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrInvalidSession
	}
	if sess.expired(now) {
		return "", ErrSessionExpired
	}
	if !sess.requesterConnected {
		return "", ErrNoDeviceConnected
	}

	req := &signingRequest{
		id:        id,
		sessionID: sessionID,
		typ:       strings.TrimSpace(typ),
		payload:   payload,
		status:    StatusPending,
		createdAt: now,
		expiresAt: now.Add(timeout),
		done:      make(chan struct{}),
	}
	sess.requests[id] = req
	s.requests[id] = req
	sess.touch(now)

	requestsCreated.Inc()
	s.log.Info("request.create", "session_id", sessionID, "request_id", id, "type", req.typ, "expires_at", req.expiresAt)

	s.sink.SigningRequestCreated(sessionID, req.view(sess.requesterInfo))

	s.mirrorWrite("request_created", func(mctx context.Context) error {
		return s.mirror.RequestCreated(mctx, req.view(nil))
	})

	return id, nil
}

// ListPending sweeps this session's expired requests, then returns the
// remaining pending set ordered by creation time. The sweep and the read
// happen under one critical section so a concurrent Respond cannot race
// the expiry transition.
func (s *Service) ListPending(ctx context.Context, sessionID string) ([]RequestView, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrInvalidSession
	}
	if sess.expired(now) {
		return nil, ErrSessionExpired
	}

	s.expireSessionRequestsLocked(sess, now)

	out := make([]RequestView, 0, len(sess.requests))
	for _, req := range sess.requests {
		if req.status == StatusPending {
			out = append(out, req.view(sess.requesterInfo))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Respond transitions a pending request to completed (no error) or failed
// (error set) and notifies the requester role.
func (s *Service) Respond(ctx context.Context, sessionID, requestID string, response json.RawMessage, errMsg string) (RequestView, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return RequestView{}, ErrInvalidSession
	}
	if sess.expired(now) {
		return RequestView{}, ErrSessionExpired
	}
	req, ok := s.requests[requestID]
	if !ok {
		return RequestView{}, ErrInvalidRequest
	}
	if req.sessionID != sessionID {
		return RequestView{}, ErrRequestNotOwned
	}
	if req.status != StatusPending {
		return RequestView{}, ErrRequestNotPending
	}

	status := StatusCompleted
	if strings.TrimSpace(errMsg) != "" {
		status = StatusFailed
	}
	req.finish(status, response, errMsg, now)
	sess.touch(now)

	requestsResolved.WithLabelValues(string(status)).Inc()
	s.log.Info("request.respond", "session_id", sessionID, "request_id", requestID, "status", status)

	view := req.view(sess.requesterInfo)
	s.sink.SigningResponded(sessionID, view)

	s.mirrorWrite("request_resolved", func(mctx context.Context) error {
		return s.mirror.RequestResolved(mctx, req.view(nil))
	})

	return view, nil
}

// WaitForResult blocks until the request reaches a terminal state or the
// timeout elapses, forcing the request into expired in the latter case.
// It is event-driven: the respond/expiry path closes the wake channel.
// No lock is held while suspended.
func (s *Service) WaitForResult(ctx context.Context, requestID string, timeout time.Duration) (RequestView, error) {
	if timeout <= 0 {
		timeout = s.cfg.DefaultRequestTimeout
	}

	s.mu.Lock()
	req, ok := s.requests[requestID]
	if !ok {
		s.mu.Unlock()
		return RequestView{}, ErrInvalidRequest
	}
	if req.status.Terminal() {
		view := s.viewLocked(req)
		s.mu.Unlock()
		return view, nil
	}
	done := req.done
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return RequestView{}, ctx.Err()
	case <-done:
		s.mu.Lock()
		view := s.viewLocked(req)
		s.mu.Unlock()
		return view, nil
	case <-timer.C:
	}

	// Timed out: force expiry unless a response won the race.
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.status.Terminal() {
		return s.viewLocked(req), nil
	}
	s.expireRequestLocked(req, now)
	return s.viewLocked(req), nil
}

// viewLocked snapshots a request, attaching requester info when the owning
// session is still live.
func (s *Service) viewLocked(req *signingRequest) RequestView {
	var requesterInfo json.RawMessage
	if sess, ok := s.sessions[req.sessionID]; ok {
		requesterInfo = sess.requesterInfo
	}
	return req.view(requesterInfo)
}

// expireRequestLocked commits the pending->expired transition, announces it
// to both roles, and drops the request from the live index.
func (s *Service) expireRequestLocked(req *signingRequest, now time.Time) {
	req.finish(StatusExpired, nil, "", now)

	requestsResolved.WithLabelValues(string(StatusExpired)).Inc()
	s.log.Info("request.expire", "session_id", req.sessionID, "request_id", req.id)

	view := s.viewLocked(req)
	s.sink.RequestTimedOut(req.sessionID, view)

	if sess, ok := s.sessions[req.sessionID]; ok {
		delete(sess.requests, req.id)
	}
	delete(s.requests, req.id)

	s.mirrorWrite("request_resolved", func(mctx context.Context) error {
		return s.mirror.RequestResolved(mctx, req.view(nil))
	})
}

func (s *Service) expireSessionRequestsLocked(sess *session, now time.Time) {
	for _, req := range sess.requests {
		if req.expiredAt(now) {
			s.expireRequestLocked(req, now)
		}
	}
}

// ---- helpers ----

// mirrorWrite runs a best-effort persistence write off the hot path.
// Failures are logged and swallowed; in-memory state stays authoritative.
// Writes landing during shutdown are skipped: Add may not run concurrently
// with Stop's Wait on the same WaitGroup.
func (s *Service) mirrorWrite(op string, fn func(ctx context.Context) error) {
	s.mirrorMu.Lock()
	if s.draining {
		s.mirrorMu.Unlock()
		s.log.Warn("mirror.write.skip", "op", op)
		return
	}
	s.mirrorWG.Add(1)
	s.mirrorMu.Unlock()

	go func() {
		defer s.mirrorWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MirrorTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.log.Warn("mirror.write.fail", "op", op, "err", err)
		}
	}()
}

// hashPairCode returns the SHA-256 hex of a pairing code. Plaintext codes
// are never persisted.
func hashPairCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

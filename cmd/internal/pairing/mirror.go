package pairing

import (
	"context"
	"time"
)

// Mirror is a best-effort persistence mirror of session and request
// lifecycle events.
//
// In-memory state is authoritative: the Service logs and swallows mirror
// errors, and mirror writes never block a caller-visible operation.
type Mirror interface {
	SessionCreated(ctx context.Context, sessionID, codeHash, signerIdentity string, createdAt, expiresAt time.Time) error
	SessionPaired(ctx context.Context, sessionID string, at time.Time) error
	SessionClosed(ctx context.Context, sessionID, reason string, at time.Time) error
	RequestCreated(ctx context.Context, req RequestView) error
	RequestResolved(ctx context.Context, req RequestView) error
}

// NopMirror discards all writes. Used when no database is configured.
type NopMirror struct{}

func (NopMirror) SessionCreated(context.Context, string, string, string, time.Time, time.Time) error {
	return nil
}
func (NopMirror) SessionPaired(context.Context, string, time.Time) error         { return nil }
func (NopMirror) SessionClosed(context.Context, string, string, time.Time) error { return nil }
func (NopMirror) RequestCreated(context.Context, RequestView) error              { return nil }
func (NopMirror) RequestResolved(context.Context, RequestView) error             { return nil }

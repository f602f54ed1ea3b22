package pairing

import "errors"

var (
	// ErrInvalidOrExpiredCode is returned when a pairing code is unknown or
	// its session is past expiry.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired pairing code")

	// ErrAlreadyConnected is returned when a requester is already bound to
	// the session.
	ErrAlreadyConnected = errors.New("requester already connected")

	// ErrInvalidSession is returned when a session id does not resolve to a
	// live session.
	ErrInvalidSession = errors.New("invalid session")

	// ErrSessionExpired is returned when the session exists but is past its
	// expiry time.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoDeviceConnected is returned when an operation needs a paired
	// session but no requester has connected yet.
	ErrNoDeviceConnected = errors.New("no device connected")

	// ErrInvalidRequest is returned when a request id is unknown.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRequestNotOwned is returned when a request id belongs to a
	// different session.
	ErrRequestNotOwned = errors.New("request not owned by session")

	// ErrRequestNotPending is returned when a request already reached a
	// terminal state.
	ErrRequestNotPending = errors.New("request not pending")

	// ErrUnauthorized is returned on a role mismatch, e.g. a non-signer
	// submitting a signing response.
	ErrUnauthorized = errors.New("unauthorized")
)

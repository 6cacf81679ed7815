package attendance

import "errors"

// Expected outcomes are returned as typed errors so handlers can render a
// specific message per case instead of a generic failure.
var (
	// ErrDuplicateActiveCode means another Active session already holds the
	// same code. CreateSession retries past it; Store.Put surfaces it.
	ErrDuplicateActiveCode = errors.New("attendance: an active session already uses this code")

	// ErrCodeSpaceExhausted means code generation kept colliding with live
	// sessions and the bounded retry budget ran out.
	ErrCodeSpaceExhausted = errors.New("attendance: could not allocate a unique code")

	// ErrInvalidOrExpiredCode covers a code or payload that matches no
	// session that is still redeemable. It deliberately does not reveal
	// whether the session ever existed.
	ErrInvalidOrExpiredCode = errors.New("attendance: code is invalid or expired")

	// ErrNotFound is returned by the store for an unknown session ID.
	ErrNotFound = errors.New("attendance: session not found")

	// ErrNotOwner is returned when a caller tries to manage a session they
	// did not create.
	ErrNotOwner = errors.New("attendance: caller does not own this session")

	// ErrDecode is returned for malformed QR payloads. Scanned input is
	// attacker-controlled, so decoding must fail cleanly, never panic.
	ErrDecode = errors.New("attendance: malformed payload")

	// ErrEntropyUnavailable means the system random source failed.
	ErrEntropyUnavailable = errors.New("attendance: entropy source unavailable")
)

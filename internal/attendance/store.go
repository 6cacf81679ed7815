package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RedeemStatus is the outcome of an atomic redemption attempt.
type RedeemStatus int

const (
	Redeemed RedeemStatus = iota
	AlreadyRedeemed
	SessionNotActive
)

func (s RedeemStatus) String() string {
	switch s {
	case Redeemed:
		return "redeemed"
	case AlreadyRedeemed:
		return "already_redeemed"
	case SessionNotActive:
		return "session_not_active"
	default:
		return "unknown"
	}
}

// Store is the durable mapping from session ID and code to session state.
// It owns expiry and redemption bookkeeping.
//
// Expiry is lazy: there is no background sweep flipping sessions to Expired.
// FindActiveByCode and TryRedeem check expires_at against the supplied time
// and transition a stale Active session as a side effect of the read.
//
// TryRedeem is the single serialization point of the whole core. It must be
// indivisible per session: two racing attempts by the same attendee yield
// exactly one Redeemed, and a redemption can never slip in after expiry.
// Serialization is per session, never global, so unrelated sessions do not
// contend during mass check-in.
type Store interface {
	// Put persists a new session. Fails with ErrDuplicateActiveCode if an
	// Active, unexpired session already holds the same code.
	Put(ctx context.Context, s *Session) error

	// Get returns the session by ID, in whatever state, or ErrNotFound.
	Get(ctx context.Context, sessionID uuid.UUID) (*Session, error)

	// FindActiveByCode matches only sessions with state Active and
	// now < expires_at. A lazily-expired match transitions to Expired and
	// is reported as ErrNotFound.
	FindActiveByCode(ctx context.Context, code string, now time.Time) (*Session, error)

	// TryRedeem atomically records the attendee's redemption.
	TryRedeem(ctx context.Context, sessionID, attendeeID uuid.UUID, now time.Time) (RedeemStatus, error)

	// CloseSession moves an Active session to Closed. Already-terminal
	// sessions are left untouched; unknown IDs yield ErrNotFound.
	CloseSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error

	// ListByOwner returns the owner's sessions, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Session, error)

	// PurgeTerminatedBefore deletes terminated sessions whose expiry is
	// older than cutoff. Retention only; Active sessions are never purged.
	PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

package attendance

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateClosed  State = "closed"
)

// Session is a time-bounded, single-code unit of attendance-taking.
// Once a session leaves StateActive it never returns to it.
type Session struct {
	ID          uuid.UUID    `json:"id"`
	Code        string       `json:"code"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	Label       string       `json:"label"`
	State       State        `json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Redemptions []Redemption `json:"redemptions"`
}

// Redemption records a single attendee's claim of presence. An attendee
// appears at most once per session.
type Redemption struct {
	AttendeeID uuid.UUID `json:"attendee_id"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// Terminal reports whether the session can no longer accept redemptions.
func (s *Session) Terminal() bool {
	return s.State != StateActive
}

// HasRedemption reports whether the attendee already redeemed this session.
func (s *Session) HasRedemption(attendeeID uuid.UUID) bool {
	for _, r := range s.Redemptions {
		if r.AttendeeID == attendeeID {
			return true
		}
	}
	return false
}

// clone returns a deep copy so callers can never mutate stored state.
func (s *Session) clone() *Session {
	cp := *s
	cp.Redemptions = make([]Redemption, len(s.Redemptions))
	copy(cp.Redemptions, s.Redemptions)
	return &cp
}

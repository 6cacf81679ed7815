package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// maxCodeAttempts bounds retry on code collision. At 6 digits a
	// collision is practically unreachable, but it is handled, not
	// assumed away.
	maxCodeAttempts = 5

	MaxTTL     = 24 * time.Hour
	DefaultTTL = 5 * time.Minute
)

// FeedPublisher receives successful redemptions so organizers can watch
// check-ins arrive live. Implementations must not block the redeeming
// request path for long.
type FeedPublisher interface {
	RedemptionRecorded(ctx context.Context, s *Session, r Redemption)
}

// RedemptionResult is what an attendee's claim resolves to. Expected
// failure modes (wrong code, expired session, malformed payload) are typed
// errors, not results: "already marked present" and "code wrong/expired"
// must reach the user as distinct messages.
type RedemptionResult struct {
	SessionID  uuid.UUID
	Label      string
	Status     RedeemStatus
	RedeemedAt time.Time
}

// Manager orchestrates session creation by organizers and redemption by
// attendees, enforcing the invariants the store exposes primitives for.
// Callers pass attendee and owner IDs explicitly; the manager never reads
// ambient identity state.
type Manager struct {
	store    Store
	feed     FeedPublisher
	generate func(length int) (string, error)
	now      func() time.Time
}

func NewManager(store Store, feed FeedPublisher) *Manager {
	return &Manager{
		store:    store,
		feed:     feed,
		generate: GenerateCode,
		now:      time.Now,
	}
}

// CreateSession allocates a code and persists a new Active session.
// Collisions with live codes are retried a bounded number of times before
// failing with ErrCodeSpaceExhausted.
func (m *Manager) CreateSession(ctx context.Context, ownerID uuid.UUID, label string, ttl time.Duration, codeLength int) (*Session, error) {
	if codeLength == 0 {
		codeLength = DefaultCodeLength
	}
	// Any positive TTL is honored as requested, however short; organizers
	// legitimately run one-second windows to defeat code sharing.
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := m.generate(codeLength)
		if err != nil {
			return nil, err
		}

		now := m.now().UTC()
		session := &Session{
			ID:          uuid.New(),
			Code:        code,
			OwnerID:     ownerID,
			Label:       label,
			State:       StateActive,
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
			Redemptions: []Redemption{},
		}

		err = m.store.Put(ctx, session)
		if errors.Is(err, ErrDuplicateActiveCode) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("attendance: persist session: %w", err)
		}
		return session, nil
	}

	return nil, ErrCodeSpaceExhausted
}

// RedeemByCode resolves a typed-in code to an active session and records
// the attendee's presence at most once.
func (m *Manager) RedeemByCode(ctx context.Context, code string, attendeeID uuid.UUID, now time.Time) (*RedemptionResult, error) {
	session, err := m.store.FindActiveByCode(ctx, code, now)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, err
	}

	return m.redeem(ctx, session, attendeeID, now)
}

// RedeemByPayload decodes a scanned QR payload to a session ID and performs
// the same atomic redemption. A payload older than MaxPayloadAge is rejected
// even if the session itself is still live.
func (m *Manager) RedeemByPayload(ctx context.Context, payload string, attendeeID uuid.UUID, now time.Time) (*RedemptionResult, error) {
	sessionID, issuedAt, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	if now.Sub(issuedAt) > MaxPayloadAge {
		return nil, ErrInvalidOrExpiredCode
	}

	session, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, err
	}

	return m.redeem(ctx, session, attendeeID, now)
}

func (m *Manager) redeem(ctx context.Context, session *Session, attendeeID uuid.UUID, now time.Time) (*RedemptionResult, error) {
	status, err := m.store.TryRedeem(ctx, session.ID, attendeeID, now)
	if errors.Is(err, ErrNotFound) {
		// The session vanished between lookup and redemption, e.g. a
		// retention purge. To the attendee that is a dead code, not a
		// server fault.
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, err
	}
	if status == SessionNotActive {
		return nil, ErrInvalidOrExpiredCode
	}

	result := &RedemptionResult{
		SessionID:  session.ID,
		Label:      session.Label,
		Status:     status,
		RedeemedAt: now,
	}

	if status == Redeemed && m.feed != nil {
		m.feed.RedemptionRecorded(ctx, session, Redemption{AttendeeID: attendeeID, RedeemedAt: now})
	}
	return result, nil
}

// CloseSession terminates an Active session early. Idempotent: closing an
// already-terminated session succeeds without touching it.
func (m *Manager) CloseSession(ctx context.Context, ownerID, sessionID uuid.UUID) error {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.OwnerID != ownerID {
		return ErrNotOwner
	}
	return m.store.CloseSession(ctx, sessionID, m.now().UTC())
}

// GetSession returns the session with its redemptions, owner only.
func (m *Manager) GetSession(ctx context.Context, ownerID, sessionID uuid.UUID) (*Session, error) {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return session, nil
}

// ListSessions returns the owner's sessions, newest first.
func (m *Manager) ListSessions(ctx context.Context, ownerID uuid.UUID) ([]*Session, error) {
	return m.store.ListByOwner(ctx, ownerID)
}

// QRPayload renders the session into the text an organizer displays as a QR
// image. Owner only; the payload channel never carries the numeric code.
func (m *Manager) QRPayload(ctx context.Context, ownerID, sessionID uuid.UUID) (string, error) {
	session, err := m.GetSession(ctx, ownerID, sessionID)
	if err != nil {
		return "", err
	}
	if session.Terminal() || !m.now().Before(session.ExpiresAt) {
		return "", ErrInvalidOrExpiredCode
	}
	return EncodePayload(session.ID, m.now().UTC()), nil
}

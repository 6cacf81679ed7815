package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordingFeed struct {
	mu     sync.Mutex
	events []Redemption
}

func (f *recordingFeed) RedemptionRecorded(ctx context.Context, s *Session, r Redemption) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, r)
}

func newTestManager(t *testing.T) (*Manager, *MemoryStore, *recordingFeed) {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(store.Stop)
	feed := &recordingFeed{}
	return NewManager(store, feed), store, feed
}

func TestCreateSession_Defaults(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	s, err := mgr.CreateSession(context.Background(), uuid.New(), "Databases", 0, 0)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if len(s.Code) != DefaultCodeLength {
		t.Errorf("Expected %d-digit code, got %q", DefaultCodeLength, s.Code)
	}
	if s.State != StateActive {
		t.Errorf("Expected active state, got %q", s.State)
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		t.Error("Expected expires_at after created_at")
	}
	if got := s.ExpiresAt.Sub(s.CreatedAt); got != DefaultTTL {
		t.Errorf("Expected default TTL %v, got %v", DefaultTTL, got)
	}
}

func TestCreateSession_TTLBounds(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	owner := uuid.New()

	// A short requested TTL is honored exactly, never rounded up.
	short, err := mgr.CreateSession(ctx, owner, "short", time.Second, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if got := short.ExpiresAt.Sub(short.CreatedAt); got != time.Second {
		t.Errorf("Expected requested 1s TTL, got %v", got)
	}

	long, err := mgr.CreateSession(ctx, owner, "long", 100*time.Hour, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if got := long.ExpiresAt.Sub(long.CreatedAt); got != MaxTTL {
		t.Errorf("Expected TTL clamped down to %v, got %v", MaxTTL, got)
	}
}

func TestCreateSession_RetriesOnCollision(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	// Occupy a code, then force the generator to emit it first.
	occupied := newTestSession("555555", time.Hour)
	if err := store.Put(ctx, occupied); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	calls := 0
	mgr.generate = func(length int) (string, error) {
		calls++
		if calls == 1 {
			return "555555", nil
		}
		return GenerateCode(length)
	}

	s, err := mgr.CreateSession(ctx, uuid.New(), "Networks", time.Minute, 6)
	if err != nil {
		t.Fatalf("CreateSession failed after collision: %v", err)
	}
	if calls < 2 {
		t.Errorf("Expected at least one retry, generator called %d time(s)", calls)
	}
	if s.Code == "555555" {
		t.Error("Expected a fresh code after collision")
	}
}

func TestCreateSession_CodeSpaceExhausted(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	occupied := newTestSession("999999", time.Hour)
	if err := store.Put(ctx, occupied); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Every attempt collides.
	mgr.generate = func(length int) (string, error) { return "999999", nil }

	if _, err := mgr.CreateSession(ctx, uuid.New(), "doomed", time.Minute, 6); !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("Expected ErrCodeSpaceExhausted, got %v", err)
	}
}

func TestRedeemByCode_FullFlow(t *testing.T) {
	mgr, _, feed := newTestManager(t)
	ctx := context.Background()

	s, err := mgr.CreateSession(ctx, uuid.New(), "Compilers", time.Minute, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	attendee := uuid.New()
	now := time.Now()

	res, err := mgr.RedeemByCode(ctx, s.Code, attendee, now)
	if err != nil {
		t.Fatalf("RedeemByCode failed: %v", err)
	}
	if res.Status != Redeemed {
		t.Errorf("Expected Redeemed, got %v", res.Status)
	}
	if res.SessionID != s.ID {
		t.Errorf("Expected session %s, got %s", s.ID, res.SessionID)
	}

	res, err = mgr.RedeemByCode(ctx, s.Code, attendee, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Second redeem failed: %v", err)
	}
	if res.Status != AlreadyRedeemed {
		t.Errorf("Expected AlreadyRedeemed, got %v", res.Status)
	}

	feed.mu.Lock()
	eventCount := len(feed.events)
	feed.mu.Unlock()
	if eventCount != 1 {
		t.Errorf("Expected exactly 1 feed event, got %d", eventCount)
	}
}

func TestRedeemByCode_UnknownCode(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, err := mgr.RedeemByCode(context.Background(), "000000", uuid.New(), time.Now())
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("Expected ErrInvalidOrExpiredCode, got %v", err)
	}
}

func TestRedeemByCode_AfterExpiry(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	s, err := mgr.CreateSession(ctx, uuid.New(), "Algorithms", 10*time.Second, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// First attendee redeems inside the window.
	if _, err := mgr.RedeemByCode(ctx, s.Code, uuid.New(), s.CreatedAt.Add(time.Second)); err != nil {
		t.Fatalf("In-window redeem failed: %v", err)
	}

	// A later attendee is past the TTL without any explicit close.
	_, err = mgr.RedeemByCode(ctx, s.Code, uuid.New(), s.ExpiresAt.Add(time.Second))
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("Expected ErrInvalidOrExpiredCode after TTL, got %v", err)
	}
}

func TestRedeemByPayload(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	s, err := mgr.CreateSession(ctx, uuid.New(), "Graphics", time.Hour, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	now := time.Now()
	payload := EncodePayload(s.ID, now)

	res, err := mgr.RedeemByPayload(ctx, payload, uuid.New(), now)
	if err != nil {
		t.Fatalf("RedeemByPayload failed: %v", err)
	}
	if res.Status != Redeemed {
		t.Errorf("Expected Redeemed, got %v", res.Status)
	}
}

func TestRedeemByPayload_StalePayload(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	s, err := mgr.CreateSession(ctx, uuid.New(), "Ethics", time.Hour, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	now := time.Now()
	stale := EncodePayload(s.ID, now.Add(-MaxPayloadAge-time.Minute))

	// The session is still live; the payload alone has aged out.
	_, err = mgr.RedeemByPayload(ctx, stale, uuid.New(), now)
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("Expected ErrInvalidOrExpiredCode for stale payload, got %v", err)
	}
}

func TestRedeemByPayload_Malformed(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, err := mgr.RedeemByPayload(context.Background(), "definitely not a payload", uuid.New(), time.Now())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Expected ErrDecode, got %v", err)
	}
}

func TestCloseSession_OwnerAndIdempotence(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	owner := uuid.New()

	s, err := mgr.CreateSession(ctx, owner, "Physics", time.Hour, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Non-owner is rejected and the session stays active.
	if err := mgr.CloseSession(ctx, uuid.New(), s.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("Expected ErrNotOwner, got %v", err)
	}
	got, _ := mgr.GetSession(ctx, owner, s.ID)
	if got.State != StateActive {
		t.Errorf("Expected session still active after rejected close, got %q", got.State)
	}

	if err := mgr.CloseSession(ctx, owner, s.ID); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}
	if err := mgr.CloseSession(ctx, owner, s.ID); err != nil {
		t.Fatalf("Expected idempotent close, got %v", err)
	}

	_, err = mgr.RedeemByCode(ctx, s.Code, uuid.New(), time.Now())
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("Expected ErrInvalidOrExpiredCode after close, got %v", err)
	}
}

// vanishingStore simulates the session disappearing between the manager's
// lookup and the redemption attempt, as a retention purge can do.
type vanishingStore struct {
	Store
}

func (v vanishingStore) TryRedeem(ctx context.Context, sessionID, attendeeID uuid.UUID, now time.Time) (RedeemStatus, error) {
	return SessionNotActive, ErrNotFound
}

func TestRedeem_SessionPurgedMidFlight(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(store.Stop)
	mgr := NewManager(vanishingStore{Store: store}, nil)

	s, err := mgr.CreateSession(context.Background(), uuid.New(), "Evening Lecture", time.Hour, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	now := time.Now()
	payload := EncodePayload(s.ID, now)

	// The attendee sees a dead code, not an internal failure.
	_, err = mgr.RedeemByPayload(context.Background(), payload, uuid.New(), now)
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("Expected ErrInvalidOrExpiredCode for purged session, got %v", err)
	}
}

func TestQRPayload_OwnerOnly(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	owner := uuid.New()

	s, err := mgr.CreateSession(ctx, owner, "Chemistry", time.Hour, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := mgr.QRPayload(ctx, uuid.New(), s.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("Expected ErrNotOwner, got %v", err)
	}

	payload, err := mgr.QRPayload(ctx, owner, s.ID)
	if err != nil {
		t.Fatalf("QRPayload failed: %v", err)
	}

	gotID, _, err := DecodePayload(payload)
	if err != nil {
		t.Fatalf("Decode of own payload failed: %v", err)
	}
	if gotID != s.ID {
		t.Errorf("Expected payload for session %s, got %s", s.ID, gotID)
	}
}

// Scenario from the product flow: organizer opens a one-second window, one
// attendee makes it inside, a second attendee two seconds later does not.
func TestScenario_OneSecondSession(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	s, err := mgr.CreateSession(ctx, uuid.New(), "Morning Lecture", time.Second, 6)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if len(s.Code) != 6 {
		t.Fatalf("Expected a 6-digit code, got %q", s.Code)
	}
	if got := s.ExpiresAt.Sub(s.CreatedAt); got != time.Second {
		t.Fatalf("Expected 1s session window, got %v", got)
	}

	res, err := mgr.RedeemByCode(ctx, s.Code, uuid.New(), s.CreatedAt)
	if err != nil || res.Status != Redeemed {
		t.Fatalf("Expected immediate redemption to succeed, got %v (%v)", res, err)
	}

	_, err = mgr.RedeemByCode(ctx, s.Code, uuid.New(), s.CreatedAt.Add(2*time.Second))
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("Expected ErrInvalidOrExpiredCode for attendee 2s in, got %v", err)
	}
}

package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is a process-local Store. It backs tests and single-node
// deployments that do not need durability.
//
// Each session carries its own mutex; that mutex is the per-session
// serialization point TryRedeem requires. The store-level mutex only guards
// the maps and is never held across a session mutation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*memEntry

	// codes indexes Active codes to session IDs. Entries age out with the
	// session TTL so a released code becomes reusable without a sweep.
	codes *ttlcache.Cache[string, uuid.UUID]
}

type memEntry struct {
	mu      sync.Mutex
	session Session
}

func NewMemoryStore() *MemoryStore {
	codes := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, uuid.UUID](),
	)
	go codes.Start()

	return &MemoryStore{
		sessions: make(map[uuid.UUID]*memEntry),
		codes:    codes,
	}
}

// Stop releases the code-index janitor goroutine.
func (m *MemoryStore) Stop() {
	m.codes.Stop()
}

func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.codes.Get(s.Code); item != nil {
		if holder, ok := m.sessions[item.Value()]; ok {
			holder.mu.Lock()
			stillActive := holder.session.State == StateActive && s.CreatedAt.Before(holder.session.ExpiresAt)
			holder.mu.Unlock()
			if stillActive {
				return ErrDuplicateActiveCode
			}
		}
		m.codes.Delete(s.Code)
	}

	m.sessions[s.ID] = &memEntry{session: *s.clone()}
	if ttl := time.Until(s.ExpiresAt); ttl > 0 {
		m.codes.Set(s.Code, s.ID, ttl)
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	entry, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.clone(), nil
}

func (m *MemoryStore) FindActiveByCode(ctx context.Context, code string, now time.Time) (*Session, error) {
	m.mu.RLock()
	item := m.codes.Get(code)
	var entry *memEntry
	if item != nil {
		entry = m.sessions[item.Value()]
	}
	m.mu.RUnlock()

	if entry == nil {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	expireLocked(&entry.session, now)
	if entry.session.State != StateActive {
		m.codes.Delete(code)
		return nil, ErrNotFound
	}
	return entry.session.clone(), nil
}

func (m *MemoryStore) TryRedeem(ctx context.Context, sessionID, attendeeID uuid.UUID, now time.Time) (RedeemStatus, error) {
	entry, err := m.lookup(sessionID)
	if err != nil {
		return SessionNotActive, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	expireLocked(&entry.session, now)
	if entry.session.State != StateActive {
		return SessionNotActive, nil
	}
	if entry.session.HasRedemption(attendeeID) {
		return AlreadyRedeemed, nil
	}

	entry.session.Redemptions = append(entry.session.Redemptions, Redemption{
		AttendeeID: attendeeID,
		RedeemedAt: now,
	})
	return Redeemed, nil
}

func (m *MemoryStore) CloseSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	entry, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	expireLocked(&entry.session, now)
	if entry.session.State == StateActive {
		entry.session.State = StateClosed
		m.codes.Delete(entry.session.Code)
	}
	return nil
}

func (m *MemoryStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Session, error) {
	m.mu.RLock()
	entries := make([]*memEntry, 0, len(m.sessions))
	for _, entry := range m.sessions {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	var out []*Session
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.session.OwnerID == ownerID {
			out = append(out, entry.session.clone())
		}
		entry.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, entry := range m.sessions {
		entry.mu.Lock()
		stale := entry.session.State != StateActive && entry.session.ExpiresAt.Before(cutoff)
		entry.mu.Unlock()
		if stale {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) lookup(sessionID uuid.UUID) (*memEntry, error) {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

// expireLocked applies lazy expiry. Caller holds the entry mutex.
func expireLocked(s *Session, now time.Time) {
	if s.State == StateActive && !now.Before(s.ExpiresAt) {
		s.State = StateExpired
	}
}

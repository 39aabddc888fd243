package sessions

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Entries expire ttl after their last
// write and are dropped lazily.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	byID map[string]memoryEntry
}

// NewMemoryStore constructs a MemoryStore. A non-positive ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, byID: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.byID[s.ID] = memoryEntry{session: s.clone(), expiresAt: m.expiry()}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.liveLocked(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return entry.session.clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.liveLocked(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	next := entry.session.clone()
	if err := fn(&next); err != nil {
		return Session{}, err
	}
	m.byID[id] = memoryEntry{session: next, expiresAt: m.expiry()}
	return next.clone(), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.liveLocked(id); !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	return len(m.byID)
}

func (m *MemoryStore) expiry() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.ttl)
}

func (m *MemoryStore) liveLocked(id string) (memoryEntry, bool) {
	entry, ok := m.byID[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.byID, id)
		return memoryEntry{}, false
	}
	return entry, true
}

func (m *MemoryStore) sweepLocked() {
	now := m.now()
	for id, entry := range m.byID {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(m.byID, id)
		}
	}
}

package session

import (
	"context"
	"sort"
	"sync"
)

// Store persists sessions. Implementations must be safe for concurrent
// use; the Manager does its own expiry checks.
type Store interface {
	Save(ctx context.Context, sess *Session) error
	// Load returns ErrNotFound for an unknown id.
	Load(ctx context.Context, id string) (*Session, error)
	// Delete removes id from the store and from userID's index and reports
	// whether the session existed.
	Delete(ctx context.Context, userID, id string) (bool, error)
	// DeleteUser removes every session indexed under userID and returns
	// how many existed.
	DeleteUser(ctx context.Context, userID string) (int, error)
	// UserSessionIDs may include ids whose session has already gone.
	UserSessionIDs(ctx context.Context, userID string) ([]string, error)
	SessionIDs(ctx context.Context) ([]string, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Save(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sess.ID] = sess.clone()
	ids, ok := m.byUser[sess.UserID]
	if !ok {
		ids = make(map[string]struct{})
		m.byUser[sess.UserID] = ids
	}
	ids[sess.ID] = struct{}{}
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.sessions[id]
	delete(m.sessions, id)
	m.unindex(userID, id)
	return existed, nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id := range m.byUser[userID] {
		if _, ok := m.sessions[id]; ok {
			delete(m.sessions, id)
			n++
		}
	}
	delete(m.byUser, userID)
	return n, nil
}

func (m *MemoryStore) UserSessionIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.byUser[userID]), nil
}

func (m *MemoryStore) SessionIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) unindex(userID, id string) {
	ids, ok := m.byUser[userID]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(m.byUser, userID)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

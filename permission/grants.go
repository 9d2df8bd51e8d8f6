package permission

import "sync"

// Grants holds per-user permissions layered over role sets. Readers see
// either the state before or after a Grant/Revoke, never a partial update.
type Grants struct {
	mu    sync.RWMutex
	byUID map[string]Set
}

// NewGrants returns an empty grant map.
func NewGrants() *Grants {
	return &Grants{byUID: make(map[string]Set)}
}

// Grant adds p for userID and reports whether the set changed.
func (g *Grants) Grant(userID string, p Permission) (bool, error) {
	if !p.Valid() {
		return false, ErrUnknownPermission
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.byUID[userID]
	next := cur.With(p)
	if next == cur {
		return false, nil
	}
	g.byUID[userID] = next
	return true, nil
}

// Revoke removes p for userID and reports whether the set changed. The
// entry is deleted once its set is empty.
func (g *Grants) Revoke(userID string, p Permission) (bool, error) {
	if !p.Valid() {
		return false, ErrUnknownPermission
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.byUID[userID]
	if !ok {
		return false, nil
	}
	next := cur.Without(p)
	if next == cur {
		return false, nil
	}
	if next.IsEmpty() {
		delete(g.byUID, userID)
	} else {
		g.byUID[userID] = next
	}
	return true, nil
}

// Get returns the custom set for userID.
func (g *Grants) Get(userID string) Set {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byUID[userID]
}

// Len returns the number of users holding at least one grant.
func (g *Grants) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byUID)
}

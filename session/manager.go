package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/atulya-tantra/authcore/password"
	"github.com/sirupsen/logrus"
)

// Defaults applied by NewManager.
const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxPerUser = 5

	idBytes = 32
)

// Config tunes a Manager. Zero values take the defaults above.
type Config struct {
	DefaultTTL time.Duration
	MaxPerUser int

	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger logrus.FieldLogger
}

// Manager applies session lifecycle rules on top of a Store. Read-modify-
// write operations (Get, Update, Extend) are last-writer-wins.
type Manager struct {
	store      Store
	ttl        time.Duration
	maxPerUser int
	now        func() time.Time
	logger     logrus.FieldLogger
}

// NewManager returns a Manager over store.
func NewManager(store Store, cfg Config) *Manager {
	m := &Manager{
		store:      store,
		ttl:        cfg.DefaultTTL,
		maxPerUser: cfg.MaxPerUser,
		now:        cfg.Clock,
		logger:     cfg.Logger,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.maxPerUser <= 0 {
		m.maxPerUser = DefaultMaxPerUser
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		m.logger = l
	}
	return m
}

// MaxPerUser is the number of live sessions a user may hold.
func (m *Manager) MaxPerUser() int { return m.maxPerUser }

// Create starts a session for userID lasting ttl, or the default lifetime
// when ttl is zero. If the user now holds more than MaxPerUser sessions the
// least recently used ones are evicted; the new session is always kept.
func (m *Manager) Create(ctx context.Context, userID, ip, userAgent string, ttl time.Duration) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	if ttl < 0 {
		return nil, fmt.Errorf("%w: negative ttl", ErrInvalidArgument)
	}
	if ttl == 0 {
		ttl = m.ttl
	}

	id, err := password.GenerateToken(idBytes)
	if err != nil {
		return nil, fmt.Errorf("session: generating id: %w", err)
	}

	now := m.now()
	sess := &Session{
		ID:           id,
		UserID:       userID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(ttl),
		Data:         map[string]any{},
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	evicted, err := m.enforceLimit(ctx, userID, id)
	if err != nil {
		m.logger.WithError(err).Warn("session limit enforcement failed")
	}

	m.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"evicted": evicted,
	}).Info("session created")
	return sess.clone(), nil
}

// enforceLimit drops expired and stale index entries for userID, then
// evicts the least recently used sessions beyond the cap.
func (m *Manager) enforceLimit(ctx context.Context, userID, keep string) (int, error) {
	ids, err := m.store.UserSessionIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) <= m.maxPerUser {
		return 0, nil
	}

	now := m.now()
	others := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if id == keep {
			continue
		}
		sess, err := m.store.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			if _, err := m.store.Delete(ctx, userID, id); err != nil {
				return 0, err
			}
			continue
		}
		if err != nil {
			return 0, err
		}
		if sess.Expired(now) {
			if _, err := m.store.Delete(ctx, userID, id); err != nil {
				return 0, err
			}
			continue
		}
		others = append(others, sess)
	}

	limit := m.maxPerUser - 1
	if len(others) <= limit {
		return 0, nil
	}

	sortByRecency(others)
	evicted := 0
	for _, sess := range others[limit:] {
		existed, err := m.store.Delete(ctx, userID, sess.ID)
		if err != nil {
			return evicted, err
		}
		if existed {
			evicted++
		}
	}
	return evicted, nil
}

// sortByRecency orders most recently used first.
func sortByRecency(sessions []*Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.LastAccessed.Equal(b.LastAccessed) {
			return a.LastAccessed.After(b.LastAccessed)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// live loads id and removes it if it has expired.
func (m *Manager) live(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Expired(m.now()) {
		if _, err := m.store.Delete(ctx, sess.UserID, id); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// Get returns the session and records the access. Expired sessions are
// removed and reported as ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := m.live(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.LastAccessed = m.now()
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess.clone(), nil
}

// Update merges data into the session's data map.
func (m *Manager) Update(ctx context.Context, id string, data map[string]any) error {
	sess, err := m.live(ctx, id)
	if err != nil {
		return err
	}
	if sess.Data == nil {
		sess.Data = make(map[string]any, len(data))
	}
	for k, v := range data {
		sess.Data[k] = v
	}
	sess.LastAccessed = m.now()
	return m.store.Save(ctx, sess)
}

// Extend moves the expiry to now+d.
func (m *Manager) Extend(ctx context.Context, id string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: extension must be positive", ErrInvalidArgument)
	}
	sess, err := m.live(ctx, id)
	if err != nil {
		return err
	}
	now := m.now()
	sess.ExpiresAt = now.Add(d)
	sess.LastAccessed = now
	return m.store.Save(ctx, sess)
}

// Delete ends one session. It reports false for an unknown id.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	sess, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	existed, err := m.store.Delete(ctx, sess.UserID, id)
	if err != nil {
		return false, err
	}
	if existed {
		m.logger.WithField("user_id", sess.UserID).Info("session deleted")
	}
	return existed, nil
}

// DeleteAllForUser ends every session of userID and returns how many
// there were.
func (m *Manager) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	n, err := m.store.DeleteUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	m.logger.WithFields(logrus.Fields{"user_id": userID, "deleted": n}).Info("user sessions deleted")
	return n, nil
}

// UserSessions returns the live sessions of userID, most recently used
// first. It does not count as an access.
func (m *Manager) UserSessions(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := m.store.UserSessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := m.store.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if sess.UserID != userID || sess.Expired(now) {
			continue
		}
		out = append(out, sess)
	}
	sortByRecency(out)
	return out, nil
}

// CleanupExpired removes every expired session and returns the count.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	ids, err := m.store.SessionIDs(ctx)
	if err != nil {
		return 0, err
	}
	now := m.now()
	removed := 0
	for _, id := range ids {
		sess, err := m.store.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		if !sess.Expired(now) {
			continue
		}
		existed, err := m.store.Delete(ctx, sess.UserID, id)
		if err != nil {
			return removed, err
		}
		if existed {
			removed++
		}
	}
	if removed > 0 {
		m.logger.WithField("removed", removed).Info("expired sessions cleaned up")
	}
	return removed, nil
}

// Stats counts stored sessions. A Redis store drops sessions at expiry, so
// its Expired count is normally zero.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	ids, err := m.store.SessionIDs(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{MaxPerUser: m.maxPerUser}
	now := m.now()
	for _, id := range ids {
		sess, err := m.store.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Stats{}, err
		}
		st.Total++
		if sess.Expired(now) {
			st.Expired++
		} else {
			st.Active++
		}
	}
	return st, nil
}

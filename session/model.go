package session

import (
	"errors"
	"maps"
	"time"
)

var (
	// ErrNotFound is returned for unknown, deleted and expired sessions.
	ErrNotFound = errors.New("session: not found")

	// ErrInvalidArgument is returned for an empty user id or a
	// non-positive extension.
	ErrInvalidArgument = errors.New("session: invalid argument")

	// ErrRedisUnavailable wraps every Redis transport failure.
	ErrRedisUnavailable = errors.New("session: redis unavailable")

	// ErrCorrupt is returned when a stored blob cannot be decoded.
	ErrCorrupt = errors.New("session: stored session corrupt")
)

// Session is one login on one client.
type Session struct {
	ID           string         `json:"session_id"`
	UserID       string         `json:"user_id"`
	IPAddress    string         `json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Data         map[string]any `json:"data,omitempty"`
}

// Expired reports whether now is past ExpiresAt. A session is still valid
// at exactly ExpiresAt.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// clone copies s. Data is copied one level deep.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Data != nil {
		out.Data = maps.Clone(s.Data)
	}
	return &out
}

// Stats is a point-in-time count over every stored session.
type Stats struct {
	Total      int `json:"total_sessions"`
	Active     int `json:"active_sessions"`
	Expired    int `json:"expired_sessions"`
	MaxPerUser int `json:"max_sessions_per_user"`
}

package authcore

import (
	"context"
	"fmt"

	"github.com/atulya-tantra/authcore/session"
)

// Sessions returns the session manager, or nil when Session.Enabled is
// false.
func (s *Service) Sessions() *session.Manager {
	if s == nil {
		return nil
	}
	return s.sessions
}

// Logout ends the session that c was issued under. Refresh tokens from
// that session stop working; access tokens already issued stay valid
// until they expire.
func (s *Service) Logout(ctx context.Context, c *Claims) error {
	if s == nil || s.sessions == nil {
		return ErrServiceNotReady
	}
	if c == nil {
		return ErrUnauthenticated
	}
	if c.SessionID == "" {
		return fmt.Errorf("%w: token carries no session", ErrInvalidInput)
	}

	sess, err := s.sessions.Get(ctx, c.SessionID)
	if err == nil && sess.UserID != c.Subject {
		return fmt.Errorf("%w: session subject mismatch", ErrTokenInvalid)
	}
	if _, err := s.sessions.Delete(ctx, c.SessionID); err != nil {
		s.log().WithError(err).Error("session delete failed")
		return err
	}

	s.emitAudit(ctx, auditEventLogout, true, c.Subject, c.TokenID, nil, nil)
	return nil
}

// LogoutAll ends every session of subject and returns how many there were.
func (s *Service) LogoutAll(ctx context.Context, subject string) (int, error) {
	if s == nil || s.sessions == nil {
		return 0, ErrServiceNotReady
	}
	if subject == "" {
		return 0, fmt.Errorf("%w: empty subject", ErrInvalidInput)
	}

	n, err := s.sessions.DeleteAllForUser(ctx, subject)
	if err != nil {
		s.log().WithError(err).Error("session delete failed")
		return 0, err
	}

	s.emitAudit(ctx, auditEventLogout, true, subject, "", nil, func() map[string]string {
		return map[string]string{"scope": "all", "sessions": fmt.Sprint(n)}
	})
	return n, nil
}

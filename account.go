package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atulya-tantra/authcore/internal/rate"
	"github.com/atulya-tantra/authcore/permission"
	"github.com/atulya-tantra/authcore/session"
	"github.com/sirupsen/logrus"
)

// ErrAccountNotFound is returned by AccountLookup implementations for an
// unknown identifier. The service never lets it reach callers.
var ErrAccountNotFound = errors.New("account not found")

// Account is what the service needs to know about a user. Accounts and
// their storage belong to the caller.
type Account struct {
	Subject      string
	Username     string
	Roles        []permission.Role
	Permissions  []permission.Permission
	PasswordHash string
	Active       bool
}

// AccountLookup resolves a login identifier or a token subject to an
// account. Implementations return ErrAccountNotFound for unknown keys.
type AccountLookup interface {
	LookupAccount(ctx context.Context, identifier string) (Account, error)
}

// AccountLookupFunc adapts a function to AccountLookup.
type AccountLookupFunc func(ctx context.Context, identifier string) (Account, error)

// LookupAccount calls f.
func (f AccountLookupFunc) LookupAccount(ctx context.Context, identifier string) (Account, error) {
	return f(ctx, identifier)
}

// Authenticate checks identifier and password and returns a fresh token
// pair. Unknown identifiers and wrong passwords both yield
// ErrInvalidCredentials after one argon2 evaluation. Failures count
// against the login limiter; success resets it. With sessions enabled a
// session is opened and both tokens carry its id.
func (s *Service) Authenticate(ctx context.Context, identifier, pw string) (*TokenPair, error) {
	if s == nil || s.accounts == nil || s.hasher == nil {
		return nil, ErrServiceNotReady
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || pw == "" {
		return nil, fmt.Errorf("%w: identifier and password are required", ErrInvalidInput)
	}

	ip := clientIPFromContext(ctx)
	fields := logrus.Fields{"identifier_len": len(identifier)}

	if err := s.limiter.CheckLogin(ctx, identifier, ip); err != nil {
		return nil, s.loginLimited(ctx, identifier, err)
	}

	acct, err := s.accounts.LookupAccount(ctx, identifier)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		s.log().WithFields(fields).WithError(err).Error("account lookup failed")
		return nil, err
	}
	found := err == nil

	hash := s.dummyHash
	if found {
		hash = acct.PasswordHash
	}
	ok, verr := s.hasher.Verify(pw, hash)
	if verr != nil {
		// A corrupt stored hash must look like any other failure to the caller.
		s.log().WithFields(fields).WithField("reason", "malformed_hash").Error("stored password hash rejected")
		ok = false
	}

	if !found || !ok {
		s.metricInc(MetricLoginFailure)
		if err := s.limiter.IncrementLogin(ctx, identifier, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			s.log().WithError(err).Warn("login limiter increment failed")
		}
		s.emitAudit(ctx, auditEventLoginFailure, false, acct.Subject, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if !acct.Active {
		s.metricInc(MetricLoginInactive)
		s.emitAudit(ctx, auditEventLoginFailure, false, acct.Subject, "", ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	if err := s.limiter.ResetLogin(ctx, identifier, ip); err != nil {
		s.log().WithError(err).Warn("login limiter reset failed")
	}

	if upgrade, _ := s.hasher.NeedsUpgrade(acct.PasswordHash); upgrade {
		s.metricInc(MetricPasswordRehashNeeded)
		s.log().WithField("subject", acct.Subject).Info("password hash uses outdated parameters")
	}

	var sessionID string
	if s.sessions != nil {
		sess, err := s.sessions.Create(ctx, acct.Subject, ip, userAgentFromContext(ctx), 0)
		if err != nil {
			s.log().WithError(err).WithField("subject", acct.Subject).Error("session create failed")
			return nil, err
		}
		sessionID = sess.ID
	}

	pair, err := s.issuePair(ctx, acct, sessionID)
	if err != nil {
		return nil, err
	}

	s.metricInc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLoginSuccess, true, acct.Subject, "", nil, nil)
	return pair, nil
}

func (s *Service) loginLimited(ctx context.Context, identifier string, err error) error {
	if !errors.Is(err, rate.ErrRateLimited) {
		// Backend outage: refuse rather than run unthrottled.
		s.log().WithError(err).Error("login limiter unavailable")
		return fmt.Errorf("%w: %v", ErrLoginRateLimited, err)
	}
	s.metricInc(MetricLoginRateLimited)
	s.emitAudit(ctx, auditEventLoginRateLimit, false, "", "", ErrLoginRateLimited, func() map[string]string {
		return map[string]string{"identifier_len": fmt.Sprint(len(identifier))}
	})
	return ErrLoginRateLimited
}

func (s *Service) issuePair(ctx context.Context, acct Account, sessionID string) (*TokenPair, error) {
	access, accessClaims, err := s.IssueAccess(ctx, acct.Subject, acct.Username, acct.Roles, acct.Permissions, WithSessionID(sessionID))
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := s.IssueRefresh(ctx, acct.Subject, acct.Username, WithSessionID(sessionID))
	if err != nil {
		return nil, err
	}

	pair := &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		SessionID:    sessionID,
	}
	if accessClaims.ExpiresAt != nil {
		pair.AccessExpiresAt = *accessClaims.ExpiresAt
	}
	if refreshClaims.ExpiresAt != nil {
		pair.RefreshExpiresAt = *refreshClaims.ExpiresAt
	}
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new access token. Roles
// and permissions are re-read through AccountLookup so changes since login
// take effect; a vanished or inactive account fails with ErrTokenInvalid
// or ErrAccountInactive. A token bound to a session that has ended or
// expired fails with ErrTokenInvalid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, *Claims, error) {
	if s == nil || s.accounts == nil {
		return "", nil, ErrServiceNotReady
	}

	rc, err := s.Verify(ctx, refreshToken, KindRefresh)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefreshFailure, false, "", "", err, nil)
		return "", nil, err
	}

	if err := s.checkSession(ctx, rc); err != nil {
		s.metricInc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefreshFailure, false, rc.Subject, rc.TokenID, err, nil)
		return "", nil, err
	}

	acct, err := s.accounts.LookupAccount(ctx, rc.Subject)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		err = fmt.Errorf("%w: subject no longer exists", ErrTokenInvalid)
	case err == nil && !acct.Active:
		err = ErrAccountInactive
	case err == nil && acct.Subject != rc.Subject:
		err = fmt.Errorf("%w: subject mismatch", ErrTokenInvalid)
	}
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefreshFailure, false, rc.Subject, rc.TokenID, err, nil)
		return "", nil, err
	}

	token, claims, err := s.IssueAccess(ctx, acct.Subject, acct.Username, acct.Roles, acct.Permissions, WithSessionID(rc.SessionID))
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		return "", nil, err
	}

	s.metricInc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventRefreshSuccess, true, rc.Subject, rc.TokenID, nil, nil)
	return token, claims, nil
}

// checkSession requires the session named by c's sid claim to be live and
// to belong to c's subject. Tokens without a sid, or a service without
// sessions, pass.
func (s *Service) checkSession(ctx context.Context, c *Claims) error {
	if s.sessions == nil || c.SessionID == "" {
		return nil
	}
	sess, err := s.sessions.Get(ctx, c.SessionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return fmt.Errorf("%w: session ended", ErrTokenInvalid)
	case err != nil:
		s.log().WithError(err).Error("session lookup failed")
		return err
	case sess.UserID != c.Subject:
		return fmt.Errorf("%w: session subject mismatch", ErrTokenInvalid)
	}
	return nil
}

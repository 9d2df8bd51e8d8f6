package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atulya-tantra/authcore/jwt"
	"github.com/atulya-tantra/authcore/permission"
	"github.com/sirupsen/logrus"
)

// IssueOption adjusts a single issuance.
type IssueOption func(*issueOptions)

type issueOptions struct {
	ttl       time.Duration
	ttlSet    bool
	noExpiry  bool
	sessionID string
}

// WithTTL overrides the configured lifetime. A zero ttl produces a token
// that is already expired; a negative ttl is rejected.
func WithTTL(ttl time.Duration) IssueOption {
	return func(o *issueOptions) {
		o.ttl = ttl
		o.ttlSet = true
	}
}

// WithoutExpiry omits the exp claim. Requires JWT.AllowNonExpiring.
func WithoutExpiry() IssueOption {
	return func(o *issueOptions) {
		o.noExpiry = true
	}
}

// WithSessionID binds the token to a login session through the sid claim.
// Refresh rejects a refresh token whose session has ended.
func WithSessionID(id string) IssueOption {
	return func(o *issueOptions) {
		o.sessionID = id
	}
}

// resolveOptions applies opts and returns the effective lifetime, def
// unless overridden.
func (s *Service) resolveOptions(def time.Duration, opts []IssueOption) (issueOptions, time.Duration, error) {
	var o issueOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	switch {
	case o.noExpiry:
		if !s.config.JWT.AllowNonExpiring {
			return o, 0, fmt.Errorf("%w: non-expiring tokens are disabled", ErrInvalidInput)
		}
		return o, jwt.NoExpiry, nil
	case o.ttlSet:
		if o.ttl < 0 {
			return o, 0, fmt.Errorf("%w: negative ttl", ErrInvalidInput)
		}
		return o, o.ttl, nil
	default:
		return o, def, nil
	}
}

// IssueAccess signs an access token carrying roles and explicit
// permissions. The lifetime defaults to JWT.AccessTTL.
func (s *Service) IssueAccess(
	ctx context.Context,
	subject, username string,
	roles []permission.Role,
	perms []permission.Permission,
	opts ...IssueOption,
) (string, *Claims, error) {
	if s == nil || s.tokens == nil {
		return "", nil, ErrServiceNotReady
	}
	for _, r := range roles {
		if !r.Valid() {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidInput, permission.ErrUnknownRole)
		}
	}
	for _, p := range perms {
		if !p.Valid() {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidInput, permission.ErrUnknownPermission)
		}
	}

	o, ttl, err := s.resolveOptions(s.config.JWT.AccessTTL, opts)
	if err != nil {
		return "", nil, err
	}

	return s.issue(ctx, jwt.KindAccess, jwt.Identity{
		Subject:     subject,
		Username:    username,
		Roles:       permission.RoleStrings(roles),
		Permissions: permissionLabels(perms),
		SessionID:   o.sessionID,
	}, ttl, MetricAccessIssued)
}

// IssueRefresh signs a refresh token. It never carries roles or
// permissions; the lifetime defaults to JWT.RefreshTTL.
func (s *Service) IssueRefresh(ctx context.Context, subject, username string, opts ...IssueOption) (string, *Claims, error) {
	if s == nil || s.tokens == nil {
		return "", nil, ErrServiceNotReady
	}
	o, ttl, err := s.resolveOptions(s.config.JWT.RefreshTTL, opts)
	if err != nil {
		return "", nil, err
	}
	return s.issue(ctx, jwt.KindRefresh, jwt.Identity{
		Subject:   subject,
		Username:  username,
		SessionID: o.sessionID,
	}, ttl, MetricRefreshIssued)
}

func (s *Service) issue(ctx context.Context, kind jwt.Kind, id jwt.Identity, ttl time.Duration, metric MetricID) (string, *Claims, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return "", nil, fmt.Errorf("%w: empty subject", ErrInvalidInput)
	}

	token, tc, err := s.tokens.Issue(kind, id, ttl)
	if err != nil {
		if errors.Is(err, jwt.ErrInvalidRequest) {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		s.log().WithError(err).WithField("kind", kind).Error("token signing failed")
		return "", nil, err
	}

	claims, _ := claimsFromToken(tc)
	s.metricInc(metric)
	s.emitAudit(ctx, auditEventTokenIssued, true, claims.Subject, claims.TokenID, nil, func() map[string]string {
		return map[string]string{"kind": string(kind)}
	})
	return token, claims, nil
}

// Verify checks signature, lifetime and kind. Past expiry it returns
// ErrTokenExpired; every other failure is ErrTokenInvalid. Unknown role or
// permission labels in a valid token are dropped, never trusted.
func (s *Service) Verify(ctx context.Context, token string, kind TokenKind) (*Claims, error) {
	if s == nil || s.tokens == nil {
		return nil, ErrServiceNotReady
	}

	var start time.Time
	if s.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() { s.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}

	tc, err := s.tokens.Parse(token, kind)
	if err != nil {
		mapped := mapTokenError(err)
		if errors.Is(mapped, ErrTokenExpired) {
			s.metricInc(MetricVerifyExpired)
		} else {
			s.metricInc(MetricVerifyInvalid)
		}
		s.log().WithFields(logrus.Fields{
			"kind":   kind,
			"reason": string(auditErrorCode(mapped)),
		}).Debug("token rejected")
		s.emitAudit(ctx, auditEventTokenRejected, false, "", "", mapped, func() map[string]string {
			return map[string]string{"kind": string(kind)}
		})
		return nil, mapped
	}

	claims, dropped := claimsFromToken(tc)
	if len(dropped) > 0 {
		s.log().WithFields(logrus.Fields{
			"subject": claims.Subject,
			"kind":    kind,
			"dropped": len(dropped),
		}).Warn("token carried unknown role or permission labels")
		s.emitAudit(ctx, auditEventLabelDropped, false, claims.Subject, claims.TokenID, nil, func() map[string]string {
			return map[string]string{"labels": strings.Join(dropped, ",")}
		})
	}

	s.metricInc(MetricVerifySuccess)
	return claims, nil
}

// DecodeUnsafe returns the claims without checking the signature or time
// claims. Diagnostic only; never authorize from its result.
func (s *Service) DecodeUnsafe(token string) (*Claims, error) {
	if s == nil || s.tokens == nil {
		return nil, ErrServiceNotReady
	}
	tc, err := s.tokens.DecodeUnsafe(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, _ := claimsFromToken(tc)
	return claims, nil
}

// IsExpired reports whether token's exp is at or before the service clock.
// Tokens that cannot be decoded count as expired. The signature is not
// checked.
func (s *Service) IsExpired(token string) bool {
	claims, err := s.DecodeUnsafe(token)
	if err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(*claims.ExpiresAt)
}

func mapTokenError(err error) error {
	if errors.Is(err, jwt.ErrExpired) {
		return ErrTokenExpired
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
}

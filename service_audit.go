package authcore

import (
	"context"
	"errors"
)

const (
	auditEventTokenIssued    = "token_issued"
	auditEventTokenRejected  = "token_rejected"
	auditEventLabelDropped   = "claim_label_dropped"
	auditEventAuthzDenied    = "authz_denied"
	auditEventGrantAdded     = "grant_added"
	auditEventGrantRevoked   = "grant_revoked"
	auditEventLoginSuccess   = "login_success"
	auditEventLoginFailure   = "login_failure"
	auditEventLoginRateLimit = "login_rate_limited"
	auditEventRefreshSuccess = "refresh_success"
	auditEventRefreshFailure = "refresh_failure"
	auditEventLogout         = "logout"
)

// AuditErrorCode is the stable, non-sensitive reason recorded on failed
// audit events.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrTokenInvalid       AuditErrorCode = "token_invalid"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrNotReady           AuditErrorCode = "not_ready"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (s *Service) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: s.now().UTC(),
		EventType: eventType,
		Subject:   subject,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	s.audit.Emit(ctx, event)
}

// auditErrorCode checks children before ErrUnauthenticated, which wraps them.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrServiceNotReady):
		return auditErrNotReady
	default:
		return auditErrInternal
	}
}

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atulya-tantra/authcore"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusFor maps the authcore error taxonomy onto HTTP. Children are
// checked before the parent they wrap.
func StatusFor(err error) (int, ErrorBody) {
	switch {
	case err == nil:
		return http.StatusOK, ErrorBody{}
	case errors.Is(err, authcore.ErrTokenExpired):
		return http.StatusUnauthorized, ErrorBody{"token_expired", "token expired"}
	case errors.Is(err, authcore.ErrTokenInvalid):
		return http.StatusUnauthorized, ErrorBody{"invalid_token", "invalid token"}
	case errors.Is(err, authcore.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorBody{"invalid_credentials", "invalid credentials"}
	case errors.Is(err, authcore.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorBody{"unauthenticated", "authentication required"}
	case errors.Is(err, authcore.ErrPermissionDenied):
		return http.StatusForbidden, ErrorBody{"permission_denied", "forbidden"}
	case errors.Is(err, authcore.ErrAccountInactive):
		return http.StatusForbidden, ErrorBody{"account_inactive", "account inactive"}
	case errors.Is(err, authcore.ErrLoginRateLimited):
		return http.StatusTooManyRequests, ErrorBody{"rate_limited", "too many attempts"}
	case errors.Is(err, authcore.ErrInvalidInput):
		return http.StatusBadRequest, ErrorBody{"invalid_input", "invalid input"}
	case errors.Is(err, authcore.ErrServiceNotReady):
		return http.StatusServiceUnavailable, ErrorBody{"not_ready", "service unavailable"}
	default:
		return http.StatusInternalServerError, ErrorBody{"internal_error", "internal error"}
	}
}

// WriteError writes err as a JSON error response. Internal error text is
// never sent.
func WriteError(w http.ResponseWriter, err error) {
	status, body := StatusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

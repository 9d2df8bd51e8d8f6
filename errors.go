package authcore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atulya-tantra/authcore/password"
)

var (
	// ErrInvalidInput reports a caller mistake: empty password, negative ttl,
	// unknown permission label.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthenticated is the parent of every credential failure (HTTP 401).
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTokenInvalid covers bad signatures, malformed tokens, unexpected
	// algorithms and tokens of the wrong kind.
	ErrTokenInvalid = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	// ErrTokenExpired is returned once the clock reaches the token's exp.
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthenticated)
	// ErrPermissionDenied is an authorization failure (HTTP 403).
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidCredentials is the single login failure for unknown
	// identifiers and wrong passwords alike.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	// ErrAccountInactive is returned for a correct password on a disabled account.
	ErrAccountInactive = errors.New("account inactive")
	// ErrLoginRateLimited means the failed-login budget is spent.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrServiceNotReady is returned by methods on a nil or partially built Service.
	ErrServiceNotReady = errors.New("service not initialized")
	// ErrConfig wraps every startup configuration failure.
	ErrConfig = errors.New("invalid configuration")
)

// PolicyError lists every password policy violation, in policy order. It
// matches ErrInvalidInput under errors.Is.
type PolicyError struct {
	Violations []password.Violation
}

func (e *PolicyError) Error() string {
	if len(e.Violations) == 0 {
		return "password policy violation"
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message()
	}
	return "password policy violation: " + strings.Join(msgs, "; ")
}

func (e *PolicyError) Unwrap() error { return ErrInvalidInput }

// mapPasswordError keeps the password sentinel in the chain so callers may
// match either it or ErrInvalidInput.
func mapPasswordError(err error) error {
	switch {
	case errors.Is(err, password.ErrEmptyPassword),
		errors.Is(err, password.ErrPasswordTooLong),
		errors.Is(err, password.ErrMalformedHash):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		return err
	}
}

package middleware

import (
	"context"
	"net/http"

	"github.com/atulya-tantra/authcore"
	"github.com/atulya-tantra/authcore/permission"
)

// Authorizer is satisfied by *authcore.Guard.
type Authorizer interface {
	Require(ctx context.Context, c *authcore.Claims, req authcore.Requirement) error
}

// Require rejects requests whose claims do not meet req. It must run
// after Authenticate; without claims in the context it answers 401.
func Require(a Authorizer, req authcore.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				WriteError(w, authcore.ErrServiceNotReady)
				return
			}

			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteError(w, authcore.ErrUnauthenticated)
				return
			}

			if err := a.Require(r.Context(), claims, req); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequirePermission(a Authorizer, p permission.Permission) func(http.Handler) http.Handler {
	return Require(a, authcore.RequirePermission(p))
}

func RequireRole(a Authorizer, r permission.Role) func(http.Handler) http.Handler {
	return Require(a, authcore.RequireRole(r))
}

func RequireAnyRole(a Authorizer, roles ...permission.Role) func(http.Handler) http.Handler {
	return Require(a, authcore.RequireAnyRole(roles...))
}

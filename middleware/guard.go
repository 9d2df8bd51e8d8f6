package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/atulya-tantra/authcore"
)

// Verifier is satisfied by *authcore.Service.
type Verifier interface {
	Verify(ctx context.Context, token string, kind authcore.TokenKind) (*authcore.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*authcore.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*authcore.Claims)
	return c, ok && c != nil
}

// WithClaims stores c in ctx. Handlers under Authenticate do not need it;
// it exists for tests and for callers that verify tokens themselves.
func WithClaims(ctx context.Context, c *authcore.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// Authenticate verifies the bearer access token on every request. The
// client address is attached with authcore.WithClientIP so that audit
// events and the login limiter see it.
func Authenticate(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				WriteError(w, authcore.ErrServiceNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				WriteError(w, authcore.ErrUnauthenticated)
				return
			}

			ctx := authcore.WithClientIP(r.Context(), ClientIP(r))
			claims, err := v.Verify(ctx, token, authcore.KindAccess)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// not trusted here; put a proxy-aware middleware in front if needed.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

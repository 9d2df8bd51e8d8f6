package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atulya-tantra/authcore"
	"github.com/atulya-tantra/authcore/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) *authcore.Service {
	t.Helper()

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	svc, err := authcore.New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func issue(t *testing.T, svc *authcore.Service, roles ...permission.Role) string {
	t.Helper()
	token, _, err := svc.IssueAccess(context.Background(), "u-1", "one", roles, nil)
	require.NoError(t, err)
	return token
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Error("expected claims in context")
		} else {
			w.Header().Set("X-Subject", claims.Subject)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)
	token := issue(t, svc, permission.RoleUser)
	refresh, _, err := svc.IssueRefresh(context.Background(), "u-1", "one")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid token", "Bearer " + token, http.StatusNoContent, ""},
		{"lower case scheme", "bearer " + token, http.StatusNoContent, ""},
		{"missing header", "", http.StatusUnauthorized, "unauthenticated"},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, "unauthenticated"},
		{"empty token", "Bearer   ", http.StatusUnauthorized, "unauthenticated"},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized, "invalid_token"},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized, "invalid_token"},
	}

	h := Authenticate(svc)(okHandler(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/chat", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
				assert.Equal(t, tt.wantCode, decodeBody(t, rec).Error)
			} else {
				assert.Equal(t, "u-1", rec.Header().Get("X-Subject"))
			}
		})
	}
}

type stubVerifier struct {
	err error
}

func (s stubVerifier) Verify(context.Context, string, authcore.TokenKind) (*authcore.Claims, error) {
	return nil, s.err
}

func TestAuthenticateExpiredToken(t *testing.T) {
	h := Authenticate(stubVerifier{err: authcore.ErrTokenExpired})(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_expired", decodeBody(t, rec).Error)
}

func TestRequirePermission(t *testing.T) {
	svc := newTestService(t)
	guard := svc.Guard()

	chain := func(mw func(http.Handler) http.Handler) http.Handler {
		return Authenticate(svc)(mw(okHandler(t)))
	}

	tests := []struct {
		name       string
		role       permission.Role
		mw         func(http.Handler) http.Handler
		wantStatus int
	}{
		{"agent may execute", permission.RoleAgent, RequirePermission(guard, permission.AgentExecute), http.StatusNoContent},
		{"guest may not write", permission.RoleGuest, RequirePermission(guard, permission.ChatWrite), http.StatusForbidden},
		{"admin route for user", permission.RoleUser, RequireRole(guard, permission.RoleAdmin), http.StatusForbidden},
		{"admin route for admin", permission.RoleAdmin, RequireRole(guard, permission.RoleAdmin), http.StatusNoContent},
		{"any role", permission.RoleGuest, RequireAnyRole(guard, permission.RoleUser, permission.RoleGuest), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			req.Header.Set("Authorization", "Bearer "+issue(t, svc, tt.role))
			rec := httptest.NewRecorder()
			chain(tt.mw).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, "permission_denied", decodeBody(t, rec).Error)
			}
		})
	}
}

func TestRequireWithoutAuthenticate(t *testing.T) {
	svc := newTestService(t)
	h := RequirePermission(svc.Guard(), permission.ChatRead)(okHandler(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSeesGrantsImmediately(t *testing.T) {
	svc := newTestService(t)
	guard := svc.Guard()
	token := issue(t, svc, permission.RoleGuest)
	h := Authenticate(svc)(RequirePermission(guard, permission.FileUpload)(okHandler(t)))

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/files", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, do())
	require.NoError(t, guard.Grant(context.Background(), "u-1", permission.FileUpload))
	assert.Equal(t, http.StatusNoContent, do())
	require.NoError(t, guard.Revoke(context.Background(), "u-1", permission.FileUpload))
	assert.Equal(t, http.StatusForbidden, do())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{authcore.ErrInvalidInput, http.StatusBadRequest},
		{authcore.ErrInvalidCredentials, http.StatusUnauthorized},
		{authcore.ErrAccountInactive, http.StatusForbidden},
		{authcore.ErrLoginRateLimited, http.StatusTooManyRequests},
		{authcore.ErrServiceNotReady, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, body := StatusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.NotContains(t, body.Message, "boom")
	}
}

func TestClientIPAttached(t *testing.T) {
	svc := newTestService(t)
	token := issue(t, svc)

	var seen string
	h := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIP(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", seen)
}

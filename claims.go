package authcore

import (
	"time"

	"github.com/atulya-tantra/authcore/jwt"
	"github.com/atulya-tantra/authcore/permission"
)

// TokenKind tells access tokens from refresh tokens.
type TokenKind = jwt.Kind

const (
	KindAccess  = jwt.KindAccess
	KindRefresh = jwt.KindRefresh
)

// Claims is the verified content of a token. Role and permission labels
// have already been checked against the closed catalogs; labels the
// service does not know are dropped during Verify.
type Claims struct {
	Subject     string
	Username    string
	Roles       []permission.Role
	Permissions []permission.Permission
	Kind        TokenKind
	TokenID     string
	// SessionID is empty for tokens issued outside a login session.
	SessionID string
	IssuedAt    time.Time
	// ExpiresAt is nil only for tokens minted with WithoutExpiry.
	ExpiresAt *time.Time
}

// HasRole reports whether r appears in the token's role claim. It does not
// apply the user fallback; use Guard.HasRole for authorization.
func (c *Claims) HasRole(r permission.Role) bool {
	if c == nil {
		return false
	}
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// TokenPair is returned by a successful login.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SessionID        string    `json:"session_id,omitempty"`
}

// claimsFromToken converts parsed jwt claims, returning the labels that were
// not recognized so the caller can log them.
func claimsFromToken(tc *jwt.Claims) (*Claims, []string) {
	roles, droppedRoles := permission.ParseRoles(tc.Roles)
	perms, droppedPerms := permission.ParsePermissions(tc.Permissions)

	c := &Claims{
		Subject:     tc.Subject,
		Username:    tc.Username,
		Roles:       roles,
		Permissions: perms.Permissions(),
		Kind:        tc.Kind,
		TokenID:     tc.ID,
		SessionID:   tc.SessionID,
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		exp := tc.ExpiresAt.Time
		c.ExpiresAt = &exp
	}
	return c, append(droppedRoles, droppedPerms...)
}

func permissionLabels(perms []permission.Permission) []string {
	if len(perms) == 0 {
		return nil
	}
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}

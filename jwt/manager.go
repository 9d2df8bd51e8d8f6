package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// MinSecretBytes is the shortest HS256 secret NewManager accepts.
const MinSecretBytes = 32

// NoExpiry asks Issue for a token without an exp claim. Only honored when
// Config.AllowNonExpiring is set, which is meant for tests.
const NoExpiry time.Duration = -1

// Kind distinguishes access tokens from refresh tokens. It travels in the
// "typ" claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

var (
	// ErrInvalidConfig is returned by NewManager.
	ErrInvalidConfig = errors.New("jwt: invalid config")
	// ErrWeakSecret is returned by NewManager when an HS256 secret is shorter
	// than MinSecretBytes.
	ErrWeakSecret = errors.New("jwt: signing secret too short")
	// ErrInvalidRequest is returned by Issue for unusable arguments.
	ErrInvalidRequest = errors.New("jwt: invalid issue request")
	// ErrExpired is returned by Parse once the clock reaches exp.
	ErrExpired = errors.New("jwt: token expired")
	// ErrInvalid covers every other verification failure: bad signature,
	// malformed structure, unexpected algorithm or kind.
	ErrInvalid = errors.New("jwt: token invalid")
)

// Config configures a Manager.
type Config struct {
	SigningMethod    SigningMethod
	PrivateKey       []byte
	PublicKey        []byte
	Issuer           string
	Audience         string
	Leeway           time.Duration
	RequireIAT       bool
	MaxFutureIAT     time.Duration
	KeyID            string
	VerifyKeys       map[string][]byte
	AllowNonExpiring bool

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Identity is the subject a token is issued for.
type Identity struct {
	Subject     string
	Username    string
	Roles       []string
	Permissions []string
	// SessionID, when set, is carried in the sid claim of both kinds.
	SessionID string
}

// Claims is the token payload.
type Claims struct {
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	SessionID   string   `json:"sid,omitempty"`
	Kind        Kind     `json:"typ"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It is immutable after NewManager and
// safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager bound to it.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway must be within [0, 2m]", ErrInvalidConfig)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, fmt.Errorf("%w: MaxFutureIAT must be within (0, 24h]", ErrInvalidConfig)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < MinSecretBytes {
			return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretBytes)
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, fmt.Errorf("%w: verify key map contains empty kid", ErrInvalidConfig)
			}
			if len(key) < MinSecretBytes {
				return nil, fmt.Errorf("%w: verify key for kid %q", ErrWeakSecret, kid)
			}
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, fmt.Errorf("%w: ed25519 requires public key or verify key set", ErrInvalidConfig)
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, fmt.Errorf("%w: verify key map contains empty kid", ErrInvalidConfig)
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrInvalidConfig, cfg.SigningMethod)
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, fmt.Errorf("%w: KeyID is not present in VerifyKeys", ErrInvalidConfig)
		}
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Manager{config: cfg, now: now}, nil
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Issue signs a token of the given kind for id, valid for ttl starting now.
// Refresh tokens never carry roles or permissions. A zero ttl yields a token
// that is already expired; pass NoExpiry for a token without exp.
func (m *Manager) Issue(kind Kind, id Identity, ttl time.Duration) (string, *Claims, error) {
	if !kind.Valid() {
		return "", nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, kind)
	}
	if strings.TrimSpace(id.Subject) == "" {
		return "", nil, fmt.Errorf("%w: empty subject", ErrInvalidRequest)
	}
	if ttl < 0 && !(ttl == NoExpiry && m.config.AllowNonExpiring) {
		return "", nil, fmt.Errorf("%w: negative ttl", ErrInvalidRequest)
	}

	now := m.now()
	claims := &Claims{
		Username:  id.Username,
		SessionID: id.SessionID,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.Subject,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   m.config.Issuer,
			ID:       uuid.NewString(),
		},
	}
	if ttl != NoExpiry {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	if kind == KindAccess {
		claims.Roles = append([]string(nil), id.Roles...)
		claims.Permissions = append([]string(nil), id.Permissions...)
	}

	token := jwt.NewWithClaims(m.getMethod(), claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signKey, err := m.getSignKey()
	if err != nil {
		return "", nil, err
	}

	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies tokenStr and requires it to be of the expected kind. The
// token is valid on [iat, exp). Past exp it fails with ErrExpired; every
// other failure wraps ErrInvalid.
func (m *Manager) Parse(tokenStr string, expected Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if !m.config.AllowNonExpiring {
		options = append(options, jwt.WithExpirationRequired())
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, jwt.ErrTokenInvalidClaims)
	}
	if claims.Kind != expected {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalid, expected, claims.Kind)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	if claims.IssuedAt != nil && claims.ExpiresAt != nil && claims.ExpiresAt.Before(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: exp precedes iat", ErrInvalid)
	}
	if claims.IssuedAt != nil && m.config.MaxFutureIAT > 0 {
		maxAllowed := m.now().Add(m.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalid)
		}
	}

	return claims, nil
}

// DecodeUnsafe returns the payload without checking the signature or any
// time claim. Diagnostic use only: never authorize from its result.
func (m *Manager) DecodeUnsafe(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != m.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return m.keyBytesToVerifyKey(key)
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return m.getVerifyKey()
}

func (m *Manager) getMethod() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) getSignKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		if len(m.config.PrivateKey) == 0 {
			return nil, fmt.Errorf("%w: verify-only manager cannot sign", ErrInvalidConfig)
		}
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func (m *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 private key", ErrInvalidConfig)
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 private key type", ErrInvalidConfig)
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 public key", ErrInvalidConfig)
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 public key type", ErrInvalidConfig)
	}
	return edKey, nil
}

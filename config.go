package authcore

import (
	"errors"
	"time"

	"github.com/atulya-tantra/authcore/internal/rate"
)

// Config is the full service configuration. Build validates it once and
// keeps a private copy; later mutations by the caller have no effect.
type Config struct {
	JWT      JWTConfig      `mapstructure:"jwt"`
	Password PasswordConfig `mapstructure:"password"`
	Security SecurityConfig `mapstructure:"security"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Limiter  LimiterConfig  `mapstructure:"limiter"`
	Session  SessionConfig  `mapstructure:"session"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects the signing algorithm, keys and default lifetimes.
//
// For "hs256" PrivateKey is the shared secret. For "ed25519" PrivateKey and
// PublicKey are raw or PEM-encoded keys; a verify-only service may omit the
// private key.
type JWTConfig struct {
	AccessTTL     time.Duration     `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration     `mapstructure:"refresh_ttl"`
	SigningMethod string            `mapstructure:"signing_method"`
	PrivateKey    []byte            `mapstructure:"-"`
	PublicKey     []byte            `mapstructure:"-"`
	KeyID         string            `mapstructure:"key_id"`
	VerifyKeys    map[string][]byte `mapstructure:"-"`
	Issuer        string            `mapstructure:"issuer"`
	Audience      string            `mapstructure:"audience"`
	Leeway        time.Duration     `mapstructure:"leeway"`
	RequireIAT    bool              `mapstructure:"require_iat"`
	MaxFutureIAT  time.Duration     `mapstructure:"max_future_iat"`

	// AllowNonExpiring lets IssueAccess/IssueRefresh mint tokens without exp
	// through WithoutExpiry. Rejected in ProductionMode.
	AllowNonExpiring bool `mapstructure:"allow_non_expiring"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id cost factors used for new hashes.
type PasswordConfig struct {
	Memory           uint32 `mapstructure:"memory"` // KiB
	Time             uint32 `mapstructure:"time"`
	Parallelism      uint8  `mapstructure:"parallelism"`
	SaltLength       uint32 `mapstructure:"salt_length"`
	KeyLength        uint32 `mapstructure:"key_length"`
	MaxPasswordBytes int    `mapstructure:"max_password_bytes"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig gates stricter validation for deployed environments.
type SecurityConfig struct {
	ProductionMode bool `mapstructure:"production_mode"`
	// EnforcePasswordPolicy rejects hashing of passwords that fail
	// password.ValidateStrength.
	EnforcePasswordPolicy bool `mapstructure:"enforce_password_policy"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

/*
====================================
LIMITER CONFIG
====================================
*/

// LimiterBackend selects where failed-login counters live.
type LimiterBackend string

const (
	// LimiterRedis shares counters between replicas; Build requires WithRedis.
	LimiterRedis LimiterBackend = "redis"
	// LimiterLocal keeps token buckets in process memory.
	LimiterLocal LimiterBackend = "local"
	// LimiterDisabled turns login throttling off.
	LimiterDisabled LimiterBackend = "disabled"
)

// LimiterConfig configures login throttling.
type LimiterConfig struct {
	Backend               LimiterBackend `mapstructure:"backend"`
	EnableIPThrottle      bool           `mapstructure:"enable_ip_throttle"`
	MaxLoginAttempts      int            `mapstructure:"max_login_attempts"`
	LoginCooldownDuration time.Duration  `mapstructure:"login_cooldown"`
	KeyPrefix             string         `mapstructure:"key_prefix"`
}

func (c LimiterConfig) rateConfig() rate.Config {
	return rate.Config{
		EnableIPThrottle:      c.EnableIPThrottle,
		MaxLoginAttempts:      c.MaxLoginAttempts,
		LoginCooldownDuration: c.LoginCooldownDuration,
		KeyPrefix:             c.KeyPrefix,
	}
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionBackend selects where login sessions live.
type SessionBackend string

const (
	// SessionMemory keeps sessions in process memory.
	SessionMemory SessionBackend = "memory"
	// SessionRedis shares sessions between replicas; Build requires WithRedis.
	SessionRedis SessionBackend = "redis"
)

// SessionConfig controls server-side login sessions. When enabled,
// Authenticate opens a session and Refresh requires it to be live.
type SessionConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Backend SessionBackend `mapstructure:"backend"`
	// TTL of a new session. Zero follows JWT.RefreshTTL.
	TTL        time.Duration `mapstructure:"ttl"`
	MaxPerUser int           `mapstructure:"max_per_user"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
}

func (c Config) sessionTTL() time.Duration {
	if c.Session.TTL > 0 {
		return c.Session.TTL
	}
	return c.JWT.RefreshTTL
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development configuration. It carries no signing
// key, so Validate fails until one is supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			MaxFutureIAT:  10 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Limiter: LimiterConfig{
			Backend:               LimiterLocal,
			EnableIPThrottle:      true,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			KeyPrefix:             "authcore",
		},
		Session: SessionConfig{
			Backend:    SessionMemory,
			MaxPerUser: 5,
			KeyPrefix:  "authcore",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks field ranges and, with Security.ProductionMode, the
// stricter deployment bounds. The first violation is returned.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("JWT hs256 secret must be >= 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return errors.New("JWT MaxFutureIAT must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Limiter
	switch c.Limiter.Backend {
	case LimiterRedis, LimiterLocal:
		if c.Limiter.MaxLoginAttempts <= 0 {
			return errors.New("Limiter MaxLoginAttempts must be > 0")
		}
		if c.Limiter.LoginCooldownDuration <= 0 {
			return errors.New("Limiter LoginCooldownDuration must be > 0")
		}
	case LimiterDisabled:
	default:
		return errors.New("Limiter Backend must be 'redis', 'local' or 'disabled'")
	}

	// Session
	if c.Session.Enabled {
		switch c.Session.Backend {
		case SessionMemory, SessionRedis:
		default:
			return errors.New("Session Backend must be 'memory' or 'redis'")
		}
		if c.Session.TTL < 0 {
			return errors.New("Session TTL must be >= 0")
		}
		if c.Session.MaxPerUser <= 0 {
			return errors.New("Session MaxPerUser must be > 0")
		}
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > time.Hour {
			return errors.New("ProductionMode requires JWT AccessTTL <= 1h")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.JWT.AllowNonExpiring {
			return errors.New("ProductionMode forbids JWT AllowNonExpiring")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.Limiter.Backend == LimiterDisabled {
			return errors.New("ProductionMode requires a login limiter")
		}
	}

	return nil
}

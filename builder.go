package authcore

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/atulya-tantra/authcore/internal/audit"
	"github.com/atulya-tantra/authcore/internal/rate"
	"github.com/atulya-tantra/authcore/jwt"
	"github.com/atulya-tantra/authcore/password"
	"github.com/atulya-tantra/authcore/permission"
	"github.com/atulya-tantra/authcore/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// dummyPassword is hashed once per Build to equalize login timing.
const dummyPassword = "authcore-timing-equalizer"

var errBuilderUsed = errors.New("builder already used")

// Builder assembles a [Service]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	roleDefs  map[permission.Role][]permission.Permission
	accounts  AccountLookup
	auditSink AuditSink
	logger    logrus.FieldLogger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the defaults with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client for the redis limiter and session
// backends.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRoleTable replaces the built-in role table. The definition is still
// subject to the admin superset check.
func (b *Builder) WithRoleTable(def map[permission.Role][]permission.Permission) *Builder {
	b.roleDefs = def
	return b
}

// WithAccounts supplies the identity lookup used by Authenticate and
// Refresh. Token and guard operations work without one.
func (b *Builder) WithAccounts(lookup AccountLookup) *Builder {
	b.accounts = lookup
	return b
}

// WithAuditSink enables audit delivery to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithClock injects the time source shared by token issuance, verification
// and the local limiter.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles verify latency buckets. It has no effect
// while metrics are disabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and constructs the Service. Every
// failure wraps ErrConfig.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, fmt.Errorf("%w: %w", ErrConfig, errBuilderUsed)
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = discardLogger()
	}

	// -------- ROLE TABLE --------
	roleDefs := b.roleDefs
	if roleDefs == nil {
		roleDefs = permission.DefaultRolePermissions()
	}
	roles, err := permission.NewRoleTable(roleDefs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	// -------- LIMITER --------
	var limiter rate.Limiter
	switch cfg.Limiter.Backend {
	case LimiterRedis:
		if b.redis == nil {
			return nil, fmt.Errorf("%w: redis limiter requires a redis client", ErrConfig)
		}
		limiter = rate.NewRedis(b.redis, cfg.Limiter.rateConfig())
	case LimiterLocal:
		limiter = rate.NewLocal(cfg.Limiter.rateConfig(), now)
	default:
		limiter = rate.Noop{}
	}

	// -------- SESSIONS --------
	var sessions *session.Manager
	if cfg.Session.Enabled {
		var store session.Store
		switch cfg.Session.Backend {
		case SessionRedis:
			if b.redis == nil {
				return nil, fmt.Errorf("%w: redis session backend requires a redis client", ErrConfig)
			}
			store = session.NewRedisStore(b.redis, cfg.Session.KeyPrefix, now)
		default:
			store = session.NewMemoryStore()
		}
		sessions = session.NewManager(store, session.Config{
			DefaultTTL: cfg.sessionTTL(),
			MaxPerUser: cfg.Session.MaxPerUser,
			Clock:      now,
			Logger:     logger,
		})
	}

	// -------- PASSWORD --------
	hasher, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		SigningMethod:    jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:       cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:        cloneBytes(cfg.JWT.PublicKey),
		Issuer:           cfg.JWT.Issuer,
		Audience:         cfg.JWT.Audience,
		Leeway:           cfg.JWT.Leeway,
		RequireIAT:       cfg.JWT.RequireIAT,
		MaxFutureIAT:     cfg.JWT.MaxFutureIAT,
		KeyID:            cfg.JWT.KeyID,
		VerifyKeys:       cfg.JWT.VerifyKeys,
		AllowNonExpiring: cfg.JWT.AllowNonExpiring,
		Clock:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	svc := &Service{
		config:   cfg,
		tokens:   tokens,
		hasher:   hasher,
		roles:    roles,
		grants:   permission.NewGrants(),
		accounts: b.accounts,
		limiter:  limiter,
		sessions: sessions,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
		now:      now,
	}

	if b.accounts != nil {
		svc.dummyHash, err = hasher.Hash(dummyPassword)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}

	svc.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	logger.WithFields(logrus.Fields{
		"signing_method": cfg.JWT.SigningMethod,
		"limiter":        cfg.Limiter.Backend,
		"audit":          cfg.Audit.Enabled,
		"sessions":       cfg.Session.Enabled,
	}).Info("authcore service built")

	return svc, nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

package authcore

import (
	"time"

	"github.com/atulya-tantra/authcore/internal/audit"
	"github.com/atulya-tantra/authcore/internal/rate"
	"github.com/atulya-tantra/authcore/jwt"
	"github.com/atulya-tantra/authcore/password"
	"github.com/atulya-tantra/authcore/permission"
	"github.com/atulya-tantra/authcore/session"
	"github.com/sirupsen/logrus"
)

// Service is the assembled auth core. Create it with [New]...[Builder.Build].
// All methods are safe for concurrent use; the mutable state is the custom
// grant map behind [Guard] and, when enabled, the session store.
type Service struct {
	config   Config
	tokens   *jwt.Manager
	hasher   *password.Argon2
	roles    *permission.RoleTable
	grants   *permission.Grants
	accounts AccountLookup
	limiter  rate.Limiter
	sessions *session.Manager
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   logrus.FieldLogger
	now      func() time.Time

	// dummyHash is verified when the identifier is unknown so both login
	// failures cost one argon2 evaluation.
	dummyHash string
}

// Close flushes pending audit events and stops the dispatcher.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher queue was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns the current counters. It is empty when metrics
// are disabled.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// Guard returns the authorization guard bound to this service's role table
// and grant map.
func (s *Service) Guard() *Guard {
	if s == nil {
		return nil
	}
	return &Guard{roles: s.roles, grants: s.grants, svc: s}
}

// HashPassword hashes pw with the configured argon2id cost. With
// Security.EnforcePasswordPolicy the password must also pass
// password.ValidateStrength.
func (s *Service) HashPassword(pw string) (string, error) {
	if s == nil || s.hasher == nil {
		return "", ErrServiceNotReady
	}
	if s.config.Security.EnforcePasswordPolicy {
		if ok, violations := password.ValidateStrength(pw); !ok {
			return "", &PolicyError{Violations: violations}
		}
	}
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return "", mapPasswordError(err)
	}
	return hash, nil
}

// VerifyPassword compares pw against hash. A mismatch is (false, nil);
// only a malformed hash is an error.
func (s *Service) VerifyPassword(pw, hash string) (bool, error) {
	if s == nil || s.hasher == nil {
		return false, ErrServiceNotReady
	}
	ok, err := s.hasher.Verify(pw, hash)
	if err != nil {
		return false, mapPasswordError(err)
	}
	return ok, nil
}

// NeedsRehash reports whether hash was produced by weaker parameters than
// the current configuration, including any legacy bcrypt hash.
func (s *Service) NeedsRehash(hash string) (bool, error) {
	if s == nil || s.hasher == nil {
		return false, ErrServiceNotReady
	}
	upgrade, err := s.hasher.NeedsUpgrade(hash)
	if err != nil {
		return false, mapPasswordError(err)
	}
	return upgrade, nil
}

var nopLogger = discardLogger()

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *Service) log() logrus.FieldLogger {
	if s == nil || s.logger == nil {
		return nopLogger
	}
	return s.logger
}

package rate

import (
	"context"
	"time"
)

// Config holds login throttle tuning parameters shared by every backend.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	KeyPrefix             string
}

// Limiter counts failed logins per identifier and, optionally, per client IP.
type Limiter interface {
	// CheckLogin returns ErrRateLimited once the budget for identifier or ip
	// is spent. It does not consume an attempt.
	CheckLogin(ctx context.Context, identifier, ip string) error
	// IncrementLogin records one failed attempt.
	IncrementLogin(ctx context.Context, identifier, ip string) error
	// ResetLogin forgets failures after a successful login.
	ResetLogin(ctx context.Context, identifier, ip string) error
}

// Noop never limits.
type Noop struct{}

func (Noop) CheckLogin(context.Context, string, string) error     { return nil }
func (Noop) IncrementLogin(context.Context, string, string) error { return nil }
func (Noop) ResetLogin(context.Context, string, string) error     { return nil }

func (c Config) prefix() string {
	if c.KeyPrefix == "" {
		return "authcore"
	}
	return c.KeyPrefix
}

func (c Config) loginUserKey(identifier string) string {
	return c.prefix() + ":al:" + identifier
}

func (c Config) loginIPKey(ip string) string {
	return c.prefix() + ":ali:" + ip
}

// keys returns the counters touched by one attempt.
func (c Config) keys(identifier, ip string) []string {
	out := []string{c.loginUserKey(identifier)}
	if c.EnableIPThrottle && ip != "" {
		out = append(out, c.loginIPKey(ip))
	}
	return out
}

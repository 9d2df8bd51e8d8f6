package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localMaxKeys = 10000

// LocalLimiter is the single-process backend. Each key owns a token bucket
// holding MaxLoginAttempts tokens that refill over LoginCooldownDuration.
type LocalLimiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocal creates a [LocalLimiter]. A nil now uses time.Now.
func NewLocal(cfg Config, now func() time.Time) *LocalLimiter {
	if now == nil {
		now = time.Now
	}
	return &LocalLimiter{
		config:  cfg,
		now:     now,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *LocalLimiter) CheckLogin(_ context.Context, identifier, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for _, key := range l.config.keys(identifier, ip) {
		b, ok := l.buckets[key]
		if !ok {
			continue
		}
		if b.TokensAt(now) < 1 {
			return ErrRateLimited
		}
	}
	return nil
}

func (l *LocalLimiter) IncrementLogin(_ context.Context, identifier, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	limited := false
	for _, key := range l.config.keys(identifier, ip) {
		if !l.bucket(key, now).AllowN(now, 1) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

func (l *LocalLimiter) ResetLogin(_ context.Context, identifier, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range l.config.keys(identifier, ip) {
		delete(l.buckets, key)
	}
	return nil
}

// bucket must be called with l.mu held.
func (l *LocalLimiter) bucket(key string, now time.Time) *rate.Limiter {
	if b, ok := l.buckets[key]; ok {
		return b
	}
	if len(l.buckets) >= localMaxKeys {
		l.sweep(now)
	}

	burst := l.config.MaxLoginAttempts
	if burst < 1 {
		burst = 1
	}
	refill := rate.Inf
	if l.config.LoginCooldownDuration > 0 {
		refill = rate.Every(l.config.LoginCooldownDuration / time.Duration(burst))
	}
	b := rate.NewLimiter(refill, burst)
	l.buckets[key] = b
	return b
}

// sweep drops buckets that have refilled completely; they hold no state.
func (l *LocalLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if b.TokensAt(now) >= float64(b.Burst()) {
			delete(l.buckets, key)
		}
	}
}

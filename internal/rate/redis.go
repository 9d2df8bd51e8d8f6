package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps fixed-window failure counters in Redis so that every
// replica of the service shares one budget.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedis creates a [RedisLimiter] backed by the given client.
func NewRedis(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{redis: client, config: cfg}
}

func (l *RedisLimiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	for _, key := range l.config.keys(identifier, ip) {
		if err := l.checkCounter(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (l *RedisLimiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	for _, key := range l.config.keys(identifier, ip) {
		count, err := l.incrementWithTTL(ctx, key, l.config.LoginCooldownDuration)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

func (l *RedisLimiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	if err := l.redis.Del(ctx, l.config.keys(identifier, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the failure counter for identifier. Missing keys
// read as zero.
func (l *RedisLimiter) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.config.loginUserKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *RedisLimiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *RedisLimiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set by the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

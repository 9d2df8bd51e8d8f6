package rate

import "errors"

var (
	// ErrRateLimited means the attempt budget for a key is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures of the Redis backend.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

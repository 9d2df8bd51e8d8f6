package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// minTTL keeps a session that is saved right at its expiry from being
// written without a TTL.
const minTTL = time.Millisecond

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// RedisStore keeps sessions in Redis so every replica sees the same set.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a [RedisStore]. An empty prefix defaults to
// "authcore"; a nil clock to time.Now.
func NewRedisStore(client redis.UniversalClient, prefix string, now func() time.Time) *RedisStore {
	if prefix == "" {
		prefix = "authcore"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{redis: client, prefix: prefix, now: now}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":s:" + id
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":su:" + userID
}

// Save writes the session with a TTL ending at ExpiresAt and adds it to the
// user index.
//
//	Performance: 1 MULTI/EXEC (SET + SADD).
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}

	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl < minTTL {
		ttl = minTTL
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sess.ID = id
	return &sess, nil
}

// Delete is atomic: the blob and the index entry go together.
func (s *RedisStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	existed, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(id), s.userKey(userID)}, id).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return existed == 1, nil
}

// DeleteUser is not atomic with respect to concurrent Save calls. A
// session created between the SMEMBERS and the DEL survives and is caught
// by its own expiry or the next call.
func (s *RedisStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}

	existing := 0
	if len(keys) > 0 {
		pipe := s.redis.Pipeline()
		existsCmds := make([]*redis.IntCmd, len(keys))
		for i, key := range keys {
			existsCmds[i] = pipe.Exists(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for _, cmd := range existsCmds {
			existing += int(cmd.Val())
		}
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return existing, nil
}

func (s *RedisStore) UserSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// SessionIDs scans every session key. It is O(n) in the keyspace and meant
// for maintenance jobs, never request paths.
func (s *RedisStore) SessionIDs(ctx context.Context) ([]string, error) {
	pattern := s.key("*")
	trim := s.key("")

	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for _, k := range keys {
			out = append(out, strings.TrimPrefix(k, trim))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// Ping reports Redis availability and round-trip latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

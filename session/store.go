package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
  local count = tonumber(redis.call("GET", KEYS[3]) or "0")
  if count > 1 then
    redis.call("DECR", KEYS[3])
  elseif count == 1 then
    redis.call("DEL", KEYS[3])
  end
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session store. Records are keyed by the SHA-256
// digest of the issued bearer token and expire with a Redis TTL matching the
// session lifetime, so invalidated and expired sessions are physically gone.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace for session records.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(tokenDigest string) string {
	return s.prefix + ":" + tokenDigest
}

func (s *Store) userKey(userID string) string {
	return "su:" + userID
}

func (s *Store) countKey() string {
	return "ssc:count"
}

// Save persists a [Session] to Redis. The TTL is derived from the session's
// expiry so the record cannot outlive its validity window.
//
//	Performance: 3 Redis commands in one MULTI (SET + SADD + INCR).
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := time.Until(time.Unix(sess.ExpiresAt, 0))
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	sessionKey := s.key(sess.TokenDigest)
	userKey := s.userKey(sess.UserID)
	countKey := s.countKey()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, userKey, sess.TokenDigest)
		pipe.Incr(ctx, countKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by token digest. Expired records found before the
// Redis TTL fires are deleted on the spot and reported as redis.Nil.
//
//	Performance: 1 Redis GET on the valid path.
func (s *Store) Get(ctx context.Context, tokenDigest string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(tokenDigest)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.TokenDigest = tokenDigest

	if !sess.Active(time.Now().Unix()) {
		if err := s.deleteSessionAndIndex(ctx, sess.UserID, tokenDigest); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	return sess, nil
}

// Delete removes a session and its index entry. Deleting an absent session
// is not an error.
func (s *Store) Delete(ctx context.Context, tokenDigest string) error {
	data, err := s.redis.Get(ctx, s.key(tokenDigest)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	return s.deleteSessionAndIndex(ctx, sess.UserID, tokenDigest)
}

// DeleteAllForUser removes all sessions for a user.
//
// ATOMICITY NOTE: This operation is NOT fully atomic. It reads the user's
// session set (SMembers), checks which sessions still exist (pipeline EXISTS),
// then deletes them (TxPipelined DEL). A session created between the read
// and delete phases will not be captured by this call. In practice this race
// is extremely narrow and only affects logout-all semantics — the stray
// session will expire naturally or be caught by the next DeleteAllForUser call.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)
	countKey := s.countKey()

	digests, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessionKeys := make([]string, 0, len(digests))
	for _, digest := range digests {
		sessionKeys = append(sessionKeys, s.key(digest))
	}

	currentCount, err := s.SessionCount(ctx)
	if err != nil {
		return err
	}

	var existing int
	if len(sessionKeys) > 0 {
		pipe := s.redis.Pipeline()
		existsCmds := make([]*redis.IntCmd, len(sessionKeys))
		for i, sessionKey := range sessionKeys {
			existsCmds[i] = pipe.Exists(ctx, sessionKey)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for _, cmd := range existsCmds {
			v, cmdErr := cmd.Result()
			if cmdErr != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
			}
			existing += int(v)
		}
	}

	decrement := existing
	if decrement > currentCount {
		decrement = currentCount
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(sessionKeys) > 0 {
			pipe.Del(ctx, sessionKeys...)
		}
		pipe.Del(ctx, userKey)
		if decrement > 0 {
			pipe.DecrBy(ctx, countKey, int64(decrement))
		}
		if decrement == currentCount && currentCount > 0 {
			pipe.Del(ctx, countKey)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// SessionCount returns the tracked store-wide session counter.
func (s *Store) SessionCount(ctx context.Context) (int, error) {
	count, err := s.redis.Get(ctx, s.countKey()).Int64()
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

// SetSessionCount sets (or clears) the tracked session counter. Used by the
// sweeper to reconcile after TTL expirations.
func (s *Store) SetSessionCount(ctx context.Context, count int) error {
	key := s.countKey()
	if count <= 0 {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	if err := s.redis.Set(ctx, key, count, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveSessionCount returns the number of tracked session digests for a user.
func (s *Store) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// SweepUserIndex drops index entries whose session records already expired
// via TTL and returns how many were removed. Runs outside request paths.
func (s *Store) SweepUserIndex(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	digests, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(digests) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(digests))
	for i, digest := range digests {
		existsCmds[i] = pipe.Exists(ctx, s.key(digest))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var dead []interface{}
	for i, cmd := range existsCmds {
		v, cmdErr := cmd.Result()
		if cmdErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		if v == 0 {
			dead = append(dead, digests[i])
		}
	}
	if len(dead) == 0 {
		return 0, nil
	}

	if err := s.redis.SRem(ctx, userKey, dead...).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return len(dead), nil
}

// IndexedUserIDs scans the per-user session index keys and returns the user
// IDs that currently have entries. Admin/sweeper-only O(n) operation — must
// not be used in request hot paths.
func (s *Store) IndexedUserIDs(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		users  []string
	)

	prefixLen := len(s.userKey(""))
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.userKey("*"), 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for _, key := range keys {
			users = append(users, key[prefixLen:])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return users, nil
}

// EstimateActiveSessions scans session keys and counts matches.
// This is an admin-only O(n) operation and must not be used in request hot paths.
func (s *Store) EstimateActiveSessions(ctx context.Context) (int, error) {
	pattern := s.prefix + ":*"
	var (
		cursor uint64
		total  int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return total, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, tokenDigest string) error {
	key := s.key(tokenDigest)
	userKey := s.userKey(userID)
	countKey := s.countKey()

	_, err := deleteSessionLua.Run(ctx, s.redis, []string{key, userKey, countKey}, tokenDigest).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

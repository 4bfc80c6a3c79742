package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "warden:sender:"

// observeScript atomically implements the Observe contract on a hash with
// fields "fp" and "count".
// KEYS[1] = sender hash key
// ARGV[1] = message fingerprint
// ARGV[2] = TTL seconds (0 = keep forever)
// Returns: [1=repeat/0=fresh, count]
var observeScript = redis.NewScript(`
local fp = redis.call('HGET', KEYS[1], 'fp')
if fp == ARGV[1] then
    return {1, tonumber(redis.call('HGET', KEYS[1], 'count'))}
end
redis.call('HSET', KEYS[1], 'fp', ARGV[1], 'count', 1)
if tonumber(ARGV[2]) > 0 then
    redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return {0, 1}
`)

// incrementScript raises the count only if the record still exists, so a
// record cleared by a concurrent escalation is not resurrected.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return 0
end
return redis.call('HINCRBY', KEYS[1], 'count', 1)
`)

// RedisStore is a SenderStore backed by redis hashes, shared across instances
// and persistent across restarts.
type RedisStore struct {
	client *redis.Client
	ttlSec int64
}

// NewRedisStore connects to redis using a redis:// URL and verifies the
// connection with a ping. ttlSec > 0 expires idle sender records.
func NewRedisStore(ctx context.Context, redisURL string, ttlSec int64) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, &StoreError{Op: "parse-url", Err: err}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, &StoreError{Op: "ping", Err: err}
	}
	return &RedisStore{client: rdb, ttlSec: ttlSec}, nil
}

func (s *RedisStore) Observe(ctx context.Context, senderID, fingerprint string) (bool, int64, error) {
	res, err := observeScript.Run(ctx, s.client, []string{redisKeyPrefix + senderID},
		fingerprint, s.ttlSec,
	).Int64Slice()
	if err != nil {
		return false, 0, &StoreError{Op: "observe", Err: err}
	}
	return res[0] == 1, res[1], nil
}

func (s *RedisStore) Increment(ctx context.Context, senderID string) (int64, error) {
	count, err := incrementScript.Run(ctx, s.client, []string{redisKeyPrefix + senderID}).Int64()
	if err != nil {
		return 0, &StoreError{Op: "increment", Err: err}
	}
	return count, nil
}

func (s *RedisStore) Delete(ctx context.Context, senderID string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+senderID).Err(); err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

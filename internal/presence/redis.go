package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// connTTL guards against leaked counters from crashed instances: a counter
// untouched for this long is considered stale and expires.
const connTTL = 6 * time.Hour

// decrScript decrements a principal's connection count without going below
// zero, deleting the key when the last connection closes. Running it as a
// script keeps the read-modify-write atomic under concurrent disconnects.
var decrScript = redis.NewScript(`
local c = tonumber(redis.call('GET', KEYS[1]) or '0')
if c <= 1 then
	redis.call('DEL', KEYS[1])
	return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisStore implements Store over a shared Redis instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a presence store on an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func connsKey(principalID string) string {
	return fmt.Sprintf("presence:conns:%s", principalID)
}

// Connect atomically increments the principal's connection count.
func (s *RedisStore) Connect(ctx context.Context, principalID string) (int64, error) {
	key := connsKey(principalID)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, connTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Disconnect atomically decrements the principal's connection count,
// clamped at zero.
func (s *RedisStore) Disconnect(ctx context.Context, principalID string) (int64, error) {
	return decrScript.Run(ctx, s.client, []string{connsKey(principalID)}).Int64()
}

// Count returns the current connection count for a principal.
func (s *RedisStore) Count(ctx context.Context, principalID string) (int64, error) {
	n, err := s.client.Get(ctx, connsKey(principalID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Online reports online status for a batch of principals in one round trip.
func (s *RedisStore) Online(ctx context.Context, principalIDs []string) (map[string]bool, error) {
	if len(principalIDs) == 0 {
		return map[string]bool{}, nil
	}

	keys := make([]string, len(principalIDs))
	for i, id := range principalIDs {
		keys[i] = connsKey(id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	online := make(map[string]bool, len(principalIDs))
	for i, id := range principalIDs {
		online[id] = vals[i] != nil
	}
	return online, nil
}

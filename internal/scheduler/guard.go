package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard implements Guard with SET NX on a shared key. The key lives for
// just under a day so the next day's firing is admitted again.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard creates a guard on an existing Redis client.
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) TryAcquire(ctx context.Context, name string) (bool, error) {
	key := fmt.Sprintf("scheduler:fired:%s:%s", name, time.Now().UTC().Format("2006-01-02"))
	return g.client.SetNX(ctx, key, "1", 23*time.Hour).Result()
}

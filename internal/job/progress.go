package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imagec/engine/internal/ids"
)

// Progress is the state() snapshot reported as a run advances.
type Progress struct {
	FinishedUnits  int `json:"finishedUnits"`
	TotalUnits     int `json:"totalUnits"`
	FinishedImages int `json:"finishedImages"`
	TotalImages    int `json:"totalImages"`
}

// ProgressCache mirrors a run's Progress somewhere an external poller
// can read it without a direct Go call into the Controller.
type ProgressCache interface {
	Publish(ctx context.Context, runId ids.RunId, p Progress) error
}

// noopCache is used when no cache is configured.
type noopCache struct{}

func (noopCache) Publish(context.Context, ids.RunId, Progress) error { return nil }

// RedisProgressCache publishes Progress snapshots to Redis under a
// per-run key with a short TTL, matching the tile-server's cache-aside
// usage of go-redis.
type RedisProgressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProgressCache wraps an already-configured redis.Client.
func NewRedisProgressCache(client *redis.Client, ttl time.Duration) *RedisProgressCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisProgressCache{client: client, ttl: ttl}
}

func (c *RedisProgressCache) Publish(ctx context.Context, runId ids.RunId, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, progressKey(runId), data, c.ttl).Err()
}

func progressKey(runId ids.RunId) string { return "imagec:progress:" + string(runId) }

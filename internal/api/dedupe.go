package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/notify"
)

// WebhookCache suppresses redelivery of a payload Alertmanager already sent,
// best effort. A cache miss or error processes the payload normally.
type WebhookCache interface {
	TryMark(ctx context.Context, key string) (bool, error)
}

// BuildIdempotencyKey derives a stable key from the group identity, its
// state, and the start of its first alert. Repeats of the same notification
// collapse; a later resolve for the same group does not.
func BuildIdempotencyKey(data *model.WebhookMessage) string {
	startsAt := ""
	if len(data.Alerts) > 0 {
		startsAt = data.Alerts[0].StartsAt
	}
	return fmt.Sprintf("%s|%s|%s", notify.DedupKey(data.CommonLabels), data.Status, startsAt)
}

// RedisWebhookCache marks keys with SETNX and a TTL so the suppression
// window is shared across processes and expires on its own.
type RedisWebhookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisWebhookCache(rdb *redis.Client) *RedisWebhookCache {
	return &RedisWebhookCache{rdb: rdb, ttl: 5 * time.Minute}
}

func (c *RedisWebhookCache) TryMark(ctx context.Context, key string) (bool, error) {
	return c.rdb.SetNX(ctx, "promfleet:webhook:"+key, "1", c.ttl).Result()
}

// NoopWebhookCache accepts everything; used in tests and single-delivery
// setups.
type NoopWebhookCache struct{}

func (NoopWebhookCache) TryMark(ctx context.Context, key string) (bool, error) {
	return true, nil
}

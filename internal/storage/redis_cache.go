package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/shelter-matching/internal/models"
)

const shelterSnapshotKey = "shelters:snapshot"

// CacheClient is the subset of redis commands RedisCache needs; *redis.Client satisfies it.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache keeps the full shelter snapshot in Redis in front of another ShelterStore.
// Redis failures degrade to reading through; they are never returned to callers.
type RedisCache struct {
	next   ShelterStore
	client CacheClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(next ShelterStore, client CacheClient, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RedisCache{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) ListShelters(ctx context.Context) ([]models.ShelterCandidate, error) {
	b, err := c.client.Get(ctx, shelterSnapshotKey).Bytes()
	switch {
	case err == nil:
		var out []models.ShelterCandidate
		if jerr := json.Unmarshal(b, &out); jerr == nil {
			return out, nil
		}
		c.logger.Warn("discarding undecodable shelter snapshot")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("shelter cache read failed", "error", err)
	}

	out, err := c.next.ListShelters(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(out); err == nil {
		if err := c.client.Set(ctx, shelterSnapshotKey, b, c.ttl).Err(); err != nil {
			c.logger.Warn("shelter cache write failed", "error", err)
		}
	}
	return out, nil
}

func (c *RedisCache) GetShelter(ctx context.Context, id string) (models.ShelterCandidate, error) {
	return c.next.GetShelter(ctx, id)
}

func (c *RedisCache) UpsertShelter(ctx context.Context, s models.ShelterCandidate) error {
	if err := c.next.UpsertShelter(ctx, s); err != nil {
		return err
	}
	if err := c.client.Del(ctx, shelterSnapshotKey).Err(); err != nil {
		c.logger.Warn("shelter cache invalidation failed", "error", err)
	}
	return nil
}

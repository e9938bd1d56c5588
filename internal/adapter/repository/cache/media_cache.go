package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/redis/go-redis/v9"
)

const (
	userImageKeyPrefix = "user:image:"
	cacheTTL           = 1 * time.Hour
)

// MediaCache caches the user's current image in Redis. Attach and detach
// invalidate it, so a stale entry can live at most one TTL after external
// drift.
type MediaCache struct {
	client *redis.Client
}

// NewMediaCache connects to Redis and verifies the connection.
func NewMediaCache(addr string) (*MediaCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr, // e.g. "localhost:6379"
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &MediaCache{client: client}, nil
}

// Get returns the cached asset, or nil on a cache miss.
func (c *MediaCache) Get(ctx context.Context, userID string) (*domain.MediaAsset, error) {
	data, err := c.client.Get(ctx, userImageKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, err
	}
	var asset domain.MediaAsset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Set stores the asset for the user.
func (c *MediaCache) Set(ctx context.Context, userID string, asset *domain.MediaAsset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, userImageKeyPrefix+userID, data, cacheTTL).Err()
}

// Invalidate drops the cached asset for the user.
func (c *MediaCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, userImageKeyPrefix+userID).Err()
}

// Close releases the underlying Redis connection.
func (c *MediaCache) Close() error {
	return c.client.Close()
}

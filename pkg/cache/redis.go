package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"shortener/pkg/storage"
)

// LinkCacheInterface is the cache-aside layer in front of the resolve hot
// path. It only ever holds positive lookups; resolution counting always goes
// to storage, so cached reads never skew analytics.
type LinkCacheInterface interface {
	Get(ctx context.Context, code string) (*storage.ShortURL, error)
	Set(ctx context.Context, code string, link *storage.ShortURL, ttl time.Duration) error
}

type LinkCache struct {
	client *redis.Client
}

func NewLinkCache(client *redis.Client) *LinkCache {
	return &LinkCache{client: client}
}

func (c *LinkCache) Get(ctx context.Context, code string) (*storage.ShortURL, error) {
	key := "link:" + code
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var link storage.ShortURL
	if err := json.Unmarshal([]byte(val), &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *LinkCache) Set(ctx context.Context, code string, link *storage.ShortURL, ttl time.Duration) error {
	key := "link:" + code
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

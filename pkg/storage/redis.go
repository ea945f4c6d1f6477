package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisLinkKeyPrefix      = "shorturl:"
	redisAnalyticsKeyPrefix = "shorturl_analytics:"
)

// RedisShortURLStorage keeps each short URL as a JSON document under a
// per-code key and each analytics row as a hash. SETNX gives Create its
// uniqueness guarantee and HINCRBY makes the counter atomic.
type RedisShortURLStorage struct {
	client *redis.Client
}

func NewRedisShortURLStorage(client *redis.Client) *RedisShortURLStorage {
	return &RedisShortURLStorage{client: client}
}

func (s *RedisShortURLStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, redisLinkKeyPrefix+code).Result()
	if err != nil {
		return false, fmt.Errorf("code exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisShortURLStorage) Create(ctx context.Context, shortURL *ShortURL) error {
	data, err := json.Marshal(shortURL)
	if err != nil {
		return fmt.Errorf("marshal short url: %w", err)
	}

	set, err := s.client.SetNX(ctx, redisLinkKeyPrefix+shortURL.Code, data, 0).Result()
	if err != nil {
		return fmt.Errorf("insert short url: %w", err)
	}
	if !set {
		return ErrDuplicateCode
	}
	return nil
}

func (s *RedisShortURLStorage) GetByCode(ctx context.Context, code string) (*ShortURL, error) {
	val, err := s.client.Get(ctx, redisLinkKeyPrefix+code).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get by code: %w", err)
	}

	var link ShortURL
	if err := json.Unmarshal([]byte(val), &link); err != nil {
		return nil, fmt.Errorf("unmarshal short url: %w", err)
	}
	if !link.DeepLinks.HasAny() {
		link.DeepLinks = nil
	}
	return &link, nil
}

func (s *RedisShortURLStorage) RecordResolution(ctx context.Context, code string, resolvedAt time.Time) error {
	key := redisAnalyticsKeyPrefix + code
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "total_resolutions", 1)
	pipe.HSet(ctx, key, "last_resolved_at_utc", resolvedAt.UTC().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record resolution: %w", err)
	}
	return nil
}

func (s *RedisShortURLStorage) GetAnalytics(ctx context.Context, code string) (ShortURLAnalytics, error) {
	fields, err := s.client.HGetAll(ctx, redisAnalyticsKeyPrefix+code).Result()
	if err != nil {
		return ShortURLAnalytics{}, fmt.Errorf("get analytics: %w", err)
	}
	if len(fields) == 0 {
		return ShortURLAnalytics{Code: code}, nil
	}

	analytics := ShortURLAnalytics{Code: code}
	if raw, ok := fields["total_resolutions"]; ok {
		if _, err := fmt.Sscan(raw, &analytics.TotalResolutions); err != nil {
			return ShortURLAnalytics{}, fmt.Errorf("parse total resolutions: %w", err)
		}
	}
	if raw, ok := fields["last_resolved_at_utc"]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return ShortURLAnalytics{}, fmt.Errorf("parse last resolved at: %w", err)
		}
		t = t.UTC()
		analytics.LastResolvedAt = &t
	}
	return analytics, nil
}

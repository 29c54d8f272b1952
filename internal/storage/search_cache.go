package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "bookanalyzer:"

// SearchCache is a bounded in-memory LRU of search results with an
// optional Redis tier shared between processes. Values are copied on the
// way in and out so callers cannot mutate cached entries.
type SearchCache struct {
	local *lru.Cache[string, []models.SubjectHeading]
	redis *redis.Client
	ttl   time.Duration
}

// NewSearchCache creates a cache holding at most size entries in memory.
// rdb may be nil to disable the Redis tier.
func NewSearchCache(size int, rdb *redis.Client, ttl time.Duration) (*SearchCache, error) {
	local, err := lru.New[string, []models.SubjectHeading](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create search cache: %w", err)
	}
	return &SearchCache{local: local, redis: rdb, ttl: ttl}, nil
}

// NewRedisClient connects to the Redis server at url (redis://host:port/db)
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func (c *SearchCache) Get(ctx context.Context, key string) ([]models.SubjectHeading, bool) {
	if v, ok := c.local.Get(key); ok {
		return cloneSubjects(v), true
	}
	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("Search cache redis read failed", "key", key, "err", err)
		return nil, false
	}

	var subjects []models.SubjectHeading
	if err := json.Unmarshal(data, &subjects); err != nil {
		slog.Warn("Discarding corrupt search cache entry", "key", key, "err", err)
		return nil, false
	}
	c.local.Add(key, subjects)
	return cloneSubjects(subjects), true
}

func (c *SearchCache) Set(ctx context.Context, key string, subjects []models.SubjectHeading) {
	c.local.Add(key, cloneSubjects(subjects))
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(subjects)
	if err != nil {
		slog.Warn("Failed to encode search cache entry", "key", key, "err", err)
		return
	}
	if err := c.redis.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		slog.Warn("Search cache redis write failed", "key", key, "err", err)
	}
}

// Len is the number of entries held in memory
func (c *SearchCache) Len() int {
	return c.local.Len()
}

func cloneSubjects(in []models.SubjectHeading) []models.SubjectHeading {
	if in == nil {
		return nil
	}
	out := make([]models.SubjectHeading, len(in))
	for i, s := range in {
		s.Type = slices.Clone(s.Type)
		s.Broader = slices.Clone(s.Broader)
		s.Narrower = slices.Clone(s.Narrower)
		s.Related = slices.Clone(s.Related)
		s.Variants = slices.Clone(s.Variants)
		s.Metadata = maps.Clone(s.Metadata)
		if s.Classification != nil {
			c := *s.Classification
			s.Classification = &c
		}
		out[i] = s
	}
	return out
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/product-crawler/pkg/utils"
)

// RedisStore holds the visited-URL set of a crawl in Redis so that several
// crawler processes working on the same run never fetch a page twice.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store whose keys live under runID and expire
// after ttl.
func NewRedisStore(addr, password string, db int, runID string, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &RedisStore{client: rdb, prefix: visitedPrefix(runID), ttl: ttl}
}

func visitedPrefix(runID string) string {
	return fmt.Sprintf("crawler:%s:visited:", runID)
}

// visitedKey hashes the normalised URL so keys have a fixed length.
func (s *RedisStore) visitedKey(rawURL string) string {
	key, err := utils.NormalizeURL(rawURL)
	if err != nil {
		key = rawURL
	}
	return s.prefix + utils.HashURL(key)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MarkIfNew implements frontier.VisitedSet with SETNX.
func (s *RedisStore) MarkIfNew(ctx context.Context, rawURL string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.visitedKey(rawURL), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

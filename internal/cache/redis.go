package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rjwaters/cineshelf/internal/models"
)

const (
	dirKeyPrefix = "cineshelf:dir:"
	dirEntryTTL  = 30 * 24 * time.Hour
)

// RedisDirStore persists directory cache entries in Redis so a restarted
// process can skip re-listing unchanged directories. Every operation is
// best-effort: a Redis failure degrades to a cache miss, never an error.
type RedisDirStore struct {
	client *redis.Client
}

func NewRedisDirStore(client *redis.Client) *RedisDirStore {
	return &RedisDirStore{client: client}
}

func (s *RedisDirStore) GetDir(ctx context.Context, dir string) (*models.DirCacheEntry, bool) {
	data, err := s.client.Get(ctx, dirKeyPrefix+dir).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Cache: redis get %s: %v", dir, err)
		}
		return nil, false
	}

	var entry models.DirCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("Cache: corrupt entry for %s, dropping: %v", dir, err)
		s.client.Del(ctx, dirKeyPrefix+dir)
		return nil, false
	}
	return &entry, true
}

func (s *RedisDirStore) PutDir(ctx context.Context, dir string, entry models.DirCacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Cache: marshal entry for %s: %v", dir, err)
		return
	}
	if err := s.client.Set(ctx, dirKeyPrefix+dir, data, dirEntryTTL).Err(); err != nil {
		log.Printf("Cache: redis set %s: %v", dir, err)
	}
}

func (s *RedisDirStore) DeleteDir(ctx context.Context, dir string) {
	if err := s.client.Del(ctx, dirKeyPrefix+dir).Err(); err != nil {
		log.Printf("Cache: redis del %s: %v", dir, err)
	}
}

package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/intent"
)

// Cache memoizes extractor candidates by normalized question text.
type Cache interface {
	Get(ctx context.Context, question string) (intent.Candidate, bool)
	Set(ctx context.Context, question string, c intent.Candidate)
}

const redisKeyPrefix = "schoolq:intent:"

// TieredCache keeps a process-local LRU in front of an optional shared Redis.
// Redis failures are logged and treated as misses.
type TieredCache struct {
	local  *lru.Cache[string, intent.Candidate]
	redis  *redis.Client
	ttl    time.Duration
	scope  string
	logger logger.Logger
}

// NewTieredCache builds the cache. scope namespaces keys per model so that
// switching models does not serve stale extractions. rdb may be nil.
func NewTieredCache(size int, rdb *redis.Client, ttl time.Duration, scope string, log logger.Logger) (*TieredCache, error) {
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, intent.Candidate](size)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &TieredCache{
		local:  local,
		redis:  rdb,
		ttl:    ttl,
		scope:  scope,
		logger: logger.Component(log, "extractor-cache"),
	}, nil
}

func (c *TieredCache) key(question string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(c.scope + "\x00" + norm))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *TieredCache) Get(ctx context.Context, question string) (intent.Candidate, bool) {
	k := c.key(question)
	if cand, ok := c.local.Get(k); ok {
		return cand, true
	}
	if c.redis == nil {
		return intent.Candidate{}, false
	}

	raw, err := c.redis.Get(ctx, k).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed", map[string]interface{}{"error": err})
		}
		return intent.Candidate{}, false
	}
	var cand intent.Candidate
	if err := json.Unmarshal(raw, &cand); err != nil {
		c.logger.Warn("discarding corrupt cache entry", map[string]interface{}{"error": err})
		return intent.Candidate{}, false
	}
	c.local.Add(k, cand)
	return cand, true
}

func (c *TieredCache) Set(ctx context.Context, question string, cand intent.Candidate) {
	k := c.key(question)
	c.local.Add(k, cand)
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(cand)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, k, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", map[string]interface{}{"error": err})
	}
}

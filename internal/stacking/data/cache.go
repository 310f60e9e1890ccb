package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/pkg/redis"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"go.uber.org/zap"
)

const stackCacheTTL = 5 * time.Minute

// StackCache implements biz.StackCache on Redis. Every method is best
// effort; failures degrade to database reads.
type StackCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewStackCache creates a new Redis-backed stack listing cache
func NewStackCache(client *redis.Client, log *logger.Logger) biz.StackCache {
	return &StackCache{client: client, log: log}
}

// NoopStackCache satisfies biz.StackCache when Redis is not configured
type NoopStackCache struct{}

func (NoopStackCache) GetStacks(ctx context.Context, userID int64) ([]*types.StackInfo, bool) {
	return nil, false
}
func (NoopStackCache) SetStacks(ctx context.Context, userID int64, stacks []*types.StackInfo) {}
func (NoopStackCache) Invalidate(ctx context.Context, userID int64)                          {}

func stackCacheKey(userID int64) string {
	return fmt.Sprintf("stacks:user:%d", userID)
}

func (c *StackCache) GetStacks(ctx context.Context, userID int64) ([]*types.StackInfo, bool) {
	raw, err := c.client.Get(ctx, stackCacheKey(userID))
	if err != nil {
		if err != redis.ErrCacheMiss {
			c.log.Warn("stack cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil, false
	}

	var stacks []*types.StackInfo
	if err := json.Unmarshal([]byte(raw), &stacks); err != nil {
		c.log.Warn("stack cache entry corrupt", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}
	return stacks, true
}

func (c *StackCache) SetStacks(ctx context.Context, userID int64, stacks []*types.StackInfo) {
	raw, err := json.Marshal(stacks)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, stackCacheKey(userID), string(raw), stackCacheTTL); err != nil {
		c.log.Warn("stack cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (c *StackCache) Invalidate(ctx context.Context, userID int64) {
	if err := c.client.Del(ctx, stackCacheKey(userID)); err != nil {
		c.log.Warn("stack cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

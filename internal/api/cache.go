package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"curve-launchpad/internal/graduation"
)

// DisplayCache is a Redis read-through cache for graduation display
// states. The graduation endpoint is the hottest read in the system and
// its payload tolerates a few seconds of staleness.
//
// Cache failures degrade to the underlying read model; they never fail a
// request.
type DisplayCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewDisplayCache creates a cache with the given TTL. A nil client
// disables caching.
func NewDisplayCache(rdb *redis.Client, ttl time.Duration, logger *log.Logger) *DisplayCache {
	if logger == nil {
		logger = log.Default()
	}
	return &DisplayCache{rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(mintID string) string {
	return "graduation:display:" + mintID
}

// Get returns the cached state for a mint, or nil on miss.
func (c *DisplayCache) Get(ctx context.Context, mintID string) *graduation.DisplayState {
	if c == nil || c.rdb == nil {
		return nil
	}

	data, err := c.rdb.Get(ctx, cacheKey(mintID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Printf("display cache read failed for %s: %v", mintID, err)
		}
		return nil
	}

	var state graduation.DisplayState
	if err := json.Unmarshal(data, &state); err != nil {
		c.logger.Printf("display cache decode failed for %s: %v", mintID, err)
		return nil
	}
	return &state
}

// Set stores the state under its TTL.
func (c *DisplayCache) Set(ctx context.Context, state *graduation.DisplayState) {
	if c == nil || c.rdb == nil || state == nil {
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(state.MintID), data, c.ttl).Err(); err != nil {
		c.logger.Printf("display cache write failed for %s: %v", state.MintID, err)
	}
}

// Invalidate drops the cached state after a trade or graduation so the
// next read reflects the new reserves immediately.
func (c *DisplayCache) Invalidate(ctx context.Context, mintID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, cacheKey(mintID)).Err(); err != nil {
		c.logger.Printf("display cache invalidate failed for %s: %v", mintID, err)
	}
}

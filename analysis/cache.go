package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheOpTimeout = 300 * time.Millisecond

// summaryCache is a best-effort Redis layer in front of the review summary
// table. A nil client disables it; every operation is bounded by a short
// timeout so a slow Redis never stalls a request.
type summaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newSummaryCache(client *redis.Client, ttl time.Duration) *summaryCache {
	return &summaryCache{client: client, ttl: ttl}
}

func summaryCacheKey(appID int64) string {
	return fmt.Sprintf("analysis:summary:%d", appID)
}

func (c *summaryCache) get(ctx context.Context, appID int64) (*ReviewSummary, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	opCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	raw, err := c.client.Get(opCtx, summaryCacheKey(appID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("analysis: read summary cache for app %d failed: %v", appID, err)
		}
		return nil, false
	}

	var summary ReviewSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		log.Printf("analysis: decode cached summary for app %d failed: %v", appID, err)
		return nil, false
	}
	return &summary, true
}

func (c *summaryCache) store(ctx context.Context, summary *ReviewSummary) {
	if c == nil || c.client == nil || summary == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		log.Printf("analysis: encode summary for app %d failed: %v", summary.GameAppID, err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	if err := c.client.Set(opCtx, summaryCacheKey(summary.GameAppID), raw, c.ttl).Err(); err != nil {
		log.Printf("analysis: write summary cache for app %d failed: %v", summary.GameAppID, err)
	}
}

func (c *summaryCache) invalidate(ctx context.Context, appID int64) {
	if c == nil || c.client == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	if err := c.client.Del(opCtx, summaryCacheKey(appID)).Err(); err != nil {
		log.Printf("analysis: drop summary cache for app %d failed: %v", appID, err)
	}
}

// Package cache stores finished analysis reports keyed by listing URL so a
// repeated request for the same property skips the external providers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"agewise-backend/models"
)

// ErrMiss is returned when no cached report exists for a URL.
var ErrMiss = errors.New("cache miss")

// ReportCache wraps Redis. A nil *ReportCache is valid and behaves as an
// always-miss cache, so callers do not need to branch on configuration.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(addr string, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &ReportCache{client: rdb, ttl: ttl, logger: logger}
}

func (c *ReportCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func key(url string) string {
	return fmt.Sprintf("report:%s", url)
}

// Get returns the cached report for a listing URL, or ErrMiss.
func (c *ReportCache) Get(ctx context.Context, url string) (*models.AnalysisReport, error) {
	if c == nil {
		return nil, ErrMiss
	}
	raw, err := c.client.Get(ctx, key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var report models.AnalysisReport
	if err := json.Unmarshal(raw, &report); err != nil {
		// A corrupt entry is treated as a miss and evicted.
		c.client.Del(ctx, key(url))
		return nil, ErrMiss
	}
	return &report, nil
}

// Set stores a report with the configured TTL. Failures are logged, not
// returned: caching is best-effort and must never fail an analysis.
func (c *ReportCache) Set(ctx context.Context, report *models.AnalysisReport) {
	if c == nil || report == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("failed to encode report for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key(report.SourceURL), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache report", zap.String("url", report.SourceURL), zap.Error(err))
	}
}

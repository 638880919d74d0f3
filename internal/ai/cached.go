package ai

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ticketmind/backend/internal/metrics"
	"github.com/ticketmind/backend/pkg/logger"
	"github.com/ticketmind/backend/pkg/utils"
)

// Cache is the collaborator used to memoize analysis responses. Failures are
// never fatal; a broken cache degrades to live round-trips.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedProvider memoizes Generate results under a key derived from the
// exact prompt text. Chat exchanges pass through uncached.
type CachedProvider struct {
	Provider
	cache Cache
	ttl   time.Duration
}

func NewCachedProvider(p Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{Provider: p, cache: cache, ttl: ttl}
}

func (c *CachedProvider) Generate(ctx context.Context, prompt string, opts Options) (*Response, error) {
	key := "ai:" + utils.HashString(prompt)

	if cached := c.lookup(ctx, key); cached != nil {
		return cached, nil
	}

	resp, err := c.Provider.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, resp)
	return resp, nil
}

func (c *CachedProvider) lookup(ctx context.Context, key string) *Response {
	if c.cache == nil {
		return nil
	}

	data, found, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Debug("Response cache lookup failed", zap.Error(err))
		return nil
	}
	if !found {
		metrics.CacheMisses.WithLabelValues("ai_response").Inc()
		return nil
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Debug("Response cache entry corrupt", zap.Error(err))
		return nil
	}

	metrics.CacheHits.WithLabelValues("ai_response").Inc()
	logger.Debug("Response served from cache", zap.String("key", key))
	return &resp
}

func (c *CachedProvider) store(ctx context.Context, key string, resp *Response) {
	if c.cache == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		logger.Debug("Response cache store failed", zap.Error(err))
	}
}

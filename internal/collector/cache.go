package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TrendChannel/internal/logger"
	"TrendChannel/internal/metrics"
	"TrendChannel/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// CacheConfig configures the Redis candle cache.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// CachedFetcher serves repeated range requests from Redis and falls back to
// the wrapped Fetcher. Redis failures degrade to a cache miss.
type CachedFetcher struct {
	inner   Fetcher
	client  *goredis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewCachedFetcher wraps inner with a Redis cache. m may be nil.
func NewCachedFetcher(inner Fetcher, cfg CacheConfig, m *metrics.Metrics) *CachedFetcher {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedFetcher{inner: inner, client: client, ttl: ttl, metrics: m}
}

func (f *CachedFetcher) Name() string { return f.inner.Name() + "+redis" }

// Ping checks the Redis connection.
func (f *CachedFetcher) Ping(ctx context.Context) error {
	if err := f.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (f *CachedFetcher) Close() error {
	return f.client.Close()
}

func cacheKey(source, symbol string, aggregateMinutes int, from, to int64) string {
	return fmt.Sprintf("candles:%s:%s:%d:%d:%d", source, symbol, aggregateMinutes, from, to)
}

func (f *CachedFetcher) FetchCandles(ctx context.Context, symbol string, aggregateMinutes int, from, to int64) (model.CandleSeries, error) {
	key := cacheKey(f.inner.Name(), symbol, aggregateMinutes, from, to)

	raw, err := f.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var series model.CandleSeries
		if err := json.Unmarshal(raw, &series); err == nil {
			f.metrics.IncCache(true)
			return series, nil
		}
		logger.Warn("[collector] corrupt cache entry", logger.Pair("key", key))
	case !errors.Is(err, goredis.Nil):
		logger.Warn("[collector] redis get failed", logger.Pair("key", key), logger.Err(err))
	}
	f.metrics.IncCache(false)

	series, err := f.inner.FetchCandles(ctx, symbol, aggregateMinutes, from, to)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(series); err == nil {
		if err := f.client.Set(ctx, key, data, f.ttl).Err(); err != nil {
			logger.Warn("[collector] redis set failed", logger.Pair("key", key), logger.Err(err))
		}
	}
	return series, nil
}

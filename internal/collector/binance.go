package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"TrendChannel/internal/logger"
	"TrendChannel/internal/model"

	"github.com/adshao/go-binance/v2"
	"github.com/spf13/cast"
)

// klinesLimit is the largest page Binance serves per klines request.
const klinesLimit = 1000

// BinanceFetcher implements Fetcher using the Binance spot klines API.
type BinanceFetcher struct {
	Client *binance.Client
}

// NewBinanceFetcher creates a new Binance fetcher with optional proxy support.
// Klines are public, so the keys may be empty.
func NewBinanceFetcher(apiKey, secretKey, baseURL, proxyURL string) *BinanceFetcher {
	var client *binance.Client
	if proxyURL != "" {
		client = binance.NewProxiedClient(apiKey, secretKey, proxyURL)
	} else {
		client = binance.NewClient(apiKey, secretKey)
	}
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	client.HTTPClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: client.HTTPClient.Transport,
	}
	return &BinanceFetcher{Client: client}
}

func (f *BinanceFetcher) Name() string { return "binance" }

// FetchCandles pages through [from, to] in requests of at most 1000 klines.
// Each page starts one interval after the last candle of the previous page.
func (f *BinanceFetcher) FetchCandles(ctx context.Context, symbol string, aggregateMinutes int, from, to int64) (model.CandleSeries, error) {
	interval, err := Interval(aggregateMinutes)
	if err != nil {
		return nil, err
	}
	step := int64(aggregateMinutes) * time.Minute.Milliseconds()

	var series model.CandleSeries
	for start := from; start <= to; {
		klines, err := f.Client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(start).
			EndTime(to).
			Limit(klinesLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s from %d: %w", symbol, start, err)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			c, err := toCandle(k)
			if err != nil {
				logger.Warn("[collector] skipping malformed kline", logger.Pair("open_time", k.OpenTime), logger.Err(err))
				continue
			}
			series = append(series, c)
		}
		if len(klines) < klinesLimit {
			break
		}
		start = klines[len(klines)-1].OpenTime + step
	}
	return series, nil
}

func toCandle(k *binance.Kline) (model.Candle, error) {
	var (
		c   = model.Candle{Timestamp: k.OpenTime}
		err error
	)
	if c.Open, err = cast.ToFloat64E(k.Open); err != nil {
		return c, fmt.Errorf("open %q: %w", k.Open, err)
	}
	if c.High, err = cast.ToFloat64E(k.High); err != nil {
		return c, fmt.Errorf("high %q: %w", k.High, err)
	}
	if c.Low, err = cast.ToFloat64E(k.Low); err != nil {
		return c, fmt.Errorf("low %q: %w", k.Low, err)
	}
	if c.Close, err = cast.ToFloat64E(k.Close); err != nil {
		return c, fmt.Errorf("close %q: %w", k.Close, err)
	}
	return c, nil
}

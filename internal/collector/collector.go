package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"TrendChannel/internal/logger"
	"TrendChannel/internal/metrics"
	"TrendChannel/internal/model"

	"go.uber.org/multierr"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price   float64
	Candles model.CandleSeries
	Err     error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCandles(_ context.Context, _ string, aggregateMinutes int, from, to int64) (model.CandleSeries, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Candles != nil {
		return m.Candles, nil
	}
	return generateMockCandles(m.Price, aggregateMinutes, from, to), nil
}

func generateMockCandles(basePrice float64, aggregateMinutes int, from, to int64) model.CandleSeries {
	step := int64(aggregateMinutes) * time.Minute.Milliseconds()
	if step <= 0 || to < from {
		return nil
	}
	count := int((to-from)/step) + 1
	series := make(model.CandleSeries, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.002*math.Sin(float64(i)/8) + float64(i-count/2)*0.0001)
		series[i] = model.Candle{
			Timestamp: from + int64(i)*step,
			Open:      p * 0.999,
			High:      p * 1.002,
			Low:       p * 0.997,
			Close:     p,
		}
	}
	return series
}

// Collector fetches candles from the first Fetcher that succeeds and
// normalizes them into a sorted, deduplicated series.
type Collector struct {
	Fetchers         []Fetcher
	Symbol           string
	AggregateMinutes int
	Metrics          *metrics.Metrics
}

// NewCollector creates a new Collector. Fetchers are tried in order.
func NewCollector(symbol string, aggregateMinutes int, m *metrics.Metrics, fetchers ...Fetcher) *Collector {
	return &Collector{Fetchers: fetchers, Symbol: symbol, AggregateMinutes: aggregateMinutes, Metrics: m}
}

// Collect fetches [from, to] and returns the normalized series.
func (c *Collector) Collect(ctx context.Context, from, to int64) (*model.MarketSeries, error) {
	var errs error
	for _, f := range c.Fetchers {
		started := time.Now()
		raw, err := f.FetchCandles(ctx, c.Symbol, c.AggregateMinutes, from, to)
		if err != nil {
			logger.Warn("[collector] fetch failed", logger.Pair("source", f.Name()), logger.Err(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		series, dropped := Normalize(raw)
		c.Metrics.ObserveFetch(time.Since(started), len(series))
		if dropped > 0 {
			logger.Warn("[collector] dropped invalid candles", logger.Pair("source", f.Name()), logger.Pair("dropped", dropped))
		}
		logger.Info("[collector] candles fetched",
			logger.Pair("source", f.Name()),
			logger.Pair("symbol", c.Symbol),
			logger.Pair("candles", len(series)),
		)
		return &model.MarketSeries{
			Symbol:           c.Symbol,
			AggregateMinutes: c.AggregateMinutes,
			Candles:          series,
			FetchedAt:        time.Now(),
		}, nil
	}
	if errs == nil {
		errs = errors.New("no fetcher configured")
	}
	return nil, fmt.Errorf("collect %s: %w", c.Symbol, errs)
}

// Normalize sorts candles by timestamp, keeps the last candle seen for a
// duplicated timestamp and drops candles violating the OHLC invariant.
// It returns the number of candles removed.
func Normalize(raw model.CandleSeries) (model.CandleSeries, int) {
	series := make(model.CandleSeries, 0, len(raw))
	for _, c := range raw {
		if c.Valid() {
			series = append(series, c)
		}
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].Timestamp < series[j].Timestamp })

	out := series[:0]
	for _, c := range series {
		if n := len(out); n > 0 && out[n-1].Timestamp == c.Timestamp {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out, len(raw) - len(out)
}

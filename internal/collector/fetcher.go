package collector

import (
	"context"
	"fmt"

	"TrendChannel/internal/model"
)

// Fetcher defines the interface for fetching historical candles.
// from and to are inclusive millisecond timestamps.
type Fetcher interface {
	FetchCandles(ctx context.Context, symbol string, aggregateMinutes int, from, to int64) (model.CandleSeries, error)
	Name() string
}

// binanceIntervals maps aggregation minutes to Binance kline intervals.
var binanceIntervals = map[int]string{
	1:     "1m",
	3:     "3m",
	5:     "5m",
	15:    "15m",
	30:    "30m",
	60:    "1h",
	120:   "2h",
	240:   "4h",
	360:   "6h",
	480:   "8h",
	720:   "12h",
	1440:  "1d",
	4320:  "3d",
	10080: "1w",
}

// Interval returns the Binance kline interval for aggregateMinutes.
func Interval(aggregateMinutes int) (string, error) {
	iv, ok := binanceIntervals[aggregateMinutes]
	if !ok {
		return "", fmt.Errorf("no kline interval for %d minutes", aggregateMinutes)
	}
	return iv, nil
}

package calculator

import (
	"errors"
	"math"
	"sort"

	"TrendChannel/internal/model"
)

// PriceRange scans the series and returns the lowest low and the highest high.
func PriceRange(series model.CandleSeries) (low, high float64, err error) {
	if len(series) == 0 {
		return 0, 0, errors.New("no candles provided")
	}
	low = math.Inf(1)
	high = math.Inf(-1)
	for _, c := range series {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return low, high, nil
}

// Interval returns the candles with from <= timestamp <= to. The result shares
// the backing array of series.
func Interval(series model.CandleSeries, from, to int64) model.CandleSeries {
	start := sort.Search(len(series), func(i int) bool { return series[i].Timestamp >= from })
	end := sort.Search(len(series), func(i int) bool { return series[i].Timestamp > to })
	if start >= end {
		return nil
	}
	return series[start:end:end]
}

// SeriesWindow spans the first to last candle timestamps with y-bounds min(low)/max(high).
func SeriesWindow(series model.CandleSeries) (model.Window, error) {
	if len(series) < 2 {
		return model.Window{}, ErrInsufficientData
	}
	return BoundedWindow(series, series.First().Timestamp, series.Last().Timestamp)
}

// BoundedWindow spans [xStart, xEnd] with y-bounds min(low)/max(high) over series.
func BoundedWindow(series model.CandleSeries, xStart, xEnd int64) (model.Window, error) {
	low, high, err := PriceRange(series)
	if err != nil {
		return model.Window{}, ErrInsufficientData
	}
	return model.Window{XStart: xStart, XEnd: xEnd, YStart: low, YEnd: high}, nil
}

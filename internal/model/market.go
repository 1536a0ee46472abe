package model

import "time"

// Candle is a single OHLC bar. Timestamp is in milliseconds since the Unix epoch.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
}

// BodyLow returns the lower edge of the candle body (min of open and close).
func (c Candle) BodyLow() float64 {
	if c.Open < c.Close {
		return c.Open
	}
	return c.Close
}

// BodyHigh returns the upper edge of the candle body (max of open and close).
func (c Candle) BodyHigh() float64 {
	if c.Open > c.Close {
		return c.Open
	}
	return c.Close
}

// Valid reports whether high/low bracket the body.
func (c Candle) Valid() bool {
	return c.High >= c.BodyHigh() && c.Low <= c.BodyLow()
}

// Time returns the candle timestamp as a time.Time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// CandleSeries is an ordered, read-only sequence of candles sorted ascending by timestamp.
type CandleSeries []Candle

// First returns the earliest candle. The series must not be empty.
func (s CandleSeries) First() Candle { return s[0] }

// Last returns the latest candle. The series must not be empty.
func (s CandleSeries) Last() Candle { return s[len(s)-1] }

// Closes extracts close prices in series order.
func (s CandleSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, c := range s {
		closes[i] = c.Close
	}
	return closes
}

// MarketSeries is a fetched candle series together with its source metadata.
type MarketSeries struct {
	Symbol           string
	AggregateMinutes int
	Candles          CandleSeries
	FetchedAt        time.Time
}

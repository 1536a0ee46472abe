package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"TrendChannel/internal/metrics"
	"TrendChannel/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/multierr"
)

func TestNormalize(t *testing.T) {
	raw := model.CandleSeries{
		{Timestamp: 3, Open: 1, Close: 2, High: 3, Low: 0},
		{Timestamp: 1, Open: 1, Close: 2, High: 3, Low: 0},
		{Timestamp: 2, Open: 1, Close: 5, High: 3, Low: 0}, // close above high
		{Timestamp: 1, Open: 2, Close: 2, High: 2, Low: 2},
	}
	series, dropped := Normalize(raw)
	if dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}
	if len(series) != 2 || series[0].Timestamp != 1 || series[1].Timestamp != 3 {
		t.Fatalf("unexpected series %+v", series)
	}
	if series[0].Open != 2 {
		t.Error("expected the later duplicate to win")
	}
}

func TestCollect_FallsBackToNextFetcher(t *testing.T) {
	m := metrics.NewMetrics()
	broken := &MockFetcher{Err: errors.New("boom")}
	working := &MockFetcher{Price: 100}
	c := NewCollector("BTCUSDT", 1, m, broken, working)

	from := int64(1700000000000)
	ms, err := c.Collect(context.Background(), from, from+9*time.Minute.Milliseconds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms.Candles) != 10 {
		t.Errorf("expected 10 candles, got %d", len(ms.Candles))
	}
	if ms.Symbol != "BTCUSDT" || ms.AggregateMinutes != 1 {
		t.Errorf("unexpected metadata %+v", ms)
	}
	if got := testutil.ToFloat64(m.CandlesFetched); got != 10 {
		t.Errorf("expected 10 candles counted, got %.0f", got)
	}
}

func TestCollect_AllFetchersFail(t *testing.T) {
	c := NewCollector("BTCUSDT", 1, nil,
		&MockFetcher{Err: errors.New("first")},
		&MockFetcher{Err: errors.New("second")},
	)
	_, err := c.Collect(context.Background(), 0, 60000)
	if err == nil {
		t.Fatal("expected an error")
	}
	if n := len(multierr.Errors(errors.Unwrap(err))); n != 2 {
		t.Errorf("expected 2 combined errors, got %d: %v", n, err)
	}
}

func TestCollect_NoFetchers(t *testing.T) {
	if _, err := NewCollector("BTCUSDT", 1, nil).Collect(context.Background(), 0, 1); err == nil {
		t.Error("expected an error without fetchers")
	}
}

func TestInterval(t *testing.T) {
	if iv, err := Interval(15); err != nil || iv != "15m" {
		t.Errorf("expected 15m, got %q, %v", iv, err)
	}
	if iv, err := Interval(1440); err != nil || iv != "1d" {
		t.Errorf("expected 1d, got %q, %v", iv, err)
	}
	if _, err := Interval(7); err == nil {
		t.Error("expected an error for 7 minutes")
	}
}

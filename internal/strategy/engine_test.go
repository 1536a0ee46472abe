package strategy

import (
	"context"
	"errors"
	"testing"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/model"
	"TrendChannel/internal/trend"
)

const minute = int64(60000)

func newEngine() *trend.Engine {
	cfg := trend.DefaultConfig()
	cfg.IterationsCount = 200
	return trend.NewEngine(cfg, nil)
}

func TestEvaluate_StrongUptrend(t *testing.T) {
	// 61 one-minute candles so the 1 hour lookback spans exactly the series.
	series := make(model.CandleSeries, 61)
	for i := range series {
		mid := 100 + 2*float64(i)
		series[i] = model.Candle{Timestamp: int64(i) * minute, Open: mid - 1.5, Close: mid + 1.5, High: mid + 2, Low: mid - 2}
	}
	s := Strategy{Name: "uptrend", Trends: []model.Period{{Measure: model.Hours, Value: 1}}}
	sig, err := Evaluate(context.Background(), newEngine(), s, "BTCUSDT", series, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sig.Periods) != 1 {
		t.Fatalf("expected 1 period, got %d", len(sig.Periods))
	}
	p := sig.Periods[0]
	if p.Err != nil {
		t.Fatalf("unexpected period error: %v", p.Err)
	}
	if p.Direction.Label != "强势上涨" {
		t.Errorf("expected strong uptrend, got %s (angle %.2f)", p.Direction.Label, p.Band.AnglePercent)
	}
	if p.RegressionSlope <= 0 {
		t.Errorf("expected positive regression slope, got %.4f", p.RegressionSlope)
	}
	if sig.LastClose != series.Last().Close {
		t.Errorf("expected last close %.2f, got %.2f", series.Last().Close, sig.LastClose)
	}
}

func TestEvaluate_BreakoutAboveBand(t *testing.T) {
	series := make(model.CandleSeries, 31)
	for i := 0; i < 30; i++ {
		series[i] = model.Candle{Timestamp: int64(i) * minute, Open: 99, Close: 101, High: 102, Low: 98}
	}
	series[30] = model.Candle{Timestamp: 30 * minute, Open: 101.5, Close: 160, High: 161, Low: 101}

	s := Strategy{Name: "breakout", Trends: []model.Period{{Measure: model.Hours, Value: 1}}}
	sig, err := Evaluate(context.Background(), newEngine(), s, "BTCUSDT", series, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := sig.Periods[0]
	if p.Err != nil {
		t.Fatalf("unexpected period error: %v", p.Err)
	}
	if p.Position != model.AboveBand {
		t.Errorf("expected ABOVE, got %s", p.Position)
	}
	if p.Direction.Label != "横盘震荡" {
		t.Errorf("expected sideways direction, got %s (angle %.2f)", p.Direction.Label, p.Band.AnglePercent)
	}
	if sig.WarningMsg == "" {
		t.Error("expected a breakout warning")
	}
}

func TestEvaluate_DefaultTrends(t *testing.T) {
	series := make(model.CandleSeries, 10)
	for i := range series {
		f := 50 + float64(i)
		series[i] = model.Candle{Timestamp: int64(i) * minute, Open: f, Close: f + 1, High: f + 1.5, Low: f - 0.5}
	}
	sig, err := Evaluate(context.Background(), newEngine(), Strategy{Name: "empty"}, "ETHUSDT", series, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sig.Periods) != 1 || sig.Periods[0].Period != DefaultTrends[0] {
		t.Errorf("expected the default 4 hour period, got %+v", sig.Periods)
	}
}

func TestEvaluate_AllPeriodsInsufficient(t *testing.T) {
	series := model.CandleSeries{{Timestamp: 0, Open: 1, Close: 2, High: 3, Low: 0}}
	s := Strategy{Name: "short", Trends: []model.Period{{Measure: model.Days, Value: 1}, {Measure: model.Weeks, Value: 1}}}
	sig, err := Evaluate(context.Background(), newEngine(), s, "BTCUSDT", series, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range sig.Periods {
		if !errors.Is(p.Err, calculator.ErrInsufficientData) {
			t.Errorf("%s: expected ErrInsufficientData, got %v", p.Period, p.Err)
		}
	}
	if sig.WarningMsg == "" {
		t.Error("expected an insufficient data warning")
	}
}

func TestEvaluate_EmptySeries(t *testing.T) {
	_, err := Evaluate(context.Background(), newEngine(), Strategy{Name: "none"}, "BTCUSDT", nil, 0)
	if !errors.Is(err, calculator.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestMapDirection(t *testing.T) {
	tests := []struct {
		angle float64
		want  string
	}{
		{45, "强势上涨"},
		{20, "强势上涨"},
		{10, "温和上涨"},
		{0, "横盘震荡"},
		{-5, "横盘震荡"},
		{-10, "温和下跌"},
		{-20, "温和下跌"},
		{-35, "强势下跌"},
	}
	for _, tt := range tests {
		if got := mapDirection(tt.angle).Label; got != tt.want {
			t.Errorf("angle %.0f: expected %s, got %s", tt.angle, tt.want, got)
		}
	}
}

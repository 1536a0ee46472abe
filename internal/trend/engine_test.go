package trend

import (
	"context"
	"errors"
	"math"
	"testing"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/model"
)

const (
	base   = int64(1700000000000)
	minute = int64(60000)
)

func testConfig() Config {
	return Config{
		IterationsCount:    40,
		Threshold:          1,
		ShiftPercent:       90,
		EnableBand:         true,
		EnableProlongation: true,
	}
}

// minuteSeries builds n one-minute candles drifting upward with a wave.
func minuteSeries(n int) model.CandleSeries {
	series := make(model.CandleSeries, n)
	for i := range series {
		mid := 100 + float64(i)*0.3 + 2*math.Sin(float64(i)/2)
		series[i] = model.Candle{
			Timestamp: base + int64(i)*minute,
			Open:      mid - 0.5,
			Close:     mid + 0.5,
			High:      mid + 1,
			Low:       mid - 1,
		}
	}
	return series
}

func TestFullWindow(t *testing.T) {
	series := minuteSeries(30)
	e := NewEngine(testConfig(), nil)
	out, err := e.FullWindow(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Window.XStart != series.First().Timestamp || out.Window.XEnd != series.Last().Timestamp {
		t.Errorf("window does not span the series: %+v", out.Window)
	}
	low, high, _ := calculator.PriceRange(series)
	if out.Window.YStart != low || out.Window.YEnd != high {
		t.Errorf("expected y-bounds [%.2f, %.2f], got [%.2f, %.2f]", low, high, out.Window.YStart, out.Window.YEnd)
	}
	b := out.Band
	if !b.Widened {
		t.Fatal("expected a widened band")
	}
	if b.Lower.YStart > b.Middle.YStart || b.Upper.YStart < b.Middle.YStart {
		t.Errorf("band out of order: lower %.3f middle %.3f upper %.3f", b.Lower.YStart, b.Middle.YStart, b.Upper.YStart)
	}
	limit := calculator.ConfidenceLimit(b.Middle.ConfidencePercent, 90)
	for _, l := range []model.TrendLine{b.Lower, b.Upper} {
		if l.ConfidencePercent > b.Middle.ConfidencePercent || (b.Middle.ConfidencePercent > 0 && l.ConfidencePercent <= limit) {
			t.Errorf("widened confidence %.2f outside (%.2f, %.2f]", l.ConfidencePercent, limit, b.Middle.ConfidencePercent)
		}
	}
	if math.Abs((b.Upper.B-b.Upper.A)-(b.Middle.B-b.Middle.A)) > 1e-9 {
		t.Error("widened lines must stay parallel to the best fit")
	}
}

func TestSelection_EmptyIntervalIsInsufficientData(t *testing.T) {
	series := minuteSeries(10)
	e := NewEngine(testConfig(), nil)
	// Strictly between two candles.
	_, err := e.Selection(series, base+minute+1000, base+minute+50000, 0)
	if !errors.Is(err, calculator.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestSelection_OrderIndependent(t *testing.T) {
	series := minuteSeries(20)
	e := NewEngine(testConfig(), nil)
	x1, x2 := base+3*minute, base+15*minute
	a, errA := e.Selection(series, x1, x2, 0)
	b, errB := e.Selection(series, x2, x1, 0)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if a.Window != b.Window || a.Band != b.Band {
		t.Error("selection must not depend on click order")
	}
	if a.Candles != 13 {
		t.Errorf("expected 13 candles in [x1, x2], got %d", a.Candles)
	}
}

func TestSelection_Prolongs(t *testing.T) {
	series := minuteSeries(20)
	e := NewEngine(testConfig(), nil)
	x1, x2 := base, base+10*minute
	target := base + 30*minute
	out, err := e.Selection(series, x1, x2, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, l := range out.Band.Lines() {
		if l.XEnd != target {
			t.Errorf("expected xEnd %d, got %d", target, l.XEnd)
		}
		want := calculator.LineValue(l.A, l.B, x1, x2, out.Window.YStart, target)
		if math.Abs(l.YEnd-want) > 1e-9 {
			t.Errorf("expected yEnd %.6f, got %.6f", want, l.YEnd)
		}
	}

	// Disabled prolongation leaves the fitted window untouched.
	cfg := testConfig()
	cfg.EnableProlongation = false
	out, _ = e.WithConfig(cfg).Selection(series, x1, x2, target)
	if out.Band.Middle.XEnd != x2 {
		t.Errorf("expected xEnd %d with prolongation disabled, got %d", x2, out.Band.Middle.XEnd)
	}
}

func TestFit_BandDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableBand = false
	out, err := NewEngine(cfg, nil).FullWindow(minuteSeries(15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Band.Widened {
		t.Error("expected an un-widened band")
	}
	if out.Band.Lower != out.Band.Middle || out.Band.Upper != out.Band.Middle {
		t.Error("expected lower and upper to copy the best fit")
	}
	if len(out.Band.Lines()) != 1 {
		t.Errorf("expected 1 line, got %d", len(out.Band.Lines()))
	}
}

func TestPeriod_Window(t *testing.T) {
	series := minuteSeries(60)
	at := series.Last().Timestamp
	out, err := NewEngine(testConfig(), nil).Period(series, at, model.Period{Measure: model.Minutes, Value: 10}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Window.XStart != at-10*minute || out.Window.XEnd != at {
		t.Errorf("unexpected window [%d, %d]", out.Window.XStart, out.Window.XEnd)
	}
	if out.Candles != 11 {
		t.Errorf("expected 11 candles, got %d", out.Candles)
	}
	if out.Label != "10 minutes" {
		t.Errorf("unexpected label %q", out.Label)
	}
}

func TestMultiPeriod_PerEntryErrors(t *testing.T) {
	series := minuteSeries(120)
	at := series.Last().Timestamp
	periods := []model.Period{
		{Measure: model.Hours, Value: 1},
		{Measure: model.Minutes, Value: 1},
		{Measure: "fortnights", Value: 1},
		{Measure: model.Minutes, Value: 30},
	}
	outs, err := NewEngine(testConfig(), nil).MultiPeriod(context.Background(), series, at, periods, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != len(periods) {
		t.Fatalf("expected %d outputs, got %d", len(periods), len(outs))
	}
	for i, p := range periods {
		if outs[i].Label != p.String() {
			t.Errorf("output %d: expected label %q, got %q", i, p.String(), outs[i].Label)
		}
	}
	if outs[0].Err != nil || outs[3].Err != nil {
		t.Errorf("unexpected errors: %v, %v", outs[0].Err, outs[3].Err)
	}
	if !errors.Is(outs[2].Err, calculator.ErrUnknownTimeMeasure) {
		t.Errorf("expected ErrUnknownTimeMeasure, got %v", outs[2].Err)
	}
	if outs[0].Window.XStart != at-60*minute || outs[3].Window.XStart != at-30*minute {
		t.Error("each period must use its own lookback window")
	}
}

func TestMultiPeriod_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	series := minuteSeries(30)
	_, err := NewEngine(testConfig(), nil).MultiPeriod(ctx, series, series.Last().Timestamp,
		[]model.Period{{Measure: model.Minutes, Value: 10}}, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestZigZag(t *testing.T) {
	series := minuteSeries(60)
	outs, err := NewEngine(testConfig(), nil).ZigZag(context.Background(), series, series.Last().Timestamp,
		model.Period{Measure: model.Hours, Value: 1}, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 6 {
		t.Fatalf("expected 6 segments, got %d", len(outs))
	}
	prevEnd := int64(-1)
	for i, o := range outs {
		if o.Err != nil {
			t.Fatalf("segment %d: %v", i, o.Err)
		}
		if o.Candles != 10 {
			t.Errorf("segment %d: expected 10 candles, got %d", i, o.Candles)
		}
		if o.Window.XStart <= prevEnd {
			t.Errorf("segment %d overlaps the previous one", i)
		}
		if o.Band.Middle.XEnd != o.Window.XEnd {
			t.Errorf("segment %d must not be prolonged", i)
		}
		prevEnd = o.Window.XEnd
	}
}

func TestZigZag_SingleCandleChunk(t *testing.T) {
	// 7 candles in 6 pieces: portion 2, so chunks of 1,2,2,2.
	series := minuteSeries(7)
	outs, err := NewEngine(testConfig(), nil).ZigZag(context.Background(), series, series.Last().Timestamp,
		DefaultZigZagLookback, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(outs))
	}
	if !errors.Is(outs[0].Err, calculator.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for the 1-candle chunk, got %v", outs[0].Err)
	}
	for _, o := range outs[1:] {
		if o.Err != nil {
			t.Errorf("%s: unexpected error %v", o.Label, o.Err)
		}
	}
}

func TestZigZag_EmptyLookback(t *testing.T) {
	series := minuteSeries(10)
	_, err := NewEngine(testConfig(), nil).ZigZag(context.Background(), series, base-1,
		DefaultZigZagLookback, 6)
	if !errors.Is(err, calculator.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

package recorder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/model"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "trend.db"))
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordTrends_RoundTrip(t *testing.T) {
	r := newTestRecorder(t)
	w := model.Window{XStart: 1000, XEnd: 5000, YStart: 10, YEnd: 20}
	line := func(a, b, conf float64) model.TrendLine {
		return lineOf(a, b, w, conf, 0)
	}
	events := []TrendEvent{
		{
			Mode: "zigzag", Symbol: "BTCUSDT", Label: "segment 1/2", At: 5000, Window: w, Candles: 4,
			Band: model.TrendBand{Lower: line(1, 2, 50), Middle: line(3, 4, 100), Upper: line(5, 6, 25), AnglePercent: 5, Widened: true},
		},
		{Mode: "zigzag", Symbol: "BTCUSDT", Label: "segment 2/2", At: 5000, Window: w, Error: "insufficient data"},
		{Mode: "full", Symbol: "BTCUSDT", Label: "full", At: 5000, Window: w},
	}
	if err := r.RecordTrends(events); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := r.RecentTrends("zigzag", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 zigzag rows, got %d", len(got))
	}
	// Newest first.
	if got[0].Label != "segment 2/2" || got[0].Error != "insufficient data" {
		t.Errorf("unexpected newest row %+v", got[0])
	}
	first := got[1]
	if first.Band != events[0].Band {
		t.Errorf("band did not round trip:\n got %+v\nwant %+v", first.Band, events[0].Band)
	}
	if first.Window != w || first.Candles != 4 {
		t.Errorf("unexpected window %+v / candles %d", first.Window, first.Candles)
	}
}

func TestRecordTrends_RestoresProlongation(t *testing.T) {
	r := newTestRecorder(t)
	w := model.Window{XStart: 0, XEnd: 4, YStart: 10, YEnd: 20}
	prolong := func(a, b, conf float64) model.TrendLine {
		return calculator.Prolong(calculator.NewLine(a, b, w, conf), 12, w.YStart)
	}
	band := model.TrendBand{Lower: prolong(0, 1, 40), Middle: prolong(1, 3, 80), Upper: prolong(2, 5, 40), Widened: true}
	if err := r.RecordTrends([]TrendEvent{{Mode: "period", Symbol: "BTCUSDT", Label: "4 hours", At: 4, Window: w, Band: band}}); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := r.RecentTrends("period", 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0].Band != band {
		t.Errorf("prolonged band did not round trip:\n got %+v\nwant %+v", got[0].Band, band)
	}
	if m := got[0].Band.Middle; m.XEnd != 12 || m.FitXEnd != 4 || m.YEnd != 17 {
		t.Errorf("expected middle prolonged to x=12 y=17 fitted to x=4, got %+v", m)
	}
}

func TestRecordTrends_Empty(t *testing.T) {
	if err := newTestRecorder(t).RecordTrends(nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRecordSignal(t *testing.T) {
	r := newTestRecorder(t)
	sig := &model.TrendSignal{
		Strategy:    "swing",
		Symbol:      "BTCUSDT",
		At:          time.UnixMilli(1700000000000),
		LastClose:   101.5,
		TriggerType: model.TriggerManual,
		Periods: []model.PeriodTrend{
			{Period: model.Period{Measure: model.Hours, Value: 4}, Direction: model.Direction{Label: "温和上涨"}, Position: model.InsideBand},
			{Period: model.Period{Measure: model.Days, Value: 1}, Err: errors.New("insufficient data")},
		},
	}
	if err := r.RecordSignal(sig); err != nil {
		t.Fatalf("record signal: %v", err)
	}

	var (
		count   int
		periods string
		at      int64
	)
	if err := r.db.QueryRow(`SELECT COUNT(*), MAX(periods), MAX(at) FROM strategy_signals`).Scan(&count, &periods, &at); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 || at != 1700000000000 {
		t.Errorf("unexpected row: count=%d at=%d", count, at)
	}
	if periods == "" || periods == "null" {
		t.Error("expected period summaries")
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	if err := r.RecordTrends([]TrendEvent{{Mode: "full"}}); err != nil {
		t.Error(err)
	}
	if got, err := r.RecentTrends("full", 1); err != nil || got != nil {
		t.Errorf("expected nothing, got %v, %v", got, err)
	}
}

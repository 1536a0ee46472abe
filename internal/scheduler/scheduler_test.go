package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"TrendChannel/internal/collector"
	"TrendChannel/internal/model"
	"TrendChannel/internal/recorder"
	"TrendChannel/internal/strategy"
	"TrendChannel/internal/trend"
)

const minute = int64(60000)

type fakeSender struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, text)
	return nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

func risingCandles(n int) model.CandleSeries {
	series := make(model.CandleSeries, n)
	for i := range series {
		mid := 100 + 2*float64(i)
		series[i] = model.Candle{Timestamp: 1700000000000 + int64(i)*minute, Open: mid - 1.5, Close: mid + 1.5, High: mid + 2, Low: mid - 2}
	}
	return series
}

func newTestScheduler(t *testing.T, fetcher collector.Fetcher, rec recorder.Recorder) (*Scheduler, *fakeSender) {
	t.Helper()
	cfg := trend.DefaultConfig()
	cfg.IterationsCount = 40
	col := collector.NewCollector("BTCUSDT", 1, nil, fetcher)
	opts := Options{
		Strategy:       strategy.Strategy{Name: "test", Trends: []model.Period{{Measure: model.Hours, Value: 1}}},
		ZigZagLookback: model.Period{Measure: model.Hours, Value: 1},
		ZigZagPieces:   3,
		Prolong:        model.Period{Measure: model.Minutes, Value: 30},
	}
	sender := &fakeSender{}
	return NewScheduler(context.Background(), col, trend.NewEngine(cfg, nil), opts, sender, rec, nil), sender
}

func TestTrendTask_SendsAndRecords(t *testing.T) {
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "trend.db"))
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	defer rec.Close()

	s, sender := newTestScheduler(t, &collector.MockFetcher{Candles: risingCandles(61)}, rec)
	s.RunTrendNow()

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "BTCUSDT") || !strings.Contains(msgs[0], "强势上涨") {
		t.Errorf("unexpected report:\n%s", msgs[0])
	}

	history := s.HandleCommand("/history")
	if !strings.Contains(history, "1 hours") || !strings.Contains(history, "置信度") {
		t.Errorf("expected recorded period in history, got:\n%s", history)
	}
}

func TestTrendTask_CollectFailure(t *testing.T) {
	s, sender := newTestScheduler(t, &collector.MockFetcher{Err: errors.New("exchange down")}, recorder.NewNoopRecorder())
	s.RunTrendNow()

	msgs := sender.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "数据采集失败") || !strings.Contains(msgs[0], "exchange down") {
		t.Errorf("expected collect failure message, got %v", msgs)
	}
}

func TestZigZagTask_FailureBodyEscaped(t *testing.T) {
	fetchErr := errors.New("fetch candles: status 502, body: <html><h1>502 Bad Gateway</h1></html>")
	s, sender := newTestScheduler(t, &collector.MockFetcher{Err: fetchErr}, recorder.NewNoopRecorder())
	s.zigzagTask()

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if strings.Contains(msgs[0], "<html>") || !strings.Contains(msgs[0], "&lt;h1&gt;502 Bad Gateway&lt;/h1&gt;") {
		t.Errorf("expected the response body escaped, got %q", msgs[0])
	}
}

func TestZigZagTask(t *testing.T) {
	s, sender := newTestScheduler(t, &collector.MockFetcher{Candles: risingCandles(61)}, recorder.NewNoopRecorder())
	s.zigzagTask()

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	for _, want := range []string{"segment 1/3", "segment 2/3", "segment 3/3"} {
		if !strings.Contains(msgs[0], want) {
			t.Errorf("report missing %q:\n%s", want, msgs[0])
		}
	}
}

func TestHandleCommand(t *testing.T) {
	s, sender := newTestScheduler(t, &collector.MockFetcher{Candles: risingCandles(61)}, recorder.NewNoopRecorder())

	tests := []struct {
		command string
		reply   string
	}{
		{"/trend", "正在计算趋势通道"},
		{"查看分段", "正在计算分段趋势"},
		{"/period 30 minutes", "30 minutes"},
		{"/period 3 fortnights", "无效的周期单位"},
		{"/period x hours", "无效的周期数值"},
		{"/period", "用法"},
		{"/history", "暂无历史记录"},
		{"hello", "可用命令"},
		{"   ", "可用命令"},
	}
	for _, tt := range tests {
		if got := s.HandleCommand(tt.command); !strings.Contains(got, tt.reply) {
			t.Errorf("%q: expected reply containing %q, got %q", tt.command, tt.reply, got)
		}
	}

	s.Runner.Wait()
	msgs := sender.messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 delivered reports, got %d", len(msgs))
	}
	joined := strings.Join(msgs, "\n")
	if !strings.Contains(joined, "延伸至") {
		t.Errorf("expected the period report to be prolonged:\n%s", joined)
	}
}

func TestRegisterAll_InvalidCron(t *testing.T) {
	s, _ := newTestScheduler(t, &collector.MockFetcher{}, recorder.NewNoopRecorder())
	if err := s.RegisterAll("not a cron", "0 0 * * * *"); err == nil {
		t.Error("expected error for invalid trend cron")
	}
	if err := s.RegisterAll("0 */15 * * * *", "0 0 * * * *"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/collector"
	"TrendChannel/internal/logger"
	"TrendChannel/internal/metrics"
	"TrendChannel/internal/model"
	"TrendChannel/internal/notifier"
	"TrendChannel/internal/recorder"
	"TrendChannel/internal/strategy"
	"TrendChannel/internal/trend"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
)

const sendRetries = 3

// Sender delivers a formatted report.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Options carries the strategy side of the configuration.
type Options struct {
	Strategy       strategy.Strategy
	ZigZagLookback model.Period
	ZigZagPieces   int
	Prolong        model.Period
}

// Scheduler manages all cron tasks and the interactive commands.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Engine    *trend.Engine
	Options   Options
	Notifier  Sender
	Recorder  recorder.Recorder
	Metrics   *metrics.Metrics
	Runner    *trend.Runner[string]
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler. m may be nil.
func NewScheduler(ctx context.Context, col *collector.Collector, engine *trend.Engine, opts Options, sender Sender, rec recorder.Recorder, m *metrics.Metrics) *Scheduler {
	if opts.ZigZagLookback.Value == 0 {
		opts.ZigZagLookback = trend.DefaultZigZagLookback
	}
	if opts.ZigZagPieces == 0 {
		opts.ZigZagPieces = trend.DefaultZigZagPieces
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Engine:    engine,
		Options:   opts,
		Notifier:  sender,
		Recorder:  rec,
		Metrics:   m,
		Runner:    trend.NewRunner[string](m),
		Ctx:       ctx,
	}
}

// RegisterAll registers the strategy trend task and the zig-zag task.
func (s *Scheduler) RegisterAll(trendCron, zigzagCron string) error {
	if _, err := s.Cron.AddFunc(trendCron, s.trendTask); err != nil {
		return fmt.Errorf("register trend task: %w", err)
	}
	if _, err := s.Cron.AddFunc(zigzagCron, s.zigzagTask); err != nil {
		return fmt.Errorf("register zigzag task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.Info("[scheduler] started")
}

// Stop stops the cron scheduler and waits for running commands.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Runner.Wait()
	logger.Info("[scheduler] stopped")
}

// RunTrendNow executes the trend task immediately (RUN_ON_START).
func (s *Scheduler) RunTrendNow() {
	s.trendTask()
}

func (s *Scheduler) trendTask() {
	logger.Info("[scheduler] running trend task", logger.Pair("strategy", s.Options.Strategy.Name))
	s.trySend(s.trendReport(model.TriggerScheduled))
}

func (s *Scheduler) zigzagTask() {
	logger.Info("[scheduler] running zigzag task")
	s.trySend(s.zigzagReport())
}

// trendReport evaluates the strategy on fresh candles, records it and
// returns the message to send.
func (s *Scheduler) trendReport(trigger model.TriggerType) string {
	periods := s.Options.Strategy.Trends
	if len(periods) == 0 {
		periods = strategy.DefaultTrends
	}
	ms, err := s.collect(periods...)
	if err != nil {
		logger.Error("[scheduler] trend collect", logger.Err(err))
		return notifier.FormatFailure("趋势任务数据采集失败", err)
	}

	signal, err := strategy.Evaluate(s.Ctx, s.Engine, s.Options.Strategy, ms.Symbol, ms.Candles, 0)
	if err != nil {
		logger.Error("[scheduler] evaluate strategy", logger.Err(err))
		return notifier.FormatFailure("趋势计算失败", err)
	}
	signal.TriggerType = trigger

	events := make([]recorder.TrendEvent, 0, len(signal.Periods))
	for _, p := range signal.Periods {
		ev := recorder.TrendEvent{
			Mode:    string(trend.ModeMultiPeriod),
			Symbol:  ms.Symbol,
			Label:   p.Period.String(),
			At:      signal.At.UnixMilli(),
			Window:  p.Window,
			Band:    p.Band,
			Candles: len(calculator.Interval(ms.Candles, p.Window.XStart, p.Window.XEnd)),
		}
		if p.Err != nil {
			ev.Error = p.Err.Error()
		} else {
			s.Metrics.SetConfidence(ev.Label, p.Band.Middle.ConfidencePercent)
		}
		events = append(events, ev)
	}
	if err := s.Recorder.RecordTrends(events); err != nil {
		logger.Error("[scheduler] record trends", logger.Err(err))
	}
	if err := s.Recorder.RecordSignal(signal); err != nil {
		logger.Error("[scheduler] record signal", logger.Err(err))
	}
	return notifier.FormatSignalReport(signal)
}

func (s *Scheduler) zigzagReport() string {
	ms, err := s.collect(s.Options.ZigZagLookback)
	if err != nil {
		logger.Error("[scheduler] zigzag collect", logger.Err(err))
		return notifier.FormatFailure("分段任务数据采集失败", err)
	}
	res := s.Engine.Compute(s.Ctx, trend.Request{
		Mode:     trend.ModeZigZag,
		Series:   ms.Candles,
		Lookback: s.Options.ZigZagLookback,
		Pieces:   s.Options.ZigZagPieces,
	})
	s.record(ms.Symbol, res)
	return notifier.FormatZigZagReport(ms.Symbol, res)
}

func (s *Scheduler) periodReport(p model.Period) string {
	ms, err := s.collect(p)
	if err != nil {
		return notifier.FormatFailure("数据采集失败", err)
	}
	req := trend.Request{Mode: trend.ModePeriod, Series: ms.Candles, Period: p}
	if s.Options.Prolong.Value > 0 && len(ms.Candles) > 0 {
		if d, err := calculator.Duration(s.Options.Prolong); err == nil {
			req.ProlongTo = ms.Candles.Last().Timestamp + d.Milliseconds()
		}
	}
	res := s.Engine.Compute(s.Ctx, req)
	s.record(ms.Symbol, res)
	return notifier.FormatTrendResult(ms.Symbol, res)
}

func (s *Scheduler) record(symbol string, res trend.Result) {
	if res.Err != nil {
		return
	}
	events := make([]recorder.TrendEvent, 0, len(res.Outputs))
	for _, o := range res.Outputs {
		ev := recorder.TrendEvent{
			Mode:    string(res.Mode),
			Symbol:  symbol,
			Label:   o.Label,
			At:      res.At,
			Window:  o.Window,
			Band:    o.Band,
			Candles: o.Candles,
		}
		if o.Err != nil {
			ev.Error = o.Err.Error()
		}
		events = append(events, ev)
	}
	if err := s.Recorder.RecordTrends(events); err != nil {
		logger.Error("[scheduler] record trends", logger.Pair("mode", string(res.Mode)), logger.Err(err))
	}
}

// collect fetches enough candles to cover the longest of periods, plus one
// aggregation step so the lookback start is not cut off. The range is aligned
// to the aggregation step so repeated requests share a cache key.
func (s *Scheduler) collect(periods ...model.Period) (*model.MarketSeries, error) {
	step := int64(s.Collector.AggregateMinutes) * time.Minute.Milliseconds()
	now := time.Now().UnixMilli()
	if step > 0 {
		now -= now % step
	}
	from := now
	for _, p := range periods {
		start, err := calculator.LookbackStart(now, p)
		if err != nil {
			return nil, err
		}
		from = min(from, start)
	}
	from -= step
	return s.Collector.Collect(s.Ctx, from, now)
}

// HandleCommand processes a user command and returns an immediate reply.
// Computations run on the Runner; a repeated command supersedes the one
// still in flight and only its report is sent.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch fields[0] {
	case "查看趋势", "/trend":
		s.Runner.Submit("trend", func() string { return s.trendReport(model.TriggerManual) }, s.trySend)
		return "⏳ 正在计算趋势通道..."
	case "查看分段", "/zigzag":
		s.Runner.Submit("zigzag", s.zigzagReport, s.trySend)
		return "⏳ 正在计算分段趋势..."
	case "/period":
		p, err := parsePeriod(fields[1:])
		if err != nil {
			return fmt.Sprintf("❌ %s\n用法: /period 4 hours", html.EscapeString(err.Error()))
		}
		s.Runner.Submit("period", func() string { return s.periodReport(p) }, s.trySend)
		return fmt.Sprintf("⏳ 正在计算 %s 趋势通道...", p)
	case "查看历史", "/history":
		return s.history()
	default:
		return helpText
	}
}

const helpText = "可用命令:\n• 查看趋势 (/trend)\n• 查看分段 (/zigzag)\n• /period 4 hours\n• 查看历史 (/history)"

func parsePeriod(args []string) (model.Period, error) {
	if len(args) != 2 {
		return model.Period{}, errors.New("需要周期数值和单位")
	}
	v, err := cast.ToIntE(args[0])
	if err != nil || v <= 0 {
		return model.Period{}, fmt.Errorf("无效的周期数值 %q", args[0])
	}
	p := model.Period{Measure: model.TimeMeasure(strings.ToLower(args[1])), Value: v}
	if _, err := calculator.Minutes(p); err != nil {
		return model.Period{}, fmt.Errorf("无效的周期单位 %q", args[1])
	}
	return p, nil
}

func (s *Scheduler) history() string {
	events, err := s.Recorder.RecentTrends(string(trend.ModeMultiPeriod), 5)
	if err != nil {
		logger.Error("[scheduler] load history", logger.Err(err))
		return notifier.FormatFailure("读取历史失败", err)
	}
	if len(events) == 0 {
		return "暂无历史记录"
	}
	var b strings.Builder
	b.WriteString("🗂 <b>最近趋势记录</b>\n\n")
	for _, ev := range events {
		at := time.UnixMilli(ev.At).Format("01-02 15:04")
		if ev.Error != "" {
			b.WriteString(fmt.Sprintf("%s %s %s: ❌ %s\n", at, html.EscapeString(ev.Symbol), ev.Label, html.EscapeString(ev.Error)))
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s %s: 角度 %+.1f%% 置信度 %.1f%%\n",
			at, html.EscapeString(ev.Symbol), ev.Label, ev.Band.AnglePercent, ev.Band.Middle.ConfidencePercent))
	}
	return b.String()
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		logger.Error("[scheduler] send notification", logger.Err(err))
	}
}

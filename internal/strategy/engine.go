package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/model"
	"TrendChannel/internal/trend"
)

// Strategy is a named set of lookback periods evaluated together.
type Strategy struct {
	Name   string         `yaml:"name"`
	Trends []model.Period `yaml:"trends"`
}

// DefaultTrends is used when a strategy lists no periods.
var DefaultTrends = []model.Period{{Measure: model.Hours, Value: 4}}

// Directions defines the 5-level slope mapping, ordered by MinAngle.
var Directions = []model.Direction{
	{Label: "强势上涨", MinAngle: 20},
	{Label: "温和上涨", MinAngle: 5},
	{Label: "横盘震荡", MinAngle: -5},
	{Label: "温和下跌", MinAngle: -20},
}

// DefaultDirection is the lowest tier for angles < -20.
var DefaultDirection = model.Direction{Label: "强势下跌", MinAngle: -100}

// mapDirection maps a band angle percent to a Direction.
func mapDirection(anglePercent float64) model.Direction {
	for _, d := range Directions {
		if anglePercent >= d.MinAngle {
			return d
		}
	}
	return DefaultDirection
}

// Evaluate fits every period of s against the candle at at and builds the signal.
// A zero at means the last candle of series.
func Evaluate(ctx context.Context, engine *trend.Engine, s Strategy, symbol string, series model.CandleSeries, at int64) (*model.TrendSignal, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("strategy %s: %w", s.Name, calculator.ErrInsufficientData)
	}
	if at == 0 {
		at = series.Last().Timestamp
	}
	periods := s.Trends
	if len(periods) == 0 {
		periods = DefaultTrends
	}

	// Step a: the candle the signal is anchored to
	anchor := calculator.Interval(series, series.First().Timestamp, at)
	if len(anchor) == 0 {
		return nil, fmt.Errorf("strategy %s: no candle at or before %d: %w", s.Name, at, calculator.ErrInsufficientData)
	}
	last := anchor.Last()

	// Step b: one band per period
	outputs, err := engine.MultiPeriod(ctx, series, at, periods, 0)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", s.Name, err)
	}

	// Step c: classify each band
	signal := &model.TrendSignal{
		Strategy:    s.Name,
		Symbol:      symbol,
		At:          time.UnixMilli(at),
		LastClose:   last.Close,
		TriggerType: model.TriggerScheduled,
	}
	failed := 0
	for i, out := range outputs {
		pt := model.PeriodTrend{Period: periods[i], Window: out.Window, Band: out.Band, Err: out.Err}
		if out.Err != nil && !errors.Is(out.Err, calculator.ErrBandNotWidened) {
			failed++
			signal.Periods = append(signal.Periods, pt)
			continue
		}
		pt.Direction = mapDirection(out.Band.AnglePercent)
		pt.Position = bandPosition(out.Band, out.Window, last)
		if slope, err := calculator.RegressionSlope(calculator.Interval(series, out.Window.XStart, out.Window.XEnd)); err == nil {
			pt.RegressionSlope = slope
		}
		signal.Periods = append(signal.Periods, pt)
	}

	// Step d: warnings
	if failed == len(outputs) {
		signal.WarningMsg = "⚠️ 所有周期数据不足，无法拟合趋势通道"
	} else {
		signal.WarningMsg = breakoutWarning(signal.Periods)
	}
	return signal, nil
}

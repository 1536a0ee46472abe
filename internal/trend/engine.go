package trend

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/logger"
	"TrendChannel/internal/metrics"
	"TrendChannel/internal/model"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Zig-zag defaults: six chunks over the day ending at the reference candle.
var (
	DefaultZigZagLookback = model.Period{Measure: model.Days, Value: 1}
	DefaultZigZagPieces   = 6
)

// Output is one fitted band and the window it was fit within. Err is set
// instead of returned when the output is one entry of a batch.
type Output struct {
	Label   string          `json:"label"`
	Window  model.Window    `json:"window"`
	Band    model.TrendBand `json:"band"`
	Candles int             `json:"candles"`
	Err     error           `json:"-"`
}

// Engine composes the calculator into the pipeline modes. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	cfg     Config
	metrics *metrics.Metrics
	workers int
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(cfg Config, m *metrics.Metrics) *Engine {
	return &Engine{cfg: cfg, metrics: m, workers: runtime.NumCPU()}
}

func (e *Engine) Config() Config { return e.cfg }

// WithConfig returns a copy of the engine using cfg.
func (e *Engine) WithConfig(cfg Config) *Engine {
	c := *e
	c.cfg = cfg
	return &c
}

// FullWindow fits one band over the whole series.
func (e *Engine) FullWindow(series model.CandleSeries) (Output, error) {
	out := Output{Label: string(ModeFull), Candles: len(series)}
	w, err := calculator.SeriesWindow(series)
	if err != nil {
		e.fail(ModeFull, err)
		return out, fmt.Errorf("full window: %w", err)
	}
	out.Window = w
	out.Band, err = e.fit(ModeFull, series, w)
	return out, err
}

// Selection fits the candles between two x-coordinates given in any order,
// then prolongs the band to prolongTo when it lies past the selection.
func (e *Engine) Selection(series model.CandleSeries, x1, x2, prolongTo int64) (Output, error) {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	return e.bounded(ModeSelection, "selection", series, x1, x2, prolongTo)
}

// Period fits the lookback p ending at at.
func (e *Engine) Period(series model.CandleSeries, at int64, p model.Period, prolongTo int64) (Output, error) {
	from, err := calculator.LookbackStart(at, p)
	if err != nil {
		e.fail(ModePeriod, err)
		return Output{Label: p.String()}, err
	}
	return e.bounded(ModePeriod, p.String(), series, from, at, prolongTo)
}

// MultiPeriod fits every period independently against the same reference
// timestamp. Outputs keep the order of periods; a failing period only sets
// its own Err.
func (e *Engine) MultiPeriod(ctx context.Context, series model.CandleSeries, at int64, periods []model.Period, prolongTo int64) ([]Output, error) {
	return e.fanOut(ctx, len(periods), func(i int) Output {
		out, err := e.Period(series, at, periods[i], prolongTo)
		out.Err = err
		return out
	})
}

// ZigZag splits the lookback ending at at into pieces chunks and fits a
// non-prolonged band to each, using each chunk's own price range.
func (e *Engine) ZigZag(ctx context.Context, series model.CandleSeries, at int64, lookback model.Period, pieces int) ([]Output, error) {
	from, err := calculator.LookbackStart(at, lookback)
	if err != nil {
		e.fail(ModeZigZag, err)
		return nil, err
	}
	part := calculator.Interval(series, from, at)
	if len(part) < 2 {
		e.fail(ModeZigZag, calculator.ErrInsufficientData)
		return nil, fmt.Errorf("zigzag over %s: %d candles: %w", lookback, len(part), calculator.ErrInsufficientData)
	}
	segments, err := calculator.Split(part, pieces)
	if err != nil {
		e.fail(ModeZigZag, err)
		return nil, err
	}

	return e.fanOut(ctx, len(segments), func(i int) Output {
		seg := segments[i]
		out := Output{
			Label:   fmt.Sprintf("segment %d/%d", i+1, len(segments)),
			Candles: len(seg.Candles),
		}
		w, err := calculator.SeriesWindow(seg.Candles)
		if err != nil {
			e.fail(ModeZigZag, err)
			out.Err = fmt.Errorf("%s: %w", out.Label, err)
			return out
		}
		out.Window = w
		out.Band, out.Err = e.fit(ModeZigZag, seg.Candles, w)
		return out
	})
}

func (e *Engine) bounded(mode Mode, label string, series model.CandleSeries, xStart, xEnd, prolongTo int64) (Output, error) {
	part := calculator.Interval(series, xStart, xEnd)
	out := Output{Label: label, Candles: len(part)}

	w, err := calculator.BoundedWindow(part, xStart, xEnd)
	if err != nil {
		e.fail(mode, err)
		return out, fmt.Errorf("%s [%d, %d]: %w", label, xStart, xEnd, err)
	}
	out.Window = w
	band, err := e.fit(mode, part, w)
	if err != nil && !errors.Is(err, calculator.ErrBandNotWidened) {
		return out, fmt.Errorf("%s: %w", label, err)
	}
	out.Band = e.prolong(band, w, prolongTo)
	if err != nil {
		return out, fmt.Errorf("%s: %w", label, err)
	}
	return out, nil
}

// fit runs the optimizer and both relaxation walks. When a walk fails the
// returned band still carries the best fit as every line.
func (e *Engine) fit(mode Mode, series model.CandleSeries, w model.Window) (model.TrendBand, error) {
	started := time.Now()
	f, err := calculator.Optimize(series, w, calculator.OptimizeParams{
		IterationsCount: e.cfg.IterationsCount,
		Threshold:       e.cfg.Threshold,
	})
	if err != nil {
		e.fail(mode, err)
		return model.TrendBand{}, err
	}
	e.metrics.ObserveOptimize(time.Since(started), f.Evaluated)

	middle := f.Line(w)
	band := model.TrendBand{
		Lower:        middle,
		Middle:       middle,
		Upper:        middle,
		AnglePercent: f.AnglePercent(),
	}
	if e.cfg.EnableBand {
		p := calculator.WidenParamsFor(f, w, e.cfg.ShiftPercent)
		lower, errDown := calculator.Widen(series, w, f, calculator.Down, p)
		upper, errUp := calculator.Widen(series, w, f, calculator.Up, p)
		if err := multierr.Combine(errDown, errUp); err != nil {
			e.fail(mode, err)
			return band, err
		}
		band.Lower, band.Upper, band.Widened = lower, upper, true
	}

	e.metrics.IncFit(string(mode))
	logger.Debug("[trend] band fitted",
		logger.Pair("mode", string(mode)),
		logger.Pair("candles", len(series)),
		logger.Pair("confidence", f.ConfidencePercent),
		logger.Pair("angle", band.AnglePercent),
		logger.Pair("elapsed", time.Since(started)),
	)
	return band, nil
}

// prolong extends every line of the band to target. Targets inside the fitted
// window are ignored.
func (e *Engine) prolong(band model.TrendBand, w model.Window, target int64) model.TrendBand {
	if !e.cfg.EnableProlongation || target <= w.XEnd {
		return band
	}
	band.Lower = calculator.Prolong(band.Lower, target, w.YStart)
	band.Middle = calculator.Prolong(band.Middle, target, w.YStart)
	band.Upper = calculator.Prolong(band.Upper, target, w.YStart)
	return band
}

func (e *Engine) fanOut(ctx context.Context, n int, fn func(i int) Output) ([]Output, error) {
	outputs := make([]Output, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.workers, 1))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outputs[i] = fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (e *Engine) fail(mode Mode, err error) {
	reason := "other"
	switch {
	case errors.Is(err, calculator.ErrInsufficientData):
		reason = "insufficient_data"
	case errors.Is(err, calculator.ErrBandNotWidened):
		reason = "band_not_widened"
	case errors.Is(err, calculator.ErrUnknownTimeMeasure):
		reason = "unknown_time_measure"
	case errors.Is(err, calculator.ErrInvalidPieces):
		reason = "invalid_pieces"
	}
	e.metrics.IncFitError(string(mode), reason)
	logger.Warn("[trend] computation failed", logger.Pair("mode", string(mode)), logger.Pair("reason", reason), logger.Err(err))
}

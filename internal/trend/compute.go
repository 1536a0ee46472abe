package trend

import (
	"context"
	"fmt"

	"TrendChannel/internal/model"
)

// Mode selects the pipeline a Request runs through.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeSelection   Mode = "selection"
	ModePeriod      Mode = "period"
	ModeMultiPeriod Mode = "multi_period"
	ModeZigZag      Mode = "zigzag"
)

// Request is everything one computation needs. Fields irrelevant to Mode are
// ignored. A zero At means the last candle of Series.
type Request struct {
	Mode      Mode
	Series    model.CandleSeries
	X1, X2    int64
	At        int64
	Period    model.Period
	Periods   []model.Period
	Lookback  model.Period
	Pieces    int
	ProlongTo int64
	Tuning    *Config
}

// Result carries the outputs of a Request. Err is the request-level failure;
// batch modes also report per-output errors.
type Result struct {
	Mode    Mode
	At      int64
	Outputs []Output
	Err     error
}

// Compute runs req to completion. It never mutates req.Series.
func (e *Engine) Compute(ctx context.Context, req Request) Result {
	res := Result{Mode: req.Mode, At: req.At}

	engine := e
	if req.Tuning != nil {
		if err := req.Tuning.Validate(); err != nil {
			res.Err = err
			return res
		}
		engine = e.WithConfig(*req.Tuning)
	}
	if res.At == 0 && len(req.Series) > 0 {
		res.At = req.Series.Last().Timestamp
	}

	var (
		out Output
		err error
	)
	switch req.Mode {
	case ModeFull:
		out, err = engine.FullWindow(req.Series)
		res.Outputs = []Output{out}
	case ModeSelection:
		out, err = engine.Selection(req.Series, req.X1, req.X2, req.ProlongTo)
		res.Outputs = []Output{out}
	case ModePeriod:
		out, err = engine.Period(req.Series, res.At, req.Period, req.ProlongTo)
		res.Outputs = []Output{out}
	case ModeMultiPeriod:
		res.Outputs, err = engine.MultiPeriod(ctx, req.Series, res.At, req.Periods, req.ProlongTo)
	case ModeZigZag:
		lookback := req.Lookback
		if lookback.Value == 0 {
			lookback = DefaultZigZagLookback
		}
		pieces := req.Pieces
		if pieces == 0 {
			pieces = DefaultZigZagPieces
		}
		res.Outputs, err = engine.ZigZag(ctx, req.Series, res.At, lookback, pieces)
	default:
		err = fmt.Errorf("unknown trend mode %q", req.Mode)
	}
	res.Err = err
	return res
}

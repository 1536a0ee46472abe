package calculator

import (
	"fmt"
	"math"

	"TrendChannel/internal/model"
)

// Direction is the side the relaxation walk moves the best fit towards.
type Direction string

const (
	Down Direction = "down"
	Up   Direction = "up"
)

// DefaultShiftPercent lets the walk degrade confidence down to 10% of the best fit.
const DefaultShiftPercent = 90

// WidenParams controls the relaxation walk.
type WidenParams struct {
	Step         float64
	ShiftPercent float64
	MaxSteps     int
}

// ConfidenceLimit returns the confidence the walk must stay strictly above.
func ConfidenceLimit(confidence, shiftPercent float64) float64 {
	return confidence - confidence*shiftPercent/100
}

// MaxWidenSteps bounds the walk so that a line starting anywhere in the search
// range has left every candle body by the time the budget runs out.
func MaxWidenSteps(r SearchRange, w model.Window, step float64) int {
	if step <= 0 {
		return 0
	}
	return int(math.Ceil((r.Span()+w.Height())/step)) + 1
}

// WidenParamsFor derives the walk parameters the pipeline uses: half the grid
// step and a budget covering the search range plus the window height.
func WidenParamsFor(fit Fit, w model.Window, shiftPercent float64) WidenParams {
	step := fit.Range.Step / 2
	return WidenParams{
		Step:         step,
		ShiftPercent: shiftPercent,
		MaxSteps:     MaxWidenSteps(fit.Range, w, step),
	}
}

// Widen shifts the best fit parallel to itself in dir, one step at a time, while
// confidence stays above the limit and at or below the best fit. It returns the
// last line inside those bounds, never the one that left them. Half steps land
// off the optimizer grid and can score above the best fit; the walk stops there.
func Widen(series model.CandleSeries, w model.Window, fit Fit, dir Direction, p WidenParams) (model.TrendLine, error) {
	if err := ValidateWindow(w, series); err != nil {
		return model.TrendLine{}, err
	}

	limit := ConfidenceLimit(fit.ConfidencePercent, p.ShiftPercent)
	a, b, confidence := fit.A, fit.B, fit.ConfidencePercent

	// Nothing to relax: a zero-confidence fit is already at the limit.
	if confidence <= limit {
		return NewLine(a, b, w, confidence), nil
	}
	if p.Step <= 0 || p.MaxSteps <= 0 {
		return model.TrendLine{}, fmt.Errorf("%s walk with step %g: %w", dir, p.Step, ErrBandNotWidened)
	}

	delta := p.Step
	if dir == Down {
		delta = -p.Step
	}

	for i := 0; i < p.MaxSteps; i++ {
		nextA, nextB := a+delta, b+delta
		next := Confidence(Score(nextA, nextB, w, series), len(series))
		if next <= limit || next > fit.ConfidencePercent {
			return NewLine(a, b, w, confidence), nil
		}
		a, b, confidence = nextA, nextB, next
	}
	return model.TrendLine{}, fmt.Errorf("%s walk exceeded %d steps: %w", dir, p.MaxSteps, ErrBandNotWidened)
}

package calculator

import (
	"fmt"

	"TrendChannel/internal/model"
)

// OptimizeParams controls the grid resolution and search range.
type OptimizeParams struct {
	IterationsCount int
	Threshold       float64
}

// SearchRange is the inclusive interval both a and b are searched over.
type SearchRange struct {
	Min  float64
	Max  float64
	Step float64
}

// Span returns Max - Min.
func (r SearchRange) Span() float64 { return r.Max - r.Min }

// Fit is the best-scoring (a, b) pair found on the grid.
type Fit struct {
	A                 float64
	B                 float64
	Count             int
	ConfidencePercent float64
	Range             SearchRange
	Evaluated         int
}

// NewSearchRange returns [height - height*threshold, height*threshold] split into
// iterations steps. The range is not centred on zero unless threshold is 0.5.
func NewSearchRange(w model.Window, p OptimizeParams) SearchRange {
	height := w.Height()
	r := SearchRange{
		Min: height - height*p.Threshold,
		Max: height * p.Threshold,
	}
	if p.IterationsCount > 0 {
		r.Step = (r.Max - r.Min) / float64(p.IterationsCount)
	}
	return r
}

// ValidateWindow fails fast on windows the line formula cannot evaluate.
func ValidateWindow(w model.Window, series model.CandleSeries) error {
	if w.XStart >= w.XEnd {
		return fmt.Errorf("window [%d, %d]: %w", w.XStart, w.XEnd, ErrInsufficientData)
	}
	if len(series) < 2 {
		return fmt.Errorf("%d candles in window: %w", len(series), ErrInsufficientData)
	}
	return nil
}

// Optimize exhaustively searches the (a, b) grid for the line intersecting the most
// candle bodies. Iteration is a-major, b-minor; ties keep the first pair found.
// When nothing scores above zero the result is a=b=0 with zero confidence.
func Optimize(series model.CandleSeries, w model.Window, p OptimizeParams) (Fit, error) {
	if err := ValidateWindow(w, series); err != nil {
		return Fit{}, err
	}
	if p.IterationsCount <= 0 {
		return Fit{}, fmt.Errorf("iterations count %d must be positive", p.IterationsCount)
	}

	r := NewSearchRange(w, p)
	fit := Fit{Range: r}
	if r.Max < r.Min {
		return fit, nil
	}

	// A flat window collapses the grid to a single point.
	points := p.IterationsCount
	if r.Step == 0 {
		points = 0
	}

	for i := 0; i <= points; i++ {
		a := r.Min + float64(i)*r.Step
		for j := 0; j <= points; j++ {
			b := r.Min + float64(j)*r.Step
			count := Score(a, b, w, series)
			fit.Evaluated++
			if count > fit.Count {
				fit.Count = count
				fit.A = a
				fit.B = b
			}
		}
	}

	fit.ConfidencePercent = Confidence(fit.Count, len(series))
	return fit, nil
}

// AnglePercent normalises the fitted slope by the search span.
func (f Fit) AnglePercent() float64 {
	span := f.Range.Span()
	if span == 0 {
		return 0
	}
	return (f.B - f.A) * 100 / span
}

// Line returns the un-widened best-fit line.
func (f Fit) Line(w model.Window) model.TrendLine {
	return NewLine(f.A, f.B, w, f.ConfidencePercent)
}

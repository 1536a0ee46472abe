package calculator

import "TrendChannel/internal/model"

// LineValue evaluates the line through (xStart, yRef+a) and (xEnd, yRef+b) at x.
// x may lie outside [xStart, xEnd]. Callers must reject xStart == xEnd.
func LineValue(a, b float64, xStart, xEnd int64, yRef float64, x int64) float64 {
	t := float64(x-xStart) / float64(xEnd-xStart)
	return yRef + a + t*(b-a)
}

// Score counts the candles whose body [min(open,close), max(open,close)]
// contains the line value at the candle timestamp. yRef is w.YStart.
func Score(a, b float64, w model.Window, series model.CandleSeries) int {
	count := 0
	for _, c := range series {
		y := LineValue(a, b, w.XStart, w.XEnd, w.YStart, c.Timestamp)
		if y >= c.BodyLow() && y <= c.BodyHigh() {
			count++
		}
	}
	return count
}

// Confidence converts an intersection count into a percentage of the series length.
func Confidence(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// NewLine builds the TrendLine for offsets a, b fitted within w.
func NewLine(a, b float64, w model.Window, confidence float64) model.TrendLine {
	return model.TrendLine{
		A:                 a,
		B:                 b,
		XStart:            w.XStart,
		XEnd:              w.XEnd,
		FitXEnd:           w.XEnd,
		YStart:            w.YStart + a,
		YEnd:              w.YStart + b,
		ConfidencePercent: confidence,
	}
}

// Prolong extrapolates line to target along its fitted slope without refitting.
// A, B and XStart are preserved; XEnd becomes target.
func Prolong(line model.TrendLine, target int64, yRef float64) model.TrendLine {
	fitXEnd := line.FitXEnd
	if fitXEnd == 0 {
		fitXEnd = line.XEnd
	}
	out := line
	out.FitXEnd = fitXEnd
	out.XEnd = target
	out.YEnd = LineValue(line.A, line.B, line.XStart, fitXEnd, yRef, target)
	return out
}

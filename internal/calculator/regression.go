package calculator

import (
	"fmt"

	"TrendChannel/internal/model"

	"github.com/markcheno/go-talib"
)

// RegressionSlope returns the least-squares slope of closes per candle over the
// whole series. It is a cross-check for the grid fit, not part of it.
func RegressionSlope(series model.CandleSeries) (float64, error) {
	if len(series) < 2 {
		return 0, fmt.Errorf("regression slope: %w", ErrInsufficientData)
	}
	closes := series.Closes()
	slopes := talib.LinearRegSlope(closes, len(closes))
	return slopes[len(slopes)-1], nil
}

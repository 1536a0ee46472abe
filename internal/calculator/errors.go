package calculator

import "errors"

var (
	// ErrInsufficientData is returned when a window is degenerate (xStart >= xEnd)
	// or holds fewer than two candles.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrBandNotWidened is returned when the relaxation walk cannot degrade
	// confidence within its step budget.
	ErrBandNotWidened = errors.New("band could not be widened")

	// ErrInvalidPieces is returned when a series is split into fewer than one piece.
	ErrInvalidPieces = errors.New("pieces count must be at least 1")

	// ErrUnknownTimeMeasure is returned for a lookback unit outside the fixed table.
	ErrUnknownTimeMeasure = errors.New("unknown time measure")
)

package calculator

import (
	"fmt"

	"TrendChannel/internal/model"
)

// Split partitions series into contiguous segments of ceil(len/pieces) candles,
// counted back from the end. A shorter remainder, if any, becomes the first segment.
// Concatenating the segments reproduces series exactly.
func Split(series model.CandleSeries, pieces int) ([]model.Segment, error) {
	if pieces < 1 {
		return nil, fmt.Errorf("split into %d: %w", pieces, ErrInvalidPieces)
	}
	n := len(series)
	if n == 0 {
		return nil, nil
	}
	portion := (n + pieces - 1) / pieces

	count := (n + portion - 1) / portion
	segments := make([]model.Segment, count)
	end := n
	for i := count - 1; i >= 0; i-- {
		start := end - portion
		if start < 0 {
			start = 0
		}
		part := series[start:end:end]
		segments[i] = model.Segment{
			From:    part.First().Timestamp,
			To:      part.Last().Timestamp,
			Candles: part,
		}
		end = start
	}
	return segments, nil
}

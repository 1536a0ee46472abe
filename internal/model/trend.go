package model

import "fmt"

// Window is the time/price bounding box a trend is fit within.
// XStart < XEnd is required; YStart/YEnd are not ordered.
type Window struct {
	XStart int64   `json:"xStart"`
	XEnd   int64   `json:"xEnd"`
	YStart float64 `json:"yStart"`
	YEnd   float64 `json:"yEnd"`
}

// Height returns |YEnd - YStart|.
func (w Window) Height() float64 {
	if w.YEnd > w.YStart {
		return w.YEnd - w.YStart
	}
	return w.YStart - w.YEnd
}

// TrendLine is the segment from (XStart, YStart) to (XEnd, YEnd) where
// YStart = yRef + A and the slope is fixed by A, B against FitXEnd.
// FitXEnd equals XEnd until the line is prolonged.
type TrendLine struct {
	A                 float64 `json:"a"`
	B                 float64 `json:"b"`
	XStart            int64   `json:"xStart"`
	XEnd              int64   `json:"xEnd"`
	FitXEnd           int64   `json:"fitXEnd"`
	YStart            float64 `json:"yStart"`
	YEnd              float64 `json:"yEnd"`
	ConfidencePercent float64 `json:"confidencePercent"`
}

// TrendBand brackets the best fit with the two widened lines.
// When Widened is false, Lower and Upper are copies of Middle.
type TrendBand struct {
	Lower        TrendLine `json:"lower"`
	Middle       TrendLine `json:"middle"`
	Upper        TrendLine `json:"upper"`
	AnglePercent float64   `json:"anglePercent"`
	Widened      bool      `json:"widened"`
}

// Lines returns the band lines in lower, middle, upper order.
func (b TrendBand) Lines() []TrendLine {
	if !b.Widened {
		return []TrendLine{b.Middle}
	}
	return []TrendLine{b.Lower, b.Middle, b.Upper}
}

// Segment is a contiguous sub-sequence of a CandleSeries.
type Segment struct {
	From    int64        `json:"from"`
	To      int64        `json:"to"`
	Candles CandleSeries `json:"candles"`
}

// TimeMeasure names a lookback unit.
type TimeMeasure string

const (
	Minutes TimeMeasure = "minutes"
	Hours   TimeMeasure = "hours"
	Days    TimeMeasure = "days"
	Weeks   TimeMeasure = "weeks"
	Months  TimeMeasure = "months"
)

// Period is a lookback spec such as {days, 3}.
type Period struct {
	Measure TimeMeasure `json:"measure" yaml:"measure"`
	Value   int         `json:"value" yaml:"value"`
}

func (p Period) String() string {
	return fmt.Sprintf("%d %s", p.Value, p.Measure)
}

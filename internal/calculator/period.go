package calculator

import (
	"fmt"
	"time"

	"TrendChannel/internal/model"
)

// minutesPerUnit is a fixed, calendar-unaware table; a month is always 31 days.
var minutesPerUnit = map[model.TimeMeasure]int64{
	model.Minutes: 1,
	model.Hours:   60,
	model.Days:    60 * 24,
	model.Weeks:   60 * 24 * 7,
	model.Months:  60 * 24 * 31,
}

// Minutes converts a lookback period to minutes.
func Minutes(p model.Period) (int64, error) {
	unit, ok := minutesPerUnit[p.Measure]
	if !ok {
		return 0, fmt.Errorf("%q: %w", p.Measure, ErrUnknownTimeMeasure)
	}
	return unit * int64(p.Value), nil
}

// Duration converts a lookback period to a time.Duration.
func Duration(p model.Period) (time.Duration, error) {
	m, err := Minutes(p)
	if err != nil {
		return 0, err
	}
	return time.Duration(m) * time.Minute, nil
}

// LookbackStart returns the millisecond timestamp p before at.
func LookbackStart(at int64, p model.Period) (int64, error) {
	m, err := Minutes(p)
	if err != nil {
		return 0, err
	}
	return at - m*60*1000, nil
}

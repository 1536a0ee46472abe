package model

import "time"

// TriggerType indicates what triggered the evaluation.
type TriggerType string

const (
	TriggerScheduled TriggerType = "SCHEDULED"
	TriggerZigZag    TriggerType = "ZIGZAG"
	TriggerManual    TriggerType = "MANUAL"
)

// Direction maps a band slope to a trend label.
type Direction struct {
	Label    string
	MinAngle float64
}

// BandPosition locates a price relative to a band.
type BandPosition string

const (
	BelowBand  BandPosition = "BELOW"
	InsideBand BandPosition = "INSIDE"
	AboveBand  BandPosition = "ABOVE"
)

// PeriodTrend is the evaluation of one strategy period.
type PeriodTrend struct {
	Period          Period
	Window          Window
	Band            TrendBand
	Direction       Direction
	Position        BandPosition
	RegressionSlope float64
	Err             error
}

// TrendSignal is the final output of the strategy evaluation.
type TrendSignal struct {
	Strategy    string
	Symbol      string
	At          time.Time
	LastClose   float64
	Periods     []PeriodTrend
	TriggerType TriggerType
	WarningMsg  string
}

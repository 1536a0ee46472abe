package recorder

import "TrendChannel/internal/model"

// TrendEvent is one fitted band as persisted.
type TrendEvent struct {
	Mode    string
	Symbol  string
	Label   string
	At      int64 // reference timestamp in ms
	Window  model.Window
	Band    model.TrendBand
	Candles int
	Error   string
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordTrends(events []TrendEvent) error
	RecordSignal(sig *model.TrendSignal) error
	RecentTrends(mode string, limit int) ([]TrendEvent, error)
	Close() error
}

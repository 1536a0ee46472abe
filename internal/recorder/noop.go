package recorder

import "TrendChannel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrends(_ []TrendEvent) error                  { return nil }
func (n *NoopRecorder) RecordSignal(_ *model.TrendSignal) error            { return nil }
func (n *NoopRecorder) RecentTrends(_ string, _ int) ([]TrendEvent, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                       { return nil }

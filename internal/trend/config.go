package trend

import (
	"fmt"

	"go.uber.org/multierr"
)

// Config parameterises every pipeline mode.
type Config struct {
	IterationsCount    int     `yaml:"iterations_count"`
	Threshold          float64 `yaml:"threshold"`
	ShiftPercent       float64 `yaml:"shift_percent"`
	EnableBand         bool    `yaml:"enable_band"`
	EnableProlongation bool    `yaml:"enable_prolongation"`
}

// DefaultConfig is the band + prolongation variant.
func DefaultConfig() Config {
	return Config{
		IterationsCount:    200,
		Threshold:          1,
		ShiftPercent:       90,
		EnableBand:         true,
		EnableProlongation: true,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var err error
	if c.IterationsCount <= 0 {
		err = multierr.Append(err, fmt.Errorf("iterations_count must be positive, got %d", c.IterationsCount))
	}
	if c.Threshold <= 0 {
		err = multierr.Append(err, fmt.Errorf("threshold must be positive, got %g", c.Threshold))
	}
	if c.ShiftPercent < 0 || c.ShiftPercent > 100 {
		err = multierr.Append(err, fmt.Errorf("shift_percent must be within [0, 100], got %g", c.ShiftPercent))
	}
	if err != nil {
		return fmt.Errorf("invalid trend config: %w", err)
	}
	return nil
}

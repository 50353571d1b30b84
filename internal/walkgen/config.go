// Package walkgen drives a running tracker with a synthesized walk and
// verifies the step count it reports.
package walkgen

import (
	"errors"
	"fmt"
	"time"
)

// Config holds configuration for a walk run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Steps     int           // Footfalls to synthesize
	Cadence   float64       // Steps per second
	BatchSize int           // Readings per POST /samples
	Timeout   time.Duration // HTTP request timeout
	Seed      int64         // Noise seed; 0 seeds from the clock
	Reset     bool          // Reset the session before walking
	Output    string        // Optional file receiving the generated trace
}

// Stats holds run statistics.
type Stats struct {
	Readings   int
	Batches    int
	Duplicates int
	Retries    int
	StepsSent  int
	StepsSeen  uint64
	StartTime  time.Time
	Duration   time.Duration
}

// Limits of the synthesized walk.
const (
	sampleInterval = 100 * time.Millisecond
	maxCadence     = 3.5
)

var errInvalidConfig = errors.New("invalid walk config")

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: missing url", errInvalidConfig)
	case c.Steps <= 0:
		return fmt.Errorf("%w: steps must be positive", errInvalidConfig)
	case c.Cadence <= 0 || c.Cadence > maxCadence:
		return fmt.Errorf("%w: cadence must be within (0, %.1f]", errInvalidConfig, maxCadence)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", errInvalidConfig)
	}
	return nil
}

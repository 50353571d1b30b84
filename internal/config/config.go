// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/stride/internal/domain/activity"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	DailyGoal         uint64 `koanf:"daily_goal"`
	MilestoneInterval uint64 `koanf:"milestone_interval"`

	// StepThreshold is the jerk magnitude a sample must exceed to count as a step.
	StepThreshold     float64 `koanf:"step_threshold"`
	MinStepIntervalMS int     `koanf:"min_step_interval_ms"`

	// DistanceProfile selects meters per step: "sensor" (0.8) or "legacy" (2.0).
	// DistancePerStepM overrides it when positive.
	DistanceProfile  string  `koanf:"distance_profile"`
	DistancePerStepM float64 `koanf:"distance_per_step_m"`
	CaloriesPerStep  float64 `koanf:"calories_per_step"`

	SimulationProbability float64 `koanf:"simulation_probability"`
	SensorHeartRateMin    uint32  `koanf:"sensor_heart_rate_min"`
	SimulatedHeartRateMin uint32  `koanf:"simulated_heart_rate_min"`
	HeartRateMax          uint32  `koanf:"heart_rate_max"`

	TickIntervalMS int `koanf:"tick_interval_ms"`

	// Seed drives heart-rate and simulation randomness; 0 seeds from the clock.
	Seed int64 `koanf:"seed"`

	// Simulate starts the session on the simulation source.
	Simulate bool `koanf:"simulate"`

	// SampleQueueSize bounds the in-memory reading queue.
	SampleQueueSize int `koanf:"sample_queue_size"`

	// MaxBatchSize caps the readings accepted in one POST /samples.
	MaxBatchSize int `koanf:"max_batch_size"`

	// DedupeSize sets how many batch IDs are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// EventHistory sets how many events GET /events returns.
	EventHistory int `koanf:"event_history"`

	// Locale formats numbers in announcements, e.g. "en" or "de".
	Locale string `koanf:"locale"`

	// RedisAddr enables event publishing over Redis pub/sub when set.
	RedisAddr    string `koanf:"redis_addr"`
	RedisChannel string `koanf:"redis_channel"`

	// AllowedOrigins is a comma separated list of browser origins allowed
	// to open the event stream; "*" allows any.
	AllowedOrigins string `koanf:"allowed_origins"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		DailyGoal:             activity.DefaultDailyGoal,
		MilestoneInterval:     1000,
		StepThreshold:         10.0,
		MinStepIntervalMS:     250,
		DistanceProfile:       activity.ProfileSensor,
		CaloriesPerStep:       activity.DefaultCaloriesPerStep,
		SimulationProbability: 0.3,
		SensorHeartRateMin:    activity.DefaultSensorHeartRateMin,
		SimulatedHeartRateMin: activity.DefaultSimulatedHeartRateMin,
		HeartRateMax:          activity.DefaultHeartRateMax,
		TickIntervalMS:        1000,
		SampleQueueSize:       10_000,
		MaxBatchSize:          1_000,
		DedupeSize:            50_000,
		EventHistory:          100,
		Locale:                "en",
		RedisChannel:          "stride:events",
	}
}

// Origins splits AllowedOrigins into its entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// MinStepInterval returns MinStepIntervalMS as a duration.
func (c *Config) MinStepInterval() time.Duration {
	return time.Duration(c.MinStepIntervalMS) * time.Millisecond
}

// TickInterval returns TickIntervalMS as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// DistancePerStep resolves the meters added per step.
func (c *Config) DistancePerStep() (float64, error) {
	if c.DistancePerStepM > 0 {
		return c.DistancePerStepM, nil
	}
	d, ok := activity.DistanceForProfile(c.DistanceProfile)
	if !ok {
		return 0, fmt.Errorf("%w: unknown distance_profile %q", ErrInvalidConfig, c.DistanceProfile)
	}
	return d, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DailyGoal == 0:
		return fmt.Errorf("%w: daily_goal must be positive", ErrInvalidConfig)
	case c.MilestoneInterval == 0:
		return fmt.Errorf("%w: milestone_interval must be positive", ErrInvalidConfig)
	case c.StepThreshold <= 0:
		return fmt.Errorf("%w: step_threshold must be positive", ErrInvalidConfig)
	case c.MinStepIntervalMS <= 0:
		return fmt.Errorf("%w: min_step_interval_ms must be positive", ErrInvalidConfig)
	case c.TickIntervalMS <= 0:
		return fmt.Errorf("%w: tick_interval_ms must be positive", ErrInvalidConfig)
	case c.SimulationProbability < 0 || c.SimulationProbability > 1:
		return fmt.Errorf("%w: simulation_probability must be within [0,1]", ErrInvalidConfig)
	case c.CaloriesPerStep < 0:
		return fmt.Errorf("%w: calories_per_step must not be negative", ErrInvalidConfig)
	case c.SensorHeartRateMin >= c.HeartRateMax || c.SimulatedHeartRateMin >= c.HeartRateMax:
		return fmt.Errorf("%w: heart rate floors must be below heart_rate_max", ErrInvalidConfig)
	case c.SampleQueueSize <= 0:
		return fmt.Errorf("%w: sample_queue_size must be positive", ErrInvalidConfig)
	case c.MaxBatchSize <= 0 || c.MaxBatchSize > c.SampleQueueSize:
		return fmt.Errorf("%w: max_batch_size must be within [1, sample_queue_size]", ErrInvalidConfig)
	}
	if _, err := c.DistancePerStep(); err != nil {
		return err
	}
	return nil
}

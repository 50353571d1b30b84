package activity

import (
	"math/rand"
)

// Accumulator defaults.
const (
	DefaultDailyGoal             = 10000
	DefaultCaloriesPerStep       = 0.05
	DefaultSensorHeartRateMin    = 70
	DefaultSimulatedHeartRateMin = 75
	DefaultHeartRateMax          = 85
)

// Per-step distance of the two known walking profiles, in meters.
const (
	SensorDistancePerStep = 0.8
	LegacyDistancePerStep = 2.0
)

// Profile names accepted by DistanceForProfile.
const (
	ProfileSensor = "sensor"
	ProfileLegacy = "legacy"
)

// DistanceForProfile maps a profile name to meters per step.
func DistanceForProfile(name string) (float64, bool) {
	switch name {
	case ProfileSensor:
		return SensorDistancePerStep, true
	case ProfileLegacy:
		return LegacyDistancePerStep, true
	}
	return 0, false
}

// Option applies a configuration option to the Accumulator.
type Option func(*Accumulator)

// WithDailyGoal sets the step cap.
func WithDailyGoal(goal uint64) Option {
	return func(a *Accumulator) {
		if goal > 0 {
			a.dailyGoal = goal
		}
	}
}

// WithDistancePerStep sets meters added per step event.
func WithDistancePerStep(meters float64) Option {
	return func(a *Accumulator) {
		if meters > 0 {
			a.distancePerStep = meters
		}
	}
}

// WithCaloriesPerStep sets calories added per step event.
func WithCaloriesPerStep(kcal float64) Option {
	return func(a *Accumulator) {
		if kcal >= 0 {
			a.caloriesPerStep = kcal
		}
	}
}

// WithHeartRateRange sets the lower bounds for sensor and simulated
// sessions and the shared exclusive upper bound.
func WithHeartRateRange(sensorMin, simulatedMin, maxBpm uint32) Option {
	return func(a *Accumulator) {
		if sensorMin < maxBpm && simulatedMin < maxBpm {
			a.sensorHRMin = sensorMin
			a.simulatedHRMin = simulatedMin
			a.hrMax = maxBpm
		}
	}
}

// WithRand injects the generator used for heart-rate resampling.
func WithRand(r *rand.Rand) Option {
	return func(a *Accumulator) {
		if r != nil {
			a.rng = r
		}
	}
}

// Accumulator applies step events and clock ticks to Metrics.
// It is not safe for concurrent use; the session engine serializes access.
type Accumulator struct {
	m Metrics

	dailyGoal       uint64
	distancePerStep float64
	caloriesPerStep float64
	sensorHRMin     uint32
	simulatedHRMin  uint32
	hrMax           uint32
	rng             *rand.Rand
}

// NewAccumulator creates an Accumulator with the sensor walking profile.
func NewAccumulator(opts ...Option) *Accumulator {
	a := &Accumulator{
		dailyGoal:       DefaultDailyGoal,
		distancePerStep: SensorDistancePerStep,
		caloriesPerStep: DefaultCaloriesPerStep,
		sensorHRMin:     DefaultSensorHeartRateMin,
		simulatedHRMin:  DefaultSimulatedHeartRateMin,
		hrMax:           DefaultHeartRateMax,
		rng:             rand.New(rand.NewSource(42)), //nolint:gosec // deterministic default for reproducible sessions
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnStepEvent applies one footfall. Steps stop at the daily goal while
// distance, calories and active time keep growing. It reports whether the
// step counter advanced.
func (a *Accumulator) OnStepEvent() bool {
	counted := false
	if a.m.Steps < a.dailyGoal {
		a.m.Steps++
		counted = true
	}
	a.m.DistanceMeters += a.distancePerStep
	a.m.Calories += a.caloriesPerStep
	a.m.ActiveSeconds++
	return counted
}

// OnClockTick advances elapsed time and resamples the heart rate for src.
func (a *Accumulator) OnClockTick(src Source) {
	a.m.ElapsedSeconds++
	floor := a.sensorHRMin
	if src == SourceSimulated {
		floor = a.simulatedHRMin
	}
	a.m.HeartRateBpm = floor + uint32(a.rng.Intn(int(a.hrMax-floor)))
}

// Reset zeroes every counter at once.
func (a *Accumulator) Reset() {
	a.m = Metrics{}
}

// Metrics returns a copy of the raw counters.
func (a *Accumulator) Metrics() Metrics { return a.m }

// Snapshot returns the counters with derived values for src.
func (a *Accumulator) Snapshot(src Source) Snapshot {
	return newSnapshot(a.m, a.dailyGoal, src)
}

// DailyGoal returns the step cap.
func (a *Accumulator) DailyGoal() uint64 { return a.dailyGoal }

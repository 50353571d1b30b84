package service

import (
	"math/rand"
	"time"

	"github.com/okian/stride/internal/config"
	"github.com/okian/stride/internal/domain/activity"
	"github.com/okian/stride/internal/domain/announce"
	"github.com/okian/stride/internal/domain/motion"
	"github.com/okian/stride/internal/domain/session"
	"github.com/okian/stride/internal/domain/simulation"
)

// OptionsFromConfig translates cfg into service options. Redis is not
// dialed here; callers add WithRedis once a client is connected.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	distance, err := cfg.DistancePerStep()
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	engineOpts := []session.Option{
		session.WithAccumulator(activity.NewAccumulator(
			activity.WithDailyGoal(cfg.DailyGoal),
			activity.WithDistancePerStep(distance),
			activity.WithCaloriesPerStep(cfg.CaloriesPerStep),
			activity.WithHeartRateRange(cfg.SensorHeartRateMin, cfg.SimulatedHeartRateMin, cfg.HeartRateMax),
			activity.WithRand(rand.New(rand.NewSource(seed))), //nolint:gosec // heart-rate jitter is not security sensitive
		)),
		session.WithDetector(motion.NewStepDetector(
			motion.WithThreshold(cfg.StepThreshold),
			motion.WithMinInterval(cfg.MinStepInterval()),
		)),
		session.WithSimulation(simulation.NewSource(
			simulation.WithProbability(cfg.SimulationProbability),
			simulation.WithSeed(seed+1),
		)),
		session.WithMilestoneInterval(cfg.MilestoneInterval),
		session.WithTickInterval(cfg.TickInterval()),
		session.WithComposer(announce.NewComposerString(cfg.Locale)),
	}
	if cfg.Simulate {
		engineOpts = append(engineOpts, session.WithSimulatedSource())
	}

	return []Option{
		WithQueueSize(cfg.SampleQueueSize),
		WithMaxBatchSize(cfg.MaxBatchSize),
		WithDedupeSize(cfg.DedupeSize),
		WithEventHistory(cfg.EventHistory),
		WithEngineOptions(engineOpts...),
	}, nil
}

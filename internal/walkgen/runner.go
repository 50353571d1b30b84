package walkgen

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/okian/stride/pkg/logger"
)

const (
	pollInterval  = 50 * time.Millisecond
	settleTimeout = 30 * time.Second
	filePerm      = 0o600
)

// Run walks cfg.Steps through the service at cfg.BaseURL and checks that the
// session counts them, capped at its daily goal.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("walkgen")
	stats := &Stats{StartTime: time.Now()}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	c := newClient(cfg.BaseURL, cfg.Timeout)

	if err := c.health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	if cfg.Reset {
		if err := c.command(ctx, "reset"); err != nil {
			return nil, err
		}
	}
	before, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.command(ctx, "start"); err != nil {
		return nil, err
	}

	readings := Generate(rand.New(rand.NewSource(seed)), time.Now(), cfg.Steps, cfg.Cadence) //nolint:gosec // synthetic noise
	stats.Readings = len(readings)
	stats.StepsSent = cfg.Steps
	if cfg.Output != "" {
		if err := saveTrace(cfg.Output, readings); err != nil {
			log.Warn(ctx, "failed to save trace", logger.Error(err))
		}
	}

	log.Info(ctx, "walking",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("steps", cfg.Steps),
		logger.Float64("cadence", cfg.Cadence),
		logger.Int("readings", len(readings)),
		logger.String("session_id", before.SessionID),
	)

	// Batches go out in order; the detector needs readings in time order.
	for _, b := range Split(readings, cfg.BatchSize) {
		ack, retries, err := c.submit(ctx, b)
		stats.Retries += retries
		if err != nil {
			return stats, fmt.Errorf("submit batch %s: %w", b.BatchID, err)
		}
		stats.Batches++
		if ack.Duplicate {
			stats.Duplicates++
		}
	}

	want := min(before.Snapshot.Steps+uint64(cfg.Steps), before.Snapshot.DailyGoal)
	seen, err := waitForSteps(ctx, c, want)
	stats.StepsSeen = seen
	stats.Duration = time.Since(stats.StartTime)
	if err != nil {
		return stats, err
	}
	if err := c.command(ctx, "pause"); err != nil {
		return stats, err
	}

	log.Info(ctx, "walk verified",
		logger.Uint64("steps", seen),
		logger.Int("batches", stats.Batches),
		logger.Int("retries", stats.Retries),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// waitForSteps polls the session until it reports want steps.
func waitForSteps(ctx context.Context, c *client, want uint64) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var seen uint64
	for {
		v, err := c.session(ctx)
		if err == nil {
			seen = v.Snapshot.Steps
			if seen >= want {
				if seen > want {
					return seen, fmt.Errorf("session counted %d steps, expected %d", seen, want)
				}
				return seen, nil
			}
		}
		select {
		case <-ctx.Done():
			return seen, fmt.Errorf("session reached %d of %d steps: %w", seen, want, ctx.Err())
		case <-ticker.C:
		}
	}
}

func saveTrace(path string, readings any) error {
	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

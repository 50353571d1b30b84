// Package simulation synthesizes step events when no motion sensor exists.
package simulation

import "math/rand"

// DefaultProbability is the chance of one step per clock tick.
const DefaultProbability = 0.3

// Option applies a configuration option to the Source.
type Option func(*Source)

// WithProbability sets the per-tick step probability, clamped to [0, 1].
func WithProbability(p float64) Option {
	return func(s *Source) {
		switch {
		case p < 0:
			s.p = 0
		case p > 1:
			s.p = 1
		default:
			s.p = p
		}
	}
}

// WithSeed replaces the generator with one seeded by seed.
func WithSeed(seed int64) Option {
	return func(s *Source) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // simulated steps, not security sensitive
	}
}

// WithRand injects a generator.
func WithRand(r *rand.Rand) Option {
	return func(s *Source) {
		if r != nil {
			s.rng = r
		}
	}
}

// Source decides once per tick whether a step happened.
// It is not safe for concurrent use.
type Source struct {
	p   float64
	rng *rand.Rand
}

// NewSource creates a Source with DefaultProbability and a fixed seed.
func NewSource(opts ...Option) *Source {
	s := &Source{
		p:   DefaultProbability,
		rng: rand.New(rand.NewSource(42)), //nolint:gosec // deterministic default
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick reports whether this tick produced a step.
func (s *Source) Tick() bool {
	return s.rng.Float64() < s.p
}

// Probability returns the per-tick step probability.
func (s *Source) Probability() float64 { return s.p }

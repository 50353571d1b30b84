package motion

import "time"

// Detection defaults.
const (
	DefaultStepThreshold   = 10.0
	DefaultMinStepInterval = 250 * time.Millisecond
)

// Option applies a configuration option to the StepDetector.
type Option func(*StepDetector)

// WithThreshold sets the magnitude a sample must exceed to count as a step.
func WithThreshold(threshold float64) Option {
	return func(d *StepDetector) {
		if threshold > 0 {
			d.threshold = threshold
		}
	}
}

// WithMinInterval sets the refractory period between two steps.
func WithMinInterval(interval time.Duration) Option {
	return func(d *StepDetector) {
		if interval > 0 {
			d.minInterval = interval
		}
	}
}

// StepDetector emits a step when the jerk magnitude exceeds the threshold
// and the refractory period since the previous step has elapsed.
// It is not safe for concurrent use.
type StepDetector struct {
	threshold   float64
	minInterval time.Duration

	lastStep time.Time
	stepped  bool
}

// NewStepDetector creates a detector with the default threshold and interval.
func NewStepDetector(opts ...Option) *StepDetector {
	d := &StepDetector{
		threshold:   DefaultStepThreshold,
		minInterval: DefaultMinStepInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe feeds one (magnitude, timestamp) pair and reports whether it is a step.
func (d *StepDetector) Observe(magnitude float64, at time.Time) bool {
	if magnitude <= d.threshold {
		return false
	}
	if d.stepped && at.Sub(d.lastStep) <= d.minInterval {
		return false
	}
	d.lastStep = at
	d.stepped = true
	return true
}

// Reset forgets the last step time.
func (d *StepDetector) Reset() {
	d.lastStep = time.Time{}
	d.stepped = false
}

// Threshold returns the configured magnitude threshold.
func (d *StepDetector) Threshold() float64 { return d.threshold }

// MinInterval returns the configured refractory period.
func (d *StepDetector) MinInterval() time.Duration { return d.minInterval }

// Pipeline owns the previous sample for the differencer and feeds the
// detector. The first sample after construction or Reset is differenced
// against the zero vector.
type Pipeline struct {
	detector *StepDetector
	prev     Sample
}

// NewPipeline wraps d.
func NewPipeline(d *StepDetector) *Pipeline {
	if d == nil {
		d = NewStepDetector()
	}
	return &Pipeline{detector: d}
}

// Feed runs s through the differencer and detector. It returns the jerk
// magnitude and whether a step was detected.
func (p *Pipeline) Feed(s Sample) (float64, bool) {
	mag := JerkMagnitude(s, p.prev)
	p.prev = s
	return mag, p.detector.Observe(mag, s.At)
}

// Reset clears the retained sample and the detector state.
func (p *Pipeline) Reset() {
	p.prev = Sample{}
	p.detector.Reset()
}

// Detector exposes the wrapped detector.
func (p *Pipeline) Detector() *StepDetector { return p.detector }

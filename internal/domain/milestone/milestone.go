// Package milestone raises progress notifications at fixed step multiples.
package milestone

// DefaultInterval is the step multiple that triggers a milestone.
const DefaultInterval = 1000

// Milestone is a reached step multiple.
type Milestone struct {
	Steps         uint64
	PercentOfGoal float64
}

// Emitter checks the step counter after each applied step event.
// It is not safe for concurrent use.
type Emitter struct {
	interval  uint64
	lastFired uint64
}

// NewEmitter creates an Emitter firing every interval steps. A zero interval
// uses DefaultInterval.
func NewEmitter(interval uint64) *Emitter {
	if interval == 0 {
		interval = DefaultInterval
	}
	return &Emitter{interval: interval}
}

// Check returns a Milestone when steps sits on a multiple of the interval
// that has not fired yet.
func (e *Emitter) Check(steps, dailyGoal uint64) (Milestone, bool) {
	if steps == 0 || steps%e.interval != 0 || steps == e.lastFired {
		return Milestone{}, false
	}
	e.lastFired = steps
	ms := Milestone{Steps: steps}
	if dailyGoal > 0 {
		ms.PercentOfGoal = float64(steps) / float64(dailyGoal) * 100
	}
	return ms, true
}

// Reset allows every milestone to fire again.
func (e *Emitter) Reset() { e.lastFired = 0 }

// Interval returns the configured step multiple.
func (e *Emitter) Interval() uint64 { return e.interval }

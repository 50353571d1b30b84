package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/stride/internal/domain/activity"
	"github.com/okian/stride/internal/domain/announce"
	"github.com/okian/stride/internal/domain/milestone"
	"github.com/okian/stride/internal/domain/motion"
	"github.com/okian/stride/internal/domain/simulation"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
	"golang.org/x/text/language"
)

// DefaultTickInterval is the session clock period.
const DefaultTickInterval = time.Second

// Clock starts periodic callbacks. stop must guarantee that fn is not
// running and will not run again once it returns.
type Clock interface {
	Every(period time.Duration, fn func(now time.Time)) (stop func())
	Now() time.Time
}

// Notifier receives every event a session emits.
type Notifier interface {
	Notify(ctx context.Context, ev announce.Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev announce.Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev announce.Event) error { return f(ctx, ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, announce.Event) error { return nil }

// Stats are counters about the input the engine has seen.
type Stats struct {
	SessionID      string          `json:"session_id"`
	State          State           `json:"state"`
	Source         activity.Source `json:"source"`
	Samples        uint64          `json:"samples"`
	InvalidSamples uint64          `json:"invalid_samples"`
	IgnoredSamples uint64          `json:"ignored_samples"`
	StepEvents     uint64          `json:"step_events"`
	Milestones     uint64          `json:"milestones"`
}

// Engine owns one tracking session. Commands, samples and clock ticks may
// arrive from different goroutines; all of them are applied under a single
// lock, and nothing mutates the metrics once the state has left Tracking.
type Engine struct {
	// cmdMu serializes commands so clock stops and event dispatch keep command order.
	cmdMu sync.Mutex

	mu         sync.Mutex
	state      State
	source     activity.Source
	sessionID  string
	stopClock  func()
	stats      Stats
	acc        *activity.Accumulator
	pipeline   *motion.Pipeline
	sim        *simulation.Source
	milestones *milestone.Emitter

	clock        Clock
	tickInterval time.Duration
	composer     *announce.Composer
	notifier     Notifier
	log          logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithAccumulator sets the metrics accumulator.
func WithAccumulator(a *activity.Accumulator) Option {
	return func(e *Engine) {
		if a != nil {
			e.acc = a
		}
	}
}

// WithDetector sets the step detector fed by sensor samples.
func WithDetector(d *motion.StepDetector) Option {
	return func(e *Engine) {
		if d != nil {
			e.pipeline = motion.NewPipeline(d)
		}
	}
}

// WithSimulation sets the fallback step source.
func WithSimulation(s *simulation.Source) Option {
	return func(e *Engine) {
		if s != nil {
			e.sim = s
		}
	}
}

// WithMilestoneInterval sets the step multiple that raises a milestone.
func WithMilestoneInterval(steps uint64) Option {
	return func(e *Engine) {
		e.milestones = milestone.NewEmitter(steps)
	}
}

// WithTickInterval sets the clock period.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithComposer sets the announcement composer.
func WithComposer(c *announce.Composer) Option {
	return func(e *Engine) {
		if c != nil {
			e.composer = c
		}
	}
}

// WithNotifier sets the event sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithSimulatedSource starts the engine on the simulation source, as if
// the sensor had been reported unavailable before the first command.
func WithSimulatedSource() Option {
	return func(e *Engine) {
		e.source = activity.SourceSimulated
	}
}

// NewEngine creates an idle session driven by clk.
func NewEngine(clk Clock, opts ...Option) *Engine {
	e := &Engine{
		state:        StateIdle,
		source:       activity.SourceSensor,
		sessionID:    uuid.NewString(),
		acc:          activity.NewAccumulator(),
		pipeline:     motion.NewPipeline(nil),
		sim:          simulation.NewSource(),
		milestones:   milestone.NewEmitter(milestone.DefaultInterval),
		clock:        clk,
		tickInterval: DefaultTickInterval,
		composer:     announce.NewComposer(language.English),
		notifier:     nopNotifier{},
		log:          logger.Default().Named("session"),
	}
	for _, opt := range opts {
		opt(e)
	}
	metrics.UpdateSessionState(string(e.state), stateNames()...)
	return e
}

func stateNames() []string {
	names := make([]string, len(States))
	for i, s := range States {
		names[i] = string(s)
	}
	return names
}

// Start begins tracking. From Paused it behaves as Resume.
func (e *Engine) Start(ctx context.Context) bool { return e.apply(ctx, CommandStart) }

// Pause stops the clock and input, keeping the metrics. It is a no-op
// unless the session is Tracking.
func (e *Engine) Pause(ctx context.Context) bool { return e.apply(ctx, CommandPause) }

// Resume continues a paused session. From Idle it behaves as Start.
func (e *Engine) Resume(ctx context.Context) bool { return e.apply(ctx, CommandResume) }

// Reset returns to Idle and zeroes every metric, from any state.
func (e *Engine) Reset(ctx context.Context) bool { return e.apply(ctx, CommandReset) }

// Toggle starts, pauses or resumes depending on the current state.
func (e *Engine) Toggle(ctx context.Context) bool { return e.apply(ctx, CommandToggle) }

// Apply runs cmd and reports whether it changed anything.
func (e *Engine) Apply(ctx context.Context, cmd Command) (bool, error) {
	if _, err := ParseCommand(string(cmd)); err != nil {
		return false, err
	}
	return e.apply(ctx, cmd), nil
}

func (e *Engine) apply(ctx context.Context, cmd Command) bool {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	from := e.state
	to, kind, ok := resolve(from, cmd)
	if !ok {
		e.mu.Unlock()
		e.log.Debug(ctx, "command ignored", logger.String("command", string(cmd)), logger.String("state", string(from)))
		return false
	}

	var stop func()
	if from == StateTracking && to != StateTracking {
		stop, e.stopClock = e.stopClock, nil
	}
	e.state = to

	if kind == announce.KindReset {
		e.acc.Reset()
		e.pipeline.Reset()
		e.milestones.Reset()
		e.sessionID = uuid.NewString()
		e.stats = Stats{}
	}
	if to == StateTracking && from != StateTracking {
		e.stopClock = e.clock.Every(e.tickInterval, e.onTick)
	}
	ev := e.composer.Event(kind, e.sessionID, e.snapshotLocked(), e.clock.Now())
	e.mu.Unlock()

	// Ticks that acquire the lock from here on see a non-tracking state;
	// stop waits out one already in flight.
	if stop != nil {
		stop()
	}

	metrics.RecordTransition(string(kind))
	metrics.UpdateSessionState(string(to), stateNames()...)
	if kind == announce.KindReset {
		metrics.UpdateHeartRate(0)
		metrics.UpdateSessionSteps(0)
	}
	e.log.Info(ctx, "session transition",
		logger.String("from", string(from)),
		logger.String("to", string(to)),
		logger.String("kind", string(kind)),
		logger.Uint64("steps", ev.Snapshot.Steps),
	)

	e.dispatch(ctx, ev)
	return true
}

// Submit feeds one sensor reading. Readings are ignored unless the session
// is Tracking on the sensor source. It reports whether a step was detected.
func (e *Engine) Submit(ctx context.Context, r motion.Reading) bool {
	s, err := r.Normalize()

	e.mu.Lock()
	e.stats.Samples++
	if err != nil {
		e.stats.InvalidSamples++
	}
	if e.state != StateTracking || e.source != activity.SourceSensor {
		e.stats.IgnoredSamples++
		e.mu.Unlock()
		metrics.RecordSampleRejected("not_tracking")
		return false
	}
	mag, stepped := e.pipeline.Feed(s)
	var events []announce.Event
	if stepped {
		events = e.applyStepLocked(activity.SourceSensor)
	}
	e.mu.Unlock()

	if err != nil {
		metrics.RecordSampleRejected("missing_axis")
		e.log.Debug(ctx, "sample axis unavailable, read as zero", logger.Error(err))
	}
	metrics.RecordJerkMagnitude(mag)
	metrics.RecordSampleProcessed(stepped)

	e.dispatch(ctx, events...)
	return stepped
}

// RecordStep applies a footfall reported directly by a pedometer. It
// reports whether the step was applied.
func (e *Engine) RecordStep(ctx context.Context) bool {
	e.mu.Lock()
	if e.state != StateTracking {
		e.mu.Unlock()
		return false
	}
	events := e.applyStepLocked(e.source)
	e.mu.Unlock()

	e.dispatch(ctx, events...)
	return true
}

// SensorUnavailable switches the session to the simulation source. Only
// the first call has an effect.
func (e *Engine) SensorUnavailable(ctx context.Context) bool {
	e.mu.Lock()
	if e.source == activity.SourceSimulated {
		e.mu.Unlock()
		return false
	}
	e.source = activity.SourceSimulated
	ev := e.composer.Event(announce.KindSensorUnavailable, e.sessionID, e.snapshotLocked(), e.clock.Now())
	e.mu.Unlock()

	metrics.RecordSensorUnavailable()
	e.log.Warn(ctx, "motion sensor unavailable, falling back to simulation", logger.Error(motion.ErrSensorUnavailable))
	e.dispatch(ctx, ev)
	return true
}

func (e *Engine) onTick(time.Time) {
	e.mu.Lock()
	if e.state != StateTracking {
		e.mu.Unlock()
		return
	}
	e.acc.OnClockTick(e.source)
	var events []announce.Event
	if e.source == activity.SourceSimulated && e.sim.Tick() {
		events = e.applyStepLocked(activity.SourceSimulated)
	}
	hr := e.acc.Metrics().HeartRateBpm
	e.mu.Unlock()

	metrics.RecordClockTick()
	metrics.UpdateHeartRate(hr)
	e.dispatch(context.Background(), events...)
}

// applyStepLocked applies one step event and returns a milestone event if
// one was reached. Callers hold mu.
func (e *Engine) applyStepLocked(src activity.Source) []announce.Event {
	e.stats.StepEvents++
	counted := e.acc.OnStepEvent()

	metrics.RecordStepEvent(string(src))
	if !counted {
		metrics.RecordStepCapped()
	}
	m := e.acc.Metrics()
	metrics.UpdateSessionSteps(m.Steps)

	if _, ok := e.milestones.Check(m.Steps, e.acc.DailyGoal()); ok {
		e.stats.Milestones++
		metrics.RecordMilestone()
		return []announce.Event{e.composer.Event(announce.KindMilestone, e.sessionID, e.snapshotLocked(), e.clock.Now())}
	}
	return nil
}

func (e *Engine) dispatch(ctx context.Context, events ...announce.Event) {
	for _, ev := range events {
		if err := e.notifier.Notify(ctx, ev); err != nil {
			metrics.RecordErrorByComponent("session", "notify_failed")
			e.log.Error(ctx, "failed to deliver session event",
				logger.String("kind", string(ev.Kind)),
				logger.String("event_id", ev.ID),
				logger.Error(err),
			)
		}
	}
}

func (e *Engine) snapshotLocked() activity.Snapshot {
	return e.acc.Snapshot(e.source)
}

// Snapshot returns the current metrics.
func (e *Engine) Snapshot() activity.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Source returns where step events currently come from.
func (e *Engine) Source() activity.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// SessionID identifies the session since the last Reset.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Stats returns input counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.SessionID = e.sessionID
	s.State = e.state
	s.Source = e.source
	return s
}

// Close stops the clock. A tracking session is left Paused without
// emitting an event.
func (e *Engine) Close() {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	stop := e.stopClock
	e.stopClock = nil
	if e.state == StateTracking {
		e.state = StatePaused
	}
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
}

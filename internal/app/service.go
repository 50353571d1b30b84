// Package service wires the tracking engine to its queue, worker and
// notifiers and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/stride/internal/adapters/clock"
	samplequeue "github.com/okian/stride/internal/adapters/mq/queue"
	sampleworker "github.com/okian/stride/internal/adapters/mq/worker"
	"github.com/okian/stride/internal/adapters/notify"
	"github.com/okian/stride/internal/domain/activity"
	"github.com/okian/stride/internal/domain/announce"
	"github.com/okian/stride/internal/domain/dedupe"
	"github.com/okian/stride/internal/domain/motion"
	"github.com/okian/stride/internal/domain/session"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const drainTimeout = 5 * time.Second

// CommandResult is the outcome of a session command.
type CommandResult struct {
	State    session.State     `json:"state"`
	Changed  bool              `json:"changed"`
	Snapshot activity.Snapshot `json:"snapshot"`
}

// SessionView is the readable state of the session.
type SessionView struct {
	SessionID     string            `json:"session_id"`
	State         session.State     `json:"state"`
	Source        activity.Source   `json:"source"`
	ElapsedClock  string            `json:"elapsed_clock"`
	ActiveMinutes uint64            `json:"active_minutes"`
	Snapshot      activity.Snapshot `json:"snapshot"`
}

// SubmitResult acknowledges a sample batch.
type SubmitResult struct {
	Accepted  int  `json:"accepted"`
	Duplicate bool `json:"duplicate"`
}

// Stats reports service internals for monitoring.
type Stats struct {
	Started       bool          `json:"started"`
	Session       session.Stats `json:"session"`
	QueueLength   int           `json:"queue_length"`
	QueueCapacity int           `json:"queue_capacity"`
	DedupeSize    int64         `json:"dedupe_size"`
	Processed     uint64        `json:"processed"`
	WSClients     int           `json:"ws_clients"`
	Redis         bool          `json:"redis"`
}

// Service implements the API dependencies for the activity tracker.
type Service struct {
	mu sync.RWMutex

	engine  *session.Engine
	deduper dedupe.Deduper
	queue   *samplequeue.InMemoryQueue
	worker  *sampleworker.InMemoryWorker
	hub     *notify.Hub
	history *notify.Recorder
	relay   *notify.RedisRelay

	// Configuration
	clock         session.Clock
	engineOpts    []session.Option
	queueSize     int
	maxBatchSize  int
	dedupeSize    int
	historySize   int
	redisClient   *redis.Client
	redisChannel  string
	extraNotifier []notify.Notifier

	started    bool
	cancelWork context.CancelFunc
	enqueued   atomic.Uint64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum number of queued readings.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxBatchSize caps the readings accepted in one batch.
func WithMaxBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.maxBatchSize = size
		}
	}
}

// WithDedupeSize sets how many batch IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithEventHistory sets how many events Events returns.
func WithEventHistory(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.historySize = size
		}
	}
}

// WithClock sets the clock driving the session.
func WithClock(c session.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithEngineOptions passes options through to the session engine.
func WithEngineOptions(opts ...session.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithRedis publishes events on channel and relays them back to websocket clients.
func WithRedis(client *redis.Client, channel string) Option {
	return func(s *Service) {
		s.redisClient = client
		s.redisChannel = channel
	}
}

// WithNotifier adds a sink that receives every event.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.extraNotifier = append(s.extraNotifier, n)
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		clock:        clock.NewReal(),
		queueSize:    10_000,
		maxBatchSize: 1_000,
		dedupeSize:   50_000,
		historySize:  100,
		logger:       logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxBatchSize > s.queueSize {
		s.maxBatchSize = s.queueSize
	}
	return s
}

// Start builds and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting activity tracking service...")

	// Background loops outlive the start request; Stop cancels them.
	workCtx, cancel := context.WithCancel(context.Background())

	s.hub = notify.NewHub(notify.WithHubLogger(s.logger.Named("hub")))
	s.history = notify.NewRecorder(s.historySize)

	sinks := []notify.Notifier{notify.NewLog(s.logger.Named("announce")), s.history}
	if s.redisClient != nil {
		// Remote delivery goes through Redis; the relay feeds local websocket clients too.
		s.relay = notify.NewRedisRelay(s.redisClient, s.redisChannel, s.hub, s.logger.Named("relay"))
		if err := s.relay.Start(workCtx); err != nil {
			cancel()
			s.hub.Close()
			return fmt.Errorf("start redis relay: %w", err)
		}
		sinks = append(sinks, notify.NewRedisPublisher(s.redisClient, s.redisChannel))
	} else {
		sinks = append(sinks, s.hub)
	}
	sinks = append(sinks, s.extraNotifier...)

	engineOpts := append([]session.Option{
		session.WithNotifier(notify.NewMulti(sinks...)),
		session.WithLogger(s.logger.Named("session")),
	}, s.engineOpts...)
	s.engine = session.NewEngine(s.clock, engineOpts...)

	s.enqueued.Store(0)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = samplequeue.NewInMemoryQueue(samplequeue.WithCapacity(s.queueSize))
	s.worker = sampleworker.NewInMemoryWorker(s.queue, s.engine,
		sampleworker.WithName("samples"),
		sampleworker.WithLogger(s.logger.Named("worker")),
	)

	s.cancelWork = cancel
	go s.worker.Run(workCtx)

	s.started = true
	s.logger.Info(ctx, "activity tracking service started",
		logger.String("session_id", s.engine.SessionID()),
		logger.String("source", string(s.engine.Source())),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("redis", s.redisClient != nil),
	)
	return nil
}

// Stop drains queued readings, stops the clock and disconnects clients.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping activity tracking service...")

	_ = s.queue.Close()
	select {
	case <-s.worker.Done():
	case <-time.After(drainTimeout):
		s.logger.Warn(ctx, "sample queue did not drain in time", logger.Int("remaining", s.queue.Len()))
	}
	s.cancelWork()
	<-s.worker.Done()

	s.engine.Close()
	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			s.logger.Error(ctx, "error closing redis relay", logger.Error(err))
		}
	}
	s.hub.Close()

	s.started = false
	s.logger.Info(ctx, "activity tracking service stopped")
}

func (s *Service) running() (*session.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.engine, nil
}

// Command applies a named session command.
func (s *Service) Command(ctx context.Context, name string) (CommandResult, error) {
	e, err := s.running()
	if err != nil {
		return CommandResult{}, err
	}
	cmd, err := session.ParseCommand(name)
	if err != nil {
		return CommandResult{}, err
	}
	changed, err := e.Apply(ctx, cmd)
	if err != nil {
		return CommandResult{}, err
	}
	return CommandResult{State: e.State(), Changed: changed, Snapshot: e.Snapshot()}, nil
}

// Session returns the current session view.
func (s *Service) Session(_ context.Context) (SessionView, error) {
	e, err := s.running()
	if err != nil {
		return SessionView{}, err
	}
	snap := e.Snapshot()
	return SessionView{
		SessionID:     e.SessionID(),
		State:         e.State(),
		Source:        snap.Source,
		ElapsedClock:  snap.ElapsedClock(),
		ActiveMinutes: snap.ActiveMinutes(),
		Snapshot:      snap,
	}, nil
}

// SubmitSamples queues a batch of readings. A non-empty batchID makes the
// call idempotent; a repeated batch is acknowledged without being queued.
func (s *Service) SubmitSamples(ctx context.Context, batchID string, readings []motion.Reading) (SubmitResult, error) {
	if _, err := s.running(); err != nil {
		return SubmitResult{}, err
	}
	switch {
	case len(readings) == 0:
		return SubmitResult{}, ErrEmptyBatch
	case len(readings) > s.maxBatchSize:
		return SubmitResult{}, fmt.Errorf("%w: %d readings, limit %d", ErrBatchTooLarge, len(readings), s.maxBatchSize)
	}

	if batchID != "" && s.deduper.SeenAndRecord(ctx, batchID) {
		metrics.RecordBatchDuplicate()
		s.logger.Debug(ctx, "duplicate sample batch", logger.String("batch_id", batchID))
		return SubmitResult{Duplicate: true}, nil
	}

	if err := s.queue.Enqueue(ctx, readings...); err != nil {
		if batchID != "" {
			s.deduper.Unrecord(ctx, batchID)
		}
		if errors.Is(err, samplequeue.ErrFull) {
			return SubmitResult{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return SubmitResult{}, fmt.Errorf("enqueue samples: %w", err)
	}
	s.enqueued.Add(uint64(len(readings)))
	return SubmitResult{Accepted: len(readings)}, nil
}

// RecordStep applies one pedometer footfall.
func (s *Service) RecordStep(ctx context.Context) (bool, error) {
	e, err := s.running()
	if err != nil {
		return false, err
	}
	return e.RecordStep(ctx), nil
}

// SensorUnavailable switches the session to simulated steps.
func (s *Service) SensorUnavailable(ctx context.Context) (bool, error) {
	e, err := s.running()
	if err != nil {
		return false, err
	}
	return e.SensorUnavailable(ctx), nil
}

// Events returns recent session events, oldest first.
func (s *Service) Events(_ context.Context) []announce.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return nil
	}
	return s.history.Events()
}

// Subscribe attaches a websocket connection to the event stream.
func (s *Service) Subscribe(conn *websocket.Conn) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	s.hub.Attach(conn)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Started: s.started, Redis: s.redisClient != nil}
	if !s.started {
		return st
	}
	st.Session = s.engine.Stats()
	st.QueueLength = s.queue.Len()
	st.QueueCapacity = s.queue.Capacity()
	st.DedupeSize = s.deduper.Size()
	st.Processed = s.worker.Processed()
	st.WSClients = s.hub.ClientCount()

	metrics.UpdateQueueSize(st.QueueLength)
	return st
}

// WaitIdle blocks until every accepted reading has been applied by the
// engine or ctx is done.
func (s *Service) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		s.mu.RLock()
		idle := !s.started || s.worker.Processed() >= s.enqueued.Load()
		s.mu.RUnlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Package notify delivers session events to speech, display and remote
// collaborators.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/stride/internal/domain/announce"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
)

// Notifier receives session events.
type Notifier interface {
	Notify(ctx context.Context, ev announce.Event) error
}

// Named is implemented by notifiers that label their metrics.
type Named interface {
	Name() string
}

func nameOf(n Notifier) string {
	if nn, ok := n.(Named); ok {
		return nn.Name()
	}
	return "sink"
}

// Multi fans an event out to every sink. A failing sink does not stop the
// others; their errors are joined.
type Multi struct {
	sinks []Notifier
}

// NewMulti creates a fan-out over sinks, skipping nil entries.
func NewMulti(sinks ...Notifier) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Notify delivers ev to every sink.
func (m *Multi) Notify(ctx context.Context, ev announce.Event) error {
	var errs []error
	for _, s := range m.sinks {
		name := nameOf(s)
		if err := s.Notify(ctx, ev); err != nil {
			metrics.RecordNotification(name, "failed")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		metrics.RecordNotification(name, "sent")
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Log writes every event to a logger. It stands in for a speech engine on
// headless hosts.
type Log struct {
	log logger.Logger
}

// NewLog creates a Log notifier.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.Default()
	}
	return &Log{log: l}
}

func (*Log) Name() string { return "log" }

// Notify logs ev at info level.
func (n *Log) Notify(ctx context.Context, ev announce.Event) error {
	n.log.Info(ctx, ev.Text,
		logger.String("kind", string(ev.Kind)),
		logger.String("title", ev.Title),
		logger.String("session_id", ev.SessionID),
		logger.Uint64("steps", ev.Snapshot.Steps),
	)
	return nil
}

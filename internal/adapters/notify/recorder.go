package notify

import (
	"context"
	"sync"

	"github.com/okian/stride/internal/domain/announce"
)

// Recorder keeps every event in memory. It backs the /events history and
// tests.
type Recorder struct {
	mu     sync.RWMutex
	events []announce.Event
	limit  int
}

// NewRecorder keeps at most limit events; zero or less keeps all.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (*Recorder) Name() string { return "history" }

// Notify appends ev, dropping the oldest event when full.
func (r *Recorder) Notify(_ context.Context, ev announce.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
	return nil
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []announce.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]announce.Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events.
func (r *Recorder) Kinds() []announce.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]announce.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

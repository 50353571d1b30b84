// Package clock provides the periodic tickers that drive a tracking session.
package clock

import (
	"sync"
	"time"
)

// Real ticks on wall-clock time.
type Real struct{}

// NewReal returns a wall-clock ticker source.
func NewReal() Real { return Real{} }

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// Every calls fn once per period on its own goroutine until stop is called.
// stop blocks until the goroutine has exited, so no callback runs after it
// returns. stop must not be called from inside fn.
func (Real) Every(period time.Duration, fn func(now time.Time)) (stop func()) {
	ticker := time.NewTicker(period)
	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-stopChan:
				return
			case now := <-ticker.C:
				// stop may race with a ready tick; stop wins.
				select {
				case <-stopChan:
					return
				default:
				}
				fn(now)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopChan)
			<-done
		})
	}
}

// Manual is a clock driven by the caller. Callbacks run synchronously on the
// goroutine that calls Advance or Tick.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	tickers map[int]*manualTicker
	started int
	stopped int
}

type manualTicker struct {
	period time.Duration
	next   time.Time
	fn     func(time.Time)
}

// NewManual creates a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, tickers: make(map[int]*manualTicker)}
}

// Now returns the manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Every registers fn to run each time Advance crosses a period boundary.
func (m *Manual) Every(period time.Duration, fn func(now time.Time)) (stop func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.tickers[id] = &manualTicker{period: period, next: m.now.Add(period), fn: fn}
	m.started++
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.tickers, id)
			m.stopped++
			m.mu.Unlock()
		})
	}
}

// Advance moves time forward by d, firing every due tick in time order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var (
			due   *manualTicker
			dueID int
		)
		for id, t := range m.tickers {
			if t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) || (t.next.Equal(due.next) && id < dueID) {
				due, dueID = t, id
			}
		}
		if due == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		at := due.next
		m.now = at
		due.next = at.Add(due.period)
		fn := due.fn
		m.mu.Unlock()

		fn(at)
	}
}

// Active returns the number of registered tickers.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

// Started returns how many tickers were ever registered.
func (m *Manual) Started() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Stopped returns how many tickers were stopped.
func (m *Manual) Stopped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

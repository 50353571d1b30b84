package clock_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/stride/internal/adapters/clock"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestRealClock(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	Convey("Given a real clock ticking fast", t, func() {
		var calls atomic.Int64
		stop := clock.NewReal().Every(time.Millisecond, func(time.Time) {
			calls.Add(1)
		})

		Convey("When stopped after some ticks", func() {
			deadline := time.Now().Add(2 * time.Second)
			for calls.Load() < 3 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			stop()
			after := calls.Load()
			time.Sleep(20 * time.Millisecond)

			Convey("Then no callback runs after stop returns", func() {
				So(after, ShouldBeGreaterThanOrEqualTo, 3)
				So(calls.Load(), ShouldEqual, after)
			})

			Convey("Then stopping twice is safe", func() {
				So(func() { stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestManualClock(t *testing.T) {
	Convey("Given a manual clock", t, func() {
		start := time.Unix(0, 0)
		m := clock.NewManual(start)
		var fired []time.Time
		stop := m.Every(time.Second, func(now time.Time) { fired = append(fired, now) })

		Convey("When advanced by two and a half periods", func() {
			m.Advance(2500 * time.Millisecond)

			Convey("Then two ticks fire at period boundaries", func() {
				So(fired, ShouldResemble, []time.Time{start.Add(time.Second), start.Add(2 * time.Second)})
				So(m.Now(), ShouldEqual, start.Add(2500*time.Millisecond))
			})
		})

		Convey("When stopped", func() {
			stop()
			stop()
			m.Advance(5 * time.Second)

			Convey("Then nothing fires and the stop is counted once", func() {
				So(fired, ShouldBeEmpty)
				So(m.Active(), ShouldEqual, 0)
				So(m.Started(), ShouldEqual, 1)
				So(m.Stopped(), ShouldEqual, 1)
			})
		})

		Convey("When a callback stops its own ticker", func() {
			var n int
			var stopSelf func()
			stopSelf = m.Every(time.Second, func(time.Time) {
				n++
				stopSelf()
			})
			m.Advance(3 * time.Second)

			Convey("Then it fires once", func() {
				So(n, ShouldEqual, 1)
			})
		})
	})
}

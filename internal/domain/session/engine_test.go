package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/stride/internal/adapters/clock"
	"github.com/okian/stride/internal/domain/activity"
	"github.com/okian/stride/internal/domain/announce"
	"github.com/okian/stride/internal/domain/motion"
	"github.com/okian/stride/internal/domain/session"
	"github.com/okian/stride/internal/domain/simulation"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

type recorder struct {
	mu     sync.Mutex
	events []announce.Event
}

func (r *recorder) Notify(_ context.Context, ev announce.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []announce.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]announce.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) last() announce.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newEngine(opts ...session.Option) (*session.Engine, *clock.Manual, *recorder) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	rec := &recorder{}
	opts = append([]session.Option{session.WithNotifier(rec)}, opts...)
	return session.NewEngine(clk, opts...), clk, rec
}

// walk submits n spike/rest pairs 300ms apart starting at t0.
func walk(ctx context.Context, e *session.Engine, t0 time.Time, n int) {
	for i := 0; i < n; i++ {
		at := t0.Add(time.Duration(i) * 300 * time.Millisecond)
		e.Submit(ctx, motion.NewReading(0, 0, 15, at))
		e.Submit(ctx, motion.NewReading(0, 0, 0, at.Add(100*time.Millisecond)))
	}
}

func TestEngineTransitions(t *testing.T) {
	ctx := context.Background()

	Convey("Given an idle engine", t, func() {
		e, clk, rec := newEngine()
		So(e.State(), ShouldEqual, session.StateIdle)

		Convey("When started", func() {
			So(e.Start(ctx), ShouldBeTrue)

			Convey("Then it tracks with a running clock", func() {
				So(e.State(), ShouldEqual, session.StateTracking)
				So(clk.Active(), ShouldEqual, 1)
				So(rec.kinds(), ShouldResemble, []announce.Kind{announce.KindStart})
				So(rec.last().Title, ShouldEqual, "Tracking Started")
			})

			Convey("And started again", func() {
				So(e.Start(ctx), ShouldBeFalse)
				So(clk.Started(), ShouldEqual, 1)
			})

			Convey("And paused twice", func() {
				So(e.Pause(ctx), ShouldBeTrue)
				So(e.Pause(ctx), ShouldBeFalse)

				Convey("Then the clock stopped once and one pause was announced", func() {
					So(e.State(), ShouldEqual, session.StatePaused)
					So(clk.Stopped(), ShouldEqual, 1)
					So(clk.Active(), ShouldEqual, 0)
					So(rec.kinds(), ShouldResemble, []announce.Kind{announce.KindStart, announce.KindPause})
				})

				Convey("And started from paused", func() {
					So(e.Start(ctx), ShouldBeTrue)

					Convey("Then it acts as resume", func() {
						So(e.State(), ShouldEqual, session.StateTracking)
						So(rec.last().Kind, ShouldEqual, announce.KindResume)
						So(clk.Active(), ShouldEqual, 1)
					})
				})
			})
		})

		Convey("When paused from idle", func() {
			So(e.Pause(ctx), ShouldBeFalse)

			Convey("Then nothing happens", func() {
				So(e.State(), ShouldEqual, session.StateIdle)
				So(rec.kinds(), ShouldBeEmpty)
			})
		})

		Convey("When resumed from idle", func() {
			So(e.Resume(ctx), ShouldBeTrue)

			Convey("Then it acts as start", func() {
				So(rec.last().Kind, ShouldEqual, announce.KindStart)
			})
		})

		Convey("When toggled three times", func() {
			e.Toggle(ctx)
			e.Toggle(ctx)
			e.Toggle(ctx)

			Convey("Then it walks start, pause, resume", func() {
				So(rec.kinds(), ShouldResemble, []announce.Kind{announce.KindStart, announce.KindPause, announce.KindResume})
				So(e.State(), ShouldEqual, session.StateTracking)
			})
		})

		Convey("When applying commands by name", func() {
			changed, err := e.Apply(ctx, session.CommandStart)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)

			_, err = e.Apply(ctx, session.Command("stop"))
			So(errors.Is(err, session.ErrUnknownCommand), ShouldBeTrue)

			_, err = session.ParseCommand(" Pause ")
			So(err, ShouldBeNil)
		})
	})
}

func TestEngineReset(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with accumulated activity", t, func() {
		e, clk, rec := newEngine()
		e.Start(ctx)
		walk(ctx, e, clk.Now(), 20)
		clk.Advance(5 * time.Second)
		before := e.SessionID()

		So(e.Snapshot().Steps, ShouldEqual, 20)
		So(e.Snapshot().HeartRateBpm, ShouldBeGreaterThan, 0)

		for _, pause := range []bool{false, true} {
			pause := pause
			name := "tracking"
			if pause {
				name = "paused"
			}
			Convey("When reset from "+name, func() {
				if pause {
					e.Pause(ctx)
				}
				So(e.Reset(ctx), ShouldBeTrue)

				Convey("Then every counter is zero and the session is idle", func() {
					s := e.Snapshot()
					So(e.State(), ShouldEqual, session.StateIdle)
					So(s.Steps, ShouldEqual, 0)
					So(s.DistanceMeters, ShouldEqual, 0)
					So(s.Calories, ShouldEqual, 0)
					So(s.ActiveSeconds, ShouldEqual, 0)
					So(s.ElapsedSeconds, ShouldEqual, 0)
					So(s.HeartRateBpm, ShouldEqual, 0)
					So(rec.last().Kind, ShouldEqual, announce.KindReset)
					So(rec.last().Snapshot.Steps, ShouldEqual, 0)
					So(e.SessionID(), ShouldNotEqual, before)
					So(clk.Active(), ShouldEqual, 0)
				})
			})
		}

		Convey("When reset from idle", func() {
			e.Reset(ctx)
			So(e.Reset(ctx), ShouldBeTrue)
			So(e.Snapshot().Steps, ShouldEqual, 0)
		})
	})
}

func TestEngineScenario(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tracking engine with a 10000 step goal", t, func() {
		e, clk, rec := newEngine(session.WithAccumulator(activity.NewAccumulator(activity.WithDailyGoal(10000))))
		e.Start(ctx)

		Convey("When 1000 footfalls arrive 300ms apart and tracking pauses", func() {
			walk(ctx, e, clk.Now(), 1000)
			e.Pause(ctx)
			s := e.Snapshot()

			Convey("Then steps and active time are 1000", func() {
				So(s.Steps, ShouldEqual, 1000)
				So(s.ActiveSeconds, ShouldEqual, 1000)
				So(s.RoundedPercent(), ShouldEqual, 10)
			})

			Convey("Then one milestone fired and the pause text carries the totals", func() {
				So(rec.kinds(), ShouldResemble, []announce.Kind{announce.KindStart, announce.KindMilestone, announce.KindPause})
				text := rec.last().Text
				So(text, ShouldContainSubstring, "1,000")
				So(text, ShouldContainSubstring, "10%")
			})

			Convey("Then stats count the input", func() {
				st := e.Stats()
				So(st.Samples, ShouldEqual, 2000)
				So(st.StepEvents, ShouldEqual, 1000)
				So(st.Milestones, ShouldEqual, 1)
				So(st.State, ShouldEqual, session.StatePaused)
			})
		})
	})

	Convey("Given a goal smaller than the walk", t, func() {
		e, clk, _ := newEngine(session.WithAccumulator(activity.NewAccumulator(activity.WithDailyGoal(50))))
		e.Start(ctx)

		Convey("When walking past the goal", func() {
			var prev uint64
			t0 := clk.Now()
			for i := 0; i < 80; i++ {
				walk(ctx, e, t0.Add(time.Duration(i)*300*time.Millisecond), 1)
				steps := e.Snapshot().Steps
				So(steps, ShouldBeGreaterThanOrEqualTo, prev)
				So(steps, ShouldBeLessThanOrEqualTo, 50)
				prev = steps
			}

			Convey("Then steps stop at the goal while active time continues", func() {
				So(e.Snapshot().Steps, ShouldEqual, 50)
				So(e.Snapshot().ActiveSeconds, ShouldEqual, 80)
			})
		})
	})
}

func TestEngineGating(t *testing.T) {
	ctx := context.Background()

	Convey("Given a paused engine with ticks applied", t, func() {
		e, clk, _ := newEngine()
		e.Start(ctx)
		clk.Advance(3 * time.Second)
		e.Pause(ctx)
		held := e.Snapshot()

		Convey("When time passes and samples arrive", func() {
			clk.Advance(10 * time.Second)
			walk(ctx, e, clk.Now(), 5)
			So(e.RecordStep(ctx), ShouldBeFalse)

			Convey("Then nothing changes", func() {
				So(e.Snapshot(), ShouldResemble, held)
				So(held.ElapsedSeconds, ShouldEqual, 3)
				So(e.Stats().IgnoredSamples, ShouldEqual, 10)
			})
		})

		Convey("When resumed", func() {
			e.Resume(ctx)
			clk.Advance(2 * time.Second)

			Convey("Then elapsed time continues from where it paused", func() {
				So(e.Snapshot().ElapsedSeconds, ShouldEqual, 5)
			})
		})
	})

	Convey("Given a tracking engine", t, func() {
		e, _, _ := newEngine()
		e.Start(ctx)

		Convey("When a reading has a missing axis", func() {
			z := 15.0
			e.Submit(ctx, motion.Reading{Z: &z, At: time.Unix(1, 0)})

			Convey("Then it is read as zero and counted", func() {
				So(e.Snapshot().Steps, ShouldEqual, 1)
				So(e.Stats().InvalidSamples, ShouldEqual, 1)
			})
		})

		Convey("When a pedometer reports steps directly", func() {
			So(e.RecordStep(ctx), ShouldBeTrue)
			So(e.RecordStep(ctx), ShouldBeTrue)
			So(e.Snapshot().Steps, ShouldEqual, 2)
		})
	})
}

func TestEngineSimulation(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine whose sensor becomes unavailable", t, func() {
		e, clk, rec := newEngine(session.WithSimulation(simulation.NewSource(simulation.WithSeed(3))))
		first := e.SensorUnavailable(ctx)
		second := e.SensorUnavailable(ctx)

		Convey("Then the fallback is announced once", func() {
			So(first, ShouldBeTrue)
			So(second, ShouldBeFalse)
			So(e.Source(), ShouldEqual, activity.SourceSimulated)
			So(rec.kinds(), ShouldResemble, []announce.Kind{announce.KindSensorUnavailable})
		})

		Convey("When tracking for 1000 ticks", func() {
			e.Start(ctx)
			walk(ctx, e, clk.Now(), 3)
			clk.Advance(1000 * time.Second)
			s := e.Snapshot()

			Convey("Then simulated steps arrive near the configured rate", func() {
				So(s.ElapsedSeconds, ShouldEqual, 1000)
				So(s.Steps, ShouldBeBetween, 200, 400)
				So(s.Steps, ShouldEqual, s.ActiveSeconds)
				So(s.HeartRateBpm, ShouldBeBetweenOrEqual, 75, 84)
				So(s.Source, ShouldEqual, activity.SourceSimulated)
			})

			Convey("Then sensor samples are ignored", func() {
				So(e.Stats().IgnoredSamples, ShouldEqual, 6)
			})
		})

		Convey("When a second engine replays the same seed", func() {
			other, otherClk, _ := newEngine(
				session.WithSimulation(simulation.NewSource(simulation.WithSeed(3))),
				session.WithSimulatedSource(),
			)
			e.Start(ctx)
			other.Start(ctx)
			clk.Advance(300 * time.Second)
			otherClk.Advance(300 * time.Second)

			Convey("Then both count the same steps", func() {
				So(other.Snapshot().Steps, ShouldEqual, e.Snapshot().Steps)
			})
		})
	})
}

func TestEngineNotifierFailure(t *testing.T) {
	Convey("Given a notifier that always fails", t, func() {
		clk := clock.NewManual(time.Unix(0, 0))
		e := session.NewEngine(clk, session.WithNotifier(session.NotifierFunc(func(context.Context, announce.Event) error {
			return errors.New("speaker offline")
		})))

		Convey("Then commands still take effect", func() {
			So(e.Start(context.Background()), ShouldBeTrue)
			So(e.State(), ShouldEqual, session.StateTracking)
		})
	})
}

func TestEngineConcurrentPause(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	Convey("Given an engine on a fast real clock with concurrent input", t, func() {
		ctx := context.Background()
		e := session.NewEngine(clock.NewReal(), session.WithTickInterval(time.Millisecond))
		e.Start(ctx)

		var wg sync.WaitGroup
		stopInput := make(chan struct{})
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				t0 := time.Unix(int64(w)*1000, 0)
				for i := 0; ; i++ {
					select {
					case <-stopInput:
						return
					default:
					}
					e.Submit(ctx, motion.NewReading(0, 0, float64(15*(i%2)), t0.Add(time.Duration(i)*300*time.Millisecond)))
					e.RecordStep(ctx)
				}
			}(w)
		}

		time.Sleep(20 * time.Millisecond)
		e.Pause(ctx)
		frozen := e.Snapshot()
		time.Sleep(20 * time.Millisecond)
		close(stopInput)
		wg.Wait()

		Convey("Then nothing mutates the metrics after pause returns", func() {
			So(e.Snapshot(), ShouldResemble, frozen)
			So(e.State(), ShouldEqual, session.StatePaused)
		})

		Reset(func() { e.Close() })
	})
}

package milestone_test

import (
	"testing"

	"github.com/okian/stride/internal/domain/milestone"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEmitter(t *testing.T) {
	Convey("Given an emitter with the default interval", t, func() {
		e := milestone.NewEmitter(0)
		So(e.Interval(), ShouldEqual, milestone.DefaultInterval)

		Convey("When steps climb from 1 to 2500", func() {
			var fired []uint64
			for s := uint64(1); s <= 2500; s++ {
				if ms, ok := e.Check(s, 10000); ok {
					fired = append(fired, ms.Steps)
				}
			}

			Convey("Then it fires at 1000 and 2000 only", func() {
				So(fired, ShouldResemble, []uint64{1000, 2000})
			})
		})

		Convey("When the same multiple is checked twice", func() {
			ms, first := e.Check(1000, 10000)
			_, second := e.Check(1000, 10000)

			Convey("Then the second check is suppressed", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(ms.PercentOfGoal, ShouldEqual, 10)
			})
		})

		Convey("When steps are zero", func() {
			_, ok := e.Check(0, 10000)
			So(ok, ShouldBeFalse)
		})

		Convey("When the emitter is reset", func() {
			e.Check(1000, 10000)
			e.Reset()

			Convey("Then the milestone can fire again", func() {
				_, ok := e.Check(1000, 10000)
				So(ok, ShouldBeTrue)
			})
		})
	})
}

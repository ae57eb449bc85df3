package loop

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestRunner(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	Convey("Given a running loop", t, func() {
		r := New()

		Convey("Posted callbacks run in order", func() {
			var (
				got []int
				wg  sync.WaitGroup
			)
			wg.Add(3)
			for i := 0; i < 3; i++ {
				i := i
				r.Post(func() {
					got = append(got, i)
					wg.Done()
				})
			}
			wg.Wait()
			So(got, ShouldResemble, []int{0, 1, 2})
		})

		Convey("Go posts its continuation back to the loop", func() {
			done := make(chan string, 1)
			r.Go(func() func() {
				value := "worked"
				return func() { done <- value }
			})
			So(<-done, ShouldEqual, "worked")
		})

		Convey("A stopped timer never fires", func() {
			fired := make(chan struct{}, 1)
			timer := r.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
			So(timer.Stop(), ShouldBeTrue)
			So(timer.Stop(), ShouldBeFalse)

			select {
			case <-fired:
				So("timer fired", ShouldBeEmpty)
			case <-time.After(60 * time.Millisecond):
			}
		})

		Convey("A live timer fires on the loop", func() {
			fired := make(chan struct{}, 1)
			r.AfterFunc(time.Millisecond, func() { fired <- struct{}{} })
			select {
			case <-fired:
			case <-time.After(time.Second):
				So("timer did not fire", ShouldBeEmpty)
			}
		})

		Reset(func() {
			r.Close()
		})
	})
}

func TestManual(t *testing.T) {
	Convey("Given a manual loop", t, func() {
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		m := NewManual(start)

		Convey("Nothing runs until drained", func() {
			ran := false
			m.Post(func() { ran = true })
			So(ran, ShouldBeFalse)
			m.Drain()
			So(ran, ShouldBeTrue)
		})

		Convey("Go continuations wait for Settle", func() {
			worked, continued := false, false
			m.Go(func() func() {
				worked = true
				return func() { continued = true }
			})
			m.Drain()
			So(worked, ShouldBeTrue)
			So(continued, ShouldBeFalse)
			So(m.Pending(), ShouldEqual, 1)

			m.Settle()
			So(continued, ShouldBeTrue)
			So(m.Pending(), ShouldEqual, 0)
		})

		Convey("Complete finishes one round of work only", func() {
			rounds := 0
			m.Go(func() func() {
				return func() {
					rounds++
					m.Go(func() func() {
						return func() { rounds++ }
					})
				}
			})

			m.Complete()
			So(rounds, ShouldEqual, 1)
			So(m.Pending(), ShouldEqual, 1)

			m.Complete()
			So(rounds, ShouldEqual, 2)
		})

		Convey("Timers fire in deadline order as time advances", func() {
			var order []string
			m.AfterFunc(250*time.Millisecond, func() { order = append(order, "settle") })
			m.AfterFunc(80*time.Millisecond, func() { order = append(order, "debounce") })
			stopped := m.AfterFunc(10*time.Millisecond, func() { order = append(order, "stopped") })
			So(stopped.Stop(), ShouldBeTrue)

			m.Advance(79 * time.Millisecond)
			So(order, ShouldBeEmpty)

			m.Advance(time.Millisecond)
			So(order, ShouldResemble, []string{"debounce"})

			m.Advance(time.Second)
			So(order, ShouldResemble, []string{"debounce", "settle"})
			So(m.Now(), ShouldEqual, start.Add(1080*time.Millisecond))
		})

		Convey("Timers scheduled by timers fire within the same advance", func() {
			count := 0
			var tick func()
			tick = func() {
				count++
				m.AfterFunc(2*time.Second, tick)
			}
			m.AfterFunc(2*time.Second, tick)

			m.Advance(7 * time.Second)
			So(count, ShouldEqual, 3)
		})
	})
}

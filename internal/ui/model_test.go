package ui

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestModel(t *testing.T) {
	Convey("Given a notifier", t, func() {
		var m Model

		Convey("Without a notification the view is untouched", func() {
			So(m.View("a\nb"), ShouldEqual, "a\nb")
		})

		Convey("A notification is appended to the last line", func() {
			So(m.Update(Notification("Tap to play")), ShouldNotBeNil)
			So(m.Text(), ShouldEqual, "Tap to play")
			So(m.View("a\nb"), ShouldStartWith, "a\nb  ")
			So(m.View("a\nb"), ShouldContainSubstring, "Tap to play")
		})

		Convey("Only the latest timer clears it", func() {
			m.Update(Notification("first"))
			m.Update(Notification("second"))

			m.Update(clearMsg{seq: 1})
			So(m.Text(), ShouldEqual, "second")

			m.Update(clearMsg{seq: 2})
			So(m.Text(), ShouldBeEmpty)
		})

		Convey("Notify wraps the text in a message", func() {
			So(Notify("x")(), ShouldEqual, Notification("x"))
		})
	})
}

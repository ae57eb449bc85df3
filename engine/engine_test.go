package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/network"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFor(t *testing.T) {
	Convey("For", t, func() {
		Convey("A full session on a fast connection starts loading on its own", func() {
			cfg := For(network.High, media.Full)
			So(cfg.AutoStartLoad, ShouldBeTrue)
			So(cfg.MaxBufferLength, ShouldEqual, 6)
			So(cfg.MaxMaxBufferLength, ShouldEqual, 10)
			So(cfg.MaxBufferSize, ShouldEqual, 4_000_000)
			So(cfg.ABR.DefaultEstimate, ShouldEqual, 500_000)
			So(cfg.StartLevel, ShouldEqual, -1)
			So(cfg.Fragment, ShouldResemble, LoadPolicy{Timeout: 20 * time.Second, MaxRetry: 6, RetryDelay: time.Second})
		})

		Convey("A preload gets half the budget and waits to be started", func() {
			cfg := For(network.High, media.Preload)
			So(cfg.AutoStartLoad, ShouldBeFalse)
			So(cfg.MaxBufferLength, ShouldEqual, 3)
			So(cfg.MaxBufferSize, ShouldEqual, 2_000_000)
			So(cfg.ABR.DefaultEstimate, ShouldEqual, 300_000)
		})

		Convey("Low tier shrinks both budgets", func() {
			So(For(network.Low, media.Full).MaxBufferSize, ShouldEqual, 2_000_000)
			So(For(network.Low, media.Preload).MaxBufferLength, ShouldEqual, 2)
			So(For(network.Low, media.Full).ABR.DefaultEstimate, ShouldEqual, 300_000)
		})

		Convey("Medium tier sits in between", func() {
			So(For(network.Medium, media.Preload).MaxBufferSize, ShouldEqual, 1_500_000)
			So(For(network.Medium, media.Full).MaxMaxBufferLength, ShouldEqual, 8)
			So(For(network.Medium, media.Full).ABR.DefaultEstimate, ShouldEqual, 800_000)
		})
	})
}

func TestError(t *testing.T) {
	Convey("Engine errors unwrap to their cause", t, func() {
		cause := errors.New("connection reset")
		err := error(&Error{Type: NetworkError, Details: FragLoadError, Fatal: true, Err: cause})

		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "fatal network error (fragLoadError): connection reset")

		var engineErr *Error
		So(errors.As(err, &engineErr), ShouldBeTrue)
		So(engineErr.Fatal, ShouldBeTrue)
	})
}

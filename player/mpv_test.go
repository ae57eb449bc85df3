package player

import (
	"context"
	"testing"

	"github.com/reels-cli/reels/constant"
	. "github.com/smartystreets/goconvey/convey"
)

func TestArgs(t *testing.T) {
	Convey("Given an mpv sink", t, func() {
		mpv := NewMPV(Options{Title: "reel 1"})

		Convey("A full load shows a window and bounds the demuxer", func() {
			args := mpv.args("/tmp/s.sock", "https://cdn.example/a.m3u8", LoadOptions{
				Readahead: 6,
				MaxBytes:  4 << 20,
				Start:     45,
			})

			So(args, ShouldContain, "--input-ipc-server=/tmp/s.sock")
			So(args, ShouldContain, "--pause=yes")
			So(args, ShouldContain, "--title=reel 1")
			So(args, ShouldContain, "--mute=yes")
			So(args, ShouldContain, "--force-window=yes")
			So(args, ShouldContain, "--demuxer-readahead-secs=6.000")
			So(args, ShouldContain, "--demuxer-max-bytes=4194304")
			So(args, ShouldContain, "--start=45.000")
			So(args, ShouldNotContain, "--vid=no")
			So(args[len(args)-1], ShouldEqual, "https://cdn.example/a.m3u8")
		})

		Convey("A preload hides video and asks for the lowest bitrate", func() {
			args := mpv.args("/tmp/s.sock", "https://cdn.example/a.m3u8", LoadOptions{Preload: true})
			So(args, ShouldContain, "--vid=no")
			So(args, ShouldContain, "--hls-bitrate=min")
			So(args, ShouldContain, "--force-window=no")
		})

		Convey("Unsafe titles are flattened", func() {
			So(sanitizeTitle("a\nb\tc\x00"), ShouldEqual, "a b c")
			So(sanitizeTitle("  "), ShouldEqual, constant.Reels)
		})
	})
}

func TestSanitizeMediaTarget(t *testing.T) {
	Convey("sanitizeMediaTarget", t, func() {
		Convey("Accepts http urls", func() {
			target, err := sanitizeMediaTarget(" https://cdn.example/a.m3u8 ")
			So(err, ShouldBeNil)
			So(target, ShouldEqual, "https://cdn.example/a.m3u8")
		})

		Convey("Rejects flags, control characters and other schemes", func() {
			for _, bad := range []string{"", "--script=x.lua", "http://a\nb", "file:///etc/passwd"} {
				_, err := sanitizeMediaTarget(bad)
				So(err, ShouldNotBeNil)
			}
		})
	})
}

func TestHandle(t *testing.T) {
	Convey("Given a sink receiving mpv notifications", t, func() {
		mpv := NewMPV(Options{Autoplay: true})

		var events []Event
		unsubscribe := mpv.Subscribe(func(e Event) { events = append(events, e) })

		Convey("Loading then restarting reports metadata, data and canplay once", func() {
			mpv.handle("duration", 30.0)
			mpv.handle("file-loaded", map[string]any{"event": "file-loaded"})
			mpv.handle("playback-restart", map[string]any{"event": "playback-restart"})
			mpv.handle("playback-restart", map[string]any{"event": "playback-restart"})

			So(events, ShouldResemble, []Event{
				MetadataLoaded{Duration: 30},
				DataLoaded{},
				CanPlay{},
				CanPlay{},
			})
			So(mpv.Media().ReadyState, ShouldEqual, HaveEnoughData)
		})

		Convey("Seeking drops the ready state until playback restarts", func() {
			mpv.handle("file-loaded", nil)
			mpv.handle("playback-restart", nil)
			mpv.handle("seeking", true)
			So(mpv.Media().ReadyState, ShouldEqual, HaveMetadata)
		})

		Convey("Property changes update the media snapshot", func() {
			mpv.handle("time-pos", 12.5)
			mpv.handle("demuxer-cache-time", 20.0)
			mpv.handle("duration", 40.0)
			mpv.handle("pause", false)

			media := mpv.Media()
			So(media.Position, ShouldEqual, 12.5)
			So(media.BufferedFraction(), ShouldEqual, 0.5)
			So(media.Paused, ShouldBeFalse)
			So(events, ShouldResemble, []Event{TimeUpdate{Position: 12.5}, BufferUpdate{End: 20}})
		})

		Convey("An end-file error fails the source", func() {
			mpv.handle("end-file", map[string]any{"event": "end-file", "reason": "error", "file_error": "loading failed"})
			So(events, ShouldHaveLength, 1)
			failed, ok := events[0].(Failed)
			So(ok, ShouldBeTrue)
			So(failed.Err.Error(), ShouldContainSubstring, "loading failed")
		})

		Convey("A normal end-file is ignored", func() {
			mpv.handle("end-file", map[string]any{"event": "end-file", "reason": "eof"})
			So(events, ShouldBeEmpty)
		})

		Convey("Unsubscribed listeners hear nothing", func() {
			unsubscribe()
			mpv.handle("time-pos", 1.0)
			So(events, ShouldBeEmpty)
		})
	})
}

func TestPlayPolicy(t *testing.T) {
	Convey("Without autoplay", t, func() {
		mpv := NewMPV(Options{})

		Convey("A play without a gesture is blocked", func() {
			So(mpv.Play(context.Background(), PlayOptions{}), ShouldEqual, ErrAutoplayBlocked)
		})

		Convey("A gesture lets the play reach mpv", func() {
			err := mpv.Play(context.Background(), PlayOptions{Gesture: true})
			So(err, ShouldEqual, ErrClosed)
		})
	})

	Convey("CanPlayNative follows the native hls option", t, func() {
		So(NewMPV(Options{}).CanPlayNative(constant.MimeHLS), ShouldBeFalse)
		So(NewMPV(Options{NativeHLS: true}).CanPlayNative(constant.MimeHLS), ShouldBeTrue)
		So(NewMPV(Options{}).CanPlayNative(constant.MimeMP4), ShouldBeTrue)
	})
}

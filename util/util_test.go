package util

import (
	"testing"

	"github.com/reels-cli/reels/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestQuantify(t *testing.T) {
	Convey("Quantify", t, func() {
		So(Quantify(1, "reel", "reels"), ShouldEqual, "1 reel")
		So(Quantify(0, "reel", "reels"), ShouldEqual, "0 reels")
	})
}

func TestCapitalize(t *testing.T) {
	Convey("Capitalize", t, func() {
		So(Capitalize("cache directory"), ShouldEqual, "Cache directory")
		So(Capitalize(""), ShouldEqual, "")
	})
}

func TestClamp(t *testing.T) {
	Convey("Clamp keeps values inside the range", t, func() {
		So(Clamp(-0.5, 0, 4), ShouldEqual, 0)
		So(Clamp(2.5, 0, 4), ShouldEqual, 2.5)
		So(Clamp(9, 0, 4), ShouldEqual, 4)
	})
}

func TestMax(t *testing.T) {
	Convey("Max", t, func() {
		So(Max(1, 5, 2), ShouldEqual, 5)
		So(Max[int](), ShouldEqual, 0)
	})
}

func TestDelete(t *testing.T) {
	Convey("Given a directory with a file", t, func() {
		fs := filesystem.API()
		So(fs.MkdirAll("/tmp/reels/ipc", 0o755), ShouldBeNil)
		So(fs.WriteFile("/tmp/reels/ipc/a.sock", []byte("x"), 0o644), ShouldBeNil)

		Convey("Files are removed", func() {
			So(Delete("/tmp/reels/ipc/a.sock"), ShouldBeNil)
			exists, _ := fs.Exists("/tmp/reels/ipc/a.sock")
			So(exists, ShouldBeFalse)
		})

		Convey("Directories are removed recursively", func() {
			So(Delete("/tmp/reels"), ShouldBeNil)
			exists, _ := fs.DirExists("/tmp/reels")
			So(exists, ShouldBeFalse)
		})

		Convey("Missing paths fail", func() {
			So(Delete("/nope"), ShouldNotBeNil)
		})
	})
}

func TestStack(t *testing.T) {
	Convey("Given a stack", t, func() {
		var s Stack[string]

		Convey("Pop and Peek on empty return zero values", func() {
			So(s.Pop(), ShouldBeEmpty)
			So(s.Peek(), ShouldBeEmpty)
		})

		Convey("Elements come back in reverse order", func() {
			s.Push("feed")
			s.Push("jump")
			So(s.Peek(), ShouldEqual, "jump")
			So(s.Pop(), ShouldEqual, "jump")
			So(s.Pop(), ShouldEqual, "feed")
			So(s.Len(), ShouldEqual, 0)
		})
	})
}

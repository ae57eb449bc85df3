package location

import (
	"fmt"
	"testing"
	"time"

	"github.com/reels-cli/reels/filesystem"
	"github.com/reels-cli/reels/loop"
	"github.com/reels-cli/reels/media"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

type fakeNavigator struct {
	current int
	moves   []string
}

func (f *fakeNavigator) Current() int {
	return f.current
}

func (f *fakeNavigator) NavigateTo(index int, direction media.Direction) {
	f.moves = append(f.moves, fmt.Sprintf("%d %s", index, direction))
	f.current = index
}

func feed(n int) []media.Item {
	items := make([]media.Item, n)
	for i := range items {
		items[i] = media.Item{ID: fmt.Sprint(i + 1), URL: fmt.Sprintf("https://cdn.test/%d.m3u8", i+1)}
	}
	return items
}

func TestFormat(t *testing.T) {
	Convey("Locations carry the id as a query parameter", t, func() {
		So(Format(DefaultBase, "7"), ShouldEqual, "reels://shorts?id=7")
		So(IDOf("reels://shorts?id=7"), ShouldEqual, "7")
		So(IDOf(Format("https://example.com/shorts?x=1", "a b")), ShouldEqual, "a b")
		So(IDOf("reels://shorts"), ShouldBeEmpty)
	})
}

func TestMount(t *testing.T) {
	Convey("Given a feed of five items", t, func() {
		items := feed(5)

		Convey("A known id becomes the current index", func() {
			history := NewMemory("reels://shorts?id=3")
			sync := NewSync(history, DefaultBase, nil)

			So(sync.Mount(items), ShouldEqual, 2)
			So(history.Current(), ShouldEqual, "reels://shorts?id=3")
		})

		Convey("An unknown id starts at the first item and is rewritten", func() {
			history := NewMemory("reels://shorts?id=42")
			sync := NewSync(history, DefaultBase, nil)

			So(sync.Mount(items), ShouldEqual, 0)
			So(history.Current(), ShouldEqual, "reels://shorts?id=1")
			So(history.Len(), ShouldEqual, 1)
		})

		Convey("A missing id does the same", func() {
			history := NewMemory(DefaultBase)
			sync := NewSync(history, "", nil)

			So(sync.Mount(items), ShouldEqual, 0)
			So(sync.Location(), ShouldEqual, "reels://shorts?id=1")
		})
	})
}

func TestFollow(t *testing.T) {
	Convey("Given an attached sync", t, func() {
		manual := loop.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		history := NewMemory("reels://shorts?id=1")
		sync := NewSync(history, DefaultBase, nil)
		nav := &fakeNavigator{current: sync.Mount(feed(5))}
		sync.Attach(manual, nav)
		defer sync.Close()

		Convey("Commits replace the entry", func() {
			sync.Commit("2")
			So(history.Current(), ShouldEqual, "reels://shorts?id=2")
			So(history.Len(), ShouldEqual, 1)
			So(nav.moves, ShouldBeEmpty)
		})

		Convey("External navigation moves the feed", func() {
			history.Navigate("reels://shorts?id=4")
			manual.Drain()
			So(nav.moves, ShouldResemble, []string{"3 forward"})

			Convey("and back moves it back", func() {
				So(history.Back(), ShouldBeTrue)
				manual.Drain()
				So(nav.moves, ShouldResemble, []string{"3 forward", "0 backward"})

				So(history.Back(), ShouldBeFalse)
				So(history.Forward(), ShouldBeTrue)
				manual.Drain()
				So(nav.current, ShouldEqual, 3)
			})
		})

		Convey("Locations naming the current or no item are ignored", func() {
			history.Navigate("reels://shorts?id=1")
			history.Navigate("reels://shorts?id=99")
			manual.Drain()
			So(nav.moves, ShouldBeEmpty)
		})

		Convey("Nothing is followed after Close", func() {
			sync.Close()
			history.Navigate("reels://shorts?id=5")
			manual.Drain()
			So(nav.moves, ShouldBeEmpty)
		})
	})
}

func TestStore(t *testing.T) {
	Convey("Given a store", t, func() {
		path := fmt.Sprintf("/reels/location-%d.json", time.Now().UnixNano())
		store := NewStore(path)

		Convey("Nothing is remembered at first", func() {
			So(store.Load().IsAbsent(), ShouldBeTrue)
		})

		Convey("Committed locations are remembered across instances", func() {
			sync := NewSync(NewMemory(DefaultBase), DefaultBase, store)
			sync.Mount(feed(3))
			sync.Commit("3")

			location, ok := NewStore(path).Load().Get()
			So(ok, ShouldBeTrue)
			So(location, ShouldEqual, "reels://shorts?id=3")
		})
	})
}

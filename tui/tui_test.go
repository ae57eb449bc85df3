package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/reels-cli/reels/feed"
	"github.com/reels-cli/reels/filesystem"
	"github.com/reels-cli/reels/key"
	"github.com/reels-cli/reels/location"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/network"
	"github.com/reels-cli/reels/player"
	"github.com/reels-cli/reels/session"
	"github.com/samber/lo"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
	viper.Set(key.IconsVariant, "plain")
}

func items(n int) []media.Item {
	return lo.Times(n, func(i int) media.Item {
		return media.Item{ID: fmt.Sprint(i + 1), URL: fmt.Sprintf("https://cdn.test/reel-%d/master.m3u8", i+1)}
	})
}

func TestRankItems(t *testing.T) {
	Convey("Given a feed", t, func() {
		feedItems := []media.Item{
			{ID: "7", URL: "https://cdn.test/cats/master.m3u8"},
			{ID: "12", URL: "https://cdn.test/dogs/master.m3u8"},
			{ID: "dogs", URL: "https://cdn.test/birds/master.m3u8"},
		}

		Convey("An empty query matches nothing", func() {
			So(rankItems("  ", feedItems), ShouldBeEmpty)
		})

		Convey("An exact id comes first", func() {
			matches := rankItems("#dogs", feedItems)
			So(matches, ShouldNotBeEmpty)
			So(matches[0].ID, ShouldEqual, "dogs")
			So(lo.Map(matches, func(item media.Item, _ int) string { return item.ID }), ShouldContain, "12")
		})

		Convey("URLs are matched fuzzily and case-insensitively", func() {
			matches := rankItems("CATS", feedItems)
			So(matches, ShouldHaveLength, 1)
			So(matches[0].ID, ShouldEqual, "7")
		})

		Convey("Matches are capped", func() {
			So(len(rankItems("master", items(20))), ShouldEqual, maxMatches)
		})
	})
}

func TestStatusLines(t *testing.T) {
	Convey("Given the active item", t, func() {
		view := feed.ItemView{Item: media.Item{ID: "1"}, Mode: media.Full}
		joined := func(lines []string) string { return strings.Join(lines, "\n") }

		Convey("Unloaded items ask to be scrolled to", func() {
			view.Mode = media.None
			So(joined(statusLines(view, false, "*")), ShouldContainSubstring, "Scroll to load")
		})

		Convey("Items without a session are loading", func() {
			So(joined(statusLines(view, false, "*")), ShouldContainSubstring, "* Loading")
		})

		Convey("Failed items show a plain message", func() {
			view.Session = mo.Some(session.State{Status: session.Errored, Err: errors.New("fatal network error")})
			text := joined(statusLines(view, false, "*"))
			So(text, ShouldContainSubstring, "Unable to load video")
			So(text, ShouldContainSubstring, "Please check your connection")
			So(text, ShouldNotContainSubstring, "fatal")
		})

		Convey("Playing items show their quality", func() {
			view.Session = mo.Some(session.State{Status: session.Playing, SegmentsReady: true, Playing: true, Height: 720})
			text := joined(statusLines(view, false, "*"))
			So(text, ShouldContainSubstring, "Playing")
			So(text, ShouldContainSubstring, "720p")
		})

		Convey("Paused items say so", func() {
			view.Session = mo.Some(session.State{Status: session.Paused, SegmentsReady: true})
			So(joined(statusLines(view, true, "*")), ShouldContainSubstring, "Paused")
		})
	})
}

func TestPreloadBadge(t *testing.T) {
	Convey("Given a preloaded neighbour", t, func() {
		view := feed.ItemView{
			Item:    media.Item{ID: "2"},
			Mode:    media.Preload,
			Session: mo.Some(session.State{Status: session.Ready, Preloaded: true}),
		}

		Convey("It is ready", func() {
			badge, ok := preloadBadge(view, media.Forward)
			So(ok, ShouldBeTrue)
			So(badge, ShouldEqual, "⚡ Ready")
		})

		Convey("The resume point shows when moving forward", func() {
			view.Saved = 75
			badge, _ := preloadBadge(view, media.Forward)
			So(badge, ShouldEqual, "⚡ Ready @ 1:15")

			badge, _ = preloadBadge(view, media.Backward)
			So(badge, ShouldEqual, "⚡ Ready")
		})

		Convey("Items still preloading have no badge", func() {
			view.Session = mo.Some(session.State{Status: session.Preloading})
			_, ok := preloadBadge(view, media.Forward)
			So(ok, ShouldBeFalse)
		})

		Convey("Fully loaded items have no badge", func() {
			view.Mode = media.Full
			_, ok := preloadBadge(view, media.Forward)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRail(t *testing.T) {
	Convey("The rail marks the current and the saved items", t, func() {
		snapshot := feed.Snapshot{Current: 1}
		for i, item := range items(4) {
			view := feed.ItemView{Item: item}
			if i == 3 {
				view.Saved = 12
			}
			snapshot.Items = append(snapshot.Items, view)
		}

		So(rail(snapshot, railRadius), ShouldEqual, "○ ● ○ ◍")

		Convey("Long feeds are elided around the window", func() {
			snapshot.Items = lo.Map(items(30), func(item media.Item, _ int) feed.ItemView {
				return feed.ItemView{Item: item}
			})
			snapshot.Current = 15
			dots := strings.Fields(rail(snapshot, 2))
			So(dots, ShouldResemble, []string{"…", "○", "○", "●", "○", "○", "…"})
		})
	})
}

func TestNetworkBadge(t *testing.T) {
	Convey("The badge shows the connection type and downlink", t, func() {
		badge := networkBadge(network.Quality{Tier: network.Low, EffectiveType: "3g", Downlink: 0.4})
		So(badge, ShouldContainSubstring, "3G")
		So(badge, ShouldContainSubstring, "0.4 Mbps")
	})
}

func TestScrollLabel(t *testing.T) {
	Convey("The scroll label shows only while scrolled away", t, func() {
		snapshot := feed.Snapshot{Items: make([]feed.ItemView, 5), Current: 2, Offset: 2}
		So(scrollLabel(snapshot), ShouldBeEmpty)

		snapshot.Offset = 2.4
		So(scrollLabel(snapshot), ShouldEqual, "↕ 3.4 / 5")
	})
}

func TestInitialLocation(t *testing.T) {
	Convey("Given a store with a remembered location", t, func() {
		store := location.NewStore("/reels/tui-location.json")
		So(store.Save("reels://shorts?id=9"), ShouldBeNil)

		Convey("An explicit id wins", func() {
			So(initialLocation(&Options{ID: "4", Continue: true}, location.DefaultBase, store), ShouldEqual, "reels://shorts?id=4")
		})

		Convey("Continue restores the remembered location", func() {
			So(initialLocation(&Options{Continue: true}, location.DefaultBase, store), ShouldEqual, "reels://shorts?id=9")
		})

		Convey("Otherwise the feed opens at the base", func() {
			So(initialLocation(&Options{}, location.DefaultBase, store), ShouldEqual, location.DefaultBase)
			So(initialLocation(&Options{Continue: true}, location.DefaultBase, nil), ShouldEqual, location.DefaultBase)
		})
	})
}

func TestKeymap(t *testing.T) {
	Convey("Help follows the state", t, func() {
		k := newStatefulKeymap()

		k.setState(errorState)
		So(k.ShortHelp(), ShouldHaveLength, 2)

		k.setState(feedState)
		So(len(k.FullHelp()[0]), ShouldBeGreaterThan, len(k.ShortHelp()))
	})
}

type countingSink struct {
	player.Sink
	closed int
}

func (c *countingSink) Close() error {
	c.closed++
	return nil
}

func TestSinkTracking(t *testing.T) {
	Convey("Given a stack with two sinks", t, func() {
		s := &stack{}
		first, second := &countingSink{}, &countingSink{}
		a, b := s.track(first), s.track(second)
		So(s.live(), ShouldEqual, 2)

		Convey("A closed sink is no longer tracked", func() {
			So(a.Close(), ShouldBeNil)
			So(first.closed, ShouldEqual, 1)
			So(s.live(), ShouldEqual, 1)

			So(b.Close(), ShouldBeNil)
			So(s.live(), ShouldEqual, 0)
		})
	})
}

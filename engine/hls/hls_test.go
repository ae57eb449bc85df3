package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reels-cli/reels/engine"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/network"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

const master = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=720x1280
high.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=200000,RESOLUTION=360x640
low.m3u8
`

func level(name string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:2\n#EXT-X-MEDIA-SEQUENCE:0\n")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, "#EXTINF:2.000,\n%s%d.ts\n", name, i)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

var payload = []byte(strings.Repeat("x", 1000))

// cdn serves a two-level stream. failing makes every request fail.
func cdn(failing *atomic.Bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing != nil && failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		switch path := r.URL.Path; {
		case path == "/master.m3u8":
			_, _ = io.WriteString(w, master)
		case path == "/low.m3u8":
			_, _ = io.WriteString(w, level("low"))
		case path == "/high.m3u8":
			_, _ = io.WriteString(w, level("high"))
		case strings.HasSuffix(path, ".ts"):
			_, _ = w.Write(payload)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testClient() *http.Client {
	return &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
}

func fastConfig(mode media.LoadMode) engine.Config {
	cfg := engine.For(network.High, mode)
	quick := engine.LoadPolicy{Timeout: time.Second, MaxRetry: 2, RetryDelay: time.Millisecond}
	cfg.Manifest, cfg.Level, cfg.Fragment = quick, quick, quick
	return cfg
}

func record(e *Engine) chan engine.Event {
	events := make(chan engine.Event, 256)
	e.Subscribe(func(event engine.Event) {
		select {
		case events <- event:
		default:
		}
	})
	return events
}

// waitFor drains events until match accepts one or the timeout passes.
func waitFor(events chan engine.Event, match func(engine.Event) bool) (engine.Event, bool) {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event := <-events:
			if match(event) {
				return event, true
			}
		case <-timeout:
			return nil, false
		}
	}
}

func TestDecode(t *testing.T) {
	Convey("Given a master playlist", t, func() {
		levels, pl, err := decode("https://cdn.example/v/master.m3u8", []byte(master))

		Convey("Levels are sorted by bandwidth with resolved URIs", func() {
			So(err, ShouldBeNil)
			So(pl, ShouldBeNil)
			So(levels, ShouldResemble, []engine.Level{
				{Bitrate: 200000, Width: 360, Height: 640, URI: "https://cdn.example/v/low.m3u8"},
				{Bitrate: 800000, Width: 720, Height: 1280, URI: "https://cdn.example/v/high.m3u8"},
			})
		})
	})

	Convey("Given a media playlist", t, func() {
		levels, pl, err := decode("https://cdn.example/v/low.m3u8", []byte(level("low")))
		So(err, ShouldBeNil)

		Convey("It is its own single level", func() {
			So(levels, ShouldHaveLength, 1)
			So(pl.segments, ShouldHaveLength, 5)
			So(pl.closed, ShouldBeTrue)
			So(pl.duration(), ShouldEqual, 10)
			So(pl.segments[2].start, ShouldEqual, 4)
			So(pl.segments[2].uri, ShouldEqual, "https://cdn.example/v/low2.ts")
		})

		Convey("indexAt finds the segment playing", func() {
			So(pl.indexAt(0), ShouldEqual, 0)
			So(pl.indexAt(3.9), ShouldEqual, 1)
			So(pl.indexAt(99), ShouldEqual, 4)
		})

		Convey("It re-encodes with origin segment URIs", func() {
			body, err := pl.encode()
			So(err, ShouldBeNil)
			So(string(body), ShouldContainSubstring, "seg/0")
			So(string(body), ShouldContainSubstring, "seg/4")
			So(string(body), ShouldContainSubstring, "#EXT-X-ENDLIST")
			So(string(body), ShouldNotContainSubstring, "low0.ts")
		})
	})

	Convey("Encrypted playlists are unsupported", t, func() {
		body := "#EXTM3U\n#EXT-X-TARGETDURATION:2\n#EXT-X-KEY:METHOD=AES-128,URI=\"k\"\n#EXTINF:2.0,\na.ts\n#EXT-X-ENDLIST\n"
		_, _, err := decode("https://cdn.example/a.m3u8", []byte(body))
		So(err, ShouldEqual, errEncrypted)
	})

	Convey("Anything else is not a playlist", t, func() {
		_, _, err := decode("https://cdn.example/a.m3u8", []byte("<html></html>"))
		So(err, ShouldNotBeNil)
	})
}

func TestABR(t *testing.T) {
	Convey("Given an estimator", t, func() {
		cfg := engine.For(network.High, media.Full).ABR
		est := newEstimator(cfg)
		levels := []engine.Level{{Bitrate: 200_000}, {Bitrate: 800_000}, {Bitrate: 2_000_000}}

		Convey("It falls back to the default estimate before any sample", func() {
			So(est.estimate(), ShouldEqual, 500_000)
			So(chooseLevel(levels, -1, est.estimate(), cfg), ShouldEqual, 0)
		})

		Convey("It converges on sustained samples", func() {
			for i := 0; i < 50; i++ {
				est.sample(2, 3_000_000)
			}
			So(est.estimate(), ShouldAlmostEqual, 3_000_000, 1)
			So(chooseLevel(levels, 2, est.estimate(), cfg), ShouldEqual, 2)
		})

		Convey("Switching up is held to the up factor", func() {
			// 2.5 Mbps covers level 2 at 0.95 but not at 0.7.
			So(chooseLevel(levels, 2, 2_500_000, cfg), ShouldEqual, 2)
			So(chooseLevel(levels, 1, 2_500_000, cfg), ShouldEqual, 1)
		})

		Convey("It reports the slower of its two averages", func() {
			for i := 0; i < 20; i++ {
				est.sample(2, 3_000_000)
			}
			est.sample(2, 100_000)
			So(est.estimate(), ShouldBeLessThan, est.slow.value())
		})
	})
}

func TestStore(t *testing.T) {
	Convey("Given a store over its limit", t, func() {
		s := newStore()
		for sn := 0; sn < 5; sn++ {
			s.put(&fragment{sn: sn, data: make([]byte, 100), start: float64(sn * 2), duration: 2})
		}
		So(s.size(), ShouldEqual, 500)

		Convey("Only fragments behind the back buffer are evicted", func() {
			evicted := s.evict(200, 8, 3)
			So(evicted, ShouldEqual, 2)
			_, ok := s.get(0)
			So(ok, ShouldBeFalse)
			_, ok = s.get(2)
			So(ok, ShouldBeTrue)
			So(s.size(), ShouldEqual, 300)
		})

		Convey("A store within its limit is left alone", func() {
			So(s.evict(1000, 8, 0), ShouldEqual, 0)
		})
	})
}

func TestEngine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	Convey("Given a two level stream", t, func() {
		var failing atomic.Bool
		server := cdn(&failing)

		Convey("A preload loads only the lowest level up to its budget", func() {
			e := New(fastConfig(media.Preload), Options{Client: testClient()})
			events := record(e)
			So(e.LoadSource(server.URL+"/master.m3u8"), ShouldBeNil)

			parsed, ok := waitFor(events, func(ev engine.Event) bool { _, ok := ev.(engine.ManifestParsed); return ok })
			So(ok, ShouldBeTrue)
			So(parsed.(engine.ManifestParsed).Levels, ShouldHaveLength, 2)

			e.SetCurrentLevel(0)
			e.StartLoad(0)

			switched, ok := waitFor(events, func(ev engine.Event) bool { _, ok := ev.(engine.LevelSwitched); return ok })
			So(ok, ShouldBeTrue)
			So(switched, ShouldResemble, engine.LevelSwitched{Level: 0, Height: 640})

			loaded, ok := waitFor(events, func(ev engine.Event) bool { _, ok := ev.(engine.FragLoaded); return ok })
			So(ok, ShouldBeTrue)
			So(loaded.(engine.FragLoaded).SN, ShouldEqual, 0)
			So(loaded.(engine.FragLoaded).Bytes, ShouldEqual, len(payload))

			_, ok = waitFor(events, func(ev engine.Event) bool {
				frag, ok := ev.(engine.FragLoaded)
				return ok && frag.SN == 1
			})
			So(ok, ShouldBeTrue)
			So(e.Duration(), ShouldEqual, 10)
			So(e.BufferedEnd(), ShouldEqual, 4)

			e.Destroy()
		})

		Convey("A failing manifest is retried then reported fatal", func() {
			failing.Store(true)
			e := New(fastConfig(media.Full), Options{Client: testClient()})
			events := record(e)
			So(e.LoadSource(server.URL+"/master.m3u8"), ShouldBeNil)

			var nonFatal int
			fatal, ok := waitFor(events, func(ev engine.Event) bool {
				err, ok := ev.(*engine.Error)
				if !ok {
					return false
				}
				if !err.Fatal {
					nonFatal++
				}
				return err.Fatal
			})
			So(ok, ShouldBeTrue)
			So(nonFatal, ShouldEqual, 2)
			So(fatal.(*engine.Error).Type, ShouldEqual, engine.NetworkError)
			So(fatal.(*engine.Error).Details, ShouldEqual, engine.ManifestLoadError)

			e.Destroy()
		})

		Convey("A non http source is refused", func() {
			e := New(fastConfig(media.Full), Options{Client: testClient()})
			So(e.LoadSource("file:///etc/passwd"), ShouldNotBeNil)
			e.Destroy()
		})

		Reset(func() {
			server.Close()
		})
	})
}

func TestOrigin(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	Convey("Given an origin serving an engine", t, func() {
		server := cdn(nil)
		origin, err := NewOrigin("127.0.0.1:0", false)
		So(err, ShouldBeNil)
		origin.Start(context.Background())

		client := testClient()
		e := New(fastConfig(media.Full), Options{Client: client, Origin: origin})
		So(e.LoadSource(server.URL+"/low.m3u8"), ShouldBeNil)

		get := func(u string) (int, string) {
			res, err := client.Get(u)
			if err != nil {
				return 0, err.Error()
			}
			defer res.Body.Close()
			body, _ := io.ReadAll(res.Body)
			return res.StatusCode, string(body)
		}

		Convey("The playlist points back at the origin", func() {
			status, body := get(origin.URL(e.ID()))
			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, "seg/0")
		})

		Convey("Segments are served from the CDN", func() {
			base := strings.TrimSuffix(origin.URL(e.ID()), "index.m3u8")
			status, body := get(base + "seg/3")
			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldEqual, string(payload))

			status, _ = get(base + "seg/99")
			So(status, ShouldEqual, http.StatusNotFound)

			status, _ = get(base + "seg/abc")
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Unknown engines are not found", func() {
			status, _ := get("http://" + origin.Addr() + "/hls/nope/index.m3u8")
			So(status, ShouldEqual, http.StatusNotFound)
		})

		Reset(func() {
			e.Destroy()
			_ = origin.Close()
			server.Close()
		})
	})
}

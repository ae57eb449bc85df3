package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestHandler(t *testing.T) {
	Convey("Given recorded activity", t, func() {
		ObserveFragment(2, 1024, 150*time.Millisecond)
		IncEngineError("network", false)
		IncSessionTransition("ready")
		IncPlayResult("ok")
		IncOriginRequest("segment", 200)

		Convey("The handler exposes it", func() {
			rec := httptest.NewRecorder()
			Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

			body, err := io.ReadAll(rec.Body)
			So(err, ShouldBeNil)
			So(string(body), ShouldContainSubstring, `reels_fragments_loaded_total{level="2"}`)
			So(string(body), ShouldContainSubstring, `reels_engine_errors_total{fatal="false",type="network"}`)
			So(string(body), ShouldContainSubstring, `reels_session_transitions_total{state="ready"}`)
			So(string(body), ShouldContainSubstring, "reels_fragment_bytes_total")
		})
	})
}

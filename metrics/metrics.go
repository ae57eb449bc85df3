// Package metrics counts engine and session activity for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FragmentsLoaded counts fragments fetched from the network, by level.
	FragmentsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reels_fragments_loaded_total",
		Help: "Fragments fetched from the upstream CDN, by quality level.",
	}, []string{"level"})

	// FragmentBytes counts fragment payload bytes.
	FragmentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reels_fragment_bytes_total",
		Help: "Fragment payload bytes fetched from the upstream CDN.",
	})

	FragmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reels_fragment_load_seconds",
		Help:    "Time to fetch one fragment.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	})

	// EngineErrors counts engine error events by type and fatality.
	EngineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reels_engine_errors_total",
		Help: "Streaming engine errors, by type and whether they were fatal.",
	}, []string{"type", "fatal"})

	// SessionTransitions counts session state changes by target state.
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reels_session_transitions_total",
		Help: "Playback session state transitions, by target state.",
	}, []string{"state"})

	// PlayResults counts play requests by outcome (ok, interrupted, blocked, failed).
	PlayResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reels_play_results_total",
		Help: "Play requests issued to the display sink, by outcome.",
	}, []string{"result"})

	OriginRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reels_origin_requests_total",
		Help: "Requests served by the loopback origin, by route and status.",
	}, []string{"route", "status"})
)

// ObserveFragment records one fetched fragment.
func ObserveFragment(level int, bytes int, elapsed time.Duration) {
	FragmentsLoaded.WithLabelValues(strconv.Itoa(level)).Inc()
	FragmentBytes.Add(float64(bytes))
	FragmentDuration.Observe(elapsed.Seconds())
}

func IncEngineError(kind string, fatal bool) {
	EngineErrors.WithLabelValues(kind, strconv.FormatBool(fatal)).Inc()
}

func IncSessionTransition(state string) {
	SessionTransitions.WithLabelValues(state).Inc()
}

func IncPlayResult(result string) {
	PlayResults.WithLabelValues(result).Inc()
}

func IncOriginRequest(route string, status int) {
	OriginRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

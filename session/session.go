// Package session implements the per-item playback state machine. A Session turns the props its
// feed controller pushes (load mode, activity, pause, direction, saved offset, network tier) into
// engine and display sink operations, and reports positions back through a Reporter.
//
// Every method must be called on the session's loop.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/engine"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/loop"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/metrics"
	"github.com/reels-cli/reels/network"
	"github.com/reels-cli/reels/player"
	"github.com/samber/mo"
)

// Status is the coarse state of a session.
type Status int

const (
	Idle Status = iota
	Initializing
	Preloading
	Loading
	Ready
	Playing
	Paused
	Errored
	Destroyed
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Preloading:
		return "preloading"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Errored:
		return "error"
	case Destroyed:
		return "destroyed"
	default:
		return "idle"
	}
}

// Props is what the controller decides for an item on every render.
type Props struct {
	Item      media.Item
	Mode      media.LoadMode
	Active    bool
	Paused    bool
	Direction media.Direction
	// Saved is the offset to resume from, 0 when there is none.
	Saved float64
	Tier  network.Tier
}

// State is the read-only projection of a session.
type State struct {
	Status          Status
	ManifestLoaded  bool
	SegmentsReady   bool
	Preloaded       bool
	Playing         bool
	HasResumed      bool
	AutoplayBlocked bool
	Err             error

	Level  int
	Height int

	// Buffered is the buffered fraction of the duration, in [0, 1].
	Buffered float64
	Position float64
	Duration float64
}

// Reporter receives what a session learns. It is called on the loop.
type Reporter interface {
	ReportPosition(id string, offset, duration float64)
	SessionChanged(id string)
}

// Deps are the collaborators of a session.
type Deps struct {
	Loop loop.Loop

	NewSink func(item media.Item) player.Sink

	// NewEngine builds the streaming engine for HLS sources. Nil leaves HLS to the sink.
	NewEngine engine.Factory

	// RetryLimit bounds the non-fatal network errors tolerated between two loaded fragments.
	RetryLimit int
}

// ErrStreamUnsupported is set when an HLS source can neither be played natively nor through an engine.
var ErrStreamUnsupported = errors.New("HLS not supported")

var (
	// ErrSinkExited is set when the display sink went away on its own.
	ErrSinkExited = errors.New("player exited")

	// ErrRecoveryFailed is joined to errors that occur while recovering from a media error.
	ErrRecoveryFailed = errors.New("media error recovery failed")
)

const (
	// ReadyDelay separates a parsed manifest from the Ready transition of a full load.
	ReadyDelay = 100 * time.Millisecond

	// PlayRetryDelay is how long an interrupted play waits before it is tried again.
	PlayRetryDelay = 200 * time.Millisecond

	// ReloadDelay precedes the single reload after a fatal network error.
	ReloadDelay = time.Second

	// ReportInterval is the media time between two position reports.
	ReportInterval = 2.0

	// BufferSampleInterval is the cadence of buffered fraction sampling.
	BufferSampleInterval = 2 * time.Second

	// ResumeThreshold is the saved offset a forward visit must exceed to resume.
	ResumeThreshold = 3.0
)

// Session owns one item's sink and engine.
type Session struct {
	deps     Deps
	reporter Reporter

	props Props
	state State

	// gen invalidates callbacks scheduled before the last teardown.
	gen    int
	ctx    context.Context
	cancel context.CancelFunc

	src    string
	mode   media.LoadMode
	native bool
	// tier is the network tier the engine config was last built for.
	tier network.Tier

	sink        player.Sink
	engine      engine.Engine
	unsubscribe []func()

	loadStarted bool
	retries     int
	reloaded    bool
	recovered   bool
	lastReport  float64

	// op is the transport operation in flight, if any.
	op             *op
	seek           mo.Option[float64]
	resumeSeek     bool
	promote        bool
	gesture        bool
	waitingCanPlay bool

	readyTimer  loop.Timer
	bufferTimer loop.Timer
	retryTimer  loop.Timer
	playRetry   loop.Timer
}

// New returns an idle session. Nothing is loaded until Update receives a non-None mode.
func New(deps Deps, reporter Reporter) *Session {
	if deps.RetryLimit <= 0 {
		deps.RetryLimit = 6
	}
	return &Session{
		deps:     deps,
		reporter: reporter,
		state:    State{Level: -1},
	}
}

// Update applies new props.
func (s *Session) Update(props Props) {
	prev := s.props
	s.props = props

	if s.state.Status == Destroyed {
		return
	}

	if props.Mode == media.None {
		if s.src != "" {
			s.release()
			s.reset()
			s.setStatus(Idle)
		}
		return
	}

	switch {
	case s.src != props.Item.URL:
		if s.src != "" {
			s.release()
			s.reset()
			s.setStatus(Destroyed)
		}
		s.init()
	case s.mode == media.Preload && props.Mode == media.Full:
		s.upgrade()
	}

	if s.engine != nil && props.Tier != s.tier {
		s.retune()
	}

	if props.Active && !prev.Active {
		s.activate()
	}
	if !props.Active {
		s.waitingCanPlay = false
	}

	s.reconcile()
	s.changed()
}

// Gesture marks the next play as a direct user request.
func (s *Session) Gesture() {
	s.gesture = true
	if s.state.AutoplayBlocked {
		s.state.AutoplayBlocked = false
		s.changed()
	}
	s.reconcile()
}

// Position returns the last known offset and duration.
func (s *Session) Position() (offset, duration float64) {
	return s.state.Position, s.state.Duration
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Props() Props {
	return s.props
}

// Destroy releases the engine and the sink. A destroyed session ignores further updates.
func (s *Session) Destroy() {
	if s.state.Status == Destroyed {
		return
	}
	s.release()
	s.reset()
	s.setStatus(Destroyed)
}

func (s *Session) id() string {
	return s.props.Item.ID
}

func isHLS(src string) bool {
	return strings.Contains(strings.ToLower(src), ".m3u8")
}

// init starts loading props.Item in props.Mode.
func (s *Session) init() {
	s.src = s.props.Item.URL
	s.mode = s.props.Mode
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.setStatus(Initializing)

	sink := s.deps.NewSink(s.props.Item)
	s.sink = sink
	s.watchSink(sink)

	s.tier = s.props.Tier
	cfg := engine.For(s.tier, s.mode)
	hls := isHLS(s.src)

	switch {
	case !hls || sink.CanPlayNative(constant.MimeHLS):
		s.native = true
		log.Infof("[%s] %s load through the sink", s.id(), s.mode)
		s.loadNative(cfg, 0)
	case s.deps.NewEngine != nil:
		log.Infof("[%s] %s load through the engine", s.id(), s.mode)
		s.attachEngine(cfg)
	default:
		s.fail(ErrStreamUnsupported)
		return
	}

	s.sampleBuffer()
}

// loadNative points the sink at the source itself.
func (s *Session) loadNative(cfg engine.Config, start float64) {
	gen, ctx, sink, src := s.gen, s.ctx, s.sink, s.src
	opts := player.LoadOptions{
		Preload:   s.mode == media.Preload,
		Readahead: cfg.MaxBufferLength,
		MaxBytes:  cfg.MaxBufferSize,
		Start:     start,
	}

	s.deps.Loop.Go(func() func() {
		err := sink.Load(ctx, src, opts)
		return func() {
			if gen != s.gen {
				return
			}
			if err != nil {
				log.Warnf("[%s] load: %s", s.id(), err)
				s.fail(err)
				return
			}
			s.loaded()
			s.reconcile()
		}
	})
}

// attachEngine creates an engine for cfg, loads the source and attaches the sink.
func (s *Session) attachEngine(cfg engine.Config) {
	eng := s.deps.NewEngine(cfg)
	s.engine = eng
	s.loadStarted = cfg.AutoStartLoad
	s.watchEngine(eng)

	gen, sink, src := s.gen, s.sink, s.src
	s.deps.Loop.Go(func() func() {
		if err := eng.LoadSource(src); err != nil {
			return func() {
				if gen == s.gen && eng == s.engine {
					s.fail(err)
				}
			}
		}

		// attach failures come back as engine media errors
		err := eng.AttachMedia(sink)
		return func() {
			if gen == s.gen && eng == s.engine && err == nil {
				s.loaded()
				s.reconcile()
			}
		}
	})
}

// loaded moves an initializing session to its loading status.
func (s *Session) loaded() {
	if s.state.Status != Initializing {
		return
	}
	if s.mode == media.Preload {
		s.setStatus(Preloading)
	} else {
		s.setStatus(Loading)
	}
}

// upgrade turns a preloading session into a full one.
func (s *Session) upgrade() {
	s.mode = media.Full
	s.tier = s.props.Tier
	cfg := engine.For(s.tier, media.Full)
	if s.state.Status == Preloading {
		s.setStatus(Loading)
	}

	if eng := s.engine; eng != nil {
		start := !s.loadStarted
		s.loadStarted = true
		low := s.props.Tier == network.Low
		s.deps.Loop.Go(func() func() {
			eng.UpdateConfig(cfg)
			if low {
				eng.SetCurrentLevel(0)
			} else {
				eng.SetCurrentLevel(-1)
			}
			if start {
				eng.StartLoad(-1)
			}
			return nil
		})
	}

	s.promote = true
	log.Infof("[%s] promoted to full load", s.id())
}

// retune applies a new network tier to a running engine.
func (s *Session) retune() {
	s.tier = s.props.Tier
	eng, cfg := s.engine, engine.For(s.tier, s.mode)
	full, low := s.mode == media.Full, s.props.Tier == network.Low
	s.deps.Loop.Go(func() func() {
		eng.UpdateConfig(cfg)
		if full && low {
			eng.SetCurrentLevel(0)
		}
		return nil
	})
}

// activate runs when the item becomes current.
func (s *Session) activate() {
	if s.engine != nil && s.state.SegmentsReady && !s.loadStarted {
		eng := s.engine
		s.loadStarted = true
		s.deps.Loop.Go(func() func() {
			eng.StartLoad(0)
			return nil
		})
	}
	if s.state.SegmentsReady {
		s.resume()
	}
}

// markReady is the Ready transition. It runs the resume decision once.
func (s *Session) markReady() {
	if s.terminal() || s.state.SegmentsReady {
		return
	}

	s.state.SegmentsReady = true
	if s.mode == media.Preload {
		s.state.Preloaded = true
	}
	if s.state.Status < Ready {
		s.setStatus(Ready)
	}

	s.resume()
	s.reconcile()
	s.changed()
}

// resume decides where playback starts: the saved offset on a forward visit of the active item,
// zero otherwise.
func (s *Session) resume() {
	s.state.HasResumed = false
	s.resumeSeek = false

	saved := s.props.Saved
	if saved > ResumeThreshold && s.props.Active && s.props.Direction == media.Forward {
		log.Infof("[%s] resuming at %s", s.id(), media.FormatTime(saved))
		s.seek = mo.Some(saved)
		s.resumeSeek = true
		return
	}

	if s.sink != nil && s.sink.Media().ReadyState >= player.HaveCurrentData {
		s.seek = mo.Some(0.0)
	}
	s.state.HasResumed = true
}

func (s *Session) terminal() bool {
	return s.state.Status == Errored || s.state.Status == Destroyed
}

func (s *Session) setStatus(status Status) {
	if s.state.Status == status {
		return
	}
	log.Debugf("[%s] %s -> %s", s.id(), s.state.Status, status)
	s.state.Status = status
	metrics.IncSessionTransition(status.String())
	s.changed()
}

func (s *Session) changed() {
	if s.reporter != nil {
		s.reporter.SessionChanged(s.id())
	}
}

// release cancels everything the session scheduled and hands the engine and sink to a
// background teardown. Outstanding operations are discarded, never awaited.
func (s *Session) release() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}

	for _, t := range []loop.Timer{s.readyTimer, s.bufferTimer, s.retryTimer, s.playRetry} {
		if t != nil {
			t.Stop()
		}
	}
	s.readyTimer, s.bufferTimer, s.retryTimer, s.playRetry = nil, nil, nil, nil

	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil

	eng, sink := s.engine, s.sink
	s.engine, s.sink = nil, nil
	if eng == nil && sink == nil {
		return
	}

	id := s.id()
	s.deps.Loop.Go(func() func() {
		if eng != nil {
			eng.Destroy()
		}
		if sink != nil {
			if err := sink.Close(); err != nil {
				log.Warnf("[%s] close sink: %s", id, err)
			}
		}
		return nil
	})
}

// reset clears every initialization flag so the next Update starts over.
func (s *Session) reset() {
	status := s.state.Status
	s.state = State{Status: status, Level: -1}

	s.src = ""
	s.mode = media.None
	s.native = false
	s.loadStarted = false
	s.retries = 0
	s.reloaded = false
	s.recovered = false
	s.lastReport = 0
	s.op = nil
	s.seek = mo.None[float64]()
	s.resumeSeek = false
	s.promote = false
	s.gesture = false
	s.waitingCanPlay = false
}

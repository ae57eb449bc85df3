package session

import (
	"errors"
	"fmt"
	"math"

	"github.com/reels-cli/reels/engine"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/network"
	"github.com/reels-cli/reels/player"
	"github.com/samber/mo"
)

// watchSink forwards sink events to the loop for as long as the current generation lives.
func (s *Session) watchSink(sink player.Sink) {
	gen := s.gen
	unsubscribe := sink.Subscribe(func(event player.Event) {
		s.deps.Loop.Post(func() {
			if gen == s.gen && sink == s.sink {
				s.onSink(event)
			}
		})
	})
	s.unsubscribe = append(s.unsubscribe, unsubscribe)
}

func (s *Session) watchEngine(eng engine.Engine) {
	gen := s.gen
	unsubscribe := eng.Subscribe(func(event engine.Event) {
		s.deps.Loop.Post(func() {
			if gen == s.gen && eng == s.engine {
				s.onEngine(event)
			}
		})
	})
	s.unsubscribe = append(s.unsubscribe, unsubscribe)
}

func (s *Session) onSink(event player.Event) {
	if s.terminal() {
		return
	}

	switch e := event.(type) {
	case player.MetadataLoaded:
		s.state.Duration = e.Duration
		if s.native {
			s.state.ManifestLoaded = true
		}
		s.changed()
	case player.DataLoaded:
		if s.native {
			s.markReady()
		}
		s.onCanPlay()
	case player.CanPlay:
		s.onCanPlay()
	case player.TimeUpdate:
		s.onTime(e.Position)
	case player.BufferUpdate:
		if s.native {
			s.sampleBuffer()
		}
	case player.Failed:
		// the engine reports failures of the media it serves
		if s.native {
			s.mediaFailed(e.Err)
		}
	case player.Exited:
		s.fail(ErrSinkExited)
	}
}

func (s *Session) onCanPlay() {
	if s.waitingCanPlay {
		s.waitingCanPlay = false
		s.reconcile()
	}
}

func (s *Session) onTime(position float64) {
	s.state.Position = position

	if s.props.Active && s.state.Playing {
		if position-s.lastReport >= ReportInterval || position < s.lastReport {
			s.lastReport = position
			s.report(position)
		}
	}
	s.changed()
}

func (s *Session) report(position float64) {
	if s.reporter != nil && position > 0 {
		s.reporter.ReportPosition(s.id(), position, s.state.Duration)
	}
}

func (s *Session) onEngine(event engine.Event) {
	if s.terminal() {
		return
	}

	switch e := event.(type) {
	case engine.ManifestParsed:
		s.manifestParsed(e)
	case engine.FragLoading:
		log.Tracef("[%s] loading fragment %d of level %d", s.id(), e.SN, e.Level)
	case engine.FragLoaded:
		s.retries = 0
		log.Tracef("[%s] loaded fragment %d of level %d (%d bytes)", s.id(), e.SN, e.Level, e.Bytes)
		if !s.state.SegmentsReady {
			s.markReady()
		}
		s.sampleBuffer()
	case engine.LevelSwitched:
		s.state.Level = e.Level
		s.state.Height = e.Height
		s.changed()
	case *engine.Error:
		s.engineFailed(e)
	}
}

func (s *Session) manifestParsed(e engine.ManifestParsed) {
	s.state.ManifestLoaded = true
	eng := s.engine

	switch s.mode {
	case media.Preload:
		start := !s.loadStarted
		s.loadStarted = true
		s.deps.Loop.Go(func() func() {
			eng.SetCurrentLevel(0)
			if start {
				eng.StartLoad(0)
			}
			return nil
		})
	case media.Full:
		if s.props.Tier == network.Low {
			s.deps.Loop.Go(func() func() {
				eng.SetCurrentLevel(0)
				return nil
			})
		}
		if s.readyTimer != nil {
			s.readyTimer.Stop()
		}
		s.readyTimer = s.deps.Loop.AfterFunc(ReadyDelay, func() {
			s.readyTimer = nil
			s.markReady()
		})
	}

	log.Infof("[%s] manifest parsed, %d levels", s.id(), len(e.Levels))
	s.changed()
}

// engineFailed separates what the engine recovers from on its own from what ends the session.
func (s *Session) engineFailed(e *engine.Error) {
	switch {
	case e.Details == engine.StreamUnsupported:
		s.fail(fmt.Errorf("%w: %w", ErrStreamUnsupported, e))
	case e.Type == engine.NetworkError && !e.Fatal:
		s.retries++
		if s.retries > s.deps.RetryLimit {
			log.Warnf("[%s] giving up after %d network errors", s.id(), s.retries-1)
			s.fail(e)
			return
		}
		s.scheduleRetry()
	case e.Type == engine.NetworkError:
		if s.reloaded {
			s.fail(e)
			return
		}
		s.reloaded = true
		log.Warnf("[%s] %s, reloading", s.id(), e)
		s.retryTimer = s.deps.Loop.AfterFunc(ReloadDelay, func() {
			s.retryTimer = nil
			s.reload()
		})
	case e.Type == engine.MediaError:
		s.mediaFailed(e)
	case e.Fatal:
		s.fail(e)
	}
}

// scheduleRetry re-invokes loading once the fragment retry delay has passed. Loading that is still
// running ignores it.
func (s *Session) scheduleRetry() {
	if s.retryTimer != nil || !s.loadStarted {
		return
	}

	delay := engine.For(s.props.Tier, s.mode).Fragment.RetryDelay
	s.retryTimer = s.deps.Loop.AfterFunc(delay, func() {
		s.retryTimer = nil
		if eng := s.engine; eng != nil {
			level := -1
			if s.mode == media.Preload {
				level = 0
			}
			s.deps.Loop.Go(func() func() {
				eng.StartLoad(level)
				return nil
			})
		}
	})
}

// reload replaces the engine with a fresh one on the same sink.
func (s *Session) reload() {
	if s.terminal() || s.engine == nil {
		return
	}

	old := s.engine
	s.engine = nil
	s.deps.Loop.Go(func() func() {
		old.Destroy()
		return nil
	})

	if s.state.Position > 0 {
		s.seek = mo.Some(s.state.Position)
	}
	s.state.Playing = false
	s.tier = s.props.Tier
	s.attachEngine(engine.For(s.tier, s.mode))
}

// mediaFailed gets one recovery attempt.
func (s *Session) mediaFailed(err error) {
	if s.recovered {
		s.fail(err)
		return
	}
	s.recovered = true
	s.state.Playing = false
	log.Warnf("[%s] %s, recovering", s.id(), err)

	if s.native {
		s.loadNative(engine.For(s.props.Tier, s.mode), s.state.Position)
		return
	}

	eng, gen := s.engine, s.gen
	s.deps.Loop.Go(func() func() {
		err := eng.RecoverMediaError()
		return func() {
			if gen != s.gen || eng != s.engine {
				return
			}
			if err != nil {
				s.fail(errors.Join(ErrRecoveryFailed, err))
				return
			}
			s.reconcile()
		}
	})
}

// fail moves the session to Errored and releases its engine and sink. Siblings are unaffected.
func (s *Session) fail(err error) {
	if s.terminal() {
		return
	}

	log.Errorf("[%s] %s", s.id(), err)
	s.release()
	s.state.Err = err
	s.state.Playing = false
	s.op = nil
	s.setStatus(Errored)
}

// sampleBuffer recomputes the buffered fraction off the loop. Only moves above 1% are kept.
func (s *Session) sampleBuffer() {
	if s.bufferTimer != nil {
		s.bufferTimer.Stop()
	}
	s.bufferTimer = s.deps.Loop.AfterFunc(BufferSampleInterval, func() {
		s.bufferTimer = nil
		s.sampleBuffer()
	})

	sink, eng, gen := s.sink, s.engine, s.gen
	if sink == nil {
		return
	}

	s.deps.Loop.Go(func() func() {
		m := sink.Media()
		if eng != nil {
			m.BufferedEnd = eng.BufferedEnd()
			if d := eng.Duration(); d > 0 {
				m.Duration = d
			}
		}
		fraction := m.BufferedFraction()

		return func() {
			if gen != s.gen || math.Abs(fraction-s.state.Buffered) <= 0.01 {
				return
			}
			s.state.Buffered = fraction
			s.changed()
		}
	})
}

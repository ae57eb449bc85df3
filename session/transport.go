package session

import (
	"errors"

	"github.com/reels-cli/reels/engine"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/metrics"
	"github.com/reels-cli/reels/player"
	"github.com/samber/mo"
)

type opKind int

const (
	opPlay opKind = iota
	opPause
	opSeek
	opPromote
)

// op is the handle of the one transport operation a session may have in flight.
type op struct {
	kind opKind
}

func (s *Session) wantsPlaying() bool {
	return s.props.Active &&
		!s.props.Paused &&
		s.state.HasResumed &&
		s.state.SegmentsReady &&
		!s.terminal()
}

// reconcile issues the next transport operation needed to bring the sink in line with the
// props. It does nothing while an operation is in flight; the settling operation calls it again.
func (s *Session) reconcile() {
	if s.sink == nil || s.terminal() || s.op != nil {
		return
	}

	if s.promote {
		s.promote = false
		s.startPromote()
		return
	}

	if target, ok := s.seek.Get(); ok {
		s.startSeek(target)
		return
	}

	want := s.wantsPlaying()
	switch {
	case want && !s.state.Playing:
		if s.playRetry != nil || (s.state.AutoplayBlocked && !s.gesture) {
			return
		}
		if s.sink.Media().ReadyState < player.HaveCurrentData {
			s.waitingCanPlay = true
			return
		}
		s.waitingCanPlay = false
		s.startPlay()
	case !want && s.state.Playing:
		s.startPause()
	}
}

func (s *Session) startPlay() {
	gen, ctx, sink := s.gen, s.ctx, s.sink
	gesture := s.gesture
	s.gesture = false
	s.op = &op{kind: opPlay}

	s.deps.Loop.Go(func() func() {
		err := sink.Play(ctx, player.PlayOptions{Gesture: gesture})
		if err == nil {
			err = sink.SetMuted(ctx, false)
		}
		return func() {
			if gen == s.gen {
				s.settlePlay(err)
			}
		}
	})
}

func (s *Session) settlePlay(err error) {
	s.op = nil

	switch {
	case err == nil:
		metrics.IncPlayResult("ok")
		s.state.Playing = true
		s.state.AutoplayBlocked = false
		s.setStatus(Playing)
	case errors.Is(err, player.ErrAutoplayBlocked):
		metrics.IncPlayResult("blocked")
		log.Infof("[%s] autoplay blocked, waiting for a key press", s.id())
		s.state.AutoplayBlocked = true
	case errors.Is(err, player.ErrInterrupted):
		metrics.IncPlayResult("interrupted")
		s.playRetry = s.deps.Loop.AfterFunc(PlayRetryDelay, func() {
			s.playRetry = nil
			s.reconcile()
		})
	default:
		metrics.IncPlayResult("error")
		log.Warnf("[%s] play: %s", s.id(), err)
	}

	s.changed()
	s.reconcile()
}

func (s *Session) startPause() {
	gen, ctx, sink := s.gen, s.ctx, s.sink
	s.op = &op{kind: opPause}

	s.deps.Loop.Go(func() func() {
		err := sink.Pause(ctx)
		if err == nil {
			err = sink.SetMuted(ctx, true)
		}
		m := sink.Media()
		return func() {
			if gen == s.gen {
				s.settlePause(m, err)
			}
		}
	})
}

func (s *Session) settlePause(m player.Media, err error) {
	s.op = nil

	if err != nil {
		log.Warnf("[%s] pause: %s", s.id(), err)
	} else {
		s.state.Playing = false
		if s.state.Status == Playing {
			s.setStatus(Paused)
		}
	}

	if m.Position > 0 {
		s.state.Position = m.Position
		s.report(m.Position)
	}

	s.changed()
	s.reconcile()
}

func (s *Session) startSeek(target float64) {
	gen, ctx, sink := s.gen, s.ctx, s.sink
	s.seek = mo.None[float64]()
	s.op = &op{kind: opSeek}

	s.deps.Loop.Go(func() func() {
		err := sink.Seek(ctx, target)
		return func() {
			if gen == s.gen {
				s.settleSeek(target, err)
			}
		}
	})
}

func (s *Session) settleSeek(target float64, err error) {
	s.op = nil

	if err != nil {
		log.Warnf("[%s] seek to %s: %s", s.id(), media.FormatTime(target), err)
	} else {
		s.state.Position = target
		s.lastReport = target
	}

	// a pending seek never blocks playback, even when it failed
	if s.resumeSeek {
		s.resumeSeek = false
		s.state.HasResumed = true
	}

	s.changed()
	s.reconcile()
}

func (s *Session) startPromote() {
	gen, ctx, sink := s.gen, s.ctx, s.sink
	cfg := engine.For(s.props.Tier, s.mode)
	opts := player.LoadOptions{
		Readahead: cfg.MaxBufferLength,
		MaxBytes:  cfg.MaxBufferSize,
	}
	s.op = &op{kind: opPromote}

	s.deps.Loop.Go(func() func() {
		err := sink.Promote(ctx, opts)
		return func() {
			if gen != s.gen {
				return
			}
			s.op = nil
			if err != nil {
				log.Warnf("[%s] promote: %s", s.id(), err)
			}
			s.reconcile()
		}
	})
}

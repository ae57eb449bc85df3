// Package player defines the display sink a playback session drives and implements it on mpv.
package player

import (
	"context"
	"errors"
	"math"
)

// ReadyState mirrors how much media the sink has available at the playhead.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// Media is a snapshot of the sink's element state.
type Media struct {
	Position    float64
	Duration    float64
	BufferedEnd float64
	ReadyState  ReadyState
	Paused      bool
	Muted       bool
}

// LoadOptions sizes a load. Readahead and MaxBytes bound what the sink buffers on its own.
type LoadOptions struct {
	Preload   bool
	Readahead float64
	MaxBytes  int64
	Start     float64
}

type PlayOptions struct {
	// Gesture is set when the play follows a direct key press.
	Gesture bool
}

var (
	// ErrInterrupted is returned by a play that was superseded before it took effect.
	ErrInterrupted = errors.New("play request was interrupted by a newer request")

	// ErrAutoplayBlocked is returned by a play the autoplay policy refuses without a gesture.
	ErrAutoplayBlocked = errors.New("autoplay is disabled, press space to play")

	// ErrClosed is returned by every operation on a closed sink.
	ErrClosed = errors.New("display sink is closed")
)

// Sink is a single video surface. Operations block until the sink acknowledged them and must be
// called off the event loop. Events are delivered on the sink's own goroutine.
type Sink interface {
	Load(ctx context.Context, src string, opts LoadOptions) error

	// Promote turns a preloading sink into a full one.
	Promote(ctx context.Context, opts LoadOptions) error

	Play(ctx context.Context, opts PlayOptions) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, position float64) error
	SetMuted(ctx context.Context, muted bool) error

	Media() Media

	// CanPlayNative reports whether the sink can demux the given mime type without an engine.
	CanPlayNative(mime string) bool

	Subscribe(fn func(Event)) (unsubscribe func())
	Close() error
}

// Event is emitted by a sink.
type Event interface {
	sinkEvent()
}

type (
	// MetadataLoaded follows a successful load of the source's metadata.
	MetadataLoaded struct{ Duration float64 }

	// DataLoaded reports that the frame at the playhead is available.
	DataLoaded struct{}

	// CanPlay reports that playback can start without stalling.
	CanPlay struct{}

	TimeUpdate struct{ Position float64 }

	BufferUpdate struct{ End float64 }

	// Failed reports a decode or demux failure of the loaded source.
	Failed struct{ Err error }

	// Exited reports that the sink went away without Close.
	Exited struct{}
)

func (MetadataLoaded) sinkEvent() {}
func (DataLoaded) sinkEvent()     {}
func (CanPlay) sinkEvent()        {}
func (TimeUpdate) sinkEvent()     {}
func (BufferUpdate) sinkEvent()   {}
func (Failed) sinkEvent()         {}
func (Exited) sinkEvent()         {}

// BufferedFraction is how much of the media is buffered, in [0, 1].
func (m Media) BufferedFraction() float64 {
	if m.Duration <= 0 || math.IsNaN(m.Duration) || math.IsInf(m.Duration, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, m.BufferedEnd/m.Duration))
}

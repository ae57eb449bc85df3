// Package engine describes the adaptive streaming engine a playback session drives: how it is
// configured, what it can be asked to do and what it reports back.
package engine

import (
	"fmt"

	"github.com/reels-cli/reels/player"
)

// Level is one rendition of a stream.
type Level struct {
	Bitrate int
	Width   int
	Height  int
	URI     string
}

// Engine fetches one HLS stream and feeds it to an attached sink. Methods may block on I/O and
// must be called off the event loop. Events are delivered on engine goroutines.
type Engine interface {
	LoadSource(url string) error
	AttachMedia(sink player.Sink) error

	// StartLoad begins fragment loading at level, or at the estimator's choice when level is -1.
	// It is a no-op while loading is already running.
	StartLoad(level int)
	StopLoad()

	// SetCurrentLevel pins a level; -1 returns control to the estimator.
	SetCurrentLevel(level int)
	CurrentLevel() int
	Levels() []Level

	// RecoverMediaError reattaches the sink at its current position.
	RecoverMediaError() error

	UpdateConfig(cfg Config)

	BufferedEnd() float64
	Duration() float64

	Subscribe(fn func(Event)) (unsubscribe func())
	Destroy()
}

// Factory builds an engine for a configuration.
type Factory func(cfg Config) Engine

// Event is emitted by an engine.
type Event interface {
	engineEvent()
}

type (
	FragLoading struct {
		SN    int
		Level int
	}

	FragLoaded struct {
		SN      int
		Level   int
		Bytes   int
		Elapsed float64
	}

	// ManifestParsed lists the levels of the stream, lowest bitrate first.
	ManifestParsed struct{ Levels []Level }

	LevelSwitched struct {
		Level  int
		Height int
	}
)

func (FragLoading) engineEvent()    {}
func (FragLoaded) engineEvent()     {}
func (ManifestParsed) engineEvent() {}
func (LevelSwitched) engineEvent()  {}
func (*Error) engineEvent()         {}

// ErrorType classifies engine errors.
type ErrorType string

const (
	NetworkError ErrorType = "network"
	MediaError   ErrorType = "media"
	OtherError   ErrorType = "other"
)

// Error is both an event and an error. Non-fatal errors are reported while the engine retries on
// its own; a fatal error means it gave up.
type Error struct {
	Type    ErrorType
	Details string
	Fatal   bool
	Err     error
}

func (e *Error) Error() string {
	severity := "non-fatal"
	if e.Fatal {
		severity = "fatal"
	}

	if e.Err != nil {
		return fmt.Sprintf("%s %s error (%s): %s", severity, e.Type, e.Details, e.Err)
	}
	return fmt.Sprintf("%s %s error (%s)", severity, e.Type, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Error details.
const (
	ManifestLoadError  = "manifestLoadError"
	ManifestParseError = "manifestParsingError"
	LevelLoadError     = "levelLoadError"
	FragLoadError      = "fragLoadError"
	BufferAppendError  = "bufferAppendError"
	AttachMediaError   = "attachMediaError"
	StreamUnsupported  = "streamUnsupported"
)

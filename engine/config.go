package engine

import (
	"time"

	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/network"
)

// LoadPolicy bounds one kind of request: each attempt gets Timeout, failed attempts are retried
// MaxRetry times after a fixed RetryDelay.
type LoadPolicy struct {
	Timeout    time.Duration
	MaxRetry   int
	RetryDelay time.Duration
}

// ABR tunes the bandwidth estimator.
type ABR struct {
	// DefaultEstimate is the bandwidth in bits per second assumed before any fragment arrived.
	DefaultEstimate float64
	// FastHalfLife and SlowHalfLife are in seconds of loaded media.
	FastHalfLife float64
	SlowHalfLife float64
	// BandwidthFactor scales the estimate when staying at or below the current level.
	BandwidthFactor float64
	// BandwidthUpFactor scales it when switching up.
	BandwidthUpFactor float64
}

// Config is the buffer budget and request policy of one engine instance.
type Config struct {
	AutoStartLoad bool

	// MaxBufferLength is the forward buffer target in seconds.
	MaxBufferLength float64
	// MaxMaxBufferLength is the hard ceiling in seconds.
	MaxMaxBufferLength float64
	// MaxBufferSize is the forward buffer ceiling in bytes.
	MaxBufferSize int64

	MaxBufferHole    float64
	BackBufferLength float64

	// StartLevel is the first level to load; -1 lets the estimator pick.
	StartLevel int

	ABR ABR

	Manifest LoadPolicy
	Level    LoadPolicy
	Fragment LoadPolicy

	HighBufferWatchdog float64
	NudgeMaxRetry      int
}

const megabyte = 1000 * 1000

// For returns the configuration for a session in mode on a connection of tier.
func For(tier network.Tier, mode media.LoadMode) Config {
	preload := mode == media.Preload

	cfg := Config{
		AutoStartLoad:      mode == media.Full,
		MaxBufferLength:    pick(preload, 3, 6),
		MaxMaxBufferLength: pick(preload, 5, 10),
		MaxBufferSize:      int64(pick(preload, 2*megabyte, 4*megabyte)),
		MaxBufferHole:      0.3,
		BackBufferLength:   5,
		StartLevel:         -1,
		ABR: ABR{
			DefaultEstimate:   pick(preload, 300_000, 500_000),
			FastHalfLife:      3,
			SlowHalfLife:      9,
			BandwidthFactor:   0.95,
			BandwidthUpFactor: 0.7,
		},
		Manifest:           LoadPolicy{Timeout: 10 * time.Second, MaxRetry: 3, RetryDelay: time.Second},
		Level:              LoadPolicy{Timeout: 10 * time.Second, MaxRetry: 4, RetryDelay: time.Second},
		Fragment:           LoadPolicy{Timeout: 20 * time.Second, MaxRetry: 6, RetryDelay: time.Second},
		HighBufferWatchdog: 2,
		NudgeMaxRetry:      3,
	}

	switch tier {
	case network.Low:
		cfg.MaxBufferLength = pick(preload, 2, 4)
		cfg.MaxMaxBufferLength = pick(preload, 3, 6)
		cfg.MaxBufferSize = int64(pick(preload, 1*megabyte, 2*megabyte))
		cfg.ABR.DefaultEstimate = 300_000
	case network.Medium:
		cfg.MaxBufferLength = pick(preload, 3, 5)
		cfg.MaxMaxBufferLength = pick(preload, 4, 8)
		cfg.MaxBufferSize = int64(pick(preload, 1.5*megabyte, 3*megabyte))
		cfg.ABR.DefaultEstimate = 800_000
	}

	return cfg
}

func pick(preload bool, ifPreload, otherwise float64) float64 {
	if preload {
		return ifPreload
	}
	return otherwise
}

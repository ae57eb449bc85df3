package hls

import (
	"math"

	"github.com/reels-cli/reels/engine"
)

// ewma is an exponentially weighted moving average where each sample carries a weight.
type ewma struct {
	alpha       float64
	estimate    float64
	totalWeight float64
}

func newEWMA(halfLife float64) *ewma {
	return &ewma{alpha: math.Exp(math.Log(0.5) / halfLife)}
}

func (e *ewma) sample(weight, value float64) {
	adjusted := math.Pow(e.alpha, weight)
	e.estimate = value*(1-adjusted) + adjusted*e.estimate
	e.totalWeight += weight
}

// value corrects the bias towards the zero the average started from.
func (e *ewma) value() float64 {
	zeroFactor := 1 - math.Pow(e.alpha, e.totalWeight)
	if zeroFactor == 0 {
		return e.estimate
	}
	return e.estimate / zeroFactor
}

// minWeight is how much sampled media the estimator needs before trusting itself.
const minWeight = 0.001

// estimator tracks bandwidth with a fast and a slow average and reports the more pessimistic.
type estimator struct {
	fast, slow *ewma
	fallback   float64
}

func newEstimator(cfg engine.ABR) *estimator {
	return &estimator{
		fast:     newEWMA(cfg.FastHalfLife),
		slow:     newEWMA(cfg.SlowHalfLife),
		fallback: cfg.DefaultEstimate,
	}
}

// sample records a fragment of duration seconds that arrived at bps bits per second.
func (e *estimator) sample(duration, bps float64) {
	if duration <= 0 || bps <= 0 {
		return
	}
	e.fast.sample(duration, bps)
	e.slow.sample(duration, bps)
}

func (e *estimator) estimate() float64 {
	if e.fast.totalWeight < minWeight {
		return e.fallback
	}
	return math.Min(e.fast.value(), e.slow.value())
}

// chooseLevel picks the highest level the estimate can sustain. Switching above current is held
// to the stricter up factor.
func chooseLevel(levels []engine.Level, current int, bps float64, cfg engine.ABR) int {
	for i := len(levels) - 1; i > 0; i-- {
		factor := cfg.BandwidthFactor
		if current >= 0 && i > current {
			factor = cfg.BandwidthUpFactor
		}
		if float64(levels[i].Bitrate) <= bps*factor {
			return i
		}
	}
	return 0
}

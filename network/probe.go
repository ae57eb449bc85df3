package network

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Probe is the capability check for connection information.
type Probe interface {
	Connection() mo.Option[Connection]
}

// Watcher is implemented by probes that can report connection changes. Watch returns a function
// that stops delivery.
type Watcher interface {
	Watch(fn func(Connection)) (stop func())
}

// NoProbe never has connection information.
type NoProbe struct{}

func (NoProbe) Connection() mo.Option[Connection] {
	return mo.None[Connection]()
}

// StaticProbe reports a fixed, configured connection.
type StaticProbe struct {
	EffectiveType string
	Downlink      float64
}

func (p StaticProbe) Connection() mo.Option[Connection] {
	effectiveType := strings.TrimSpace(p.EffectiveType)
	if effectiveType == "" && p.Downlink <= 0 {
		return mo.None[Connection]()
	}

	if effectiveType == "" {
		effectiveType = EffectiveTypeOf(p.Downlink)
	}
	return mo.Some(Connection{EffectiveType: effectiveType, Downlink: p.Downlink})
}

// EffectiveTypeOf buckets a downlink in Mbps the way browsers derive effectiveType.
func EffectiveTypeOf(downlink float64) string {
	switch {
	case downlink < 0.05:
		return "slow-2g"
	case downlink < 0.07:
		return "2g"
	case downlink < 0.7:
		return "3g"
	default:
		return "4g"
	}
}

// ThroughputHalfLife is how many samples it takes for an old reading to lose half its weight.
const ThroughputHalfLife = 4

// ThroughputProbe estimates the connection from transfer samples reported by the stream engine.
type ThroughputProbe struct {
	mu       sync.Mutex
	estimate float64
	rtt      time.Duration
	alpha    float64
	watchers map[int]func(Connection)
	nextID   int
}

// NewThroughputProbe starts from an initial estimate in Mbps.
func NewThroughputProbe(seed float64) *ThroughputProbe {
	return &ThroughputProbe{
		estimate: seed,
		alpha:    math.Exp(math.Log(0.5) / ThroughputHalfLife),
		watchers: make(map[int]func(Connection)),
	}
}

func (p *ThroughputProbe) Connection() mo.Option[Connection] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return mo.Some(p.connection())
}

func (p *ThroughputProbe) connection() Connection {
	downlink := math.Round(p.estimate*100) / 100
	return Connection{
		EffectiveType: EffectiveTypeOf(downlink),
		Downlink:      downlink,
		RTT:           p.rtt,
	}
}

// Observe folds a transfer of bytes that took elapsed into the estimate.
func (p *ThroughputProbe) Observe(bytes int64, elapsed time.Duration, ttfb time.Duration) {
	if bytes <= 0 || elapsed <= 0 {
		return
	}
	mbps := float64(bytes) * 8 / elapsed.Seconds() / 1e6

	p.mu.Lock()
	p.estimate = p.alpha*p.estimate + (1-p.alpha)*mbps
	if ttfb > 0 {
		p.rtt = ttfb
	}
	conn := p.connection()
	watchers := lo.Values(p.watchers)
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(conn)
	}
}

func (p *ThroughputProbe) Watch(fn func(Connection)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.watchers[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.watchers, id)
	}
}

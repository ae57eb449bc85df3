package network

import (
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Tier is the coarse connection quality sessions size their buffers by.
type Tier int

const (
	Low Tier = iota
	Medium
	High
)

func (t Tier) String() string {
	switch t {
	case Low:
		return "low"
	case Medium:
		return "medium"
	default:
		return "high"
	}
}

// Connection is what the environment reports about the link.
type Connection struct {
	// EffectiveType is one of slow-2g, 2g, 3g or 4g.
	EffectiveType string
	// Downlink is the estimated bandwidth in Mbps.
	Downlink float64
	RTT      time.Duration
}

// MediumDownlink is the downlink, in Mbps, below which an otherwise fast connection is medium.
const MediumDownlink = 1.5

// Classify maps a connection onto a tier.
func Classify(c Connection) Tier {
	switch strings.ToLower(c.EffectiveType) {
	case "slow-2g", "2g":
		return Low
	case "3g":
		return Medium
	}

	if c.Downlink < MediumDownlink {
		return Medium
	}
	return High
}

// Quality is the monitor's current reading.
type Quality struct {
	Tier          Tier
	Downlink      float64
	EffectiveType string
	// Supported is false when the environment exposes no connection information.
	Supported bool
}

// unsupported is reported forever when the probe has nothing to say.
var unsupported = Quality{Tier: High, Downlink: 10, EffectiveType: "4g"}

func qualityOf(c Connection) Quality {
	return Quality{
		Tier:          Classify(c),
		Downlink:      c.Downlink,
		EffectiveType: strings.ToLower(c.EffectiveType),
		Supported:     true,
	}
}

// Monitor classifies the probe's readings and fans changes out to subscribers.
// It is safe for concurrent use; subscribers are called on the reporting goroutine.
type Monitor struct {
	mu          sync.Mutex
	current     Quality
	subscribers map[int]func(Quality)
	nextID      int
	stop        func()
}

// NewMonitor consults the probe once. A probe without information pins the tier at High and is
// never asked again.
func NewMonitor(probe Probe) *Monitor {
	m := &Monitor{
		current:     unsupported,
		subscribers: make(map[int]func(Quality)),
	}

	conn, ok := probe.Connection().Get()
	if !ok {
		return m
	}
	m.current = qualityOf(conn)

	if w, ok := probe.(Watcher); ok {
		m.stop = w.Watch(m.Report)
	}
	return m
}

// Current returns the latest reading.
func (m *Monitor) Current() Quality {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Report reclassifies after a connection change. Subscribers hear about it only when the reading
// actually changed.
func (m *Monitor) Report(c Connection) {
	m.mu.Lock()
	if !m.current.Supported {
		m.mu.Unlock()
		return
	}

	next := qualityOf(c)
	if next == m.current {
		m.mu.Unlock()
		return
	}
	m.current = next
	subscribers := lo.Values(m.subscribers)
	m.mu.Unlock()

	for _, fn := range subscribers {
		fn(next)
	}
}

// Subscribe registers fn for changes and returns its unsubscribe function.
func (m *Monitor) Subscribe(fn func(Quality)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Close detaches the monitor from its probe.
func (m *Monitor) Close() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.subscribers = make(map[int]func(Quality))
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}

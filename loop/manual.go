package loop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Loop driven by the caller. Nothing runs until Drain, Settle or
// Advance is called, and time only moves through Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	queue   []func()
	pending []func()
	timers  []*manualTimer
	seq     int
}

// NewManual returns a Manual whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
}

// Go runs work immediately. Its continuation is held until Settle, which models an operation
// that is still in flight.
func (m *Manual) Go(work func() func()) {
	next := work()
	if next == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, next)
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{owner: m, due: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Drain runs posted callbacks until the queue is empty.
func (m *Manual) Drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
	}
}

// Pending reports how many Go continuations are waiting for Settle.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Complete finishes only the work in flight right now and drains. Work started by those
// continuations stays in flight.
func (m *Manual) Complete() {
	m.mu.Lock()
	m.queue = append(m.queue, m.pending...)
	m.pending = nil
	m.mu.Unlock()

	m.Drain()
}

// Settle completes in-flight work and drains until the loop is idle.
func (m *Manual) Settle() {
	for {
		m.Drain()

		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		m.queue = append(m.queue, m.pending...)
		m.pending = nil
		m.mu.Unlock()
	}
}

// Advance moves the clock forward by d, firing due timers in deadline order and draining the
// queue after each one.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	m.Drain()
	for {
		m.mu.Lock()
		t := m.nextDue(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			break
		}
		m.now = t.due
		t.fired = true
		m.mu.Unlock()

		t.fn()
		m.Drain()
	}
}

// nextDue pops the earliest live timer due at or before target. Callers hold m.mu.
func (m *Manual) nextDue(target time.Time) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.timers = live

	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due.Equal(m.timers[j].due) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].due.Before(m.timers[j].due)
	})

	if len(m.timers) == 0 || m.timers[0].due.After(target) {
		return nil
	}
	t := m.timers[0]
	m.timers = m.timers[1:]
	return t
}

type manualTimer struct {
	owner   *Manual
	due     time.Time
	seq     int
	fn      func()
	fired   bool
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

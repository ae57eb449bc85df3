// Package loop provides the single-threaded event loop that owns all feed, session and location
// state. Callbacks posted to a loop never run concurrently with each other; blocking work is
// pushed off the loop with Go and its continuation is posted back.
package loop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Loop serializes callbacks.
type Loop interface {
	// Post enqueues fn to run on the loop.
	Post(fn func())

	// Go runs work outside the loop. The continuation it returns, if any, is posted to the loop.
	Go(work func() func())

	// AfterFunc runs fn on the loop once d has elapsed, unless the returned timer is stopped first.
	AfterFunc(d time.Duration, fn func()) Timer

	// Now returns the loop's notion of the current time.
	Now() time.Time
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call stopped it.
	Stop() bool
}

// Runner is a Loop backed by a dedicated goroutine.
type Runner struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// New starts a Runner.
func New() *Runner {
	r := &Runner{done: make(chan struct{})}
	r.cond = sync.NewCond(&r.mu)
	go r.run()
	return r
}

func (r *Runner) run() {
	defer close(r.done)

	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		fn := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.mu.Unlock()

		fn()
	}
}

// Post enqueues fn. Posting to a closed runner is a no-op.
func (r *Runner) Post(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.queue = append(r.queue, fn)
	r.cond.Signal()
}

// Go runs work on its own goroutine.
func (r *Runner) Go(work func() func()) {
	go func() {
		if next := work(); next != nil {
			r.Post(next)
		}
	}()
}

// AfterFunc schedules fn on the loop.
func (r *Runner) AfterFunc(d time.Duration, fn func()) Timer {
	t := &runnerTimer{}
	t.timer = time.AfterFunc(d, func() {
		r.Post(func() {
			if !t.stopped.Load() {
				fn()
			}
		})
	})
	return t
}

// Now returns the wall clock.
func (r *Runner) Now() time.Time {
	return time.Now()
}

// Close drains the queue and stops the loop goroutine. It must not be called from the loop.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()

	<-r.done
}

type runnerTimer struct {
	timer   *time.Timer
	stopped atomic.Bool
}

func (t *runnerTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	return t.timer.Stop()
}

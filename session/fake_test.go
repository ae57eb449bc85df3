package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/reels-cli/reels/engine"
	"github.com/reels-cli/reels/player"
)

type fakeSink struct {
	mu          sync.Mutex
	media       player.Media
	native      bool
	calls       []string
	playErrs    []error
	loadErr     error
	subscribers map[int]func(player.Event)
	nextID      int
	closed      int
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		media:       player.Media{ReadyState: player.HaveEnoughData, Paused: true, Muted: true},
		subscribers: make(map[int]func(player.Event)),
	}
}

func (f *fakeSink) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSink) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSink) Load(_ context.Context, src string, opts player.LoadOptions) error {
	f.record(fmt.Sprintf("load %s preload=%t start=%g", src, opts.Preload, opts.Start))
	return f.loadErr
}

func (f *fakeSink) Promote(context.Context, player.LoadOptions) error {
	f.record("promote")
	return nil
}

func (f *fakeSink) Play(_ context.Context, opts player.PlayOptions) error {
	if opts.Gesture {
		f.record("play gesture")
	} else {
		f.record("play")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.playErrs) > 0 {
		err := f.playErrs[0]
		f.playErrs = f.playErrs[1:]
		return err
	}
	f.media.Paused = false
	return nil
}

func (f *fakeSink) Pause(context.Context) error {
	f.record("pause")
	f.mu.Lock()
	f.media.Paused = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) Seek(_ context.Context, position float64) error {
	f.record(fmt.Sprintf("seek %g", position))
	f.mu.Lock()
	f.media.Position = position
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) SetMuted(_ context.Context, muted bool) error {
	f.record(fmt.Sprintf("mute %t", muted))
	f.mu.Lock()
	f.media.Muted = muted
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) Media() player.Media {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.media
}

func (f *fakeSink) setMedia(fn func(m *player.Media)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.media)
}

func (f *fakeSink) CanPlayNative(mime string) bool {
	return f.native
}

func (f *fakeSink) Subscribe(fn func(player.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.subscribers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subscribers, id)
	}
}

func (f *fakeSink) emit(event player.Event) {
	f.mu.Lock()
	var fns []func(player.Event)
	for _, fn := range f.subscribers {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type fakeEngine struct {
	mu          sync.Mutex
	cfg         engine.Config
	calls       []string
	src         string
	sink        player.Sink
	buffered    float64
	duration    float64
	recoverErr  error
	subscribers map[int]func(engine.Event)
	nextID      int
	destroyed   int
}

func newFakeEngine(cfg engine.Config) *fakeEngine {
	return &fakeEngine{cfg: cfg, subscribers: make(map[int]func(engine.Event))}
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) LoadSource(url string) error {
	f.record("source " + url)
	f.mu.Lock()
	f.src = url
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) AttachMedia(sink player.Sink) error {
	f.record("attach")
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) StartLoad(level int) {
	f.record(fmt.Sprintf("start %d", level))
}

func (f *fakeEngine) StopLoad() {
	f.record("stop")
}

func (f *fakeEngine) SetCurrentLevel(level int) {
	f.record(fmt.Sprintf("level %d", level))
}

func (f *fakeEngine) CurrentLevel() int {
	return 0
}

func (f *fakeEngine) Levels() []engine.Level {
	return nil
}

func (f *fakeEngine) RecoverMediaError() error {
	f.record("recover")
	return f.recoverErr
}

func (f *fakeEngine) UpdateConfig(cfg engine.Config) {
	f.record("config")
	f.mu.Lock()
	f.cfg = cfg
	f.mu.Unlock()
}

func (f *fakeEngine) BufferedEnd() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffered
}

func (f *fakeEngine) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeEngine) Subscribe(fn func(engine.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.subscribers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subscribers, id)
	}
}

func (f *fakeEngine) emit(event engine.Event) {
	f.mu.Lock()
	var fns []func(engine.Event)
	for _, fn := range f.subscribers {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

func (f *fakeEngine) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
}

type fakeReporter struct {
	positions []float64
	changes   int
}

func (r *fakeReporter) ReportPosition(_ string, offset, _ float64) {
	r.positions = append(r.positions, offset)
}

func (r *fakeReporter) SessionChanged(string) {
	r.changes++
}

// Package hls is the in-process adaptive streaming engine. It fetches playlists and fragments
// from the CDN under the configured buffer budget and serves them to the display sink through a
// loopback origin.
package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/engine"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/metrics"
	"github.com/reels-cli/reels/player"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// Observer is told about every completed fragment transfer.
type Observer interface {
	Observe(bytes int64, elapsed, ttfb time.Duration)
}

type Options struct {
	Client   *http.Client
	Origin   *Origin
	Observer Observer
}

// Factory builds engines that share opts.
func Factory(opts Options) engine.Factory {
	return func(cfg engine.Config) engine.Engine {
		return New(cfg, opts)
	}
}

// Engine implements engine.Engine.
type Engine struct {
	id     string
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	store  *store
	flight singleflight.Group
	wake   chan struct{}
	ready  chan struct{}
	wg     sync.WaitGroup

	mu          sync.Mutex
	cfg         engine.Config
	estimator   *estimator
	src         string
	levels      []engine.Level
	playlists   map[int]*mediaPlaylist
	inits       map[int][]byte
	current     int
	pinned      int
	locked      bool
	loading     bool
	loadGen     int
	stopLoad    context.CancelFunc
	sink        player.Sink
	unsubscribe func()
	subscribers map[int]func(engine.Event)
	nextID      int
	destroyed   bool
}

func New(cfg engine.Config, opts Options) *Engine {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		id:          uuid.NewString(),
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		store:       newStore(),
		wake:        make(chan struct{}, 1),
		ready:       make(chan struct{}),
		cfg:         cfg,
		estimator:   newEstimator(cfg.ABR),
		playlists:   make(map[int]*mediaPlaylist),
		inits:       make(map[int][]byte),
		current:     -1,
		pinned:      -1,
		subscribers: make(map[int]func(engine.Event)),
	}

	if opts.Origin != nil {
		opts.Origin.register(e)
	}
	return e
}

// ID is the engine's key on the origin.
func (e *Engine) ID() string {
	return e.id
}

// LoadSource fetches and parses the manifest in the background.
func (e *Engine) LoadSource(src string) error {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("not an http(s) stream: %q", src)
	}

	e.mu.Lock()
	e.src = src
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loadManifest(e.ctx, src)
	}()
	return nil
}

func (e *Engine) loadManifest(ctx context.Context, src string) {
	cfg := e.config()

	res, err := e.fetch(ctx, src, cfg.Manifest, engine.ManifestLoadError, byteRange{})
	if err != nil {
		return
	}

	levels, media, err := decode(src, res.body)
	if err != nil {
		e.parseFailed(engine.ManifestParseError, err)
		return
	}

	e.mu.Lock()
	e.levels = levels
	if media != nil {
		e.playlists[0] = media
	}
	e.mu.Unlock()

	if media != nil {
		e.markReady()
	}

	log.Debugf("[hls %s] manifest parsed with %d levels", e.id[:8], len(levels))
	e.emit(engine.ManifestParsed{Levels: append([]engine.Level(nil), levels...)})

	if cfg.AutoStartLoad {
		e.StartLoad(cfg.StartLevel)
	}
}

// AttachMedia points the sink at this engine's origin playlist.
func (e *Engine) AttachMedia(sink player.Sink) error {
	if e.opts.Origin == nil {
		return errors.New("hls engine has no origin to serve media from")
	}

	unsubscribe := sink.Subscribe(func(event player.Event) {
		if failed, ok := event.(player.Failed); ok {
			e.fail(engine.MediaError, engine.BufferAppendError, true, failed.Err)
		}
	})

	e.mu.Lock()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.sink, e.unsubscribe = sink, unsubscribe
	e.mu.Unlock()

	if err := sink.Load(e.ctx, e.opts.Origin.URL(e.id), e.loadOptions(0)); err != nil {
		e.fail(engine.MediaError, engine.AttachMediaError, true, err)
		return err
	}
	return nil
}

func (e *Engine) loadOptions(start float64) player.LoadOptions {
	cfg := e.config()
	return player.LoadOptions{
		Preload:   !cfg.AutoStartLoad,
		Readahead: cfg.MaxBufferLength,
		MaxBytes:  cfg.MaxBufferSize,
		Start:     start,
	}
}

func (e *Engine) StartLoad(level int) {
	e.mu.Lock()
	if e.destroyed || e.loading || e.levels == nil {
		e.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(e.ctx)
	e.loading = true
	e.loadGen++
	gen := e.loadGen
	e.stopLoad = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.finishLoad(gen)
		e.load(ctx, level)
	}()
}

func (e *Engine) finishLoad(gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loadGen == gen {
		e.loading = false
		e.stopLoad = nil
	}
}

func (e *Engine) StopLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopLoad != nil {
		e.stopLoad()
	}
	e.loading = false
	e.stopLoad = nil
	e.loadGen++
}

func (e *Engine) SetCurrentLevel(level int) {
	e.mu.Lock()
	e.pinned = level
	e.mu.Unlock()
	e.poke()
}

func (e *Engine) CurrentLevel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) Levels() []engine.Level {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Level(nil), e.levels...)
}

// RecoverMediaError reloads the sink from the origin at its current position.
func (e *Engine) RecoverMediaError() error {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()

	if sink == nil || e.opts.Origin == nil {
		return errors.New("no media attached")
	}
	return sink.Load(e.ctx, e.opts.Origin.URL(e.id), e.loadOptions(sink.Media().Position))
}

func (e *Engine) UpdateConfig(cfg engine.Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.estimator.fallback = cfg.ABR.DefaultEstimate
	e.mu.Unlock()
	e.poke()
}

func (e *Engine) config() engine.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// BufferedEnd is the end, in seconds, of the run of stored fragments starting at the playhead.
func (e *Engine) BufferedEnd() float64 {
	playhead := e.playhead()

	e.mu.Lock()
	pl := e.playlistLocked()
	hole := e.cfg.MaxBufferHole
	e.mu.Unlock()

	if pl == nil {
		return 0
	}

	end := playhead
	for i := pl.indexAt(playhead); i < len(pl.segments); i++ {
		seg := pl.segments[i]
		if seg.start > end+hole {
			break
		}
		if _, ok := e.store.get(seg.sn); !ok {
			break
		}
		end = seg.start + seg.duration
	}
	return end
}

func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pl := e.playlistLocked(); pl != nil {
		return pl.duration()
	}
	return 0
}

// playlistLocked returns the playlist of the current level, or any loaded one.
func (e *Engine) playlistLocked() *mediaPlaylist {
	if pl, ok := e.playlists[e.current]; ok {
		return pl
	}
	for _, pl := range e.playlists {
		return pl
	}
	return nil
}

func (e *Engine) playhead() float64 {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()

	if sink == nil {
		return 0
	}
	return math.Max(0, sink.Media().Position)
}

func (e *Engine) Subscribe(fn func(engine.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.subscribers[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subscribers, id)
	}
}

// Destroy stops all loading and releases the origin registration. Events stop before it returns.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.subscribers = make(map[int]func(engine.Event))
	unsubscribe := e.unsubscribe
	e.sink, e.unsubscribe = nil, nil
	e.mu.Unlock()

	e.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
	if e.opts.Origin != nil {
		e.opts.Origin.unregister(e.id)
	}

	e.wg.Wait()
	e.store.clear()
}

func (e *Engine) emit(event engine.Event) {
	e.mu.Lock()
	subscribers := lo.Values(e.subscribers)
	e.mu.Unlock()

	for _, fn := range subscribers {
		fn(event)
	}
}

func (e *Engine) fail(kind engine.ErrorType, details string, fatal bool, err error) {
	if e.ctx.Err() != nil {
		return
	}

	metrics.IncEngineError(string(kind), fatal)
	log.Warnf("[hls %s] %s", e.id[:8], err)
	e.emit(&engine.Error{Type: kind, Details: details, Fatal: fatal, Err: err})
}

func (e *Engine) parseFailed(details string, err error) {
	if errors.Is(err, errEncrypted) {
		e.fail(engine.OtherError, engine.StreamUnsupported, true, err)
		return
	}
	e.fail(engine.OtherError, details, true, err)
}

func (e *Engine) poke() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) markReady() {
	select {
	case <-e.ready:
	default:
		close(e.ready)
	}
}

// load runs until ctx ends or a request fails for good.
func (e *Engine) load(ctx context.Context, start int) {
	explicit := start
	for ctx.Err() == nil {
		level := e.pickLevel(explicit)
		explicit = -1

		pl, err := e.levelPlaylist(ctx, level)
		if err != nil {
			return
		}
		e.switchTo(level, pl)

		seg, ok := e.nextSegment(pl)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-e.wake:
			case <-time.After(e.pollInterval()):
			}
			continue
		}

		if _, err := e.fragment(ctx, level, seg); err != nil {
			return
		}
	}
}

func (e *Engine) pollInterval() time.Duration {
	watchdog := e.config().HighBufferWatchdog
	if watchdog <= 0 {
		watchdog = 2
	}
	return time.Duration(watchdog * float64(time.Second) / 4)
}

func (e *Engine) pickLevel(explicit int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	last := len(e.levels) - 1
	switch {
	case e.locked && e.current >= 0:
		return e.current
	case explicit >= 0:
		return min(explicit, last)
	case e.pinned >= 0:
		return min(e.pinned, last)
	default:
		return chooseLevel(e.levels, e.current, e.estimator.estimate(), e.cfg.ABR)
	}
}

func (e *Engine) switchTo(level int, pl *mediaPlaylist) {
	e.mu.Lock()
	if level == e.current {
		e.mu.Unlock()
		return
	}
	e.current = level
	e.locked = pl.init != nil
	height := e.levels[level].Height
	e.mu.Unlock()

	log.Debugf("[hls %s] switched to level %d (%dp)", e.id[:8], level, height)
	e.emit(engine.LevelSwitched{Level: level, Height: height})
}

// nextSegment returns the first missing segment ahead of the playhead while the forward buffer is
// under budget.
func (e *Engine) nextSegment(pl *mediaPlaylist) (segment, bool) {
	playhead := e.playhead()
	cfg := e.config()

	target := cfg.MaxBufferLength
	if cfg.MaxMaxBufferLength > 0 {
		target = math.Min(target, cfg.MaxMaxBufferLength)
	}

	var (
		ahead      float64
		bytesAhead int64
	)
	for i := pl.indexAt(playhead); i < len(pl.segments); i++ {
		if ahead >= target || (cfg.MaxBufferSize > 0 && bytesAhead >= cfg.MaxBufferSize) {
			return segment{}, false
		}

		seg := pl.segments[i]
		f, ok := e.store.get(seg.sn)
		if !ok {
			return seg, true
		}
		ahead += seg.start + seg.duration - math.Max(playhead, seg.start)
		bytesAhead += int64(len(f.data))
	}
	return segment{}, false
}

func (e *Engine) levelPlaylist(ctx context.Context, level int) (*mediaPlaylist, error) {
	e.mu.Lock()
	pl, ok := e.playlists[level]
	uri := e.levels[level].URI
	cfg := e.cfg
	e.mu.Unlock()

	if ok {
		return pl, nil
	}

	v, err, _ := e.flight.Do("level/"+strconv.Itoa(level), func() (any, error) {
		res, err := e.fetch(ctx, uri, cfg.Level, engine.LevelLoadError, byteRange{})
		if err != nil {
			return nil, err
		}

		pl, err := decodeMedia(uri, res.body)
		if err != nil {
			e.parseFailed(engine.ManifestParseError, err)
			return nil, err
		}

		e.mu.Lock()
		e.playlists[level] = pl
		e.mu.Unlock()
		e.markReady()
		return pl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mediaPlaylist), nil
}

// fragment returns a stored fragment or downloads it. Concurrent requests for the same sequence
// number share one download.
func (e *Engine) fragment(ctx context.Context, level int, seg segment) (*fragment, error) {
	if f, ok := e.store.get(seg.sn); ok {
		return f, nil
	}

	v, err, _ := e.flight.Do("seg/"+strconv.Itoa(seg.sn), func() (any, error) {
		if f, ok := e.store.get(seg.sn); ok {
			return f, nil
		}

		cfg := e.config()
		e.emit(engine.FragLoading{SN: seg.sn, Level: level})

		res, err := e.fetch(ctx, seg.uri, cfg.Fragment, engine.FragLoadError, seg.rng)
		if err != nil {
			return nil, err
		}

		f := &fragment{sn: seg.sn, level: level, data: res.body, start: seg.start, duration: seg.duration}
		e.store.put(f)
		e.store.evict(2*cfg.MaxBufferSize, e.playhead(), cfg.BackBufferLength)

		e.mu.Lock()
		e.estimator.sample(seg.duration, float64(len(res.body))*8/math.Max(res.elapsed.Seconds(), 1e-3))
		e.mu.Unlock()

		metrics.ObserveFragment(level, len(res.body), res.elapsed)
		if e.opts.Observer != nil {
			e.opts.Observer.Observe(int64(len(res.body)), res.elapsed, res.ttfb)
		}

		e.emit(engine.FragLoaded{SN: seg.sn, Level: level, Bytes: len(res.body), Elapsed: res.elapsed.Seconds()})
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*fragment), nil
}

// initSegment returns the EXT-X-MAP payload of the current level.
func (e *Engine) initSegment(ctx context.Context) ([]byte, error) {
	if err := e.waitReady(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	level := max(e.current, 0)
	data, ok := e.inits[level]
	pl := e.playlistLocked()
	cfg := e.cfg
	e.mu.Unlock()

	if ok {
		return data, nil
	}
	if pl == nil || pl.init == nil {
		return nil, errNotFound
	}

	v, err, _ := e.flight.Do("init/"+strconv.Itoa(level), func() (any, error) {
		res, err := e.fetch(ctx, pl.init.uri, cfg.Fragment, engine.FragLoadError, pl.init.rng)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		e.inits[level] = res.body
		e.mu.Unlock()
		return res.body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// playlist renders the playlist the sink is served.
func (e *Engine) playlist(ctx context.Context) ([]byte, error) {
	if err := e.waitReady(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	pl := e.playlistLocked()
	e.mu.Unlock()

	if pl == nil {
		return nil, errNotFound
	}
	return pl.encode()
}

// segment serves sn at the current level, downloading it on demand.
func (e *Engine) segment(ctx context.Context, sn int) ([]byte, error) {
	if err := e.waitReady(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	level := max(e.current, 0)
	e.mu.Unlock()

	pl, err := e.levelPlaylist(e.ctx, level)
	if err != nil {
		return nil, err
	}

	seg, ok := pl.bySN(sn)
	if !ok {
		return nil, errNotFound
	}

	f, err := e.fragment(e.ctx, level, seg)
	if err != nil {
		return nil, err
	}
	return f.data, nil
}

func (e *Engine) waitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

type response struct {
	body    []byte
	ttfb    time.Duration
	elapsed time.Duration
}

// statusError is a non-2xx upstream response.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.url, e.code, http.StatusText(e.code))
}

// fetch applies a load policy: every attempt gets the policy timeout, failures are reported as
// non-fatal until the retries run out, then as fatal.
func (e *Engine) fetch(ctx context.Context, uri string, policy engine.LoadPolicy, details string, rng byteRange) (response, error) {
	for attempt := 0; ; attempt++ {
		res, err := e.get(ctx, uri, policy.Timeout, rng)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}

		fatal := attempt >= policy.MaxRetry
		e.fail(engine.NetworkError, details, fatal, err)
		if fatal {
			return response{}, err
		}

		select {
		case <-ctx.Done():
			return response{}, ctx.Err()
		case <-time.After(policy.RetryDelay):
		}
	}
}

func (e *Engine) get(ctx context.Context, uri string, timeout time.Duration, rng byteRange) (response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("User-Agent", constant.UserAgent)
	if r := rng.header(); r != "" {
		req.Header.Set("Range", r)
	}

	started := time.Now()
	res, err := e.opts.Client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer res.Body.Close()
	ttfb := time.Since(started)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return response{}, &statusError{url: uri, code: res.StatusCode}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return response{}, err
	}

	return response{body: body, ttfb: ttfb, elapsed: time.Since(started)}, nil
}

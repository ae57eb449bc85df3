package tui

import (
	"context"
	"sync"
	"time"

	"github.com/reels-cli/reels/engine"
	"github.com/reels-cli/reels/engine/hls"
	"github.com/reels-cli/reels/feed"
	"github.com/reels-cli/reels/key"
	"github.com/reels-cli/reels/location"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/loop"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/network"
	"github.com/reels-cli/reels/player"
	"github.com/reels-cli/reels/session"
	"github.com/reels-cli/reels/where"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const closeTimeout = 5 * time.Second

// stack is everything that plays the feed: the loop, the network monitor, the HLS origin, the
// feed controller with its sessions and the location sync.
type stack struct {
	loop       *loop.Runner
	monitor    *network.Monitor
	origin     *hls.Origin
	cancel     context.CancelFunc
	controller *feed.Controller
	history    *location.Memory
	sync       *location.Sync

	mu    sync.Mutex
	sinks []player.Sink

	unsubscribe func()
}

// newProbe picks the connection probe named by network.probe.
func newProbe() network.Probe {
	switch viper.GetString(key.NetworkProbe) {
	case "none":
		return network.NoProbe{}
	case "static":
		return network.StaticProbe{
			EffectiveType: viper.GetString(key.NetworkEffectiveType),
			Downlink:      viper.GetFloat64(key.NetworkDownlink),
		}
	default:
		return network.NewThroughputProbe(viper.GetFloat64(key.NetworkDownlink))
	}
}

// initialLocation is where the feed opens: an explicit id, the remembered location, or the base.
func initialLocation(options *Options, base string, store *location.Store) string {
	if options.ID != "" {
		return location.Format(base, options.ID)
	}
	if options.Continue && store != nil {
		if remembered, ok := store.Load().Get(); ok {
			return remembered
		}
	}
	return base
}

func newStack(options *Options, onSnapshot func(feed.Snapshot)) (*stack, error) {
	s := &stack{loop: loop.New()}

	probe := newProbe()
	s.monitor = network.NewMonitor(probe)

	var factory engine.Factory
	if !viper.GetBool(key.PlayerNativeHLS) {
		origin, err := hls.NewOrigin(viper.GetString(key.EngineOriginAddr), viper.GetBool(key.MetricsEnabled))
		if err != nil {
			s.loop.Close()
			s.monitor.Close()
			return nil, err
		}

		ctx, cancel := context.WithCancel(context.Background())
		origin.Start(ctx)
		s.origin, s.cancel = origin, cancel

		opts := hls.Options{Client: network.Client, Origin: origin}
		if observer, ok := probe.(hls.Observer); ok {
			opts.Observer = observer
		}
		factory = hls.Factory(opts)
	}

	deps := session.Deps{
		Loop:       s.loop,
		NewSink:    s.newSink,
		NewEngine:  factory,
		RetryLimit: viper.GetInt(key.PlayerRetryLimit),
	}

	base := viper.GetString(key.LocationBase)
	var store *location.Store
	if viper.GetBool(key.LocationRemember) {
		store = location.NewStore(where.Location())
	}
	s.history = location.NewMemory(initialLocation(options, base, store))
	s.sync = location.NewSync(s.history, base, store)

	s.controller = feed.New(feed.Options{
		Loop: s.loop,
		NewSession: func(reporter session.Reporter) feed.Session {
			return session.New(deps, reporter)
		},
		Monitor:  s.monitor,
		Location: s.sync,
	})

	s.loop.Post(func() {
		s.unsubscribe = s.controller.Subscribe(onSnapshot)
	})
	return s, nil
}

func (s *stack) newSink(item media.Item) player.Sink {
	return s.track(player.NewMPV(player.Options{
		Binary:    viper.GetString(key.PlayerMPV),
		Autoplay:  viper.GetBool(key.PlayerAutoplay),
		NativeHLS: viper.GetBool(key.PlayerNativeHLS),
		Title:     "reel #" + item.ID,
	}))
}

// track records sink as live until it is closed, so that close can stop whatever the sessions
// left running.
func (s *stack) track(sink player.Sink) player.Sink {
	t := &trackedSink{Sink: sink, stack: s}

	s.mu.Lock()
	s.sinks = append(s.sinks, t)
	s.mu.Unlock()
	return t
}

// live is the number of sinks created and not closed yet.
func (s *stack) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sinks)
}

type trackedSink struct {
	player.Sink
	stack *stack
}

func (t *trackedSink) Close() error {
	t.stack.mu.Lock()
	t.stack.sinks = lo.Without(t.stack.sinks, player.Sink(t))
	t.stack.mu.Unlock()

	return t.Sink.Close()
}

// start mounts items against the current location and starts the feed there.
func (s *stack) start(items []media.Item) {
	s.loop.Post(func() {
		index := s.sync.Mount(items)
		s.controller.Start(items, index)
		s.sync.Attach(s.loop, s.controller)
	})
}

// do runs fn with the controller on the loop.
func (s *stack) do(fn func(c *feed.Controller)) {
	s.loop.Post(func() {
		fn(s.controller)
	})
}

func (s *stack) close() {
	done := make(chan struct{})
	s.loop.Post(func() {
		defer close(done)
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.sync.Close()
		s.controller.Close()
	})

	select {
	case <-done:
	case <-time.After(closeTimeout):
		log.Warn("feed did not shut down in time")
	}
	s.loop.Close()

	s.mu.Lock()
	sinks := s.sinks
	s.sinks = nil
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(sink player.Sink) {
			defer wg.Done()
			if err := sink.Close(); err != nil {
				log.Debugf("close sink: %s", err)
			}
		}(sink)
	}
	wg.Wait()

	s.monitor.Close()
	if s.origin != nil {
		s.cancel()
		if err := s.origin.Close(); err != nil {
			log.Warnf("close origin: %s", err)
		}
	}
}

package hls

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/metrics"
	"golang.org/x/sync/errgroup"
)

var errNotFound = errors.New("not found")

const shutdownTimeout = 2 * time.Second

// Origin is the loopback HTTP server sinks read engine output from. One origin serves every
// engine of the process, each under its own id.
type Origin struct {
	listener net.Listener
	server   *http.Server

	mu      sync.RWMutex
	engines map[string]*Engine
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewOrigin listens on addr. withMetrics mounts /metrics.
func NewOrigin(addr string, withMetrics bool) (*Origin, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	o := &Origin{
		listener: listener,
		engines:  make(map[string]*Engine),
	}
	o.server = &http.Server{
		Handler:           o.routes(withMetrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return o, nil
}

func (o *Origin) routes(withMetrics bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/hls/{id}", func(r chi.Router) {
		r.Get("/index.m3u8", o.handlePlaylist)
		r.Get("/init", o.handleInit)
		r.Get("/seg/{sn}", o.handleSegment)
	})

	if withMetrics {
		r.Handle("/metrics", metrics.Handler())
	}
	return r
}

// Start serves until Close or until ctx ends. Requests are cancelled with it.
func (o *Origin) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	o.server.BaseContext = func(net.Listener) context.Context { return ctx }

	group.Go(func() error {
		if err := o.server.Serve(o.listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return o.server.Shutdown(shutdownCtx)
	})

	o.mu.Lock()
	o.cancel, o.group = cancel, group
	o.mu.Unlock()

	log.Infof("hls origin listening on %s", o.listener.Addr())
}

// Close stops serving and waits for in-flight requests.
func (o *Origin) Close() error {
	o.mu.Lock()
	cancel, group := o.cancel, o.group
	o.mu.Unlock()

	if cancel == nil {
		return o.listener.Close()
	}
	cancel()
	return group.Wait()
}

// Addr is the address the origin listens on.
func (o *Origin) Addr() string {
	return o.listener.Addr().String()
}

// URL is the playlist a sink loads for engine id.
func (o *Origin) URL(id string) string {
	return "http://" + o.Addr() + "/hls/" + id + "/index.m3u8"
}

func (o *Origin) register(e *Engine) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.engines[e.id] = e
}

func (o *Origin) unregister(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.engines, id)
}

func (o *Origin) engine(r *http.Request) (*Engine, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	e, ok := o.engines[chi.URLParam(r, "id")]
	return e, ok
}

func (o *Origin) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	o.serve(w, r, "playlist", constant.MimeHLS, func(e *Engine) ([]byte, error) {
		return e.playlist(r.Context())
	})
}

func (o *Origin) handleInit(w http.ResponseWriter, r *http.Request) {
	o.serve(w, r, "init", "video/mp4", func(e *Engine) ([]byte, error) {
		return e.initSegment(r.Context())
	})
}

func (o *Origin) handleSegment(w http.ResponseWriter, r *http.Request) {
	sn, err := strconv.Atoi(chi.URLParam(r, "sn"))
	if err != nil {
		o.write(w, "segment", http.StatusBadRequest, "", nil)
		return
	}

	o.serve(w, r, "segment", "video/mp2t", func(e *Engine) ([]byte, error) {
		return e.segment(r.Context(), sn)
	})
}

func (o *Origin) serve(w http.ResponseWriter, r *http.Request, route, contentType string, body func(*Engine) ([]byte, error)) {
	e, ok := o.engine(r)
	if !ok {
		o.write(w, route, http.StatusNotFound, "", nil)
		return
	}

	data, err := body(e)
	switch {
	case err == nil:
		o.write(w, route, http.StatusOK, contentType, data)
	case errors.Is(err, errNotFound):
		o.write(w, route, http.StatusNotFound, "", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		o.write(w, route, http.StatusServiceUnavailable, "", nil)
	default:
		log.Warnf("origin %s: %s", route, err)
		o.write(w, route, http.StatusBadGateway, "", nil)
	}
}

func (o *Origin) write(w http.ResponseWriter, route string, status int, contentType string, data []byte) {
	metrics.IncOriginRequest(route, status)

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

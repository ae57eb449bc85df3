package player

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/where"
	"github.com/samber/lo"
)

const (
	socketWaitRetries = 10
	socketWaitDelay   = 300 * time.Millisecond
	quitTimeout       = 3 * time.Second
)

// Options configure an mpv sink.
type Options struct {
	// Binary is the mpv executable, "mpv" when empty.
	Binary string
	// Autoplay allows plays that do not follow a key press.
	Autoplay bool
	// NativeHLS lets mpv demux HLS itself.
	NativeHLS bool
	Title     string
}

// MPV is a Sink backed by one mpv process driven over JSON-IPC.
type MPV struct {
	opts Options

	mu         sync.Mutex // serializes IPC commands
	socketPath string
	cmd        *exec.Cmd
	exited     chan struct{}
	listener   *EventListener

	state       sync.Mutex // guards everything below
	media       Media
	loaded      bool
	dataLoaded  bool
	gestured    bool
	closed      bool
	subscribers map[int]func(Event)
	nextID      int
	playGen     int
}

// NewMPV creates a sink. The process is spawned by the first Load.
func NewMPV(opts Options) *MPV {
	if opts.Binary == "" {
		opts.Binary = "mpv"
	}

	return &MPV{
		opts:        opts,
		exited:      make(chan struct{}),
		subscribers: make(map[int]func(Event)),
		media:       Media{Paused: true, Muted: true},
	}
}

// Load spawns mpv on src, or replaces the running file.
func (m *MPV) Load(ctx context.Context, src string, opts LoadOptions) error {
	target, err := sanitizeMediaTarget(src)
	if err != nil {
		return fmt.Errorf("invalid media target: %w", err)
	}

	m.state.Lock()
	if m.closed {
		m.state.Unlock()
		return ErrClosed
	}
	running := m.cmd != nil
	m.media = Media{Paused: true, Muted: m.media.Muted || !running}
	m.loaded, m.dataLoaded = false, false
	m.state.Unlock()

	if running {
		return m.replace(ctx, target, opts)
	}
	return m.spawn(ctx, target, opts)
}

func (m *MPV) spawn(ctx context.Context, target string, opts LoadOptions) error {
	socketPath := filepath.Join(where.Sockets(), fmt.Sprintf("%s-%s.sock", constant.Reels, uuid.NewString()[:8]))

	cmd := exec.Command(m.opts.Binary, m.args(socketPath, target, opts)...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stdout, cmd.Stderr, cmd.Stdin = nil, nil, nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)

		m.state.Lock()
		closed := m.closed
		m.state.Unlock()
		if !closed {
			log.Warnf("mpv %d exited unexpectedly", cmd.Process.Pid)
			m.emit(Exited{})
		}
	}()

	m.mu.Lock()
	m.socketPath, m.cmd, m.exited = socketPath, cmd, exited
	m.mu.Unlock()

	if err := waitForSocket(ctx, socketPath, exited); err != nil {
		select {
		case <-exited:
		default:
			log.Warnf("killing mpv: socket never became ready")
			_ = killProcess(cmd)
		}
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	listener := NewEventListener(socketPath, m.handle)
	if err := listener.Start(); err != nil {
		return err
	}

	m.state.Lock()
	m.listener = listener
	m.state.Unlock()
	return nil
}

// args builds the spawn command line. Only playback behaviour is forced; the user's mpv.conf
// still decides rendering.
func (m *MPV) args(socketPath, target string, opts LoadOptions) []string {
	title := sanitizeTitle(m.opts.Title)
	args := []string{
		"--no-terminal",
		"--really-quiet",
		fmt.Sprintf("--input-ipc-server=%s", socketPath),
		fmt.Sprintf("--force-media-title=%s", title),
		fmt.Sprintf("--title=%s", title),
		"--idle=yes",
		"--pause=yes",
		"--mute=yes",
		"--loop-file=inf",
		"--keep-open=yes",
		"--cache=yes",
	}
	args = append(args, bufferArgs(opts)...)

	if opts.Preload {
		args = append(args, "--force-window=no", "--vid=no", "--hls-bitrate=min")
	} else {
		args = append(args, "--force-window=yes")
	}

	if opts.Start > 0 {
		args = append(args, "--start="+formatSeconds(opts.Start))
	}

	return append(args, target)
}

func bufferArgs(opts LoadOptions) []string {
	var args []string
	if opts.Readahead > 0 {
		args = append(args, "--demuxer-readahead-secs="+formatSeconds(opts.Readahead))
	}
	if opts.MaxBytes > 0 {
		args = append(args, "--demuxer-max-bytes="+strconv.FormatInt(opts.MaxBytes, 10))
	}
	return args
}

func (m *MPV) replace(ctx context.Context, target string, opts LoadOptions) error {
	start := "none"
	if opts.Start > 0 {
		start = formatSeconds(opts.Start)
	}

	if _, err := m.command(ctx, "set_property", "start", start); err != nil {
		return err
	}
	if _, err := m.command(ctx, "set_property", "pause", true); err != nil {
		return err
	}
	_, err := m.command(ctx, "loadfile", target, "replace")
	return err
}

// Promote restores video and the full buffer budget.
func (m *MPV) Promote(ctx context.Context, opts LoadOptions) error {
	props := [][2]any{
		{"force-window", "yes"},
		{"vid", "auto"},
		{"hls-bitrate", "max"},
	}
	if opts.Readahead > 0 {
		props = append(props, [2]any{"demuxer-readahead-secs", opts.Readahead})
	}
	if opts.MaxBytes > 0 {
		props = append(props, [2]any{"demuxer-max-bytes", strconv.FormatInt(opts.MaxBytes, 10)})
	}

	for _, p := range props {
		if _, err := m.command(ctx, "set_property", p[0], p[1]); err != nil {
			return fmt.Errorf("promote: %w", err)
		}
	}
	return nil
}

// Play unpauses. Without autoplay, a sink only plays once a gesture has reached it.
func (m *MPV) Play(ctx context.Context, opts PlayOptions) error {
	m.state.Lock()
	if opts.Gesture {
		m.gestured = true
	}
	if !m.opts.Autoplay && !m.gestured {
		m.state.Unlock()
		return ErrAutoplayBlocked
	}
	m.playGen++
	gen := m.playGen
	m.state.Unlock()

	if _, err := m.command(ctx, "set_property", "pause", false); err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return err
	}

	m.state.Lock()
	defer m.state.Unlock()
	if gen != m.playGen || ctx.Err() != nil {
		return ErrInterrupted
	}
	return nil
}

// Pause supersedes any play still in flight.
func (m *MPV) Pause(ctx context.Context) error {
	m.state.Lock()
	m.playGen++
	m.state.Unlock()

	_, err := m.command(ctx, "set_property", "pause", true)
	return err
}

func (m *MPV) Seek(ctx context.Context, position float64) error {
	_, err := m.command(ctx, "seek", position, "absolute")
	if err == nil {
		m.state.Lock()
		m.media.Position = position
		m.state.Unlock()
	}
	return err
}

func (m *MPV) SetMuted(ctx context.Context, muted bool) error {
	_, err := m.command(ctx, "set_property", "mute", muted)
	if err == nil {
		m.state.Lock()
		m.media.Muted = muted
		m.state.Unlock()
	}
	return err
}

func (m *MPV) Media() Media {
	m.state.Lock()
	defer m.state.Unlock()
	return m.media
}

func (m *MPV) CanPlayNative(mime string) bool {
	switch mime {
	case constant.MimeHLS:
		return m.opts.NativeHLS
	case constant.MimeMP4:
		return true
	default:
		return false
	}
}

func (m *MPV) Subscribe(fn func(Event)) func() {
	m.state.Lock()
	defer m.state.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn

	return func() {
		m.state.Lock()
		defer m.state.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *MPV) emit(event Event) {
	m.state.Lock()
	subscribers := lo.Values(m.subscribers)
	m.state.Unlock()

	for _, fn := range subscribers {
		fn(event)
	}
}

func waitForSocket(ctx context.Context, socketPath string, exited <-chan struct{}) error {
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return fmt.Errorf("mpv exited before socket was ready")
		case <-time.After(socketWaitDelay):
		}

		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", socketPath, socketWaitRetries)
}

// Close quits mpv, killing its process group if it does not leave in time.
func (m *MPV) Close() error {
	m.state.Lock()
	if m.closed {
		m.state.Unlock()
		return nil
	}
	m.closed = true
	listener := m.listener
	m.subscribers = make(map[int]func(Event))
	m.state.Unlock()

	if listener != nil {
		listener.Stop()
	}

	m.mu.Lock()
	socketPath, cmd, exited := m.socketPath, m.cmd, m.exited
	m.mu.Unlock()

	if cmd == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	_, _ = m.command(ctx, "quit")
	cancel()

	select {
	case <-exited:
	case <-time.After(quitTimeout):
		_ = killProcess(cmd)
	}

	m.mu.Lock()
	m.socketPath = ""
	m.mu.Unlock()

	_ = os.Remove(socketPath)
	return nil
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

// sanitizeMediaTarget keeps catalog URLs from being read as mpv flags.
func sanitizeMediaTarget(link string) (string, error) {
	l := strings.TrimSpace(link)
	if l == "" {
		return "", fmt.Errorf("empty URL")
	}

	if strings.ContainsAny(l, "\x00\n\r") {
		return "", fmt.Errorf("invalid control characters in URL")
	}

	if strings.HasPrefix(l, "-") {
		return "", fmt.Errorf("url must not start with '-' (looks like a flag)")
	}

	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l, nil
		default:
			return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
		}
	}

	return filepath.Clean(l), nil
}

func sanitizeTitle(title string) string {
	t := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "\x00", "").Replace(title)
	t = strings.TrimSpace(t)
	if t == "" {
		return constant.Reels
	}
	return t
}

package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/reels-cli/reels/log"
)

// EventCallback receives observed property changes by property name, and other mpv events by
// event name with the whole event as data.
type EventCallback func(name string, data any)

// observed are the properties every sink watches.
var observed = []string{
	"time-pos",
	"duration",
	"pause",
	"mute",
	"demuxer-cache-time",
	"seeking",
}

// EventListener holds a dedicated IPC connection that mpv pushes events to.
type EventListener struct {
	socketPath string
	conn       net.Conn
	callback   EventCallback
	mu         sync.Mutex
	listening  bool
}

func NewEventListener(socketPath string, callback EventCallback) *EventListener {
	return &EventListener{
		socketPath: socketPath,
		callback:   callback,
	}
}

// Start connects and registers the observers. mpv scopes observers to the connection that
// created them, so registration happens on the read connection itself.
func (el *EventListener) Start() error {
	el.mu.Lock()
	defer el.mu.Unlock()

	if el.listening {
		return nil
	}

	conn, err := net.Dial("unix", el.socketPath)
	if err != nil {
		return fmt.Errorf("event listener connect: %w", err)
	}

	for i, name := range observed {
		payload, err := json.Marshal(ipcCommand{Command: []any{"observe_property", i + 1, name}})
		if err != nil {
			conn.Close()
			return fmt.Errorf("observe %s: %w", name, err)
		}
		if _, err := conn.Write(append(payload, '\n')); err != nil {
			conn.Close()
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}

	el.conn = conn
	el.listening = true
	go el.readLoop(conn)

	log.Debugf("mpv event listener started on %s", el.socketPath)
	return nil
}

// Stop closes the connection, which ends the read loop.
func (el *EventListener) Stop() {
	el.mu.Lock()
	defer el.mu.Unlock()

	if !el.listening {
		return
	}
	el.conn.Close()
	el.listening = false
}

func (el *EventListener) readLoop(conn net.Conn) {
	defer func() {
		el.mu.Lock()
		el.listening = false
		el.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, readBufSize), 1<<20)
	for scanner.Scan() {
		el.processEvent(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warnf("event listener read error: %v", err)
	}
}

func (el *EventListener) processEvent(line []byte) {
	var event map[string]any
	if err := json.Unmarshal(line, &event); err != nil {
		return
	}

	eventType, ok := event["event"].(string)
	if !ok || el.callback == nil {
		return
	}

	if eventType == "property-change" {
		if name, _ := event["name"].(string); name != "" {
			el.callback(name, event["data"])
		}
		return
	}
	el.callback(eventType, event)
}

// handle folds one mpv notification into the media state and emits the matching sink events.
func (m *MPV) handle(name string, data any) {
	var events []Event

	m.state.Lock()
	switch name {
	case "time-pos":
		if pos, ok := data.(float64); ok {
			m.media.Position = pos
			events = append(events, TimeUpdate{Position: pos})
		}
	case "duration":
		if d, ok := data.(float64); ok {
			m.media.Duration = d
		}
	case "pause":
		if paused, ok := data.(bool); ok {
			m.media.Paused = paused
		}
	case "mute":
		if muted, ok := data.(bool); ok {
			m.media.Muted = muted
		}
	case "demuxer-cache-time":
		if end, ok := data.(float64); ok {
			m.media.BufferedEnd = end
			events = append(events, BufferUpdate{End: end})
		}
	case "seeking":
		if seeking, _ := data.(bool); seeking && m.media.ReadyState > HaveMetadata {
			m.media.ReadyState = HaveMetadata
		}
	case "file-loaded":
		m.loaded = true
		m.media.ReadyState = max(m.media.ReadyState, HaveMetadata)
		events = append(events, MetadataLoaded{Duration: m.media.Duration})
	case "playback-restart":
		if !m.loaded {
			break
		}
		m.media.ReadyState = HaveEnoughData
		if !m.dataLoaded {
			m.dataLoaded = true
			events = append(events, DataLoaded{})
		}
		events = append(events, CanPlay{})
	case "end-file":
		if err := endFileError(data); err != nil {
			m.media.ReadyState = HaveNothing
			events = append(events, Failed{Err: err})
		}
	}
	m.state.Unlock()

	for _, event := range events {
		m.emit(event)
	}
}

// endFileError reports why a file ended, or nil when it ended normally.
func endFileError(data any) error {
	event, ok := data.(map[string]any)
	if !ok {
		return nil
	}

	if reason, _ := event["reason"].(string); reason != "error" {
		return nil
	}

	detail, _ := event["file_error"].(string)
	if detail == "" {
		detail = "unknown error"
	}
	return fmt.Errorf("mpv could not play the file: %s", strings.TrimSpace(detail))
}

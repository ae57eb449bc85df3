package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// ipcCommand is one newline-delimited JSON-IPC request.
type ipcCommand struct {
	Command []any `json:"command"`
}

type ipcResponse struct {
	Data  any    `json:"data"`
	Error string `json:"error"`
}

const (
	maxRetries   = 3
	retryDelay   = 100 * time.Millisecond
	readDeadline = time.Second
	readBufSize  = 4096
)

// command sends one command to mpv, retrying transient socket failures. Commands on one sink are
// serialized.
func (m *MPV) command(ctx context.Context, command ...any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.socketPath == "" {
		return nil, ErrClosed
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		result, err := doSendCommand(ctx, m.socketPath, command)
		if err == nil {
			return result, nil
		}
		if _, ok := err.(*mpvError); ok {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("ipc command failed after %d attempts: %w", maxRetries, lastErr)
}

// mpvError is an error reported by mpv itself; retrying it is pointless.
type mpvError struct {
	command string
	reason  string
}

func (e *mpvError) Error() string {
	return fmt.Sprintf("mpv %s: %s", e.command, e.reason)
}

func doSendCommand(ctx context.Context, socketPath string, command []any) (any, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	payload, err := json.Marshal(ipcCommand{Command: command})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	if _, err = conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	deadline := time.Now().Add(readDeadline)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	buf := make([]byte, readBufSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	return parseResponse(command, buf[:n])
}

// parseResponse reads the first reply line, skipping events mpv may interleave.
func parseResponse(command []any, raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	for dec.More() {
		var line map[string]any
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
		if _, isEvent := line["event"]; isEvent {
			continue
		}

		resp := ipcResponse{Data: line["data"]}
		resp.Error, _ = line["error"].(string)
		if resp.Error != "" && resp.Error != "success" {
			return nil, &mpvError{command: fmt.Sprint(command[0]), reason: resp.Error}
		}
		return resp.Data, nil
	}

	return nil, fmt.Errorf("unmarshal: no reply in %q", raw)
}

// Package location keeps the current item id in a shareable location and follows back and
// forward moves through the environment's history.
package location

import (
	"sync"

	"github.com/samber/lo"
)

// History is the environment's history of locations.
type History interface {
	Current() string

	// Replace rewrites the current entry without creating a new one. Listeners are not told.
	Replace(location string)

	// Listen registers fn for moves through the history.
	Listen(fn func(location string)) (unlisten func())
}

// Memory is an in-process History with browser semantics.
type Memory struct {
	mu        sync.Mutex
	entries   []string
	index     int
	listeners map[int]func(string)
	nextID    int
}

func NewMemory(initial string) *Memory {
	return &Memory{
		entries:   []string{initial},
		listeners: make(map[int]func(string)),
	}
}

func (m *Memory) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index]
}

func (m *Memory) Replace(location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.index] = location
}

// Navigate pushes a new entry, dropping everything ahead of the current one, and notifies
// listeners as an external navigation would.
func (m *Memory) Navigate(location string) {
	m.mu.Lock()
	m.entries = append(m.entries[:m.index+1], location)
	m.index++
	m.mu.Unlock()

	m.notify(location)
}

// Back moves one entry back. It reports false at the oldest entry.
func (m *Memory) Back() bool {
	return m.move(-1)
}

// Forward moves one entry forward. It reports false at the newest entry.
func (m *Memory) Forward() bool {
	return m.move(1)
}

func (m *Memory) move(delta int) bool {
	m.mu.Lock()
	next := m.index + delta
	if next < 0 || next >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.index = next
	location := m.entries[next]
	m.mu.Unlock()

	m.notify(location)
	return true
}

// Len is the number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Listen(fn func(string)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Memory) notify(location string) {
	m.mu.Lock()
	listeners := lo.Values(m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(location)
	}
}

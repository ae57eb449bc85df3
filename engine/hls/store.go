package hls

import (
	"sort"
	"sync"
)

// fragment is one downloaded segment.
type fragment struct {
	sn       int
	level    int
	data     []byte
	start    float64
	duration float64
}

func (f *fragment) end() float64 {
	return f.start + f.duration
}

// store keeps downloaded fragments by sequence number.
type store struct {
	mu        sync.Mutex
	fragments map[int]*fragment
	bytes     int64
}

func newStore() *store {
	return &store{fragments: make(map[int]*fragment)}
}

func (s *store) get(sn int) (*fragment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fragments[sn]
	return f, ok
}

func (s *store) put(f *fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.fragments[f.sn]; ok {
		s.bytes -= int64(len(old.data))
	}
	s.fragments[f.sn] = f
	s.bytes += int64(len(f.data))
}

func (s *store) size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// evict drops fragments ending more than backBuffer seconds behind playhead, oldest first, until
// the store fits in limit bytes.
func (s *store) evict(limit int64, playhead, backBuffer float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bytes <= limit {
		return 0
	}

	behind := make([]*fragment, 0, len(s.fragments))
	for _, f := range s.fragments {
		if f.end() < playhead-backBuffer {
			behind = append(behind, f)
		}
	}
	sort.Slice(behind, func(i, j int) bool { return behind[i].start < behind[j].start })

	evicted := 0
	for _, f := range behind {
		if s.bytes <= limit {
			break
		}
		delete(s.fragments, f.sn)
		s.bytes -= int64(len(f.data))
		evicted++
	}
	return evicted
}

func (s *store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fragments = make(map[int]*fragment)
	s.bytes = 0
}

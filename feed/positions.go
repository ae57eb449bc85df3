package feed

// Positions is the saved position map. It lives as long as the process and is never persisted.
type Positions struct {
	entries map[string]position
}

type position struct {
	Offset   float64
	Duration float64
}

const (
	// EdgeMargin keeps offsets this close to either end of a video from being saved.
	EdgeMargin = 5.0

	// MinOffset is the smallest saved offset worth reading back.
	MinOffset = 2.0
)

func NewPositions() *Positions {
	return &Positions{entries: make(map[string]position)}
}

// Record saves offset for id when the duration is known and the offset is away from both ends.
// It reports whether the offset was saved.
func (p *Positions) Record(id string, offset, duration float64) bool {
	if duration <= 0 || offset <= EdgeMargin || offset >= duration-EdgeMargin {
		return false
	}
	p.entries[id] = position{Offset: offset, Duration: duration}
	return true
}

// Offset returns the saved offset of id, or 0 when there is none worth resuming.
func (p *Positions) Offset(id string) float64 {
	entry, ok := p.entries[id]
	if !ok || entry.Offset < MinOffset {
		return 0
	}
	return entry.Offset
}

func (p *Positions) Has(id string) bool {
	_, ok := p.entries[id]
	return ok
}

func (p *Positions) Len() int {
	return len(p.entries)
}

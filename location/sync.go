package location

import (
	"net/url"

	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/loop"
	"github.com/reels-cli/reels/media"
	"github.com/samber/lo"
)

// DefaultBase is the location items are addressed under.
const DefaultBase = "reels://shorts"

// Param is the query parameter carrying the item id.
const Param = "id"

// Navigator is what history moves are applied to.
type Navigator interface {
	Current() int
	NavigateTo(index int, direction media.Direction)
}

// Sync bridges the current item and the shareable location.
type Sync struct {
	history History
	base    string
	store   *Store

	items    []media.Item
	unlisten func()
}

// NewSync returns a Sync over history. A non-nil store remembers every committed location.
func NewSync(history History, base string, store *Store) *Sync {
	if base == "" {
		base = DefaultBase
	}
	return &Sync{history: history, base: base, store: store}
}

// URL is the location of the item with id.
func (s *Sync) URL(id string) string {
	return Format(s.base, id)
}

// Format builds the location of id under base.
func Format(base, id string) string {
	u, err := url.Parse(base)
	if err != nil {
		u = &url.URL{Path: base}
	}

	query := u.Query()
	query.Set(Param, id)
	u.RawQuery = query.Encode()
	return u.String()
}

// IDOf extracts the item id from a location, or "" when it has none.
func IDOf(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Query().Get(Param)
}

// Location is the current location.
func (s *Sync) Location() string {
	return s.history.Current()
}

// Mount resolves the current location against items. An unknown id resolves to the first item,
// and the location is rewritten to reference it.
func (s *Sync) Mount(items []media.Item) int {
	s.items = items
	if len(items) == 0 {
		return 0
	}

	id := IDOf(s.history.Current())
	if index, ok := s.indexOf(id); ok {
		log.Infof("location resolved #%s at index %d", id, index)
		return index
	}

	log.Infof("location %q names no item, starting at #%s", s.history.Current(), items[0].ID)
	s.Commit(items[0].ID)
	return 0
}

// Attach follows history moves on l, navigating nav whenever the location names another item.
func (s *Sync) Attach(l loop.Loop, nav Navigator) {
	if s.unlisten != nil {
		s.unlisten()
	}

	s.unlisten = s.history.Listen(func(location string) {
		l.Post(func() {
			index, ok := s.indexOf(IDOf(location))
			current := nav.Current()
			if !ok || index == current {
				return
			}
			nav.NavigateTo(index, media.DirectionOf(current, index))
		})
	})
}

// Commit points the current history entry at id.
func (s *Sync) Commit(id string) {
	location := s.URL(id)
	s.history.Replace(location)

	if s.store != nil {
		if err := s.store.Save(location); err != nil {
			log.Warnf("remember location: %s", err)
		}
	}
}

func (s *Sync) Close() {
	if s.unlisten != nil {
		s.unlisten()
		s.unlisten = nil
	}
}

func (s *Sync) indexOf(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	_, index, ok := lo.FindIndexOf(s.items, func(item media.Item) bool {
		return item.ID == id
	})
	return index, ok
}

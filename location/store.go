package location

import (
	"time"

	"github.com/metafates/gache"
	"github.com/reels-cli/reels/filesystem"
	"github.com/samber/mo"
)

// Record is the remembered location.
type Record struct {
	Location string    `json:"location"`
	SavedAt  time.Time `json:"saved_at"`
}

// Store remembers the last committed location across runs.
type Store struct {
	cache *gache.Cache[*Record]
}

func NewStore(path string) *Store {
	return &Store{
		cache: gache.New[*Record](&gache.Options{
			Path:       path,
			FileSystem: &filesystem.GacheFs{},
		}),
	}
}

func (s *Store) Save(location string) error {
	return s.cache.Set(&Record{Location: location, SavedAt: time.Now()})
}

// Load returns the remembered location, if any.
func (s *Store) Load() mo.Option[string] {
	record, expired, err := s.cache.Get()
	if err != nil || expired || record == nil || record.Location == "" {
		return mo.None[string]()
	}
	return mo.Some(record.Location)
}

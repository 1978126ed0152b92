package geo

import (
	"context"
	"slices"
	"sync"

	"github.com/JonMunkholm/customermatch/internal/core"
)

// StaticSource serves zips from memory.
type StaticSource struct {
	mu     sync.RWMutex
	places map[core.PlaceKey][]string
}

// NewStaticSource builds a source from entries.
func NewStaticSource(entries []Entry) *StaticSource {
	s := &StaticSource{places: make(map[core.PlaceKey][]string)}
	s.Load(context.Background(), entries)
	return s
}

func (s *StaticSource) Lookup(_ context.Context, key core.PlaceKey) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.places[key]), nil
}

func (s *StaticSource) Load(_ context.Context, entries []Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range entries {
		if !e.valid() {
			continue
		}
		k := e.Key()
		if slices.Contains(s.places[k], e.Zip) {
			continue
		}
		s.places[k] = append(s.places[k], e.Zip)
		n++
	}
	return n, nil
}

// Len returns the number of distinct places.
func (s *StaticSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.places)
}

func (s *StaticSource) Close() error { return nil }

package history

import (
	"sort"
	"sync"
)

type memoryStore struct {
	entries    []Entry
	maxEntries int
	lock       sync.RWMutex
}

// NewMemoryStore returns a Store that keeps up to maxEntries in memory.
func NewMemoryStore(maxEntries int) Store {
	return &memoryStore{
		maxEntries: maxEntries,
	}
}

func (s *memoryStore) Add(e Entry) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.entries = append(s.entries, e)

	sort.SliceStable(s.entries, func(i, j int) bool {
		return string(key(s.entries[i])) < string(key(s.entries[j]))
	})

	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		s.entries = append([]Entry(nil), s.entries[len(s.entries)-s.maxEntries:]...)
	}

	return nil
}

func (s *memoryStore) List(limit int) ([]Entry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	entries := []Entry{}

	for i := len(s.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(entries) >= limit {
			break
		}

		entries = append(entries, s.entries[i])
	}

	return entries, nil
}

func (s *memoryStore) Get(id string) (Entry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ID == id {
			return s.entries[i], nil
		}
	}

	return Entry{}, ErrNotFound
}

func (s *memoryStore) Close() error {
	return nil
}

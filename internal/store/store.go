// Package store holds the key to item mapping behind a registry, and
// broadcasts registration events to watchers.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/stowage/internal/errors"
)

// EventType represents the type of registration event.
type EventType string

const (
	EventTypeAdded   EventType = "added"
	EventTypeUpdated EventType = "updated"
)

// Event represents a change in the store.
type Event struct {
	Type      EventType
	Key       string
	Source    Source
	Timestamp time.Time
}

// Store maps keys to items. It is safe for concurrent use.
type Store struct {
	items    map[string]*Item
	mutex    sync.RWMutex
	watchers []chan Event
	frozen   bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items:    make(map[string]*Item),
		watchers: make([]chan Event, 0),
	}
}

// Add registers item under key. It fails if key is already present.
func (s *Store) Add(key string, item *Item) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.frozen {
		return errors.NewFinalizedError("register " + key).WithKey(key)
	}
	if _, exists := s.items[key]; exists {
		return errors.NewDuplicateKeyError(key)
	}

	if item.key == "" {
		item.key = key
	}
	s.items[key] = item
	s.notify(EventTypeAdded, key, item)
	return nil
}

// Set registers item under key, replacing any previous item.
func (s *Store) Set(key string, item *Item) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.frozen {
		return errors.NewFinalizedError("register " + key).WithKey(key)
	}

	eventType := EventTypeAdded
	if existing, exists := s.items[key]; exists {
		if existing == item {
			return nil
		}
		eventType = EventTypeUpdated
	}

	s.items[key] = item
	s.notify(eventType, key, item)
	return nil
}

// Freeze rejects every later Add and Set and returns the final mapping.
// Freezing twice returns the same contents.
func (s *Store) Freeze() map[string]*Item {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.frozen = true

	result := make(map[string]*Item, len(s.items))
	for key, item := range s.items {
		result[key] = item
	}
	return result
}

// Frozen reports whether Freeze has been called.
func (s *Store) Frozen() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.frozen
}

// notify must be called with the write lock held.
func (s *Store) notify(eventType EventType, key string, item *Item) {
	event := Event{
		Type:      eventType,
		Key:       key,
		Source:    item.Source(),
		Timestamp: time.Now(),
	}

	for _, watcher := range s.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Get retrieves an item by key.
func (s *Store) Get(key string) (*Item, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, exists := s.items[key]
	return item, exists
}

// Has reports whether key is registered.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Snapshot returns a copy of the current mapping.
func (s *Store) Snapshot() map[string]*Item {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make(map[string]*Item, len(s.items))
	for key, item := range s.items {
		result[key] = item
	}
	return result
}

// Keys returns all registered keys in lexicographic order.
func (s *Store) Keys() []string {
	s.mutex.RLock()
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	s.mutex.RUnlock()

	sort.Strings(keys)
	return keys
}

// Count returns the number of registered items.
func (s *Store) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.items)
}

// Watch returns a channel that receives registration events.
func (s *Store) Watch() <-chan Event {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ch := make(chan Event, 100)
	s.watchers = append(s.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (s *Store) UnWatch(ch <-chan Event) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, watcher := range s.watchers {
		if watcher == ch {
			close(watcher)
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			break
		}
	}
}

// CloseWatchers closes and drops every watcher channel.
func (s *Store) CloseWatchers() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, watcher := range s.watchers {
		close(watcher)
	}
	s.watchers = nil
}

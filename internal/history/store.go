// Package history keeps saved strip readings in memory, newest first.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/stripscan/internal/analysis"
	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
	"github.com/GriffinCanCode/stripscan/internal/zone"
)

// DefaultMaxEntries matches the size of the on-device history list.
const DefaultMaxEntries = 200

// Entry is a saved reading.
type Entry struct {
	ID        string           `json:"id" msgpack:"id"`
	Seed      string           `json:"seed" msgpack:"seed"`
	Lang      string           `json:"lang" msgpack:"lang"`
	Timestamp time.Time        `json:"timestamp" msgpack:"timestamp"`
	Reading   analysis.Reading `json:"reading" msgpack:"reading"`
}

// EventKind says what changed.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventCleared EventKind = "cleared"
)

// Event is published on every change.
type Event struct {
	Kind  EventKind `json:"kind" msgpack:"kind"`
	Entry *Entry    `json:"entry,omitempty" msgpack:"entry,omitempty"`
}

// Summary aggregates the stored readings.
type Summary struct {
	Count           int               `json:"count" msgpack:"count"`
	ByZone          map[zone.Zone]int `json:"byZone" msgpack:"byZone"`
	MeanGermination float64           `json:"meanGermination" msgpack:"meanGermination"`
	Latest          *time.Time        `json:"latest,omitempty" msgpack:"latest,omitempty"`
}

// Store interface for history operations.
type Store interface {
	Add(seed, lang string, r analysis.Reading) Entry
	List(limit int) []Entry
	Get(id string) (Entry, error)
	Clear()
	Summary() Summary
	Events() <-chan Event
}

// MemoryStore implements Store with a bounded slice.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry // newest first
	maxSize  int
	eventsCh chan Event
	now      func() time.Time
}

// NewStore creates a history store.
func NewStore(maxEntries, eventBuffer int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
		now:      time.Now,
	}
}

// Add saves a reading and drops the oldest entries beyond the cap.
func (s *MemoryStore) Add(seed, lang string, r analysis.Reading) Entry {
	if lang == "" {
		lang = "en"
	}
	e := Entry{
		ID:        uuid.NewString(),
		Seed:      seed,
		Lang:      lang,
		Timestamp: s.now().UTC(),
		Reading:   r,
	}

	s.mu.Lock()
	s.entries = append([]Entry{e}, s.entries...)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[:s.maxSize]
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventAdded, Entry: &e})
	return e
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *MemoryStore) List(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]Entry, n)
	copy(result, s.entries[:n])
	return result
}

// Get looks up an entry by ID.
func (s *MemoryStore) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, apperrors.Newf(apperrors.CodeNotFound, "history entry %q not found", id).
		WithMetadata("id", id)
}

// Clear removes every entry.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.entries = s.entries[:0]
	s.mu.Unlock()
	s.emit(Event{Kind: EventCleared})
}

// Summary counts entries per zone and averages their germination percent.
func (s *MemoryStore) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Count: len(s.entries), ByZone: make(map[zone.Zone]int, len(zone.All))}
	for _, z := range zone.All {
		sum.ByZone[z] = 0
	}
	if len(s.entries) == 0 {
		return sum
	}
	germ := make([]float64, len(s.entries))
	for i, e := range s.entries {
		sum.ByZone[e.Reading.Zone]++
		germ[i] = float64(e.Reading.GerminationPercent)
	}
	sum.MeanGermination = stat.Mean(germ, nil)
	latest := s.entries[0].Timestamp
	sum.Latest = &latest
	return sum
}

// Events returns the channel for history events.
func (s *MemoryStore) Events() <-chan Event {
	return s.eventsCh
}

// emit sends an event (non-blocking).
func (s *MemoryStore) emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}

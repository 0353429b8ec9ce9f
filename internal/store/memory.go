package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

var (
	// ErrNotFound is returned when no generation result exists for a coordinate.
	ErrNotFound = errors.New("no generation result for tile")
)

// ResultHistory holds a time-ordered list of generation results for a tile.
type ResultHistory struct {
	Results []tile.Result
}

// MemoryStore is a concurrency-safe in-memory history of generation results.
type MemoryStore struct {
	mu sync.RWMutex

	// key: coordinate, value: history
	data map[tile.Coordinate]*ResultHistory

	// retention configuration
	maxHistory int           // max number of results per tile
	maxAge     time.Duration // optional max age for results
	clock      clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return NewMemoryStoreWithClock(maxHistory, maxAge, clockwork.NewRealClock())
}

// NewMemoryStoreWithClock is NewMemoryStore with an explicit time source for
// age-based retention.
func NewMemoryStoreWithClock(maxHistory int, maxAge time.Duration, clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		data:       make(map[tile.Coordinate]*ResultHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// SaveResult appends a new result for a tile and enforces retention.
func (s *MemoryStore) SaveResult(c tile.Coordinate, r tile.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[c]
	if !ok {
		history = &ResultHistory{}
		s.data[c] = history
	}

	history.Results = append(history.Results, r)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Results) > s.maxHistory {
		over := len(history.Results) - s.maxHistory
		history.Results = history.Results[over:]
	}

	// Enforce retention by age. The newest result is always kept.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Results)-1; i++ {
			if !history.Results[i].StartedAt.Before(cutoff) {
				break
			}
		}
		history.Results = history.Results[i:]
	}
}

// GetLatest returns the most recent result for a tile.
func (s *MemoryStore) GetLatest(c tile.Coordinate) (tile.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[c]
	if !ok || len(history.Results) == 0 {
		return tile.Result{}, ErrNotFound
	}
	return history.Results[len(history.Results)-1], nil
}

// GetRange returns all results for a tile started between from and to (inclusive).
func (s *MemoryStore) GetRange(c tile.Coordinate, from, to time.Time) ([]tile.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[c]
	if !ok || len(history.Results) == 0 {
		return nil, ErrNotFound
	}

	var result []tile.Result
	for _, r := range history.Results {
		if !r.StartedAt.Before(from) && !r.StartedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

package store

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

var testCoord = tile.Coordinate{Zoom: 9, X: 131, Y: 193}

func resultAt(ts time.Time, status tile.Status) tile.Result {
	return tile.Result{Coordinate: testCoord, Status: status, StartedAt: ts}
}

func TestMemoryStore_GetLatest(t *testing.T) {
	s := NewMemoryStore(0, 0)

	_, err := s.GetLatest(testCoord)
	assert.ErrorIs(t, err, ErrNotFound)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.SaveResult(testCoord, resultAt(t0, tile.StatusSuccess))
	s.SaveResult(testCoord, resultAt(t0.Add(10*time.Minute), tile.StatusDegraded))

	latest, err := s.GetLatest(testCoord)
	require.NoError(t, err)
	assert.Equal(t, tile.StatusDegraded, latest.Status)

	_, err = s.GetLatest(tile.Coordinate{Zoom: 9, X: 132, Y: 193})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CountRetention(t *testing.T) {
	s := NewMemoryStore(3, 0)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.SaveResult(testCoord, resultAt(t0.Add(time.Duration(i)*10*time.Minute), tile.StatusSuccess))
	}

	results, err := s.GetRange(testCoord, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, t0.Add(20*time.Minute), results[0].StartedAt)
	assert.Equal(t, t0.Add(40*time.Minute), results[2].StartedAt)
}

func TestMemoryStore_AgeRetention(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(t0)
	s := NewMemoryStoreWithClock(0, time.Hour, clock)

	s.SaveResult(testCoord, resultAt(t0, tile.StatusSuccess))
	clock.Advance(30 * time.Minute)
	s.SaveResult(testCoord, resultAt(clock.Now(), tile.StatusSuccess))
	clock.Advance(45 * time.Minute)
	s.SaveResult(testCoord, resultAt(clock.Now(), tile.StatusFailed))

	results, err := s.GetRange(testCoord, t0.Add(-time.Hour), clock.Now())
	require.NoError(t, err)
	require.Len(t, results, 2, "result older than an hour is dropped")
	assert.Equal(t, t0.Add(30*time.Minute), results[0].StartedAt)
}

func TestMemoryStore_AgeRetentionKeepsNewest(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(t0.Add(48 * time.Hour))
	s := NewMemoryStoreWithClock(0, time.Hour, clock)

	s.SaveResult(testCoord, resultAt(t0, tile.StatusSuccess))

	latest, err := s.GetLatest(testCoord)
	require.NoError(t, err)
	assert.Equal(t, t0, latest.StartedAt)
}

func TestMemoryStore_GetRange(t *testing.T) {
	s := NewMemoryStore(0, 0)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		s.SaveResult(testCoord, resultAt(t0.Add(time.Duration(i)*10*time.Minute), tile.StatusSuccess))
	}

	results, err := s.GetRange(testCoord, t0.Add(10*time.Minute), t0.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Len(t, results, 2, "bounds are inclusive")

	_, err = s.GetRange(testCoord, t0.Add(2*time.Hour), t0.Add(3*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(50, 0)
	t0 := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SaveResult(testCoord, resultAt(t0.Add(time.Duration(i)*time.Second), tile.StatusSuccess))
			_, _ = s.GetLatest(testCoord)
		}(i)
	}
	wg.Wait()

	results, err := s.GetRange(testCoord, t0, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, results, 20)
}

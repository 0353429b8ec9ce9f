package errorlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 10, 17, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*60*60))
	assert.Equal(t, "errors-2026-10-18.log", FileName(ts))
}

func TestAppend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 8, 15, 0, 0, time.UTC))
	w := NewWithClock(dir, clock)

	require.NoError(t, w.Append([]byte(`{ "message": "tile failed",  "code": 3 }`)))
	clock.Advance(time.Minute)
	require.NoError(t, w.Append([]byte(`{"message":"again"}`)))

	data, err := os.ReadFile(filepath.Join(dir, "errors-2026-10-17.log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `2026-10-17T08:15:00Z {"message":"tile failed","code":3}`, lines[0])
	assert.Equal(t, `2026-10-17T08:16:00Z {"message":"again"}`, lines[1])
}

func TestAppend_RollsOverDaily(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 23, 59, 0, 0, time.UTC))
	w := NewWithClock(dir, clock)

	require.NoError(t, w.Append([]byte(`{}`)))
	clock.Advance(2 * time.Minute)
	require.NoError(t, w.Append([]byte(`{}`)))

	assert.FileExists(t, filepath.Join(dir, "errors-2026-10-17.log"))
	assert.FileExists(t, filepath.Join(dir, "errors-2026-10-18.log"))
}

func TestAppend_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)

	err := w.Append([]byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidReport)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written for a rejected report")
}

func TestAppend_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	err := New(file).Append([]byte(`{}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidReport)
}

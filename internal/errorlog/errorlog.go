// Package errorlog appends client-reported errors to daily log files.
package errorlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrInvalidReport is returned for a body that is not valid JSON.
var ErrInvalidReport = errors.New("error report is not valid JSON")

// Writer appends one line per report to {dir}/errors-YYYY-MM-DD.log.
type Writer struct {
	dir   string
	clock clockwork.Clock
	mu    sync.Mutex
}

// New creates a Writer for dir using the real clock.
func New(dir string) *Writer {
	return NewWithClock(dir, clockwork.NewRealClock())
}

func NewWithClock(dir string, clock clockwork.Clock) *Writer {
	return &Writer{dir: dir, clock: clock}
}

// FileName returns the log file used for reports received at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("errors-%s.log", t.UTC().Format("2006-01-02"))
}

// Append compacts body and writes "{RFC3339 timestamp} {json}" to today's file.
func (w *Writer) Append(body []byte) error {
	var line bytes.Buffer
	now := w.clock.Now().UTC()
	line.WriteString(now.Format(time.RFC3339))
	line.WriteByte(' ')
	if err := json.Compact(&line, body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	line.WriteByte('\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(w.dir, FileName(now)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	if _, err := f.Write(line.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("write error log: %w", err)
	}
	return f.Close()
}

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/discord-scribe/internal/logging"
)

// EventLog appends every raw transport event to a file as one JSON object
// per line. It is a diagnostic tap, written synchronously on the router's
// event path, and is never read back by the system.
type EventLog struct {
	mu sync.Mutex
	f  *os.File
}

type eventRecord struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	Event     Event     `json:"event"`
}

// OpenEventLog creates or truncates the log file at path.
func OpenEventLog(path string) (*EventLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	return &EventLog{f: f}, nil
}

// Record serializes and appends one event. Failures are logged and swallowed;
// the tap must never interfere with event processing.
func (l *EventLog) Record(ev Event) {
	if l == nil {
		return
	}
	rec := eventRecord{Timestamp: time.Now().UTC(), Type: ev.Type(), Event: ev}
	b, err := json.Marshal(rec)
	if err != nil {
		logging.Warnw("event log: marshal failed", "type", ev.Type(), "err", err)
		return
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(b); err != nil {
		logging.Warnw("event log: write failed", "err", err)
	}
}

// Close flushes and closes the underlying file.
func (l *EventLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

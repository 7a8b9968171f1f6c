package diagnostic

import (
	"time"

	"github.com/google/uuid"
)

// maxLogEntries bounds the activity log. The log is a UI affordance, not an
// audit trail; old entries are discarded once the cap is reached.
const maxLogEntries = 100

// Level classifies activity log entries.
type Level string

// Activity log levels.
const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Entry is one activity log line shown in the diagnostic panel.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

// logBuffer is a bounded newest-first activity log.
// Not safe for concurrent use; the owning session serialises access.
type logBuffer struct {
	entries []Entry
}

// add prepends an entry, evicting the oldest once the cap is reached.
func (b *logBuffer) add(level Level, message string) {
	entry := Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
	}

	b.entries = append([]Entry{entry}, b.entries...)
	if len(b.entries) > maxLogEntries {
		b.entries = b.entries[:maxLogEntries]
	}
}

// snapshot returns a copy of the log, newest first.
func (b *logBuffer) snapshot() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// clear empties the log.
func (b *logBuffer) clear() {
	b.entries = nil
}

package events

import (
	"sync"
	"time"
)

// Reasons recorded by the playback engine.
const (
	ReasonStarted  = "Simulation started"
	ReasonComplete = "Simulation complete"
)

// LogEntry is one immutable playback transition record.
// FromStageID is empty for the entry that starts a run.
type LogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	FromStageID string    `json:"fromStageId,omitempty"`
	ToStageID   string    `json:"toStageId"`
	Reason      string    `json:"reason"`
}

// IsStart reports whether the entry opened a run.
func (e LogEntry) IsStart() bool {
	return e.FromStageID == ""
}

// IsComplete reports whether the entry closed a run.
func (e LogEntry) IsComplete() bool {
	return e.FromStageID != "" && e.FromStageID == e.ToStageID
}

// Log is the append-only record of playback transitions for one run.
// Timestamps never decrease: an entry stamped earlier than its predecessor
// is clamped to the predecessor's timestamp.
type Log struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds an entry and returns it as stored.
func (l *Log) Append(e LogEntry) LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries); n > 0 && e.Timestamp.Before(l.entries[n-1].Timestamp) {
		e.Timestamp = l.entries[n-1].Timestamp
	}
	l.entries = append(l.entries, e)
	return e
}

// ReadAll returns the entries in append order.
func (l *Log) ReadAll() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]LogEntry{}, l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the most recent entry.
func (l *Log) Last() (LogEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return LogEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Reset removes every entry. Only a full playback reset may call it.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

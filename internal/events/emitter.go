// Package events carries the simulator's runtime notifications and the
// append-only playback event log.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/FNOLSimulator/internal/logging"
)

// DefaultBufferSize is the number of recent events a Bus keeps.
const DefaultBufferSize = 256

// Event is a runtime notification.
type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	RunID     string                 `json:"run_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Hook observes every emitted event synchronously. Hooks must not block.
type Hook func(Event)

// Bus validates, records and fans out events for one simulator instance.
type Bus struct {
	buffer      *RingBuffer
	broadcaster *Broadcaster
	logger      *slog.Logger
	now         func() time.Time

	mu    sync.RWMutex
	hooks []Hook
	runID string

	total atomic.Int64
}

// NewBus creates a bus with the default buffer size.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		buffer:      NewRingBuffer(DefaultBufferSize),
		broadcaster: NewBroadcaster(),
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock replaces the time source used for event timestamps.
func (b *Bus) SetClock(now func() time.Time) {
	b.now = now
}

// SetRunID tags subsequent events with a run identifier.
func (b *Bus) SetRunID(runID string) {
	b.mu.Lock()
	b.runID = runID
	b.mu.Unlock()
}

// RunID returns the current run identifier.
func (b *Bus) RunID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.runID
}

// AddHook registers a synchronous observer.
func (b *Bus) AddHook(h Hook) {
	b.mu.Lock()
	b.hooks = append(b.hooks, h)
	b.mu.Unlock()
}

// Emit records an event and delivers it to hooks and subscribers.
func (b *Bus) Emit(level, name, msg string, fields map[string]interface{}) error {
	if b == nil {
		return nil
	}
	if err := Validate(name); err != nil {
		b.logger.Error("rejected event", "event", name, "error", err)
		return err
	}

	b.mu.RLock()
	runID := b.runID
	hooks := b.hooks
	b.mu.RUnlock()

	e := Event{
		Timestamp: b.now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		RunID:     runID,
		Fields:    fields,
	}

	b.buffer.Add(e)
	b.total.Add(1)
	for _, h := range hooks {
		h(e)
	}
	b.broadcaster.Broadcast(e)

	b.logger.Debug("event", "event", name, "run_id", runID, "fields", fields)
	return nil
}

// Errorf emits a system.error event.
func (b *Bus) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	_ = b.Emit("error", SystemError, msg, nil)
}

// Subscribe returns a channel receiving every subsequent event.
func (b *Bus) Subscribe(buffer int) Subscriber {
	return b.broadcaster.Subscribe(buffer)
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.broadcaster.Unsubscribe(sub)
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	return b.broadcaster.SubscriberCount()
}

// Close closes every subscriber channel.
func (b *Bus) Close() {
	b.broadcaster.CloseAll()
}

// Snapshot returns the buffered events, oldest first.
func (b *Bus) Snapshot() []Event {
	return b.buffer.Snapshot()
}

// RecentEvents returns the last n events from the ring buffer.
// If n is greater than available events, returns all available.
func (b *Bus) RecentEvents(n int) []Event {
	return b.buffer.Recent(n)
}

// TotalCount returns the number of events emitted since creation.
func (b *Bus) TotalCount() int64 {
	return b.total.Load()
}

// Clear resets the event buffer.
func (b *Bus) Clear() {
	b.buffer.Clear()
}

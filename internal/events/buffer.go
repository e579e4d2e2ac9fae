package events

import "sync"

// RingBuffer keeps the most recent events so late subscribers, such as a
// websocket client connecting mid-run, can catch up.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	next   int // slot the next event is written to
	count  int
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{events: make([]Event, size)}
}

func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.events[rb.next] = e
	rb.next = (rb.next + 1) % len(rb.events)
	if rb.count < len(rb.events) {
		rb.count++
	}
}

// Len returns the number of buffered events.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Snapshot returns every buffered event, oldest first.
func (rb *RingBuffer) Snapshot() []Event {
	return rb.Recent(0)
}

// Recent returns the newest n events, oldest first. n <= 0 means all.
func (rb *RingBuffer) Recent(n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	size := len(rb.events)
	start := (rb.next - n + size) % size

	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rb.events[(start+i)%size])
	}
	return out
}

func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	clear(rb.events)
	rb.next = 0
	rb.count = 0
}

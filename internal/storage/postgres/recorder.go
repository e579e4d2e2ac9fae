package postgres

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
)

// Store is the write side the recorder needs.
type Store interface {
	Append(ctx context.Context, runID, caseID string, seq int, e events.LogEntry) error
}

type record struct {
	runID string
	seq   int
	entry events.LogEntry
}

// Recorder copies log.appended events from the bus into a Store on its
// own goroutine. Hook never blocks: when the queue is full the entry is
// dropped and logged.
type Recorder struct {
	store  Store
	logger *slog.Logger
	caseID func() string
	queue  chan record

	mu   sync.Mutex
	seqs map[string]int

	errorLogged bool
}

// NewRecorder creates a recorder. caseID may be nil.
func NewRecorder(store Store, logger *slog.Logger, caseID func() string, size int) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if size <= 0 {
		size = 256
	}
	return &Recorder{
		store:  store,
		logger: logger,
		caseID: caseID,
		queue:  make(chan record, size),
		seqs:   make(map[string]int),
	}
}

// Hook is a bus hook.
func (r *Recorder) Hook(e events.Event) {
	if e.Name != events.LogAppended || e.RunID == "" {
		return
	}
	entry, ok := entryFromFields(e.Fields)
	if !ok {
		r.logger.Warn("malformed log event", "run_id", e.RunID)
		return
	}

	// The runtime stamps each entry with its index in the run's log, which
	// stays correct for runs restored from storage. Events without one are
	// numbered in arrival order.
	r.mu.Lock()
	seq, ok := seqFromFields(e.Fields)
	if !ok {
		seq = r.seqs[e.RunID]
	}
	r.seqs[e.RunID] = seq + 1
	r.mu.Unlock()

	select {
	case r.queue <- record{runID: e.RunID, seq: seq, entry: entry}:
	default:
		r.logger.Warn("recorder queue full, dropping entry", "run_id", e.RunID, "seq", seq)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-ctx.Done():
			flush, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case rec := <-r.queue:
					r.write(flush, rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec record) {
	caseID := ""
	if r.caseID != nil {
		caseID = r.caseID()
	}
	if err := r.store.Append(ctx, rec.runID, caseID, rec.seq, rec.entry); err != nil {
		// One error line per outage, not one per entry.
		if !r.errorLogged {
			r.logger.Error("failed to persist log entry", "run_id", rec.runID, "seq", rec.seq, "error", err)
			r.errorLogged = true
		}
		return
	}
	r.errorLogged = false
}

func seqFromFields(f map[string]interface{}) (int, bool) {
	switch v := f["seq"].(type) {
	case int:
		return v, v >= 0
	case int64:
		return int(v), v >= 0
	case float64:
		return int(v), v >= 0
	default:
		return 0, false
	}
}

func entryFromFields(f map[string]interface{}) (events.LogEntry, bool) {
	ts, _ := f["ts"].(string)
	to, _ := f["to"].(string)
	reason, _ := f["reason"].(string)
	from, _ := f["from"].(string)
	if ts == "" || to == "" {
		return events.LogEntry{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return events.LogEntry{}, false
	}
	return events.LogEntry{Timestamp: t, FromStageID: from, ToStageID: to, Reason: reason}, true
}

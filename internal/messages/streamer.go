package messages

import (
	"log/slog"
	"sync"
	"time"

	"github.com/AaronLay10/FNOLSimulator/internal/clock"
	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
)

// DefaultCadence is the delay between revealed messages.
const DefaultCadence = 2 * time.Second

// Streamer reveals the message queue of the single active stage one
// message at a time.
type Streamer struct {
	clock   clock.Clock
	bus     *events.Bus
	logger  *slog.Logger
	cadence time.Duration

	mu       sync.Mutex
	queues   map[string][]string
	active   string
	revealed []string
	epoch    uint64
	timer    clock.Timer
}

// NewStreamer creates a streamer with no messages loaded. A zero cadence
// selects DefaultCadence.
func NewStreamer(clk clock.Clock, bus *events.Bus, logger *slog.Logger, cadence time.Duration) *Streamer {
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Streamer{
		clock:   clk,
		bus:     bus,
		logger:  logger,
		cadence: cadence,
		queues:  make(map[string][]string),
	}
}

// Load replaces the message queues. Revealing for the active stage restarts.
func (s *Streamer) Load(queues map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queues = make(map[string][]string, len(queues))
	for id, msgs := range queues {
		s.queues[id] = append([]string(nil), msgs...)
	}
	if s.active != "" {
		s.startLocked(s.active)
	}
}

// Messages returns the full queue for a stage.
func (s *Streamer) Messages(stageID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queues[stageID]...)
}

// Activate starts revealing a stage's messages from the beginning. Any
// other active stage is deactivated first.
func (s *Streamer) Activate(stageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != "" && s.active != stageID {
		s.clearLocked()
	}
	s.startLocked(stageID)
}

// Deactivate clears a stage's revealed messages. It is a no-op for a stage
// that is not active.
func (s *Streamer) Deactivate(stageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != stageID {
		return
	}
	s.clearLocked()
}

// Reset deactivates whatever stage is active.
func (s *Streamer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != "" {
		s.clearLocked()
	}
}

// Revealed returns the messages revealed so far for a stage. Inactive
// stages have none.
func (s *Streamer) Revealed(stageID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != stageID {
		return nil
	}
	return append([]string(nil), s.revealed...)
}

// Active returns the stage currently revealing messages.
func (s *Streamer) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Streamer) startLocked(stageID string) {
	s.cancelLocked()
	s.active = stageID
	s.revealed = nil
	s.revealLocked(s.epoch)
}

// revealLocked shows the next queued message and arms the cadence timer
// while messages remain.
func (s *Streamer) revealLocked(epoch uint64) {
	queue := s.queues[s.active]
	if len(s.revealed) >= len(queue) {
		return
	}
	msg := queue[len(s.revealed)]
	s.revealed = append(s.revealed, msg)
	s.emit(events.MessageRevealed, map[string]interface{}{
		"stage_id": s.active,
		"index":    len(s.revealed) - 1,
		"message":  msg,
	})

	if len(s.revealed) >= len(queue) {
		return
	}
	s.timer = s.clock.AfterFunc(s.cadence, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch {
			return
		}
		s.revealLocked(epoch)
	})
}

func (s *Streamer) clearLocked() {
	stageID := s.active
	s.cancelLocked()
	s.active = ""
	s.revealed = nil
	s.emit(events.MessagesCleared, map[string]interface{}{"stage_id": stageID})
}

func (s *Streamer) cancelLocked() {
	s.epoch++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Streamer) emit(name string, fields map[string]interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Emit("info", name, "", fields); err != nil {
		s.logger.Error("emit failed", "event", name, "error", err)
	}
}

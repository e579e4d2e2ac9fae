// Package simulator wires one playback instance together: the workflow
// graph, its diagram layout, the playback runtime, the stage message
// streamer and the event bus.
package simulator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronLay10/FNOLSimulator/internal/clock"
	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/layout"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
	"github.com/AaronLay10/FNOLSimulator/internal/messages"
	"github.com/AaronLay10/FNOLSimulator/internal/orchestrator"
	"github.com/AaronLay10/FNOLSimulator/internal/presentation"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

var (
	ErrLayoutLocked    = errors.New("layout is locked")
	ErrUnknownStage    = errors.New("unknown stage")
	ErrInvalidPosition = errors.New("invalid position")
)

// Options configures a Simulator. Zero values select the defaults.
type Options struct {
	Clock           clock.Clock
	Bus             *events.Bus
	Logger          *slog.Logger
	Policy          string
	Speed           float64
	TransitionDelay time.Duration
	TickInterval    time.Duration
	MessageCadence  time.Duration
}

// Simulator is a single playback instance.
type Simulator struct {
	bus      *events.Bus
	logger   *slog.Logger
	runtime  *orchestrator.Runtime
	streamer *messages.Streamer

	// mu guards the fields below. It is taken inside the runtime lock by
	// the branch policy, so it is never held while calling the runtime.
	mu        sync.RWMutex
	positions map[string]workflow.Position
	locked    bool
	caseRec   *messages.CaseRecord
}

// New creates a simulator for g.
func New(g *workflow.Graph, opts Options) (*Simulator, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", workflow.ErrInvalidGraph)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewReal()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus(opts.Logger)
		opts.Bus.SetClock(opts.Clock.Now)
	}

	s := &Simulator{
		bus:      opts.Bus,
		logger:   opts.Logger,
		streamer: messages.NewStreamer(opts.Clock, opts.Bus, opts.Logger, opts.MessageCadence),
	}

	policy, err := orchestrator.NewPolicy(opts.Policy, s.facts, opts.Logger)
	if err != nil {
		return nil, err
	}

	s.runtime = orchestrator.NewRuntime(orchestrator.Options{
		Clock:           opts.Clock,
		Bus:             opts.Bus,
		Logger:          opts.Logger,
		Policy:          policy,
		TransitionDelay: opts.TransitionDelay,
		TickInterval:    opts.TickInterval,
		Speed:           opts.Speed,
	})
	s.runtime.OnStageChange(s.onStageChange)
	s.LoadGraph(g)

	return s, nil
}

// LoadGraph replaces the workflow and resets playback. Template positions
// are kept when every stage has a valid one.
func (s *Simulator) LoadGraph(g *workflow.Graph) {
	s.runtime.Load(g)
	s.setPositions(layout.Ensure(g.Stages, g.Transitions))
	s.emitLayout("load")
}

// LoadCase installs a case record's stage messages and branch facts.
func (s *Simulator) LoadCase(rec *messages.CaseRecord) {
	s.mu.Lock()
	s.caseRec = rec
	s.mu.Unlock()
	s.streamer.Load(messages.Load(rec))
}

// CaseID returns the claim id of the loaded case, if any.
func (s *Simulator) CaseID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.caseRec == nil {
		return ""
	}
	return s.caseRec.ClaimID
}

func (s *Simulator) facts() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.caseRec == nil {
		return nil
	}
	return s.caseRec.Facts()
}

func (s *Simulator) onStageChange(stageID string, status workflow.Status) {
	if status == workflow.StatusActive {
		s.streamer.Activate(stageID)
		return
	}
	s.streamer.Deactivate(stageID)
}

// Bus returns the simulator's event bus.
func (s *Simulator) Bus() *events.Bus {
	return s.bus
}

func (s *Simulator) Play() error  { return s.runtime.Play() }
func (s *Simulator) Pause() error { return s.runtime.Pause() }
func (s *Simulator) Step() error  { return s.runtime.Step() }

// Reset stops playback and clears the run. Layout is not touched.
func (s *Simulator) Reset() {
	s.runtime.Reset()
	s.streamer.Reset()
}

func (s *Simulator) SetSpeed(multiplier float64) error {
	return s.runtime.SetSpeed(multiplier)
}

// Restore rebuilds playback state from a persisted log.
func (s *Simulator) Restore(runID string, entries []events.LogEntry) (*orchestrator.ReplayState, error) {
	return s.runtime.Restore(runID, entries)
}

// Snapshot returns the playback state with diagram positions applied.
func (s *Simulator) Snapshot() orchestrator.Snapshot {
	snap := s.runtime.Snapshot()
	s.applyPositions(snap.Stages)
	return snap
}

// Render projects the current state into a render frame.
func (s *Simulator) Render() presentation.Frame {
	snap := s.Snapshot()

	s.mu.RLock()
	locked := s.locked
	s.mu.RUnlock()

	return presentation.Project(presentation.Input{
		Stages:             snap.Stages,
		Transitions:        snap.Transitions,
		ActiveTransitionID: snap.ActiveTransitionID,
		Revealed:           s.streamer.Revealed,
		Locked:             locked,
	}, s.logger)
}

// Status returns the side panel summary.
func (s *Simulator) Status() presentation.Status {
	return presentation.BuildStatus(s.runtime.Snapshot())
}

// EventLog returns the raw log of the current run.
func (s *Simulator) EventLog() []events.LogEntry {
	return s.runtime.EventLog()
}

// Log returns the labelled event log.
func (s *Simulator) Log(newestFirst bool) []presentation.LogLine {
	snap := s.runtime.Snapshot()
	return presentation.BuildLog(s.runtime.EventLog(), snap.Stages, newestFirst)
}

// Mermaid renders the graph with the current run overlaid.
func (s *Simulator) Mermaid() string {
	snap := s.runtime.Snapshot()
	return presentation.GenerateMermaid(snap.Stages, snap.Transitions, &presentation.Overlay{
		ActiveTransitionID: snap.ActiveTransitionID,
	})
}

// LockLayout enables or disables manual stage moves.
func (s *Simulator) LockLayout(locked bool) {
	s.mu.Lock()
	changed := s.locked != locked
	s.locked = locked
	s.mu.Unlock()
	if changed {
		s.emitLayout("lock")
	}
}

// Locked reports whether the layout is locked.
func (s *Simulator) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked
}

// MoveStage places a stage at p.
func (s *Simulator) MoveStage(stageID string, p workflow.Position) error {
	if !layout.Valid(&p) {
		return ErrInvalidPosition
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrLayoutLocked
	}
	if _, ok := s.positions[stageID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownStage, stageID)
	}
	s.positions[stageID] = p
	s.mu.Unlock()

	s.emitLayout("move")
	return nil
}

// AutoLayout discards manual positions and lays the graph out again.
// It is allowed while the layout is locked.
func (s *Simulator) AutoLayout() {
	g := s.runtime.Graph()
	if g == nil {
		return
	}
	s.setPositions(layout.Layout(g.Stages, g.Transitions))
	s.emitLayout("auto")
}

func (s *Simulator) setPositions(stages []workflow.Stage) {
	positions := make(map[string]workflow.Position, len(stages))
	for _, st := range stages {
		if st.Position != nil {
			positions[st.ID] = *st.Position
		}
	}
	s.mu.Lock()
	s.positions = positions
	s.mu.Unlock()
}

func (s *Simulator) applyPositions(stages []workflow.Stage) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range stages {
		if p, ok := s.positions[stages[i].ID]; ok {
			p := p
			stages[i].Position = &p
		}
	}
}

func (s *Simulator) emitLayout(reason string) {
	if err := s.bus.Emit("info", events.LayoutChanged, "", map[string]interface{}{"reason": reason}); err != nil {
		s.logger.Error("emit failed", "event", events.LayoutChanged, "error", err)
	}
}

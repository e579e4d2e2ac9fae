// Package orchestrator drives playback of a workflow graph: it owns the
// simulation state and advances the active stage on a timer.
package orchestrator

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/FNOLSimulator/internal/clock"
	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

// Playback timing defaults.
const (
	DefaultTransitionDelay = 300 * time.Millisecond
	DefaultTickInterval    = 100 * time.Millisecond

	MinSpeed  = 0.25
	MaxSpeed  = 3.0
	SpeedStep = 0.25
)

// StageObserver is notified synchronously whenever a stage changes status.
// Observers run while the runtime is locked and must not call back into it.
type StageObserver func(stageID string, status workflow.Status)

// Options configures a Runtime. Zero values select the defaults.
type Options struct {
	Clock           clock.Clock
	Bus             *events.Bus
	Logger          *slog.Logger
	Policy          BranchPolicy
	TransitionDelay time.Duration
	TickInterval    time.Duration
	Speed           float64
	NewRunID        func() string
}

// Runtime is the playback state machine for one simulator instance.
// Every scheduled callback carries the epoch it was scheduled in; pause,
// step and reset bump the epoch so stale callbacks are inert.
type Runtime struct {
	mu sync.Mutex

	clock           clock.Clock
	bus             *events.Bus
	logger          *slog.Logger
	policy          BranchPolicy
	transitionDelay time.Duration
	tickInterval    time.Duration
	newRunID        func() string

	graph *workflow.Graph
	log   *events.Log

	mode             Mode
	complete         bool
	runID            string
	currentStageID   string
	activeTransition *workflow.Transition
	speed            float64
	startTimestamp   time.Time
	elapsed          float64

	epoch   uint64
	pending clock.Timer
	ticker  clock.Timer

	observers []StageObserver
}

// NewRuntime creates a runtime with no graph loaded.
func NewRuntime(opts Options) *Runtime {
	r := &Runtime{
		clock:           opts.Clock,
		bus:             opts.Bus,
		logger:          opts.Logger,
		policy:          opts.Policy,
		transitionDelay: opts.TransitionDelay,
		tickInterval:    opts.TickInterval,
		newRunID:        opts.NewRunID,
		log:             events.NewLog(),
		mode:            ModeStopped,
		speed:           1.0,
	}
	if r.clock == nil {
		r.clock = clock.NewReal()
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.policy == nil {
		r.policy = FirstPolicy{}
	}
	if r.transitionDelay <= 0 {
		r.transitionDelay = DefaultTransitionDelay
	}
	if r.tickInterval <= 0 {
		r.tickInterval = DefaultTickInterval
	}
	if r.newRunID == nil {
		r.newRunID = uuid.NewString
	}
	if opts.Speed > 0 {
		if s, err := normalizeSpeed(opts.Speed); err == nil {
			r.speed = s
		}
	}
	return r
}

// Load installs a graph and resets playback. The runtime keeps its own copy.
func (r *Runtime) Load(g *workflow.Graph) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked()
	if r.graph != nil {
		r.clearLocked()
	}
	r.graph = g.Clone()
	for i := range r.graph.Stages {
		r.graph.Stages[i].Status = workflow.StatusIdle
	}
	r.clearLocked()
}

// OnStageChange registers a stage status observer.
func (r *Runtime) OnStageChange(obs StageObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// SetPolicy replaces the branch policy used for subsequent advances.
func (r *Runtime) SetPolicy(p BranchPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == nil {
		p = FirstPolicy{}
	}
	r.policy = p
}

// Play starts a run from the entry stage, or resumes a paused run.
// Resuming advances out of the current stage at once, as if its dwell
// timer had just fired; a transition frozen by the pause is finished and
// the target stage dwells normally.
func (r *Runtime) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.graph == nil {
		return ErrNotLoaded
	}
	if r.complete {
		return ErrRunComplete
	}

	switch r.mode {
	case ModeRunning:
		return ErrAlreadyPlaying
	case ModePaused:
		r.cancelLocked()
		r.mode = ModeRunning
		r.emit(events.SimulationResumed, map[string]interface{}{"stage_id": r.currentStageID})
		r.startTickerLocked()
		if r.activeTransition != nil {
			r.finishTransitionLocked()
			r.scheduleAdvanceLocked()
			return nil
		}
		r.advanceLocked()
		return nil
	default:
		r.startRunLocked(ModeRunning)
		r.startTickerLocked()
		r.scheduleAdvanceLocked()
		return nil
	}
}

// Pause freezes a running simulation and cancels its pending advance.
func (r *Runtime) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.graph == nil {
		return ErrNotLoaded
	}
	if r.mode != ModeRunning {
		return ErrNotRunning
	}
	r.pauseLocked()
	return nil
}

// Step performs one manual advance. A running simulation is paused first;
// a stopped one is started in the paused state. A transition still
// animating is completed and counts as the step.
func (r *Runtime) Step() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.graph == nil {
		return ErrNotLoaded
	}
	if r.complete {
		return ErrRunComplete
	}

	switch r.mode {
	case ModeStopped:
		r.startRunLocked(ModePaused)
		return nil
	case ModeRunning:
		r.pauseLocked()
	}

	r.cancelLocked()
	if r.activeTransition != nil {
		r.finishTransitionLocked()
		return nil
	}
	r.advanceLocked()
	return nil
}

// Reset cancels all scheduled work and restores the initial state.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked()
	if r.graph == nil {
		return
	}
	r.emit(events.SimulationReset, nil)
	r.clearLocked()
}

// SetSpeed changes the speed multiplier. Only durations scheduled after the
// call are affected.
func (r *Runtime) SetSpeed(multiplier float64) error {
	s, err := normalizeSpeed(multiplier)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.speed = s
	r.emit(events.SimulationSpeed, map[string]interface{}{"multiplier": s})
	return nil
}

func normalizeSpeed(m float64) (float64, error) {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSpeed, m)
	}
	if m < MinSpeed || m > MaxSpeed {
		return 0, fmt.Errorf("%w: %v not in [%v, %v]", ErrInvalidSpeed, m, MinSpeed, MaxSpeed)
	}
	return math.Round(m/SpeedStep) * SpeedStep, nil
}

// Snapshot returns a copy of the current state.
func (r *Runtime) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		RunID:          r.runID,
		Mode:           r.mode,
		Complete:       r.complete,
		CurrentStageID: r.currentStageID,
		Speed:          r.speed,
		ElapsedSeconds: r.elapsed,
		StartTimestamp: r.startTimestamp,
	}
	if r.activeTransition != nil {
		s.ActiveTransitionID = r.activeTransition.ID
	}
	if r.graph != nil {
		g := r.graph.Clone()
		s.Stages = g.Stages
		s.Transitions = g.Transitions
	}
	return s
}

// EventLog returns the log entries of the current run.
func (r *Runtime) EventLog() []events.LogEntry {
	return r.log.ReadAll()
}

// Graph returns a copy of the loaded graph, or nil.
func (r *Runtime) Graph() *workflow.Graph {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.graph == nil {
		return nil
	}
	return r.graph.Clone()
}

// startRunLocked activates the entry stage and records the start entry.
func (r *Runtime) startRunLocked(mode Mode) {
	r.runID = r.newRunID()
	if r.bus != nil {
		r.bus.SetRunID(r.runID)
	}
	r.mode = mode
	r.startTimestamp = r.clock.Now()
	r.elapsed = 0
	r.currentStageID = workflow.EntryStageID
	r.setStatusLocked(workflow.EntryStageID, workflow.StatusActive)
	r.appendLocked("", workflow.EntryStageID, events.ReasonStarted)
	r.emit(events.SimulationStarted, map[string]interface{}{
		"stage_id": workflow.EntryStageID,
		"speed":    r.speed,
	})
}

func (r *Runtime) pauseLocked() {
	r.cancelLocked()
	r.updateElapsedLocked()
	r.mode = ModePaused
	r.emit(events.SimulationPaused, map[string]interface{}{
		"stage_id":        r.currentStageID,
		"elapsed_seconds": r.elapsed,
	})
}

// advanceLocked moves from the current stage along the chosen transition,
// or completes the run if the current stage is terminal.
func (r *Runtime) advanceLocked() {
	from := r.currentStageID
	outgoing := r.graph.Outgoing(from)
	if len(outgoing) == 0 {
		r.completeLocked(from)
		return
	}

	t := r.policy.Choose(from, outgoing)
	target, ok := r.graph.Stage(t.Target)
	if !ok {
		r.logger.Error("transition target missing", "transition_id", t.ID, "target", t.Target)
		return
	}

	r.activeTransition = &t
	r.appendLocked(from, t.Target, "Transitioning to "+target.Label)
	r.emit(events.TransitionStarted, map[string]interface{}{
		"transition_id": t.ID,
		"from":          from,
		"to":            t.Target,
	})

	epoch := r.epoch
	r.pending = r.clock.AfterFunc(r.transitionDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.epoch != epoch {
			return
		}
		r.finishTransitionLocked()
		r.scheduleAdvanceLocked()
	})
}

// finishTransitionLocked ends the transition animation: the source stage is
// done and the target becomes current.
func (r *Runtime) finishTransitionLocked() {
	t := r.activeTransition
	if t == nil {
		return
	}
	r.activeTransition = nil
	r.setStatusLocked(t.Source, workflow.StatusDone)
	r.currentStageID = t.Target
	r.setStatusLocked(t.Target, workflow.StatusActive)
	r.emit(events.TransitionCompleted, map[string]interface{}{
		"transition_id": t.ID,
		"from":          t.Source,
		"to":            t.Target,
	})
}

// scheduleAdvanceLocked arms the dwell timer for the current stage. The
// timer only fires into an advance if the run is still running in the
// epoch it was armed in.
func (r *Runtime) scheduleAdvanceLocked() {
	if r.mode != ModeRunning {
		return
	}
	stage, ok := r.graph.Stage(r.currentStageID)
	if !ok {
		return
	}

	d := time.Duration(float64(time.Duration(stage.DurationMs)*time.Millisecond) / r.speed)
	epoch := r.epoch
	r.pending = r.clock.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.epoch != epoch || r.mode != ModeRunning {
			return
		}
		r.advanceLocked()
	})
}

func (r *Runtime) completeLocked(stageID string) {
	r.appendLocked(stageID, stageID, events.ReasonComplete)
	r.activeTransition = nil
	r.setStatusLocked(stageID, workflow.StatusDone)
	r.cancelLocked()
	r.updateElapsedLocked()
	r.mode = ModeStopped
	r.complete = true
	r.emit(events.SimulationCompleted, map[string]interface{}{
		"stage_id":        stageID,
		"elapsed_seconds": r.elapsed,
	})
}

func (r *Runtime) startTickerLocked() {
	epoch := r.epoch
	var tick func()
	tick = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.epoch != epoch || r.mode != ModeRunning {
			return
		}
		r.updateElapsedLocked()
		r.ticker = r.clock.AfterFunc(r.tickInterval, tick)
	}
	r.ticker = r.clock.AfterFunc(r.tickInterval, tick)
}

func (r *Runtime) updateElapsedLocked() {
	if r.startTimestamp.IsZero() {
		return
	}
	r.elapsed = r.clock.Now().Sub(r.startTimestamp).Seconds()
}

// cancelLocked invalidates every outstanding callback.
func (r *Runtime) cancelLocked() {
	r.epoch++
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

func (r *Runtime) clearLocked() {
	r.mode = ModeStopped
	r.complete = false
	r.runID = ""
	if r.bus != nil {
		r.bus.SetRunID("")
	}
	r.currentStageID = ""
	r.activeTransition = nil
	r.startTimestamp = time.Time{}
	r.elapsed = 0
	r.log.Reset()

	if r.graph == nil {
		return
	}
	for i := range r.graph.Stages {
		s := &r.graph.Stages[i]
		if s.Status == workflow.StatusIdle {
			continue
		}
		s.Status = workflow.StatusIdle
		r.notify(s.ID, workflow.StatusIdle)
	}
}

// setStatusLocked moves a stage forward in its lifecycle. Regressions are
// refused; only clearLocked may return a stage to idle.
func (r *Runtime) setStatusLocked(stageID string, status workflow.Status) {
	for i := range r.graph.Stages {
		s := &r.graph.Stages[i]
		if s.ID != stageID {
			continue
		}
		if status.Rank() < s.Status.Rank() {
			r.logger.Error("refusing status regression", "stage_id", stageID, "from", s.Status, "to", status)
			return
		}
		if s.Status == status {
			return
		}
		s.Status = status
		r.notify(stageID, status)

		switch status {
		case workflow.StatusActive:
			r.emit(events.StageActivated, map[string]interface{}{"stage_id": stageID, "label": s.Label})
		case workflow.StatusDone:
			r.emit(events.StageCompleted, map[string]interface{}{"stage_id": stageID, "label": s.Label})
		}
		return
	}
}

func (r *Runtime) appendLocked(from, to, reason string) {
	e := r.log.Append(events.LogEntry{
		Timestamp:   r.clock.Now(),
		FromStageID: from,
		ToStageID:   to,
		Reason:      reason,
	})
	r.emit(events.LogAppended, map[string]interface{}{
		"seq":    r.log.Len() - 1,
		"ts":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"from":   e.FromStageID,
		"to":     e.ToStageID,
		"reason": e.Reason,
	})
}

func (r *Runtime) notify(stageID string, status workflow.Status) {
	for _, obs := range r.observers {
		obs(stageID, status)
	}
}

func (r *Runtime) emit(name string, fields map[string]interface{}) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Emit("info", name, "", fields); err != nil {
		r.logger.Error("emit failed", "event", name, "error", err)
	}
}

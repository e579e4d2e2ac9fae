package orchestrator

import (
	"fmt"

	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

// ReplayState is the stage state reconstructed from a persisted event log.
type ReplayState struct {
	Started        bool
	Complete       bool
	CurrentStageID string
	Statuses       map[string]workflow.Status
	Transitions    int
}

// Replay rebuilds stage statuses by walking log entries in order.
// Each transition entry is treated as finished: its source is done and its
// target active. Entries naming stages outside the graph are rejected.
func Replay(g *workflow.Graph, entries []events.LogEntry) (*ReplayState, error) {
	state := &ReplayState{
		Statuses: make(map[string]workflow.Status, len(g.Stages)),
	}
	for _, s := range g.Stages {
		state.Statuses[s.ID] = workflow.StatusIdle
	}

	for i, e := range entries {
		if !g.HasStage(e.ToStageID) || (e.FromStageID != "" && !g.HasStage(e.FromStageID)) {
			return nil, fmt.Errorf("log entry %d references unknown stage (%q -> %q)", i, e.FromStageID, e.ToStageID)
		}

		switch {
		case e.IsStart():
			for id := range state.Statuses {
				state.Statuses[id] = workflow.StatusIdle
			}
			state.Started = true
			state.Complete = false
			state.Transitions = 0
			state.CurrentStageID = e.ToStageID
			state.Statuses[e.ToStageID] = workflow.StatusActive

		case e.IsComplete():
			state.Statuses[e.FromStageID] = workflow.StatusDone
			state.CurrentStageID = e.FromStageID
			state.Complete = true

		default:
			state.Statuses[e.FromStageID] = workflow.StatusDone
			state.Statuses[e.ToStageID] = workflow.StatusActive
			state.CurrentStageID = e.ToStageID
			state.Transitions++
		}
	}

	return state, nil
}

// Restore applies a replayed log to the runtime without re-emitting stage
// events. A finished run is restored stopped; an unfinished one paused so
// play resumes from the current stage.
func (r *Runtime) Restore(runID string, entries []events.LogEntry) (*ReplayState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.graph == nil {
		return nil, ErrNotLoaded
	}

	state, err := Replay(r.graph, entries)
	if err != nil {
		return nil, err
	}
	if !state.Started {
		return state, nil
	}

	r.cancelLocked()
	r.clearLocked()

	for i := range r.graph.Stages {
		s := &r.graph.Stages[i]
		s.Status = state.Statuses[s.ID]
		if s.Status == workflow.StatusActive {
			r.notify(s.ID, s.Status)
		}
	}
	for _, e := range entries {
		r.log.Append(e)
	}

	r.runID = runID
	if r.bus != nil {
		r.bus.SetRunID(runID)
	}
	r.currentStageID = state.CurrentStageID
	r.startTimestamp = entries[0].Timestamp
	last := entries[len(entries)-1].Timestamp
	r.elapsed = last.Sub(r.startTimestamp).Seconds()
	r.complete = state.Complete
	if state.Complete {
		r.mode = ModeStopped
	} else {
		r.mode = ModePaused
	}

	return state, nil
}

package orchestrator

import (
	"time"

	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

// Mode is the playback state.
type Mode string

const (
	ModeStopped Mode = "stopped"
	ModeRunning Mode = "running"
	ModePaused  Mode = "paused"
)

// Snapshot is a consistent copy of the simulation state.
type Snapshot struct {
	RunID              string                `json:"run_id,omitempty"`
	Mode               Mode                  `json:"mode"`
	Complete           bool                  `json:"complete"`
	CurrentStageID     string                `json:"current_stage_id,omitempty"`
	ActiveTransitionID string                `json:"active_transition_id,omitempty"`
	Speed              float64               `json:"speed"`
	ElapsedSeconds     float64               `json:"elapsed_seconds"`
	StartTimestamp     time.Time             `json:"start_ts,omitzero"`
	Stages             []workflow.Stage      `json:"stages"`
	Transitions        []workflow.Transition `json:"transitions"`
}

// IsPlaying is true while a run is running or paused.
func (s Snapshot) IsPlaying() bool {
	return s.Mode != ModeStopped
}

// IsPaused is true only while a run is paused.
func (s Snapshot) IsPaused() bool {
	return s.Mode == ModePaused
}

// Stage returns a stage from the snapshot by id.
func (s Snapshot) Stage(id string) (workflow.Stage, bool) {
	for _, st := range s.Stages {
		if st.ID == id {
			return st, true
		}
	}
	return workflow.Stage{}, false
}

// ActiveStages returns the ids of stages currently active.
func (s Snapshot) ActiveStages() []string {
	var ids []string
	for _, st := range s.Stages {
		if st.Status == workflow.StatusActive {
			ids = append(ids, st.ID)
		}
	}
	return ids
}

package presentation

import (
	"time"

	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/orchestrator"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

// Status is the side panel summary of a run.
type Status struct {
	RunID          string            `json:"run_id,omitempty"`
	Mode           orchestrator.Mode `json:"mode"`
	Complete       bool              `json:"complete"`
	Speed          float64           `json:"speed"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
	CurrentStageID string            `json:"current_stage_id,omitempty"`
	CurrentLabel   string            `json:"current_label,omitempty"`
	NextStageID    string            `json:"next_stage_id,omitempty"`
	NextLabel      string            `json:"next_label,omitempty"`
	StagesDone     int               `json:"stages_done"`
	StagesTotal    int               `json:"stages_total"`
}

// BuildStatus summarises a snapshot. The next stage is the target of the
// current stage's first outgoing transition.
func BuildStatus(snap orchestrator.Snapshot) Status {
	st := Status{
		RunID:          snap.RunID,
		Mode:           snap.Mode,
		Complete:       snap.Complete,
		Speed:          snap.Speed,
		ElapsedSeconds: snap.ElapsedSeconds,
		CurrentStageID: snap.CurrentStageID,
		StagesTotal:    len(snap.Stages),
	}

	labels := stageLabels(snap.Stages)
	for _, s := range snap.Stages {
		if s.Status == workflow.StatusDone {
			st.StagesDone++
		}
	}
	if snap.CurrentStageID == "" {
		return st
	}
	st.CurrentLabel = labels[snap.CurrentStageID]

	if snap.Complete {
		return st
	}
	for _, t := range snap.Transitions {
		if t.Source == snap.CurrentStageID {
			st.NextStageID = t.Target
			st.NextLabel = labels[t.Target]
			break
		}
	}
	return st
}

// LogLine is an event log entry with stage labels resolved.
type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from,omitempty"`
	FromLabel string    `json:"from_label,omitempty"`
	To        string    `json:"to"`
	ToLabel   string    `json:"to_label"`
	Reason    string    `json:"reason"`
}

// BuildLog resolves labels for log entries. With newestFirst the order is
// reversed for display; the entries themselves are not touched.
func BuildLog(entries []events.LogEntry, stages []workflow.Stage, newestFirst bool) []LogLine {
	labels := stageLabels(stages)
	lines := make([]LogLine, len(entries))
	for i, e := range entries {
		j := i
		if newestFirst {
			j = len(entries) - 1 - i
		}
		lines[j] = LogLine{
			Timestamp: e.Timestamp,
			From:      e.FromStageID,
			FromLabel: labelOr(labels, e.FromStageID),
			To:        e.ToStageID,
			ToLabel:   labelOr(labels, e.ToStageID),
			Reason:    e.Reason,
		}
	}
	return lines
}

func stageLabels(stages []workflow.Stage) map[string]string {
	labels := make(map[string]string, len(stages))
	for _, s := range stages {
		labels[s.ID] = s.Label
	}
	return labels
}

func labelOr(labels map[string]string, id string) string {
	if id == "" {
		return ""
	}
	if l, ok := labels[id]; ok {
		return l
	}
	return id
}

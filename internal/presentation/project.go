// Package presentation projects simulation state into renderable views.
// Nothing here mutates its inputs.
package presentation

import (
	"log/slog"

	"github.com/AaronLay10/FNOLSimulator/internal/layout"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

// NodeDescriptor is one renderable stage.
type NodeDescriptor struct {
	ID        string            `json:"id"`
	Position  workflow.Position `json:"position"`
	Label     string            `json:"label"`
	Status    workflow.Status   `json:"status"`
	Notes     []string          `json:"notes,omitempty"`
	Messages  []string          `json:"messages,omitempty"`
	Draggable bool              `json:"draggable"`
}

// EdgeDescriptor is one renderable transition.
type EdgeDescriptor struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Highlighted bool   `json:"highlighted"`
	Condition   string `json:"condition,omitempty"`
}

// Frame is a complete render of the graph.
type Frame struct {
	Nodes []NodeDescriptor `json:"nodes"`
	Edges []EdgeDescriptor `json:"edges"`
}

// Input is the state a frame is projected from.
type Input struct {
	Stages             []workflow.Stage
	Transitions        []workflow.Transition
	ActiveTransitionID string
	// Revealed returns the messages revealed for a stage. Optional.
	Revealed func(stageID string) []string
	Locked   bool
}

// Project builds the render frame. Stages without usable positions are
// laid out; transitions whose endpoints are missing are logged and dropped.
func Project(in Input, logger *slog.Logger) Frame {
	if logger == nil {
		logger = logging.NewNop()
	}

	stages := layout.Ensure(in.Stages, in.Transitions)
	frame := Frame{
		Nodes: make([]NodeDescriptor, 0, len(stages)),
		Edges: make([]EdgeDescriptor, 0, len(in.Transitions)),
	}

	present := make(map[string]bool, len(stages))
	for _, s := range stages {
		present[s.ID] = true
		n := NodeDescriptor{
			ID:        s.ID,
			Label:     s.Label,
			Status:    s.Status,
			Draggable: !in.Locked,
		}
		if s.Position != nil {
			n.Position = *s.Position
		}
		// Notes and messages are only shown on the active stage.
		if s.Status == workflow.StatusActive {
			n.Notes = s.Notes
			if in.Revealed != nil {
				n.Messages = in.Revealed(s.ID)
			}
		}
		frame.Nodes = append(frame.Nodes, n)
	}

	for _, t := range in.Transitions {
		if !present[t.Source] || !present[t.Target] {
			logger.Warn("dropping dangling transition", "transition_id", t.ID, "source", t.Source, "target", t.Target)
			continue
		}
		frame.Edges = append(frame.Edges, EdgeDescriptor{
			ID:          t.ID,
			Source:      t.Source,
			Target:      t.Target,
			Highlighted: in.ActiveTransitionID != "" && t.ID == in.ActiveTransitionID,
			Condition:   t.Condition,
		})
	}

	return frame
}

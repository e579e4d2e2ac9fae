package presentation

import (
	"fmt"
	"strings"

	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

// Overlay carries run state to highlight in a Mermaid diagram.
type Overlay struct {
	ActiveTransitionID string
}

// GenerateMermaid renders the graph as a Mermaid flowchart. Stage status
// drives the node classes; the entry stage is drawn as a circle.
func GenerateMermaid(stages []workflow.Stage, transitions []workflow.Transition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	present := make(map[string]bool, len(stages))
	for _, s := range stages {
		present[s.ID] = true
		opener, closer := "[", "]"
		if s.ID == workflow.EntryStageID {
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(s.ID), opener, escapeLabel(s.Label), closer))
	}

	activeLink := -1
	link := 0
	for _, t := range transitions {
		if !present[t.Source] || !present[t.Target] {
			continue
		}
		arrow := "-->"
		if t.Condition != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(t.Condition))
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(t.Source), arrow, sanitizeMermaidID(t.Target)))
		if overlay != nil && overlay.ActiveTransitionID != "" && t.ID == overlay.ActiveTransitionID {
			activeLink = link
		}
		link++
	}

	if overlay == nil {
		return sb.String()
	}

	sb.WriteString("\n    %% Overlay Styles\n")
	sb.WriteString("    classDef done fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef active fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	for _, s := range stages {
		switch s.Status {
		case workflow.StatusDone:
			sb.WriteString(fmt.Sprintf("    class %s done;\n", sanitizeMermaidID(s.ID)))
		case workflow.StatusActive:
			sb.WriteString(fmt.Sprintf("    class %s active;\n", sanitizeMermaidID(s.ID)))
		}
	}
	if activeLink >= 0 {
		sb.WriteString(fmt.Sprintf("    linkStyle %d stroke:#fbc02d,stroke-width:4px;\n", activeLink))
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// Package workflow defines workflow templates (stages and transitions) and
// loads them into validated graphs.
package workflow

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidGraph is returned when a template cannot form a playable graph.
var ErrInvalidGraph = errors.New("invalid graph")

//go:embed templates/fnol.json
var templatesFS embed.FS

// Load validates a template and builds a graph with every stage idle.
// The same template always yields a structurally identical graph.
func Load(t Template) (*Graph, error) {
	g := &Graph{
		Stages:      make([]Stage, 0, len(t.Nodes)),
		Transitions: make([]Transition, 0, len(t.Edges)),
		index:       make(map[string]int, len(t.Nodes)),
	}

	for _, n := range t.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: stage with empty id", ErrInvalidGraph)
		}
		if _, dup := g.index[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate stage id %q", ErrInvalidGraph, n.ID)
		}
		if n.DurationMs < 0 {
			return nil, fmt.Errorf("%w: stage %q has negative duration", ErrInvalidGraph, n.ID)
		}
		label := n.Label
		if label == "" {
			label = n.ID
		}
		s := Stage{
			ID:         n.ID,
			Label:      label,
			DurationMs: n.DurationMs,
			Status:     StatusIdle,
			Notes:      append([]string(nil), n.Notes...),
		}
		if n.Position != nil {
			p := *n.Position
			s.Position = &p
		}
		g.index[n.ID] = len(g.Stages)
		g.Stages = append(g.Stages, s)
	}

	if _, ok := g.index[EntryStageID]; !ok {
		return nil, fmt.Errorf("%w: no %q stage", ErrInvalidGraph, EntryStageID)
	}

	seen := make(map[string]struct{}, len(t.Edges))
	for i, e := range t.Edges {
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("e%d-%s-%s", i, e.Source, e.Target)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate transition id %q", ErrInvalidGraph, id)
		}
		seen[id] = struct{}{}

		if !g.HasStage(e.Source) {
			return nil, fmt.Errorf("%w: transition %q references unknown source %q", ErrInvalidGraph, id, e.Source)
		}
		if !g.HasStage(e.Target) {
			return nil, fmt.Errorf("%w: transition %q references unknown target %q", ErrInvalidGraph, id, e.Target)
		}
		g.Transitions = append(g.Transitions, Transition{
			ID:        id,
			Source:    e.Source,
			Target:    e.Target,
			Condition: e.Condition,
			When:      e.When,
		})
	}

	if cycle := findCycle(g); cycle != "" {
		return nil, fmt.Errorf("%w: cycle through stage %q", ErrInvalidGraph, cycle)
	}

	return g, nil
}

// findCycle returns a stage on a directed cycle, or "" if the graph is acyclic.
func findCycle(g *Graph) string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.Stages))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = grey
		for _, t := range g.Outgoing(id) {
			switch color[t.Target] {
			case grey:
				return t.Target
			case white:
				if c := visit(t.Target); c != "" {
					return c
				}
			}
		}
		color[id] = black
		return ""
	}

	for _, s := range g.Stages {
		if color[s.ID] == white {
			if c := visit(s.ID); c != "" {
				return c
			}
		}
	}
	return ""
}

// ParseTemplate decodes a template document. YAML is accepted as well as
// JSON since JSON is valid YAML for these documents.
func ParseTemplate(data []byte, format string) (Template, error) {
	var t Template
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &t); err != nil {
			return Template{}, fmt.Errorf("failed to parse template YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &t); err != nil {
			return Template{}, fmt.Errorf("failed to parse template JSON: %w", err)
		}
	}
	return t, nil
}

// LoadTemplateFile reads a template from disk, choosing the decoder from the
// file extension.
func LoadTemplateFile(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("failed to read template file: %w", err)
	}
	return ParseTemplate(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// LoadFile reads and validates a template file. An empty path loads the
// built-in FNOL template.
func LoadFile(path string) (*Graph, error) {
	if path == "" {
		return Default()
	}
	t, err := LoadTemplateFile(path)
	if err != nil {
		return nil, err
	}
	return Load(t)
}

// DefaultTemplate returns the built-in FNOL claim-processing template.
func DefaultTemplate() (Template, error) {
	data, err := templatesFS.ReadFile("templates/fnol.json")
	if err != nil {
		return Template{}, fmt.Errorf("failed to read built-in template: %w", err)
	}
	return ParseTemplate(data, "json")
}

// Default loads the built-in FNOL claim-processing workflow.
func Default() (*Graph, error) {
	t, err := DefaultTemplate()
	if err != nil {
		return nil, err
	}
	return Load(t)
}

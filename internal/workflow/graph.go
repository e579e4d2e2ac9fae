package workflow

// EntryStageID is the id every template must use for its entry stage.
const EntryStageID = "start"

// Template is the static document a workflow is loaded from.
type Template struct {
	Nodes []TemplateNode `json:"nodes" yaml:"nodes"`
	Edges []TemplateEdge `json:"edges" yaml:"edges"`
}

// TemplateNode describes one stage in a template.
// Position is optional; when present and valid it overrides auto-layout.
type TemplateNode struct {
	ID         string    `json:"id" yaml:"id"`
	Label      string    `json:"label" yaml:"label"`
	DurationMs int       `json:"durationMs" yaml:"durationMs"`
	Notes      []string  `json:"notes,omitempty" yaml:"notes,omitempty"`
	Position   *Position `json:"position,omitempty" yaml:"position,omitempty"`
}

// TemplateEdge describes an allowed progression between two stages.
// When is an optional expression over case facts, only consulted by the
// condition branch policy.
type TemplateEdge struct {
	ID        string `json:"id" yaml:"id"`
	Source    string `json:"source" yaml:"source"`
	Target    string `json:"target" yaml:"target"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	When      string `json:"when,omitempty" yaml:"when,omitempty"`
}

// Status is the per-stage lifecycle within one playback run.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusDone   Status = "done"
)

// Rank orders statuses so regressions can be detected.
func (s Status) Rank() int {
	switch s {
	case StatusActive:
		return 1
	case StatusDone:
		return 2
	default:
		return 0
	}
}

// Position is a 2-D diagram coordinate.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Stage is a node of a loaded workflow.
type Stage struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	DurationMs int       `json:"durationMs"`
	Position   *Position `json:"position,omitempty"`
	Status     Status    `json:"status"`
	Notes      []string  `json:"notes,omitempty"`
}

// Transition is an edge of a loaded workflow.
type Transition struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Condition string `json:"condition,omitempty"`
	When      string `json:"when,omitempty"`
}

// Graph is a validated workflow: stages in template order and transitions
// in declaration order.
type Graph struct {
	Stages      []Stage
	Transitions []Transition

	index map[string]int
}

// Stage returns the stage with the given id.
func (g *Graph) Stage(id string) (Stage, bool) {
	i, ok := g.index[id]
	if !ok {
		return Stage{}, false
	}
	return g.Stages[i], true
}

// HasStage returns true if the stage exists in the graph.
func (g *Graph) HasStage(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Outgoing returns the transitions leaving a stage, in declaration order.
func (g *Graph) Outgoing(id string) []Transition {
	var out []Transition
	for _, t := range g.Transitions {
		if t.Source == id {
			out = append(out, t)
		}
	}
	return out
}

// IsTerminal returns true if the stage has no outgoing transitions.
func (g *Graph) IsTerminal(id string) bool {
	for _, t := range g.Transitions {
		if t.Source == id {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the graph so runs never share stage state.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Stages:      make([]Stage, len(g.Stages)),
		Transitions: append([]Transition(nil), g.Transitions...),
		index:       make(map[string]int, len(g.index)),
	}
	for i, s := range g.Stages {
		c.Stages[i] = cloneStage(s)
	}
	for k, v := range g.index {
		c.index[k] = v
	}
	return c
}

func cloneStage(s Stage) Stage {
	if s.Position != nil {
		p := *s.Position
		s.Position = &p
	}
	s.Notes = append([]string(nil), s.Notes...)
	return s
}

// Package layout assigns diagram coordinates to workflow stages.
package layout

import (
	"math"
	"sort"

	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

// Grid constants for the column layout.
const (
	StagesPerColumn   = 4
	HorizontalSpacing = 350.0
	VerticalSpacing   = 150.0
	OriginX           = 200.0
	OriginY           = 100.0
)

// Layout returns a copy of stages with every position assigned.
//
// Depth is the BFS distance from the entry stage following transitions in
// declaration order. Stages not reachable from the entry take their input
// index as depth. Stages are ordered by (depth, visit order) and placed in
// slots of StagesPerColumn per column. Layout is deterministic and never
// fails, even on disconnected graphs.
func Layout(stages []workflow.Stage, transitions []workflow.Transition) []workflow.Stage {
	depth, visitOrder := bfs(stages, transitions)

	type slot struct {
		idx   int
		depth int
		order int
	}
	slots := make([]slot, len(stages))
	for i, s := range stages {
		d, ok := depth[s.ID]
		order := visitOrder[s.ID]
		if !ok {
			d = i
			order = len(visitOrder) + i
		}
		slots[i] = slot{idx: i, depth: d, order: order}
	}
	sort.SliceStable(slots, func(a, b int) bool {
		if slots[a].depth != slots[b].depth {
			return slots[a].depth < slots[b].depth
		}
		return slots[a].order < slots[b].order
	})

	out := clone(stages)
	for k, sl := range slots {
		p := gridPosition(k)
		out[sl.idx].Position = &p
	}

	if !AllValid(out) {
		return Fallback(stages)
	}
	return out
}

// bfs computes depths from the entry stage and the order stages were
// first visited.
func bfs(stages []workflow.Stage, transitions []workflow.Transition) (map[string]int, map[string]int) {
	depth := make(map[string]int, len(stages))
	visitOrder := make(map[string]int, len(stages))

	known := make(map[string]bool, len(stages))
	for _, s := range stages {
		known[s.ID] = true
	}
	if !known[workflow.EntryStageID] {
		return depth, visitOrder
	}

	depth[workflow.EntryStageID] = 0
	visitOrder[workflow.EntryStageID] = 0
	queue := []string{workflow.EntryStageID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, t := range transitions {
			if t.Source != current || !known[t.Target] {
				continue
			}
			if _, seen := depth[t.Target]; seen {
				continue
			}
			depth[t.Target] = depth[current] + 1
			visitOrder[t.Target] = len(visitOrder)
			queue = append(queue, t.Target)
		}
	}
	return depth, visitOrder
}

func gridPosition(slot int) workflow.Position {
	column := slot / StagesPerColumn
	row := slot % StagesPerColumn
	return workflow.Position{
		X: OriginX + float64(column)*HorizontalSpacing,
		Y: OriginY + float64(row)*VerticalSpacing,
	}
}

// Fallback places stages by input index alone, four per column.
func Fallback(stages []workflow.Stage) []workflow.Stage {
	out := clone(stages)
	for i := range out {
		p := gridPosition(i)
		out[i].Position = &p
	}
	return out
}

// Valid reports whether a position is set and finite.
func Valid(p *workflow.Position) bool {
	if p == nil {
		return false
	}
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// AllValid reports whether every stage carries a valid position.
func AllValid(stages []workflow.Stage) bool {
	for _, s := range stages {
		if !Valid(s.Position) {
			return false
		}
	}
	return true
}

// Ensure keeps externally supplied positions when all of them are valid and
// otherwise lays the whole graph out again.
func Ensure(stages []workflow.Stage, transitions []workflow.Transition) []workflow.Stage {
	if len(stages) > 0 && AllValid(stages) {
		return clone(stages)
	}
	return Layout(stages, transitions)
}

func clone(stages []workflow.Stage) []workflow.Stage {
	out := make([]workflow.Stage, len(stages))
	for i, s := range stages {
		if s.Position != nil {
			p := *s.Position
			s.Position = &p
		}
		s.Notes = append([]string(nil), s.Notes...)
		out[i] = s
	}
	return out
}

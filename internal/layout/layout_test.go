package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

func stages(ids ...string) []workflow.Stage {
	out := make([]workflow.Stage, len(ids))
	for i, id := range ids {
		out[i] = workflow.Stage{ID: id, Label: id, Status: workflow.StatusIdle}
	}
	return out
}

func edge(src, dst string) workflow.Transition {
	return workflow.Transition{ID: src + "->" + dst, Source: src, Target: dst}
}

func TestLayoutLinearChainFillsColumns(t *testing.T) {
	ss := stages("start", "a", "b", "c", "d", "e")
	ts := []workflow.Transition{edge("start", "a"), edge("a", "b"), edge("b", "c"), edge("c", "d"), edge("d", "e")}

	out := Layout(ss, ts)

	assert.Equal(t, workflow.Position{X: 200, Y: 100}, *out[0].Position)
	assert.Equal(t, workflow.Position{X: 200, Y: 550}, *out[3].Position)
	assert.Equal(t, workflow.Position{X: 550, Y: 100}, *out[4].Position)
	assert.Equal(t, workflow.Position{X: 550, Y: 250}, *out[5].Position)
}

func TestLayoutIsDeterministic(t *testing.T) {
	g, err := workflow.Default()
	require.NoError(t, err)

	first := Layout(g.Stages, g.Transitions)
	second := Layout(g.Stages, g.Transitions)
	for i := range first {
		assert.Equal(t, *first[i].Position, *second[i].Position, "stage %s", first[i].ID)
	}
}

func TestLayoutDoesNotMutateInput(t *testing.T) {
	ss := stages("start", "a")
	Layout(ss, []workflow.Transition{edge("start", "a")})
	assert.Nil(t, ss[0].Position)
}

func TestLayoutUnreachableStageGetsPosition(t *testing.T) {
	ss := stages("start", "a", "island")
	out := Layout(ss, []workflow.Transition{edge("start", "a")})

	for _, s := range out {
		require.NotNil(t, s.Position, s.ID)
		assert.False(t, math.IsNaN(s.Position.X))
		assert.False(t, math.IsNaN(s.Position.Y))
	}
}

func TestLayoutWithoutEntryStage(t *testing.T) {
	out := Layout(stages("x", "y"), nil)
	assert.True(t, AllValid(out))
}

func TestLayoutBranchesDoNotOverlap(t *testing.T) {
	ss := stages("start", "left", "right", "join")
	ts := []workflow.Transition{edge("start", "left"), edge("start", "right"), edge("left", "join"), edge("right", "join")}

	out := Layout(ss, ts)
	seen := map[workflow.Position]string{}
	for _, s := range out {
		if other, dup := seen[*s.Position]; dup {
			t.Fatalf("%s overlaps %s at %+v", s.ID, other, *s.Position)
		}
		seen[*s.Position] = s.ID
	}
	assert.Less(t, out[1].Position.Y, out[2].Position.Y, "left visited before right")
}

func TestEnsureKeepsValidPositions(t *testing.T) {
	ss := stages("start", "a")
	ss[0].Position = &workflow.Position{X: 5, Y: 6}
	ss[1].Position = &workflow.Position{X: 7, Y: 8}

	out := Ensure(ss, []workflow.Transition{edge("start", "a")})
	assert.Equal(t, workflow.Position{X: 5, Y: 6}, *out[0].Position)
	assert.Equal(t, workflow.Position{X: 7, Y: 8}, *out[1].Position)
}

func TestEnsureRelaysOutInvalidPositions(t *testing.T) {
	ss := stages("start", "a")
	ss[0].Position = &workflow.Position{X: math.NaN(), Y: 6}

	out := Ensure(ss, []workflow.Transition{edge("start", "a")})
	assert.Equal(t, workflow.Position{X: 200, Y: 100}, *out[0].Position)
	assert.Equal(t, workflow.Position{X: 200, Y: 250}, *out[1].Position)
}

func TestFallback(t *testing.T) {
	out := Fallback(stages("a", "b", "c", "d", "e"))
	assert.Equal(t, workflow.Position{X: 550, Y: 100}, *out[4].Position)
}

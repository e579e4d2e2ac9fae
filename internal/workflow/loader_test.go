package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearTemplate() Template {
	return Template{
		Nodes: []TemplateNode{
			{ID: "start", Label: "Start", DurationMs: 100},
			{ID: "a", Label: "A", DurationMs: 200},
			{ID: "end", Label: "End", DurationMs: 100},
		},
		Edges: []TemplateEdge{
			{ID: "e1", Source: "start", Target: "a"},
			{ID: "e2", Source: "a", Target: "end"},
		},
	}
}

func TestDefaultTemplate(t *testing.T) {
	g, err := Default()
	require.NoError(t, err)

	assert.Len(t, g.Stages, 21)
	assert.Equal(t, EntryStageID, g.Stages[0].ID)
	for _, s := range g.Stages {
		assert.Equal(t, StatusIdle, s.Status, "stage %s", s.ID)
		assert.Positive(t, s.DurationMs, "stage %s", s.ID)
	}
	assert.True(t, g.IsTerminal("finalOutcome"))
	assert.False(t, g.IsTerminal("start"))

	out := g.Outgoing("revalidation")
	require.Len(t, out, 2)
	assert.Equal(t, "IGO", out[0].Condition)
	assert.Equal(t, "NIGO", out[1].Condition)
}

func TestLoadIsIdempotent(t *testing.T) {
	tmpl := linearTemplate()
	g1, err := Load(tmpl)
	require.NoError(t, err)
	g2, err := Load(tmpl)
	require.NoError(t, err)

	assert.Equal(t, g1.Stages, g2.Stages)
	assert.Equal(t, g1.Transitions, g2.Transitions)
}

func TestLoadRejectsDanglingTransition(t *testing.T) {
	tmpl := linearTemplate()
	tmpl.Edges = append(tmpl.Edges, TemplateEdge{ID: "bad", Source: "a", Target: "ghost"})

	_, err := Load(tmpl)
	assert.ErrorIs(t, err, ErrInvalidGraph)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadRejectsMissingStart(t *testing.T) {
	tmpl := linearTemplate()
	tmpl.Nodes[0].ID = "begin"
	tmpl.Edges[0].Source = "begin"

	_, err := Load(tmpl)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestLoadRejectsDuplicateStage(t *testing.T) {
	tmpl := linearTemplate()
	tmpl.Nodes = append(tmpl.Nodes, TemplateNode{ID: "a", Label: "Again"})

	_, err := Load(tmpl)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestLoadRejectsCycle(t *testing.T) {
	tmpl := linearTemplate()
	tmpl.Edges = append(tmpl.Edges, TemplateEdge{ID: "back", Source: "end", Target: "a"})

	_, err := Load(tmpl)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestLoadDefaultsLabelAndEdgeID(t *testing.T) {
	tmpl := Template{
		Nodes: []TemplateNode{{ID: "start"}, {ID: "x"}},
		Edges: []TemplateEdge{{Source: "start", Target: "x"}},
	}
	g, err := Load(tmpl)
	require.NoError(t, err)

	s, ok := g.Stage("x")
	require.True(t, ok)
	assert.Equal(t, "x", s.Label)
	assert.NotEmpty(t, g.Transitions[0].ID)
}

func TestLoadFileYAML(t *testing.T) {
	doc := `
nodes:
  - id: start
    label: Start
    durationMs: 500
    position: {x: 10, y: 20}
  - id: done
    label: Done
    durationMs: 500
edges:
  - id: e1
    source: start
    target: done
    condition: IGO
`
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	g, err := LoadFile(path)
	require.NoError(t, err)

	s, _ := g.Stage("start")
	require.NotNil(t, s.Position)
	assert.Equal(t, Position{X: 10, Y: 20}, *s.Position)
	assert.Equal(t, "IGO", g.Transitions[0].Condition)
}

func TestLoadFileEmptyPathUsesDefault(t *testing.T) {
	g, err := LoadFile("")
	require.NoError(t, err)
	assert.True(t, g.HasStage("finalOutcome"))
}

func TestCloneIsDeep(t *testing.T) {
	g, err := Load(linearTemplate())
	require.NoError(t, err)

	c := g.Clone()
	c.Stages[0].Status = StatusDone
	c.Stages[0].Position = &Position{X: 1, Y: 1}

	assert.Equal(t, StatusIdle, g.Stages[0].Status)
	assert.Nil(t, g.Stages[0].Position)
}

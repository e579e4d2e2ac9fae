package orchestrator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/AaronLay10/FNOLSimulator/internal/clock"
	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

var t0 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func linearGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	g, err := workflow.Load(workflow.Template{
		Nodes: []workflow.TemplateNode{
			{ID: "start", Label: "Claim Received", DurationMs: 1000},
			{ID: "a", Label: "Stage A", DurationMs: 2000},
			{ID: "b", Label: "Stage B", DurationMs: 500},
		},
		Edges: []workflow.TemplateEdge{
			{ID: "e1", Source: "start", Target: "a"},
			{ID: "e2", Source: "a", Target: "b"},
		},
	})
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	return g
}

func branchGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	g, err := workflow.Load(workflow.Template{
		Nodes: []workflow.TemplateNode{
			{ID: "start", DurationMs: 100},
			{ID: "left", DurationMs: 100},
			{ID: "right", DurationMs: 100},
		},
		Edges: []workflow.TemplateEdge{
			{ID: "to-left", Source: "start", Target: "left", When: "goLeft"},
			{ID: "to-right", Source: "start", Target: "right", When: "!goLeft"},
		},
	})
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	return g
}

func newTestRuntime(t *testing.T, g *workflow.Graph) (*Runtime, *clock.Manual, *events.Bus) {
	t.Helper()
	clk := clock.NewManual(t0)
	bus := events.NewBus(nil)
	bus.SetClock(clk.Now)
	ids := 0
	rt := NewRuntime(Options{
		Clock: clk,
		Bus:   bus,
		NewRunID: func() string {
			ids++
			return "run-" + string(rune('0'+ids))
		},
	})
	rt.Load(g)
	return rt, clk, bus
}

func statusOf(t *testing.T, rt *Runtime, id string) workflow.Status {
	t.Helper()
	s, ok := rt.Snapshot().Stage(id)
	if !ok {
		t.Fatalf("stage %s missing from snapshot", id)
	}
	return s.Status
}

func TestPlayActivatesEntryStage(t *testing.T) {
	rt, _, _ := newTestRuntime(t, linearGraph(t))

	if err := rt.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	snap := rt.Snapshot()
	if snap.Mode != ModeRunning {
		t.Errorf("expected running, got %s", snap.Mode)
	}
	if snap.CurrentStageID != "start" {
		t.Errorf("expected current stage start, got %s", snap.CurrentStageID)
	}
	if got := statusOf(t, rt, "start"); got != workflow.StatusActive {
		t.Errorf("expected start active, got %s", got)
	}
	if snap.RunID != "run-1" {
		t.Errorf("expected run-1, got %s", snap.RunID)
	}

	log := rt.EventLog()
	if len(log) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(log))
	}
	if !log[0].IsStart() || log[0].ToStageID != "start" || log[0].Reason != events.ReasonStarted {
		t.Errorf("unexpected start entry: %+v", log[0])
	}
	if !log[0].Timestamp.Equal(t0) {
		t.Errorf("expected start timestamp %v, got %v", t0, log[0].Timestamp)
	}
}

func TestPlaybackRunsToCompletion(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, linearGraph(t))
	if err := rt.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	clk.Advance(999 * time.Millisecond)
	if len(rt.EventLog()) != 1 {
		t.Fatalf("advanced before dwell elapsed")
	}

	clk.Advance(time.Millisecond)
	snap := rt.Snapshot()
	if snap.ActiveTransitionID != "e1" {
		t.Errorf("expected e1 animating, got %q", snap.ActiveTransitionID)
	}
	if got := statusOf(t, rt, "start"); got != workflow.StatusActive {
		t.Errorf("source should stay active during animation, got %s", got)
	}

	clk.Advance(DefaultTransitionDelay)
	if got := statusOf(t, rt, "start"); got != workflow.StatusDone {
		t.Errorf("expected start done, got %s", got)
	}
	if got := statusOf(t, rt, "a"); got != workflow.StatusActive {
		t.Errorf("expected a active, got %s", got)
	}

	clk.Advance(10 * time.Second)
	snap = rt.Snapshot()
	if !snap.Complete || snap.Mode != ModeStopped {
		t.Fatalf("expected complete and stopped, got complete=%v mode=%s", snap.Complete, snap.Mode)
	}
	for _, s := range snap.Stages {
		if s.Status != workflow.StatusDone {
			t.Errorf("expected %s done, got %s", s.ID, s.Status)
		}
	}

	log := rt.EventLog()
	reasons := []string{events.ReasonStarted, "Transitioning to Stage A", "Transitioning to Stage B", events.ReasonComplete}
	if len(log) != len(reasons) {
		t.Fatalf("expected %d entries, got %d: %+v", len(reasons), len(log), log)
	}
	for i, want := range reasons {
		if log[i].Reason != want {
			t.Errorf("entry %d: expected %q, got %q", i, want, log[i].Reason)
		}
	}
	last := log[len(log)-1]
	if !last.IsComplete() || last.ToStageID != "b" {
		t.Errorf("unexpected completion entry: %+v", last)
	}
	for i := 1; i < len(log); i++ {
		if log[i].Timestamp.Before(log[i-1].Timestamp) {
			t.Errorf("entry %d timestamp decreased", i)
		}
	}
	if clk.Pending() != 0 {
		t.Errorf("expected no pending timers after completion, got %d", clk.Pending())
	}
	if got, want := snap.ElapsedSeconds, 4.1; got < want-0.001 || got > want+0.001 {
		t.Errorf("expected elapsed %.1f, got %f", want, got)
	}
}

func TestPauseSuppressesAdvance(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, linearGraph(t))
	rt.Play()
	clk.Advance(500 * time.Millisecond)

	if err := rt.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	clk.Advance(time.Minute)

	if len(rt.EventLog()) != 1 {
		t.Errorf("paused runtime advanced: %+v", rt.EventLog())
	}
	if snap := rt.Snapshot(); !snap.IsPaused() || snap.CurrentStageID != "start" {
		t.Errorf("expected paused at start, got mode=%s stage=%s", snap.Mode, snap.CurrentStageID)
	}

	if err := rt.Pause(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}

	// Resume advances out of the paused stage immediately.
	if err := rt.Play(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	log := rt.EventLog()
	if len(log) != 2 || log[1].ToStageID != "a" || log[1].Reason != "Transitioning to Stage A" {
		t.Fatalf("expected immediate transition to a on resume, got %+v", log)
	}
	if rt.Snapshot().ActiveTransitionID != "e1" {
		t.Errorf("expected e1 animating after resume")
	}
	clk.Advance(DefaultTransitionDelay)
	if got := statusOf(t, rt, "a"); got != workflow.StatusActive {
		t.Errorf("expected a active after the transition, got %s", got)
	}
}

func TestResumePastDwellDoesNotWaitAgain(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, linearGraph(t))
	rt.Play()
	clk.Advance(900 * time.Millisecond)
	rt.Pause()
	rt.Play()
	clk.Advance(150 * time.Millisecond)

	log := rt.EventLog()
	if len(log) != 2 || log[1].Reason != "Transitioning to Stage A" {
		t.Errorf("expected transition to a after resume, got %+v", log)
	}
}

func TestPauseDuringTransitionFinishesOnResume(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, linearGraph(t))
	rt.Play()
	clk.Advance(1100 * time.Millisecond)
	rt.Pause()
	clk.Advance(time.Second)

	if rt.Snapshot().ActiveTransitionID != "e1" {
		t.Fatalf("expected frozen transition")
	}
	rt.Play()
	if got := statusOf(t, rt, "a"); got != workflow.StatusActive {
		t.Errorf("expected a active after resume, got %s", got)
	}
}

func TestStep(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, linearGraph(t))

	if err := rt.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	snap := rt.Snapshot()
	if snap.Mode != ModePaused || snap.CurrentStageID != "start" {
		t.Fatalf("expected paused at start, got mode=%s stage=%s", snap.Mode, snap.CurrentStageID)
	}

	if err := rt.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if rt.Snapshot().ActiveTransitionID != "e1" {
		t.Errorf("expected transition e1 to start")
	}

	// Animation still completes while paused.
	clk.Advance(DefaultTransitionDelay)
	if got := statusOf(t, rt, "a"); got != workflow.StatusActive {
		t.Errorf("expected a active, got %s", got)
	}
	clk.Advance(time.Minute)
	if rt.Snapshot().CurrentStageID != "a" {
		t.Errorf("step must not resume playback")
	}

	rt.Step()
	rt.Step() // finishes the animation
	if got := statusOf(t, rt, "b"); got != workflow.StatusActive {
		t.Errorf("expected b active, got %s", got)
	}
	rt.Step()
	if !rt.Snapshot().Complete {
		t.Errorf("expected completion on terminal step")
	}
	if err := rt.Step(); !errors.Is(err, ErrRunComplete) {
		t.Errorf("expected ErrRunComplete, got %v", err)
	}
	if err := rt.Play(); !errors.Is(err, ErrRunComplete) {
		t.Errorf("expected ErrRunComplete, got %v", err)
	}
}

func TestStepWhileRunningPauses(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, linearGraph(t))
	rt.Play()
	clk.Advance(200 * time.Millisecond)

	rt.Step()
	snap := rt.Snapshot()
	if snap.Mode != ModePaused {
		t.Errorf("expected paused, got %s", snap.Mode)
	}
	if snap.ActiveTransitionID != "e1" {
		t.Errorf("expected step to start e1, got %q", snap.ActiveTransitionID)
	}
}

func TestResetClearsState(t *testing.T) {
	rt, clk, bus := newTestRuntime(t, linearGraph(t))
	rt.Play()
	clk.Advance(1500 * time.Millisecond)

	rt.Reset()
	snap := rt.Snapshot()
	if snap.Mode != ModeStopped || snap.Complete || snap.CurrentStageID != "" || snap.RunID != "" {
		t.Errorf("unexpected state after reset: %+v", snap)
	}
	for _, s := range snap.Stages {
		if s.Status != workflow.StatusIdle {
			t.Errorf("expected %s idle, got %s", s.ID, s.Status)
		}
	}
	if len(rt.EventLog()) != 0 {
		t.Errorf("expected empty log after reset")
	}
	if bus.RunID() != "" {
		t.Errorf("expected bus run id cleared")
	}

	clk.Advance(time.Minute)
	if len(rt.EventLog()) != 0 {
		t.Errorf("stale timer fired after reset")
	}

	if err := rt.Play(); err != nil {
		t.Fatalf("play after reset: %v", err)
	}
	if rt.Snapshot().RunID != "run-2" {
		t.Errorf("expected a fresh run id")
	}
}

func TestResetAfterCompletion(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, linearGraph(t))
	rt.Play()
	clk.Advance(10 * time.Second)

	snap := rt.Snapshot()
	if !snap.Complete || snap.ElapsedSeconds == 0 {
		t.Fatalf("expected a completed run with elapsed time, got %+v", snap)
	}
	if err := rt.Play(); !errors.Is(err, ErrRunComplete) {
		t.Fatalf("expected ErrRunComplete, got %v", err)
	}

	rt.Reset()
	snap = rt.Snapshot()
	if snap.Complete {
		t.Errorf("expected complete cleared")
	}
	if snap.Mode != ModeStopped {
		t.Errorf("expected stopped, got %s", snap.Mode)
	}
	if snap.CurrentStageID != "" {
		t.Errorf("expected no current stage, got %q", snap.CurrentStageID)
	}
	if snap.ElapsedSeconds != 0 {
		t.Errorf("expected elapsed 0, got %v", snap.ElapsedSeconds)
	}
	if len(rt.EventLog()) != 0 {
		t.Errorf("expected empty log, got %d entries", len(rt.EventLog()))
	}
	for _, s := range snap.Stages {
		if s.Status != workflow.StatusIdle {
			t.Errorf("expected %s idle, got %s", s.ID, s.Status)
		}
	}

	if err := rt.Play(); err != nil {
		t.Fatalf("play after reset: %v", err)
	}
	if snap := rt.Snapshot(); snap.CurrentStageID != "start" || snap.Mode != ModeRunning {
		t.Errorf("expected a new run at start, got mode=%s stage=%s", snap.Mode, snap.CurrentStageID)
	}
}

func TestControlErrors(t *testing.T) {
	rt := NewRuntime(Options{Clock: clock.NewManual(t0)})
	if err := rt.Play(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
	if err := rt.Step(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}

	rt.Load(linearGraph(t))
	rt.Play()
	if err := rt.Play(); !errors.Is(err, ErrAlreadyPlaying) {
		t.Errorf("expected ErrAlreadyPlaying, got %v", err)
	}
}

func TestSetSpeed(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
		err  bool
	}{
		{1, 1, false},
		{0.25, 0.25, false},
		{3, 3, false},
		{1.3, 1.25, false},
		{0.1, 0, true},
		{2.9, 3, false},
		{0.3, 0.25, false},
		{3.1, 0, true},
		{0.13, 0, true},
		{3.5, 0, true},
		{-1, 0, true},
		{math.NaN(), 0, true},
	}
	rt, _, _ := newTestRuntime(t, linearGraph(t))
	for _, tt := range tests {
		err := rt.SetSpeed(tt.in)
		if tt.err {
			if !errors.Is(err, ErrInvalidSpeed) {
				t.Errorf("SetSpeed(%v): expected ErrInvalidSpeed, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("SetSpeed(%v): %v", tt.in, err)
			continue
		}
		if got := rt.Snapshot().Speed; got != tt.want {
			t.Errorf("SetSpeed(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestSpeedScalesDwell(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, linearGraph(t))
	rt.SetSpeed(2)
	rt.Play()

	clk.Advance(499 * time.Millisecond)
	if len(rt.EventLog()) != 1 {
		t.Fatalf("advanced too early at speed 2")
	}
	clk.Advance(time.Millisecond)
	if len(rt.EventLog()) != 2 {
		t.Errorf("expected transition after half the dwell")
	}
}

func TestStatusesAreMonotonicWithOneActiveStage(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, linearGraph(t))

	seen := map[string]workflow.Status{}
	active := map[string]bool{}
	rt.OnStageChange(func(id string, s workflow.Status) {
		if prev, ok := seen[id]; ok && s.Rank() < prev.Rank() {
			t.Errorf("stage %s regressed from %s to %s", id, prev, s)
		}
		seen[id] = s
		if s == workflow.StatusActive {
			active[id] = true
		} else {
			delete(active, id)
		}
		if len(active) > 1 {
			t.Errorf("more than one active stage: %v", active)
		}
	})

	rt.Play()
	for i := 0; i < 100; i++ {
		clk.Advance(100 * time.Millisecond)
	}
	if !rt.Snapshot().Complete {
		t.Errorf("expected run to complete")
	}
}

func TestConditionPolicyChoosesBranch(t *testing.T) {
	facts := map[string]interface{}{"goLeft": false}
	rt, clk, _ := newTestRuntime(t, branchGraph(t))
	rt.SetPolicy(NewConditionPolicy(func() map[string]interface{} { return facts }, nil))

	rt.Play()
	clk.Advance(time.Second)
	if got := statusOf(t, rt, "right"); got != workflow.StatusDone {
		t.Errorf("expected right branch taken, got %s", got)
	}
	if got := statusOf(t, rt, "left"); got != workflow.StatusIdle {
		t.Errorf("expected left untouched, got %s", got)
	}

	rt.Reset()
	facts["goLeft"] = true
	rt.Play()
	clk.Advance(time.Second)
	if got := statusOf(t, rt, "left"); got != workflow.StatusDone {
		t.Errorf("expected left branch taken, got %s", got)
	}
}

func TestFirstPolicyTakesDeclarationOrder(t *testing.T) {
	rt, clk, _ := newTestRuntime(t, branchGraph(t))
	rt.Play()
	clk.Advance(time.Second)
	if got := statusOf(t, rt, "left"); got != workflow.StatusDone {
		t.Errorf("expected first edge taken, got %s", got)
	}
}

func TestEventsEmitted(t *testing.T) {
	rt, clk, bus := newTestRuntime(t, linearGraph(t))
	rt.Play()
	clk.Advance(10 * time.Second)

	counts := map[string]int{}
	for _, e := range bus.Snapshot() {
		counts[e.Name]++
		if e.Name != events.SimulationReset && e.RunID != "run-1" {
			t.Errorf("event %s missing run id", e.Name)
		}
	}
	if counts[events.SimulationStarted] != 1 || counts[events.SimulationCompleted] != 1 {
		t.Errorf("unexpected lifecycle counts: %v", counts)
	}
	if counts[events.TransitionCompleted] != 2 {
		t.Errorf("expected 2 transitions, got %d", counts[events.TransitionCompleted])
	}
	if counts[events.LogAppended] != 4 {
		t.Errorf("expected 4 log events, got %d", counts[events.LogAppended])
	}
}

package orchestrator

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/AaronLay10/FNOLSimulator/internal/logging"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

// Branch policy names accepted in configuration.
const (
	PolicyFirst     = "first"
	PolicyCondition = "condition"
)

// BranchPolicy picks the transition to take out of a stage.
// outgoing is never empty and is in declaration order.
type BranchPolicy interface {
	Choose(from string, outgoing []workflow.Transition) workflow.Transition
}

// FirstPolicy always takes the first declared transition.
type FirstPolicy struct{}

func (FirstPolicy) Choose(_ string, outgoing []workflow.Transition) workflow.Transition {
	return outgoing[0]
}

// Facts supplies the case data branch expressions are evaluated against.
type Facts func() map[string]interface{}

// ConditionPolicy takes the first transition whose When expression holds
// for the current case facts. An empty expression always holds. If no
// expression holds, or one fails to evaluate, the first transition is used.
type ConditionPolicy struct {
	facts  Facts
	logger *slog.Logger

	mu       sync.Mutex
	programs map[string]*vm.Program
}

// NewConditionPolicy creates a condition policy.
func NewConditionPolicy(facts Facts, logger *slog.Logger) *ConditionPolicy {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ConditionPolicy{
		facts:    facts,
		logger:   logger,
		programs: make(map[string]*vm.Program),
	}
}

func (p *ConditionPolicy) Choose(from string, outgoing []workflow.Transition) workflow.Transition {
	env := map[string]interface{}{}
	if p.facts != nil {
		if f := p.facts(); f != nil {
			env = f
		}
	}

	for _, t := range outgoing {
		ok, err := p.eval(t.When, env)
		if err != nil {
			p.logger.Warn("branch condition failed", "stage_id", from, "transition_id", t.ID, "when", t.When, "error", err)
			continue
		}
		if ok {
			return t
		}
	}
	return outgoing[0]
}

func (p *ConditionPolicy) eval(src string, env map[string]interface{}) (bool, error) {
	if src == "" {
		return true, nil
	}

	p.mu.Lock()
	program, ok := p.programs[src]
	if !ok {
		var err error
		program, err = expr.Compile(src, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			p.mu.Unlock()
			return false, fmt.Errorf("compile %q: %w", src, err)
		}
		p.programs[src] = program
	}
	p.mu.Unlock()

	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", src, out)
	}
	return b, nil
}

// NewPolicy resolves a policy by configuration name.
func NewPolicy(name string, facts Facts, logger *slog.Logger) (BranchPolicy, error) {
	switch name {
	case "", PolicyFirst:
		return FirstPolicy{}, nil
	case PolicyCondition:
		return NewConditionPolicy(facts, logger), nil
	default:
		return nil, fmt.Errorf("unknown branch policy: %s", name)
	}
}

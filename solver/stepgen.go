package solver

import (
	"abt/config"
	"abt/pomdp"
)

// Step is one instruction from a step generator: either an action to
// simulate (possibly expanding an untried one), or a terminate signal
// carrying the value that seeds backpropagation.
type Step struct {
	Action    pomdp.Action
	Expanding bool
	Terminate bool
	Value     float64
}

// StepGenerator chooses the next action at each belief along an episode.
// isNew marks beliefs created by the preceding transition; generators
// treat that as the expansion boundary.
type StepGenerator interface {
	NextStep(belief *BeliefNode, state pomdp.State, depth int, isNew bool) Step
}

// ucbGenerator is the default step generator: expansion of a uniformly
// drawn untried action while any remains, UCB1 over tried actions
// otherwise. Terminates at terminal states, at the expansion boundary and
// at the horizon.
type ucbGenerator struct {
	model       pomdp.Model
	coefficient float64
	horizon     int64
	zeroLeaf    bool
}

// NewUCBStepGenerator builds the UCB1 generator with exploration
// coefficient c. A horizon of 0 means unlimited depth; zeroLeaf replaces
// the model heuristic with 0 at leaves.
func NewUCBStepGenerator(model pomdp.Model, c float64, horizon int64, zeroLeaf bool) StepGenerator {
	return &ucbGenerator{model: model, coefficient: c, horizon: horizon, zeroLeaf: zeroLeaf}
}

// NewStepGeneratorFromOptions wires the generator from the options record.
func NewStepGeneratorFromOptions(model pomdp.Model, opts config.Options) StepGenerator {
	return NewUCBStepGenerator(model, opts.ExplorationCoefficient, opts.Horizon,
		opts.HeuristicType == config.HeuristicZero)
}

func (g *ucbGenerator) leafValue(belief *BeliefNode, state pomdp.State) float64 {
	if g.zeroLeaf {
		return 0
	}
	return g.model.HeuristicValue(belief.Data(), state)
}

func (g *ucbGenerator) NextStep(belief *BeliefNode, state pomdp.State, depth int, isNew bool) Step {
	if g.model.IsTerminal(state) {
		return Step{Terminate: true}
	}
	if isNew || (g.horizon > 0 && int64(depth) >= g.horizon) {
		return Step{Terminate: true, Value: g.leafValue(belief, state)}
	}
	m := belief.Mapping()
	if m.HasUntried() {
		if rm, ok := g.model.(pomdp.RolloutModel); ok && m.TotalVisits() == 0 {
			if a, ok := rm.RolloutAction(belief.Data(), state); ok {
				if e := m.Entry(a); e != nil && e.Status() == ActionUntried {
					return Step{Action: a, Expanding: true}
				}
			}
		}
		a, _ := m.NextUntriedAction()
		return Step{Action: a, Expanding: true}
	}
	if a, ok := m.UCBAction(g.coefficient); ok {
		return Step{Action: a}
	}
	// no legal actions at all
	return Step{Terminate: true, Value: g.leafValue(belief, state)}
}

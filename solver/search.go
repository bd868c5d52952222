package solver

import (
	"math"

	"abt/pomdp"
)

// SearchStrategy drives one simulation from a belief, producing a new
// history sequence with all rewards backpropagated.
type SearchStrategy interface {
	ExtendEpisode(belief *BeliefNode, start *StateInfo) (*HistorySequence, error)
}

// basicSearch is the default: follow the step generator until it
// terminates, growing the tree one belief per episode, then backpropagate
// the discounted return.
type basicSearch struct {
	solver *Solver
	gen    StepGenerator
}

// NewBasicSearch builds the default search strategy around a step
// generator.
func NewBasicSearch(s *Solver, gen StepGenerator) SearchStrategy {
	return &basicSearch{solver: s, gen: gen}
}

func (bs *basicSearch) ExtendEpisode(belief *BeliefNode, start *StateInfo) (*HistorySequence, error) {
	model := bs.solver.model
	gamma := model.DiscountFactor()

	seq := bs.solver.histories.NewSequence()
	entry := seq.Append(start)
	entry.belief = belief
	belief.addParticle(entry)

	cur := belief
	state := start.State()
	isNew := false
	leaf := 0.0

	for {
		step := bs.gen.NextStep(cur, state, cur.depth, isNew)
		if step.Terminate {
			leaf = step.Value
			break
		}

		res := model.GenerateStep(state, step.Action)
		if err := checkStep(res); err != nil {
			return nil, err
		}
		action := res.Action
		if action == nil {
			action = step.Action
		}

		entry.action = action
		entry.observation = res.Observation
		entry.reward = res.Reward

		child, created := cur.CreateOrGetChild(action, res.Observation)
		if child == nil {
			return nil, &ModelContractError{Reason: "step generator chose an action outside the legal set"}
		}
		info, err := bs.solver.pool.GetOrCanonicalize(res.NextState)
		if err != nil {
			return nil, err
		}

		next := seq.Append(info)
		next.discount = entry.discount * gamma
		next.belief = child
		child.addParticle(next)

		entry = next
		cur = child
		state = info.State()
		if res.IsTerminal {
			leaf = 0
			break
		}
		isNew = created
	}

	backpropagate(seq, leaf, gamma)
	return seq, nil
}

// backpropagate walks the sequence in reverse, committing G = r + gamma*G
// into each traversed belief's action entry and observation entry, and
// dirties the estimators along the way. The leaf value seeds G.
func backpropagate(seq *HistorySequence, leaf float64, gamma float64) {
	g := leaf
	last := seq.entries[len(seq.entries)-1]
	last.cumulative = g
	if last.belief != nil {
		last.belief.estimator.MarkDirty()
	}
	for i := len(seq.entries) - 2; i >= 0; i-- {
		e := seq.entries[i]
		g = e.reward + gamma*g
		e.cumulative = g
		commit(e, g, 1)
	}
}

// undoBackpropagate reverses a sequence's committed statistics using each
// entry's cached cumulative return.
func undoBackpropagate(seq *HistorySequence) {
	for i := len(seq.entries) - 2; i >= 0; i-- {
		e := seq.entries[i]
		commit(e, -e.cumulative, -1)
	}
}

func commit(e *HistoryEntry, deltaQ float64, deltaVisits int64) {
	if e.belief == nil || e.action == nil {
		return
	}
	am := e.belief.actionMap.Entry(e.action)
	if am == nil {
		return
	}
	am.Update(deltaQ, deltaVisits)
	if am.node != nil && e.observation != nil {
		if oe, ok := am.node.obsMap.byKey[e.observation.Key()]; ok {
			oe.updateVisits(deltaVisits)
		}
	}
	e.belief.estimator.MarkDirty()
}

func checkStep(res pomdp.StepResult) error {
	if res.NextState == nil {
		return &ModelContractError{Reason: "generateStep returned a nil next state"}
	}
	if res.Observation == nil {
		return &ModelContractError{Reason: "generateStep returned a nil observation"}
	}
	if math.IsNaN(res.Reward) {
		return &ModelContractError{Reason: "generateStep returned a NaN reward"}
	}
	return nil
}

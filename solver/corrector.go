package solver

import "abt/config"

// HistoryCorrector replays the suffix of a sequence whose entries were
// flagged by a model change, re-resolving children where observations
// shift and re-committing the backpropagated returns.
type HistoryCorrector interface {
	ReviseSequence(seq *HistorySequence) error
}

type defaultCorrector struct {
	solver *Solver
}

// NewDefaultCorrector builds the generic corrector, which replays every
// flagged suffix through the model. The solver always installs it; no
// solver option replaces it.
func NewDefaultCorrector(s *Solver) HistoryCorrector {
	return &defaultCorrector{solver: s}
}

func (c *defaultCorrector) ReviseSequence(seq *HistorySequence) error {
	first := -1
	for i, e := range seq.entries {
		if e.flagged {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}
	// a flagged final entry means the step into it changed
	if first == len(seq.entries)-1 && first > 0 {
		first--
	}

	model := c.solver.model
	gamma := model.DiscountFactor()

	undoBackpropagate(seq)

	for i := first; i < len(seq.entries)-1; i++ {
		e := seq.entries[i]
		if e.action == nil {
			break
		}
		res := model.GenerateStep(e.State(), e.action)
		if err := checkStep(res); err != nil {
			return err
		}
		e.reward = res.Reward

		next := seq.entries[i+1]
		obsChanged := e.observation == nil || res.Observation.Key() != e.observation.Key()
		e.observation = res.Observation
		if obsChanged && e.belief != nil {
			child, _ := e.belief.CreateOrGetChild(e.action, res.Observation)
			if child != nil && child != next.belief {
				if next.belief != nil {
					next.belief.removeParticle(next)
				}
				next.belief = child
				child.addParticle(next)
			}
		}

		if !res.NextState.Equal(next.State()) {
			info, err := c.solver.pool.GetOrCanonicalize(res.NextState)
			if err != nil {
				return err
			}
			next.stateInfo.unregister(next)
			next.stateInfo = info
			info.register(next)
		}

		if res.IsTerminal {
			seq.truncateAfter(i + 1)
			break
		}
	}

	last := seq.Last()
	leaf := 0.0
	if !model.IsTerminal(last.State()) && c.solver.opts.HeuristicType != config.HeuristicZero {
		var data any
		if last.belief != nil {
			data = last.belief.Data()
		}
		leaf = model.HeuristicValue(data, last.State())
	}
	backpropagate(seq, leaf, gamma)

	for _, e := range seq.entries {
		e.flagged = false
	}
	return nil
}

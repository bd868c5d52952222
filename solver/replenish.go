package solver

import (
	"golang.org/x/exp/rand"

	"abt/pomdp"
)

// Replenisher produces fresh particle states for a child belief reached by
// (action, observation) from the given parent belief.
type Replenisher interface {
	Replenish(parent *BeliefNode, action pomdp.Action, obs pomdp.Observation, target int) ([]pomdp.State, error)
}

// defaultReplenisher resamples the parent belief by observation likelihood
// when the model supports it and the parent is compatible with the
// observation; otherwise it falls back to bounded black-box rejection
// sampling from the uniform prior.
type defaultReplenisher struct {
	model       pomdp.Model
	rng         *rand.Rand
	maxAttempts int64
}

// NewDefaultReplenisher builds the weighted-resampling replenisher with a
// rejection-sampling fallback bounded by maxAttempts draws.
func NewDefaultReplenisher(model pomdp.Model, rng *rand.Rand, maxAttempts int64) Replenisher {
	return &defaultReplenisher{model: model, rng: rng, maxAttempts: maxAttempts}
}

func (r *defaultReplenisher) Replenish(parent *BeliefNode, action pomdp.Action,
	obs pomdp.Observation, target int) ([]pomdp.State, error) {

	if lm, ok := r.model.(pomdp.LikelihoodModel); ok && parent != nil && parent.ParticleCount() > 0 {
		states, ok := r.resampleWeighted(lm, parent, action, obs, target)
		if ok {
			return states, nil
		}
	}
	return r.rejectionSample(parent, action, obs, target)
}

type weightedGroup struct {
	state  pomdp.State
	weight float64
}

// resampleWeighted groups the parent particles by state, weights each
// group by the observation likelihood, and draws w*N/sumW copies per group
// with stochastic rounding, so the expected total is exactly N. Reports
// false when the parent is incompatible with the observation (sumW = 0).
func (r *defaultReplenisher) resampleWeighted(lm pomdp.LikelihoodModel, parent *BeliefNode,
	action pomdp.Action, obs pomdp.Observation, target int) ([]pomdp.State, bool) {

	groups := make(map[uint64][]*weightedGroup)
	order := make([]*weightedGroup, 0, parent.ParticleCount())
	sumW := 0.0
	for _, e := range parent.Particles() {
		s := e.State()
		w := lm.ObservationLikelihood(s, action, obs)
		sumW += w
		h := s.Hash()
		found := false
		for _, g := range groups[h] {
			if g.state.Equal(s) {
				g.weight += w
				found = true
				break
			}
		}
		if !found {
			g := &weightedGroup{state: s, weight: w}
			groups[h] = append(groups[h], g)
			order = append(order, g)
		}
	}
	if sumW <= 0 {
		return nil, false
	}

	scale := float64(target) / sumW
	states := make([]pomdp.State, 0, target)
	for _, g := range order {
		proportion := g.weight * scale
		n := int(proportion)
		if r.rng.Float64() < proportion-float64(n) {
			n++
		}
		for i := 0; i < n; i++ {
			res := r.model.GenerateStep(g.state, action)
			states = append(states, res.NextState)
		}
	}
	return states, true
}

// rejectionSample repeatedly draws a uniform state, steps it, and accepts
// the next state iff the sampled observation lands in the target class.
func (r *defaultReplenisher) rejectionSample(parent *BeliefNode, action pomdp.Action,
	obs pomdp.Observation, target int) ([]pomdp.State, error) {

	states := make([]pomdp.State, 0, target)
	for attempts := int64(0); len(states) < target; attempts++ {
		if attempts >= r.maxAttempts {
			var beliefID int64 = -1
			if parent != nil {
				beliefID = parent.ID()
			}
			return states, &ParticleDepletionError{
				BeliefID: beliefID,
				Produced: len(states),
				Target:   target,
			}
		}
		s := r.model.SampleStateUniform()
		res := r.model.GenerateStep(s, action)
		if res.Observation != nil && res.Observation.Key() == obs.Key() {
			states = append(states, res.NextState)
		}
	}
	return states, nil
}

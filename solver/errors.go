package solver

import (
	"errors"
	"fmt"
)

// ModelContractError reports a model returning values the solver cannot
// use: NaN rewards, nil states or observations, or a state vector whose
// length disagrees with NumStateVariables.
type ModelContractError struct {
	Reason string
}

func (e *ModelContractError) Error() string {
	return "model contract violation: " + e.Reason
}

// ParticleDepletionError reports a replenishment that could not reach the
// minimum particle count within its attempt budget.
type ParticleDepletionError struct {
	BeliefID int64
	Produced int
	Target   int
}

func (e *ParticleDepletionError) Error() string {
	return fmt.Sprintf("particle depletion at belief %d: produced %d of %d particles",
		e.BeliefID, e.Produced, e.Target)
}

// InvariantError reports an internal consistency check failure. It always
// indicates a bug in the solver.
type InvariantError struct {
	Check string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Check
}

// ErrSerialization wraps every malformed-stream error from the text
// serializer. A failed load never perturbs in-memory state.
var ErrSerialization = errors.New("malformed solver stream")

package pomdp

// State is the problem's world state. The solver never inspects its
// contents; it only compares, hashes, and indexes states. Vector must have
// length Model.NumStateVariables() - it feeds the spatial state index.
type State interface {
	Equal(other State) bool
	Hash() uint64
	DistanceTo(other State) float64
	Vector() []float64
	String() string
}

// Action is one agent action. Bin is a stable integer identifier within the
// problem's (enumerated or discretized) action space.
type Action interface {
	Equal(other Action) bool
	Bin() int64
	String() string
}

// Observation is one percept. Key identifies the observation's discrete
// equivalence class; two observations with the same key map to the same
// child belief.
type Observation interface {
	Equal(other Observation) bool
	Key() uint64
	String() string
}

// StepResult holds the outcome of a single black-box model step.
type StepResult struct {
	Action      Action
	Observation Observation
	Reward      float64
	NextState   State
	IsLegal     bool
	IsTerminal  bool
}

// Model is the black-box generative model of a POMDP. All randomness must
// come from the generator handed over via RandomizedModel, if implemented.
type Model interface {
	// SampleAnInitState draws a state from the initial belief.
	SampleAnInitState() State
	// SampleStateUniform draws a state from a poorly informed prior over
	// the whole state space.
	SampleStateUniform() State
	IsTerminal(state State) bool
	// GenerateStep samples a transition. Illegal actions must come back
	// with IsLegal=false and the penalty already folded into Reward.
	GenerateStep(state State, action Action) StepResult
	// HeuristicValue bootstraps the value of a leaf state; data is the
	// belief's historical data, or nil if the model keeps none.
	HeuristicValue(data any, state State) float64
	// AllActions enumerates the action space in bin order.
	AllActions() []Action
	NumStateVariables() int
	DiscountFactor() float64
	MinValue() float64
	MaxValue() float64
}

// RolloutModel supplies a problem-specific rollout action. When absent the
// search picks uniformly among untried actions.
type RolloutModel interface {
	RolloutAction(data any, state State) (Action, bool)
}

// LikelihoodModel enables weighted particle resampling.
type LikelihoodModel interface {
	// ObservationLikelihood returns p(observation | state, action).
	ObservationLikelihood(state State, action Action, observation Observation) float64
}

// EstimatorKind names a belief q-value estimator implementation.
type EstimatorKind string

const (
	// EstimatorMax values a belief as the maximum child mean q and
	// recommends the maximizing action.
	EstimatorMax EstimatorKind = "max"
	// EstimatorRobust values like EstimatorMax but recommends the most
	// visited action.
	EstimatorRobust EstimatorKind = "robust"
	// EstimatorAvg values a belief as the visit-weighted average of its
	// child mean qs.
	EstimatorAvg EstimatorKind = "avg"
)

// EstimatorModel chooses the belief q-estimator the solver builds for
// every belief node. Without it the solver defaults to EstimatorMax.
type EstimatorModel interface {
	Estimator() EstimatorKind
}

// RandomizedModel lets the solver thread its random generator through the
// model instead of the model holding its own.
type RandomizedModel interface {
	SetRNG(rng Rand)
}

// Rand is the slice of *rand.Rand the models actually need.
type Rand interface {
	Intn(n int) int
	Int63n(n int64) int64
	Float64() float64
	NormFloat64() float64
	Uint64() uint64
}

// HistoricalModel derives per-belief historical data, threaded down the
// tree as beliefs are created.
type HistoricalModel interface {
	RootData() any
	ChildData(data any, action Action, observation Observation) any
}

// ModelChange describes an external change to the problem dynamics as an
// axis-aligned box over state vectors; the solver resolves it against its
// state index to find the affected histories.
type ModelChange interface {
	Low() []float64
	High() []float64
}

// MutableModel applies model changes to its own dynamics before the solver
// revises the affected histories.
type MutableModel interface {
	ApplyChange(change ModelChange)
}

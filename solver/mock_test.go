package solver

import (
	"fmt"
	"strconv"

	"abt/pomdp"
)

// The corridor model used across the solver tests: positions 0..size on a
// line, deterministic transitions, observation = position. Reaching size
// is terminal and pays goalReward on the step in; every other step costs
// 1. With a single action the whole episode is deterministic, which makes
// backpropagation arithmetic checkable by hand.

type corridorState struct {
	pos int
}

func (s corridorState) Equal(other pomdp.State) bool {
	o, ok := other.(corridorState)
	return ok && s.pos == o.pos
}

func (s corridorState) Hash() uint64 { return uint64(s.pos) }

func (s corridorState) DistanceTo(other pomdp.State) float64 {
	o, ok := other.(corridorState)
	if !ok {
		return 0
	}
	d := s.pos - o.pos
	if d < 0 {
		d = -d
	}
	return float64(d)
}

func (s corridorState) Vector() []float64 { return []float64{float64(s.pos)} }

func (s corridorState) String() string { return strconv.Itoa(s.pos) }

type corridorAction struct {
	dir int // 0 = left, 1 = right
}

func (a corridorAction) Equal(other pomdp.Action) bool {
	o, ok := other.(corridorAction)
	return ok && a.dir == o.dir
}

func (a corridorAction) Bin() int64 { return int64(a.dir) }

func (a corridorAction) String() string {
	if a.dir == 0 {
		return "LEFT"
	}
	return "RIGHT"
}

type corridorObs struct {
	pos int
}

func (o corridorObs) Equal(other pomdp.Observation) bool {
	v, ok := other.(corridorObs)
	return ok && o.pos == v.pos
}

func (o corridorObs) Key() uint64 { return uint64(o.pos) }

func (o corridorObs) String() string { return strconv.Itoa(o.pos) }

type corridorModel struct {
	size       int
	goalReward float64
	stepCost   float64
	discount   float64
	rightOnly  bool
	rng        pomdp.Rand
}

func newCorridorModel(size int) *corridorModel {
	return &corridorModel{size: size, goalReward: 10, stepCost: 1, discount: 0.95}
}

func (m *corridorModel) SetRNG(rng pomdp.Rand) { m.rng = rng }

func (m *corridorModel) SampleAnInitState() pomdp.State { return corridorState{pos: 0} }

func (m *corridorModel) SampleStateUniform() pomdp.State {
	if m.rng == nil {
		return corridorState{pos: 0}
	}
	return corridorState{pos: m.rng.Intn(m.size)}
}

func (m *corridorModel) IsTerminal(state pomdp.State) bool {
	return state.(corridorState).pos >= m.size
}

func (m *corridorModel) GenerateStep(state pomdp.State, action pomdp.Action) pomdp.StepResult {
	s := state.(corridorState)
	a := action.(corridorAction)
	next := s
	if a.dir == 1 {
		next.pos++
	} else if next.pos > 0 {
		next.pos--
	}
	reward := -m.stepCost
	terminal := next.pos >= m.size
	if terminal {
		reward = m.goalReward
	}
	return pomdp.StepResult{
		Action:      a,
		Observation: corridorObs{pos: next.pos},
		Reward:      reward,
		NextState:   next,
		IsLegal:     true,
		IsTerminal:  terminal,
	}
}

func (m *corridorModel) HeuristicValue(_ any, state pomdp.State) float64 { return 0 }

func (m *corridorModel) AllActions() []pomdp.Action {
	if m.rightOnly {
		return []pomdp.Action{corridorAction{dir: 1}}
	}
	return []pomdp.Action{corridorAction{dir: 0}, corridorAction{dir: 1}}
}

func (m *corridorModel) NumStateVariables() int  { return 1 }
func (m *corridorModel) DiscountFactor() float64 { return m.discount }
func (m *corridorModel) MinValue() float64       { return -m.stepCost / (1 - m.discount) }
func (m *corridorModel) MaxValue() float64       { return m.goalReward }

// ObservationLikelihood makes the corridor usable in replenishment tests:
// the sensor reports the position exactly.
func (m *corridorModel) ObservationLikelihood(state pomdp.State, action pomdp.Action, obs pomdp.Observation) float64 {
	res := m.GenerateStep(state, action)
	if res.Observation.Key() == obs.Key() {
		return 1
	}
	return 0
}

// Codec lets the corridor round-trip through the text serializer.
func (m *corridorModel) Codec() pomdp.Codec { return corridorCodec{} }

type corridorCodec struct{}

func (corridorCodec) EncodeState(s pomdp.State) string { return s.String() }

func (corridorCodec) DecodeState(text string) (pomdp.State, error) {
	pos, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("bad state %q", text)
	}
	return corridorState{pos: pos}, nil
}

func (corridorCodec) EncodeAction(a pomdp.Action) string { return a.String() }

func (corridorCodec) DecodeAction(text string) (pomdp.Action, error) {
	switch text {
	case "LEFT":
		return corridorAction{dir: 0}, nil
	case "RIGHT":
		return corridorAction{dir: 1}, nil
	}
	return nil, fmt.Errorf("bad action %q", text)
}

func (corridorCodec) EncodeObservation(o pomdp.Observation) string { return o.String() }

func (corridorCodec) DecodeObservation(text string) (pomdp.Observation, error) {
	pos, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("bad observation %q", text)
	}
	return corridorObs{pos: pos}, nil
}

// corridorChange doubles as the mutable-model hook for the corrector
// tests: applying it changes the goal reward.
type corridorChange struct {
	low, high  float64
	goalReward float64
}

func (c corridorChange) Low() []float64  { return []float64{c.low} }
func (c corridorChange) High() []float64 { return []float64{c.high} }

func (m *corridorModel) ApplyChange(change pomdp.ModelChange) {
	if c, ok := change.(corridorChange); ok {
		m.goalReward = c.goalReward
	}
}

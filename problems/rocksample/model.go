package rocksample

import (
	"math"

	"golang.org/x/exp/rand"

	"abt/pomdp"
)

// Params are the problem-specific rewards and sensor characteristics.
type Params struct {
	MapPath                string  `yaml:"mapPath"`
	GoodRockReward         float64 `yaml:"goodRockReward"`
	BadRockPenalty         float64 `yaml:"badRockPenalty"`
	ExitReward             float64 `yaml:"exitReward"`
	IllegalMovePenalty     float64 `yaml:"illegalMovePenalty"`
	HalfEfficiencyDistance float64 `yaml:"halfEfficiencyDistance"`
}

func DefaultParams() Params {
	return Params{
		GoodRockReward:         10,
		BadRockPenalty:         10,
		ExitReward:             10,
		IllegalMovePenalty:     10,
		HalfEfficiencyDistance: 20,
	}
}

// Model is the RockSample generative model. All randomness flows through
// the rng, which the solver replaces with its own at construction.
type Model struct {
	grid     *Grid
	params   Params
	discount float64
	rng      pomdp.Rand
	actions  []pomdp.Action
}

func NewModel(grid *Grid, params Params, discount float64) *Model {
	m := &Model{
		grid:     grid,
		params:   params,
		discount: discount,
		rng:      rand.New(rand.NewSource(1)),
	}
	for bin := int64(0); bin < int64(Check)+int64(len(grid.Rocks)); bin++ {
		m.actions = append(m.actions, NewAction(bin))
	}
	return m
}

func (m *Model) Grid() *Grid { return m.grid }

// SetRNG implements pomdp.RandomizedModel.
func (m *Model) SetRNG(rng pomdp.Rand) { m.rng = rng }

func (m *Model) SampleAnInitState() pomdp.State {
	return &State{Pos: m.grid.Start, Rocks: m.sampleRocks()}
}

func (m *Model) SampleStateUniform() pomdp.State {
	return &State{
		Pos: Position{
			Row: m.rng.Int63n(m.grid.Rows),
			Col: m.rng.Int63n(m.grid.Cols),
		},
		Rocks: m.sampleRocks(),
	}
}

func (m *Model) sampleRocks() []bool {
	rocks := make([]bool, len(m.grid.Rocks))
	if len(rocks) == 0 {
		return rocks
	}
	bits := m.rng.Int63n(1 << uint(len(rocks)))
	for i := range rocks {
		rocks[i] = bits&(1<<uint(i)) != 0
	}
	return rocks
}

func (m *Model) IsTerminal(state pomdp.State) bool {
	return m.grid.isGoal(state.(*State).Pos)
}

// makeNextState applies the action's deterministic effect and reports
// whether it was legal.
func (m *Model) makeNextState(s *State, a Action) (*State, bool) {
	next := s.clone()
	switch a.Type {
	case Check:
		// sensing leaves the state unchanged
		return next, true
	case Sample:
		rockNo := m.grid.RockAt(s.Pos)
		if rockNo < 0 {
			return next, false
		}
		next.Rocks[rockNo] = false
		return next, true
	}
	pos := s.Pos
	switch a.Type {
	case North:
		pos.Row--
	case East:
		pos.Col++
	case South:
		pos.Row++
	case West:
		pos.Col--
	}
	if !m.grid.inBounds(pos) {
		return next, false
	}
	next.Pos = pos
	return next, true
}

// efficiency is the probability that a CHECK reading matches the rock's
// true state, decaying with distance toward a coin flip.
func (m *Model) efficiency(pos Position, rockNo int64) float64 {
	dist := pos.EuclideanDistanceTo(m.grid.Rocks[rockNo])
	return (1 + math.Pow(2, -dist/m.params.HalfEfficiencyDistance)) * 0.5
}

func (m *Model) makeObservation(a Action, next *State) pomdp.Observation {
	if a.Type != Check {
		return ObsNone
	}
	matches := m.rng.Float64() < m.efficiency(next.Pos, a.RockNo)
	return obsFor(next.Rocks[a.RockNo] == matches)
}

func (m *Model) makeReward(s, next *State, a Action, isLegal bool) float64 {
	if !isLegal {
		return -m.params.IllegalMovePenalty
	}
	if m.IsTerminal(next) {
		return m.params.ExitReward
	}
	if a.Type == Sample {
		rockNo := m.grid.RockAt(s.Pos)
		if s.Rocks[rockNo] {
			return m.params.GoodRockReward
		}
		return -m.params.BadRockPenalty
	}
	return 0
}

func (m *Model) GenerateStep(state pomdp.State, action pomdp.Action) pomdp.StepResult {
	s := state.(*State)
	a := action.(Action)
	next, isLegal := m.makeNextState(s, a)
	return pomdp.StepResult{
		Action:      a,
		Observation: m.makeObservation(a, next),
		Reward:      m.makeReward(s, next, a, isLegal),
		NextState:   next,
		IsLegal:     isLegal,
		IsTerminal:  m.IsTerminal(next),
	}
}

// HeuristicValue greedily tours the remaining good rocks by Manhattan
// distance, then exits past the east edge of the grid (Cols - col steps,
// whatever the goal cell's position), discounting along the way.
func (m *Model) HeuristicValue(_ any, state pomdp.State) float64 {
	s := state.(*State)
	qVal := 0.0
	currentDiscount := 1.0
	pos := s.Pos

	good := make(map[int64]bool)
	for i, isGood := range s.Rocks {
		if isGood {
			good[int64(i)] = true
		}
	}
	for len(good) > 0 {
		bestRock := int64(-1)
		var lowestDist int64
		for rockNo := range good {
			dist := m.grid.Rocks[rockNo].ManhattanDistanceTo(pos)
			if bestRock < 0 || dist < lowestDist ||
				(dist == lowestDist && rockNo < bestRock) {
				bestRock = rockNo
				lowestDist = dist
			}
		}
		currentDiscount *= math.Pow(m.discount, float64(lowestDist))
		qVal += currentDiscount * m.params.GoodRockReward
		delete(good, bestRock)
		pos = m.grid.Rocks[bestRock]
	}
	currentDiscount *= math.Pow(m.discount, float64(m.grid.Cols-pos.Col))
	qVal += currentDiscount * m.params.ExitReward
	return qVal
}

// ObservationLikelihood implements pomdp.LikelihoodModel for weighted
// particle resampling.
func (m *Model) ObservationLikelihood(state pomdp.State, action pomdp.Action, obs pomdp.Observation) float64 {
	a := action.(Action)
	o := obs.(Observation)
	if a.Type != Check {
		if o == ObsNone {
			return 1
		}
		return 0
	}
	if o == ObsNone {
		return 0
	}
	s := state.(*State)
	eff := m.efficiency(s.Pos, a.RockNo)
	if obsFor(s.Rocks[a.RockNo]) == o {
		return eff
	}
	return 1 - eff
}

func (m *Model) AllActions() []pomdp.Action {
	out := make([]pomdp.Action, len(m.actions))
	copy(out, m.actions)
	return out
}

func (m *Model) NumStateVariables() int { return 2 + len(m.grid.Rocks) }

func (m *Model) DiscountFactor() float64 { return m.discount }

func (m *Model) MinValue() float64 {
	return -m.params.IllegalMovePenalty / (1 - m.discount)
}

func (m *Model) MaxValue() float64 {
	return m.params.GoodRockReward*float64(len(m.grid.Rocks)) + m.params.ExitReward
}

// Codec implements pomdp.CodecModel.
func (m *Model) Codec() pomdp.Codec { return codec{nRocks: len(m.grid.Rocks)} }

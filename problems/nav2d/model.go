package nav2d

import (
	"math"

	"golang.org/x/exp/rand"

	"abt/pomdp"
)

// Params describe the world geometry, the control discretization, the
// motion noise and the sensor.
type Params struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	StartX float64 `yaml:"startX"`
	StartY float64 `yaml:"startY"`

	GoalX      float64 `yaml:"goalX"`
	GoalY      float64 `yaml:"goalY"`
	GoalRadius float64 `yaml:"goalRadius"`
	GoalReward float64 `yaml:"goalReward"`

	TimeStepLength      float64 `yaml:"timeStepLength"`
	CostPerUnitDistance float64 `yaml:"costPerUnitDistance"`
	CostPerRevolution   float64 `yaml:"costPerRevolution"`
	IllegalMovePenalty  float64 `yaml:"illegalMovePenalty"`

	SpeedErrorSD    float64 `yaml:"speedErrorSD"`
	RotationErrorSD float64 `yaml:"rotationErrorSD"`

	// MaxObservationDistance caps the range of the pose sensor; beyond it
	// observations carry no information and come back empty.
	MaxObservationDistance float64 `yaml:"maxObservationDistance"`
	SensorResolution       float64 `yaml:"sensorResolution"`

	Speeds           []float64 `yaml:"speeds"`
	RotationalSpeeds []float64 `yaml:"rotationalSpeeds"`
}

func DefaultParams() Params {
	return Params{
		Width:                  10,
		Height:                 10,
		StartX:                 0.5,
		StartY:                 0.5,
		GoalX:                  9,
		GoalY:                  9,
		GoalRadius:             0.5,
		GoalReward:             10,
		TimeStepLength:         1,
		CostPerUnitDistance:    0.1,
		CostPerRevolution:      0.1,
		IllegalMovePenalty:     10,
		SpeedErrorSD:           0.1,
		RotationErrorSD:        0.02,
		MaxObservationDistance: 5,
		SensorResolution:       0.5,
		Speeds:                 []float64{0, 1},
		RotationalSpeeds:       []float64{-0.25, 0, 0.25},
	}
}

// Model is the Nav2D generative model: noisy differential drive toward a
// goal region, with a range-limited pose sensor anchored at the goal.
type Model struct {
	params   Params
	discount float64
	rng      pomdp.Rand
	actions  []pomdp.Action
}

func NewModel(params Params, discount float64) *Model {
	m := &Model{
		params:   params,
		discount: discount,
		rng:      rand.New(rand.NewSource(1)),
	}
	code := int64(0)
	for _, speed := range params.Speeds {
		for _, rot := range params.RotationalSpeeds {
			m.actions = append(m.actions, Action{Code: code, Speed: speed, RotationalSpeed: rot})
			code++
		}
	}
	return m
}

// SetRNG implements pomdp.RandomizedModel.
func (m *Model) SetRNG(rng pomdp.Rand) { m.rng = rng }

func (m *Model) SampleAnInitState() pomdp.State {
	return &State{X: m.params.StartX, Y: m.params.StartY}
}

func (m *Model) SampleStateUniform() pomdp.State {
	return &State{
		X:         m.rng.Float64() * m.params.Width,
		Y:         m.rng.Float64() * m.params.Height,
		Direction: m.rng.Float64(),
	}
}

func (m *Model) IsTerminal(state pomdp.State) bool {
	s := state.(*State)
	return s.distanceTo(m.params.GoalX, m.params.GoalY) <= m.params.GoalRadius
}

func (m *Model) inBounds(x, y float64) bool {
	return x >= 0 && x <= m.params.Width && y >= 0 && y <= m.params.Height
}

func (m *Model) GenerateStep(state pomdp.State, action pomdp.Action) pomdp.StepResult {
	s := state.(*State)
	a := action.(Action)

	speed := a.Speed + m.rng.NormFloat64()*m.params.SpeedErrorSD
	if speed < 0 {
		speed = 0
	}
	rot := a.RotationalSpeed + m.rng.NormFloat64()*m.params.RotationErrorSD

	dt := m.params.TimeStepLength
	dir := normalizeTurns(s.Direction + rot*dt)
	dist := speed * dt
	x := s.X + dist*math.Cos(2*math.Pi*dir)
	y := s.Y + dist*math.Sin(2*math.Pi*dir)

	next := &State{X: x, Y: y, Direction: dir}
	isLegal := m.inBounds(x, y)
	reward := -(m.params.CostPerUnitDistance*dist + m.params.CostPerRevolution*math.Abs(rot)*dt)
	if !isLegal {
		// bounce back to the old position, keep the new heading
		next.X = s.X
		next.Y = s.Y
		reward = -m.params.IllegalMovePenalty
	}
	isTerminal := m.IsTerminal(next)
	if isTerminal {
		reward += m.params.GoalReward
	}
	return pomdp.StepResult{
		Action:      a,
		Observation: m.makeObservation(next),
		Reward:      reward,
		NextState:   next,
		IsLegal:     isLegal,
		IsTerminal:  isTerminal,
	}
}

func (m *Model) makeObservation(next *State) Observation {
	if next.distanceTo(m.params.GoalX, m.params.GoalY) > m.params.MaxObservationDistance {
		return Observation{Empty: true}
	}
	return Observation{
		X:         snap(next.X, m.params.SensorResolution),
		Y:         snap(next.Y, m.params.SensorResolution),
		Direction: snap(normalizeTurns(next.Direction), m.params.SensorResolution),
	}
}

func snap(v, resolution float64) float64 {
	return math.Round(v/resolution) * resolution
}

// HeuristicValue discounts the goal reward by the shortest feasible travel
// time at top speed.
func (m *Model) HeuristicValue(_ any, state pomdp.State) float64 {
	s := state.(*State)
	maxSpeed := 0.0
	for _, v := range m.params.Speeds {
		if v > maxSpeed {
			maxSpeed = v
		}
	}
	if maxSpeed <= 0 {
		return 0
	}
	steps := s.distanceTo(m.params.GoalX, m.params.GoalY) / (maxSpeed * m.params.TimeStepLength)
	return math.Pow(m.discount, steps) * m.params.GoalReward
}

// Nav2D deliberately does not implement pomdp.LikelihoodModel: under the
// correlated speed and rotation noise the probability mass of a snapped
// observation bucket has no closed form, so belief replenishment falls
// back to black-box rejection sampling.

func (m *Model) AllActions() []pomdp.Action {
	out := make([]pomdp.Action, len(m.actions))
	copy(out, m.actions)
	return out
}

func (m *Model) NumStateVariables() int { return 3 }

func (m *Model) DiscountFactor() float64 { return m.discount }

func (m *Model) MinValue() float64 {
	return -m.params.IllegalMovePenalty / (1 - m.discount)
}

func (m *Model) MaxValue() float64 { return m.params.GoalReward }

// Codec implements pomdp.CodecModel.
func (m *Model) Codec() pomdp.Codec { return codec{model: m} }

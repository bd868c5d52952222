package rocksample

import (
	"testing"

	"github.com/stretchr/testify/require"

	"abt/pomdp"
)

const testMap = "3 3\n" +
	"S.G\n" +
	".o.\n" +
	"..o\n"

func testModel(t *testing.T) *Model {
	t.Helper()
	grid, err := ParseMap(testMap)
	require.NoError(t, err)
	return NewModel(grid, DefaultParams(), 0.95)
}

func TestParseMap(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		grid, err := ParseMap(testMap)
		require.NoError(t, err)

		require.Equal(t, int64(3), grid.Rows)
		require.Equal(t, int64(3), grid.Cols)
		require.Equal(t, Position{Row: 0, Col: 0}, grid.Start)
		require.Equal(t, []Position{{Row: 1, Col: 1}, {Row: 2, Col: 2}}, grid.Rocks)
		require.True(t, grid.isGoal(Position{Row: 0, Col: 2}))
		require.Equal(t, int64(0), grid.RockAt(Position{Row: 1, Col: 1}))
		require.Equal(t, int64(-1), grid.RockAt(Position{Row: 0, Col: 1}))
	})

	t.Run("missing rows are rejected", func(t *testing.T) {
		_, err := ParseMap("2 2\nS.\n")
		require.Error(t, err)
	})

	t.Run("missing start is rejected", func(t *testing.T) {
		_, err := ParseMap("1 2\n.G\n")
		require.Error(t, err)
	})
}

func TestGenerateStepMovement(t *testing.T) {
	m := testModel(t)
	start := &State{Pos: Position{Row: 0, Col: 0}, Rocks: []bool{true, false}}

	t.Run("legal move", func(t *testing.T) {
		res := m.GenerateStep(start, Action{Type: South})
		require.True(t, res.IsLegal)
		require.False(t, res.IsTerminal)
		require.Equal(t, 0.0, res.Reward)
		require.Equal(t, Position{Row: 1, Col: 0}, res.NextState.(*State).Pos)
		require.Equal(t, ObsNone, res.Observation)
	})

	t.Run("moving off the grid is illegal and keeps the position", func(t *testing.T) {
		res := m.GenerateStep(start, Action{Type: North})
		require.False(t, res.IsLegal)
		require.Equal(t, -10.0, res.Reward)
		require.Equal(t, start.Pos, res.NextState.(*State).Pos)
	})

	t.Run("entering the goal is terminal and pays the exit reward", func(t *testing.T) {
		nearGoal := &State{Pos: Position{Row: 0, Col: 1}, Rocks: []bool{true, false}}
		res := m.GenerateStep(nearGoal, Action{Type: East})
		require.True(t, res.IsTerminal)
		require.Equal(t, 10.0, res.Reward)
	})
}

func TestGenerateStepSample(t *testing.T) {
	m := testModel(t)

	t.Run("sampling a good rock pays and spoils it", func(t *testing.T) {
		onRock := &State{Pos: Position{Row: 1, Col: 1}, Rocks: []bool{true, false}}
		res := m.GenerateStep(onRock, Action{Type: Sample})
		require.True(t, res.IsLegal)
		require.Equal(t, 10.0, res.Reward)
		require.False(t, res.NextState.(*State).Rocks[0], "Sampling should leave the rock bad")
	})

	t.Run("sampling a bad rock is penalized", func(t *testing.T) {
		onRock := &State{Pos: Position{Row: 1, Col: 1}, Rocks: []bool{false, false}}
		res := m.GenerateStep(onRock, Action{Type: Sample})
		require.Equal(t, -10.0, res.Reward)
	})

	t.Run("sampling an empty cell is illegal with an unchanged state", func(t *testing.T) {
		empty := &State{Pos: Position{Row: 0, Col: 1}, Rocks: []bool{true, false}}
		res := m.GenerateStep(empty, Action{Type: Sample})
		require.False(t, res.IsLegal)
		require.Equal(t, -10.0, res.Reward)
		require.True(t, res.NextState.(*State).Equal(empty))
	})
}

func TestCheckObservation(t *testing.T) {
	m := testModel(t)

	t.Run("distance zero reads the rock perfectly", func(t *testing.T) {
		onRock := &State{Pos: Position{Row: 1, Col: 1}, Rocks: []bool{true, false}}
		for i := 0; i < 20; i++ {
			res := m.GenerateStep(onRock, Action{Type: Check, RockNo: 0})
			require.Equal(t, ObsGood, res.Observation)
			require.True(t, res.NextState.(*State).Equal(onRock), "Checking should not move the rover")
		}
	})

	t.Run("likelihood matches the efficiency curve", func(t *testing.T) {
		grid, err := ParseMap("1 4\nSo.G\n")
		require.NoError(t, err)
		params := DefaultParams()
		params.HalfEfficiencyDistance = 1
		m := NewModel(grid, params, 0.95)

		goodRock := &State{Pos: Position{Row: 0, Col: 0}, Rocks: []bool{true}}
		check := Action{Type: Check, RockNo: 0}
		require.InDelta(t, 0.75, m.ObservationLikelihood(goodRock, check, ObsGood), 1e-12)
		require.InDelta(t, 0.25, m.ObservationLikelihood(goodRock, check, ObsBad), 1e-12)
	})

	t.Run("non-check actions observe nothing", func(t *testing.T) {
		s := &State{Pos: Position{Row: 0, Col: 0}, Rocks: []bool{true, false}}
		require.Equal(t, 1.0, m.ObservationLikelihood(s, Action{Type: East}, ObsNone))
		require.Equal(t, 0.0, m.ObservationLikelihood(s, Action{Type: East}, ObsGood))
	})
}

func TestHeuristicValue(t *testing.T) {
	m := testModel(t)

	t.Run("no good rocks discounts the exit alone", func(t *testing.T) {
		s := &State{Pos: Position{Row: 0, Col: 0}, Rocks: []bool{false, false}}
		// Cols - col = 3 steps to the exit past the east edge
		want := pow(0.95, 3) * 10
		require.InDelta(t, want, m.HeuristicValue(nil, s), 1e-9)
	})

	t.Run("good rocks are toured nearest first", func(t *testing.T) {
		s := &State{Pos: Position{Row: 1, Col: 1}, Rocks: []bool{true, true}}
		d0 := pow(0.95, 0) // already on rock 0
		d1 := d0 * pow(0.95, 2)
		want := d0*10 + d1*10 + d1*pow(0.95, 1)*10
		require.InDelta(t, want, m.HeuristicValue(nil, s), 1e-9)
	})
}

func TestCodecRoundTrip(t *testing.T) {
	m := testModel(t)
	c := m.Codec()

	state := &State{Pos: Position{Row: 2, Col: 1}, Rocks: []bool{true, false}}
	decoded, err := c.DecodeState(c.EncodeState(state))
	require.NoError(t, err)
	require.True(t, state.Equal(decoded))

	for _, a := range m.AllActions() {
		decoded, err := c.DecodeAction(c.EncodeAction(a))
		require.NoError(t, err)
		require.True(t, a.Equal(decoded), "action %v should round-trip", a)
	}

	for _, o := range []Observation{ObsNone, ObsGood, ObsBad} {
		decoded, err := c.DecodeObservation(c.EncodeObservation(o))
		require.NoError(t, err)
		require.True(t, o.Equal(decoded))
	}

	_, err = c.DecodeState("garbage")
	require.Error(t, err)
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

var _ pomdp.LikelihoodModel = (*Model)(nil)
var _ pomdp.CodecModel = (*Model)(nil)
var _ pomdp.RandomizedModel = (*Model)(nil)

package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func obsMappingUnderRoot(t *testing.T) (*Solver, *ObservationMapping) {
	t.Helper()
	model := newCorridorModel(3)
	s, err := New(model, corridorOptions())
	require.NoError(t, err)
	entry := s.Root().Mapping().Entry(corridorAction{dir: 1})
	require.NotNil(t, entry)
	return s, entry.EnsureNode().Observations()
}

func TestObservationMappingGetOrCreate(t *testing.T) {
	t.Run("first call creates and links the child", func(t *testing.T) {
		_, m := obsMappingUnderRoot(t)

		e, created := m.GetOrCreate(corridorObs{pos: 1})
		require.True(t, created)
		require.NotNil(t, e.Child())
		require.Same(t, e, e.Child().ParentEntry(), "Child and entry should link bidirectionally")
		require.Equal(t, 1, e.Child().Depth())
	})

	t.Run("later calls are idempotent under observation equivalence", func(t *testing.T) {
		_, m := obsMappingUnderRoot(t)

		e1, _ := m.GetOrCreate(corridorObs{pos: 1})
		e2, created := m.GetOrCreate(corridorObs{pos: 1})

		require.False(t, created)
		require.Same(t, e1, e2)
		require.Len(t, m.Entries(), 1)
	})

	t.Run("entries enumerate in insertion order", func(t *testing.T) {
		_, m := obsMappingUnderRoot(t)

		m.GetOrCreate(corridorObs{pos: 2})
		m.GetOrCreate(corridorObs{pos: 0})
		m.GetOrCreate(corridorObs{pos: 1})

		var keys []uint64
		for _, e := range m.Entries() {
			keys = append(keys, e.Observation().Key())
		}
		require.Equal(t, []uint64{2, 0, 1}, keys)
	})
}

func TestObservationMappingGet(t *testing.T) {
	_, m := obsMappingUnderRoot(t)

	require.Nil(t, m.Get(corridorObs{pos: 1}), "Unseen classes should resolve to nil")

	e, _ := m.GetOrCreate(corridorObs{pos: 1})
	require.Same(t, e.Child(), m.Get(corridorObs{pos: 1}))
}

func TestBeliefNodeIDsAreSequential(t *testing.T) {
	s, m := obsMappingUnderRoot(t)

	rootID := s.Root().ID()
	a, _ := m.GetOrCreate(corridorObs{pos: 0})
	b, _ := m.GetOrCreate(corridorObs{pos: 1})

	require.Equal(t, rootID+1, a.Child().ID())
	require.Equal(t, rootID+2, b.Child().ID(), "The solver-scoped counter should allocate dense ids")
}

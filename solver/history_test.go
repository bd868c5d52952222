package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoriesAppend(t *testing.T) {
	pool := NewStatePool(1)
	h := NewHistories()
	seq := h.NewSequence()

	info, err := pool.GetOrCanonicalize(corridorState{pos: 0})
	require.NoError(t, err)
	e0 := seq.Append(info)
	e1 := seq.Append(info)

	require.Equal(t, 0, e0.ID(), "Entry ids should be sequence indices")
	require.Equal(t, 1, e1.ID())
	require.Same(t, seq, e0.Sequence())
	require.Len(t, info.Entries(), 2, "Appending should register state usage")
}

func TestDeleteSequenceDetachesParticles(t *testing.T) {
	model := newCorridorModel(2)
	model.rightOnly = true
	s, err := New(model, corridorOptions())
	require.NoError(t, err)

	_, err = s.Improve(Budget{MaxSimulations: 1})
	require.NoError(t, err)

	root := s.Root()
	before := root.ParticleCount()
	var episode *HistorySequence
	for _, id := range s.Histories().SequenceIDs() {
		seq := s.Histories().Sequence(id)
		if seq.Len() > 1 {
			episode = seq
		}
	}
	require.NotNil(t, episode)

	s.Histories().DeleteSequence(episode)

	require.Equal(t, before-1, root.ParticleCount(),
		"Deleting a sequence should remove its particles from the beliefs")
	for _, p := range root.Particles() {
		require.Same(t, root, p.Belief())
	}
}

func TestStatePoolCanonicalization(t *testing.T) {
	pool := NewStatePool(1)

	a, err := pool.GetOrCanonicalize(corridorState{pos: 3})
	require.NoError(t, err)
	b, err := pool.GetOrCanonicalize(corridorState{pos: 3})
	require.NoError(t, err)
	c, err := pool.GetOrCanonicalize(corridorState{pos: 4})
	require.NoError(t, err)

	require.Same(t, a, b, "Equal states should canonicalize to one record")
	require.NotSame(t, a, c)
	require.Equal(t, int64(0), a.ID())
	require.Equal(t, int64(1), c.ID(), "Ids should be dense and insertion ordered")
	require.Equal(t, 2, pool.NumStates())
}

func TestStatePoolStatesWithin(t *testing.T) {
	pool := NewStatePool(1)
	for pos := 0; pos < 5; pos++ {
		_, err := pool.GetOrCanonicalize(corridorState{pos: pos})
		require.NoError(t, err)
	}

	found := pool.StatesWithin([]float64{1}, []float64{3})
	positions := map[int]bool{}
	for _, info := range found {
		positions[info.State().(corridorState).pos] = true
	}
	require.Equal(t, map[int]bool{1: true, 2: true, 3: true}, positions)
}

func TestStatePoolRejectsBadVectors(t *testing.T) {
	pool := NewStatePool(2)

	_, err := pool.GetOrCanonicalize(corridorState{pos: 0})
	var contract *ModelContractError
	require.ErrorAs(t, err, &contract,
		"A state vector of the wrong length should violate the model contract")
}

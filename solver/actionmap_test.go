package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newTestMapping(t *testing.T) *ActionMapping {
	t.Helper()
	model := newCorridorModel(3)
	return newActionMapping(nil, model.AllActions(), rand.New(rand.NewSource(7)))
}

func TestActionEntryUpdate(t *testing.T) {
	t.Run("mean stays total over visits", func(t *testing.T) {
		m := newTestMapping(t)
		e := m.Entry(corridorAction{dir: 1})
		require.NotNil(t, e)

		e.Update(4, 1)
		e.Update(2, 1)
		e.Update(-3, 1)

		require.Equal(t, int64(3), e.Visits())
		require.InDelta(t, 3.0, e.TotalQ(), 1e-12)
		require.InDelta(t, e.TotalQ()/float64(e.Visits()), e.MeanQ(), 1e-12,
			"Mean q should equal total q over visits")
		require.Equal(t, int64(3), m.TotalVisits(), "Mapping should aggregate entry visits")
	})

	t.Run("mean resets to zero at zero visits", func(t *testing.T) {
		m := newTestMapping(t)
		e := m.Entry(corridorAction{dir: 0})

		e.Update(5, 1)
		e.Update(-5, -1)

		require.Equal(t, int64(0), e.Visits())
		require.Equal(t, 0.0, e.MeanQ(), "Mean q should be 0 when visits is 0")
	})

	t.Run("first visit marks the action tried", func(t *testing.T) {
		m := newTestMapping(t)
		e := m.Entry(corridorAction{dir: 1})
		require.Equal(t, ActionUntried, e.Status())

		e.Update(1, 1)

		require.Equal(t, ActionTried, e.Status())
	})
}

func TestActionMappingUntried(t *testing.T) {
	t.Run("untried choice is deterministic under a fixed seed", func(t *testing.T) {
		pick := func() []int64 {
			m := newTestMapping(t)
			var bins []int64
			for {
				a, ok := m.NextUntriedAction()
				if !ok {
					break
				}
				bins = append(bins, a.Bin())
				m.Entry(a).Update(0, 1)
			}
			return bins
		}

		require.Equal(t, pick(), pick(), "Same seed should produce the same expansion order")
	})

	t.Run("exhausted mapping reports no untried action", func(t *testing.T) {
		m := newTestMapping(t)
		for _, e := range m.Entries() {
			e.Update(0, 1)
		}

		_, ok := m.NextUntriedAction()
		require.False(t, ok)
		require.False(t, m.HasUntried())
	})
}

func TestActionMappingBestAction(t *testing.T) {
	t.Run("argmax over visited entries", func(t *testing.T) {
		m := newTestMapping(t)
		m.Entry(corridorAction{dir: 0}).Update(2, 1)
		m.Entry(corridorAction{dir: 1}).Update(8, 1)

		best, ok := m.BestAction()
		require.True(t, ok)
		require.Equal(t, int64(1), best.Bin())
	})

	t.Run("ties break toward the lowest bin", func(t *testing.T) {
		m := newTestMapping(t)
		m.Entry(corridorAction{dir: 0}).Update(5, 1)
		m.Entry(corridorAction{dir: 1}).Update(5, 1)

		best, ok := m.BestAction()
		require.True(t, ok)
		require.Equal(t, int64(0), best.Bin())
	})

	t.Run("nothing visited means no best action", func(t *testing.T) {
		m := newTestMapping(t)

		_, ok := m.BestAction()
		require.False(t, ok)
	})
}

func TestActionMappingUCB(t *testing.T) {
	t.Run("high coefficient favors the rarely tried action", func(t *testing.T) {
		m := newTestMapping(t)
		often := m.Entry(corridorAction{dir: 0})
		rarely := m.Entry(corridorAction{dir: 1})
		for i := 0; i < 99; i++ {
			often.Update(1, 1)
		}
		rarely.Update(0.5, 1)

		a, ok := m.UCBAction(10)
		require.True(t, ok)
		require.Equal(t, int64(1), a.Bin(), "Exploration bonus should dominate")
	})

	t.Run("zero coefficient reduces to the greedy choice", func(t *testing.T) {
		m := newTestMapping(t)
		m.Entry(corridorAction{dir: 0}).Update(1, 1)
		m.Entry(corridorAction{dir: 1}).Update(2, 1)

		a, ok := m.UCBAction(0)
		require.True(t, ok)
		require.Equal(t, int64(1), a.Bin(), "Greedy choice should win without exploration")
	})

	t.Run("no tried entry means no ucb action", func(t *testing.T) {
		m := newTestMapping(t)

		_, ok := m.UCBAction(1)
		require.False(t, ok)
	})
}

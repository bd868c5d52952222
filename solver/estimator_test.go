package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"abt/pomdp"
)

func estimatorMapping(t *testing.T) *ActionMapping {
	t.Helper()
	model := newCorridorModel(3)
	m := newActionMapping(nil, model.AllActions(), rand.New(rand.NewSource(3)))
	left := m.Entry(corridorAction{dir: 0})
	right := m.Entry(corridorAction{dir: 1})
	// left: 3 visits, mean 2; right: 1 visit, mean 5
	left.Update(6, 3)
	right.Update(5, 1)
	return m
}

func TestMaxQEstimator(t *testing.T) {
	e := MaxQEstimator(estimatorMapping(t))

	require.InDelta(t, 5.0, e.QValue(), 1e-12, "Belief q should be the max child mean")
	a, ok := e.RecommendedAction()
	require.True(t, ok)
	require.Equal(t, int64(1), a.Bin())
}

func TestRobustQEstimator(t *testing.T) {
	e := RobustQEstimator(estimatorMapping(t))

	require.InDelta(t, 5.0, e.QValue(), 1e-12)
	a, ok := e.RecommendedAction()
	require.True(t, ok)
	require.Equal(t, int64(0), a.Bin(), "Robust recommendation should follow visit counts")
}

func TestAvgQEstimator(t *testing.T) {
	e := AvgQEstimator(estimatorMapping(t))

	require.InDelta(t, 11.0/4.0, e.QValue(), 1e-12,
		"Belief q should be the visit weighted mean")
	a, ok := e.RecommendedAction()
	require.True(t, ok)
	require.Equal(t, int64(1), a.Bin())
}

func TestEstimatorLazyRecalculation(t *testing.T) {
	m := estimatorMapping(t)
	e := MaxQEstimator(m)
	require.InDelta(t, 5.0, e.QValue(), 1e-12)

	// stale until marked dirty
	m.Entry(corridorAction{dir: 0}).Update(94, 1)
	require.InDelta(t, 5.0, e.QValue(), 1e-12, "Cached value should survive until invalidation")

	e.MarkDirty()
	require.InDelta(t, 25.0, e.QValue(), 1e-12, "Recalculation should pick up the new statistics")
}

func TestEstimatorForKind(t *testing.T) {
	require.NotNil(t, EstimatorForKind(pomdp.EstimatorMax))
	require.NotNil(t, EstimatorForKind(pomdp.EstimatorRobust))
	require.NotNil(t, EstimatorForKind(pomdp.EstimatorAvg))
	require.Nil(t, EstimatorForKind("fancy"), "Unknown kinds should map to nothing")
}

// avgEstimatorCorridor opts into the avg estimator through the model
// capability instead of a solver option.
type avgEstimatorCorridor struct {
	*corridorModel
}

func (m *avgEstimatorCorridor) Estimator() pomdp.EstimatorKind { return pomdp.EstimatorAvg }

func TestEstimatorModelCapability(t *testing.T) {
	model := &avgEstimatorCorridor{corridorModel: newCorridorModel(2)}
	s, err := New(model, corridorOptions())
	require.NoError(t, err)

	_, err = s.Improve(Budget{MaxSimulations: 200})
	require.NoError(t, err)

	var total float64
	var visits int64
	for _, e := range s.Root().Mapping().Entries() {
		total += e.TotalQ()
		visits += e.Visits()
	}
	require.Positive(t, visits)
	require.InDelta(t, total/float64(visits), s.Root().QValue(), 1e-12,
		"The model-chosen avg estimator should value the root as the visit weighted mean")

	// without the capability the default max estimator applies
	plain, err := New(newCorridorModel(2), corridorOptions())
	require.NoError(t, err)
	_, err = plain.Improve(Budget{MaxSimulations: 200})
	require.NoError(t, err)
	best := 0.0
	haveBest := false
	for _, e := range plain.Root().Mapping().Entries() {
		if e.Visits() == 0 {
			continue
		}
		if !haveBest || e.MeanQ() > best {
			best = e.MeanQ()
			haveBest = true
		}
	}
	require.True(t, haveBest)
	require.InDelta(t, best, plain.Root().QValue(), 1e-12)
}

func TestEstimatorWithoutVisits(t *testing.T) {
	model := newCorridorModel(3)
	m := newActionMapping(nil, model.AllActions(), rand.New(rand.NewSource(3)))
	e := MaxQEstimator(m)

	require.Equal(t, 0.0, e.QValue())
	_, ok := e.RecommendedAction()
	require.False(t, ok, "Nothing visited means nothing to recommend")
}

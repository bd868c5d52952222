package solver

import "abt/pomdp"

// QEstimator caches a belief's value estimate and recommended action.
// Invalidation is explicit via MarkDirty; recalculation happens lazily on
// the next read.
type QEstimator interface {
	MarkDirty()
	QValue() float64
	RecommendedAction() (pomdp.Action, bool)
}

// EstimationStrategy builds the estimator for a freshly created belief.
type EstimationStrategy func(mapping *ActionMapping) QEstimator

// EstimatorForKind maps a model's estimator choice to its strategy;
// unknown kinds return nil.
func EstimatorForKind(kind pomdp.EstimatorKind) EstimationStrategy {
	switch kind {
	case pomdp.EstimatorMax:
		return MaxQEstimator
	case pomdp.EstimatorRobust:
		return RobustQEstimator
	case pomdp.EstimatorAvg:
		return AvgQEstimator
	}
	return nil
}

type cachedEstimator struct {
	mapping *ActionMapping
	dirty   bool
	q       float64
	rec     pomdp.Action
	recalc  func(m *ActionMapping) (float64, pomdp.Action)
}

func (e *cachedEstimator) MarkDirty() { e.dirty = true }

func (e *cachedEstimator) QValue() float64 {
	e.ensure()
	return e.q
}

func (e *cachedEstimator) RecommendedAction() (pomdp.Action, bool) {
	e.ensure()
	if e.rec == nil {
		return nil, false
	}
	return e.rec, true
}

func (e *cachedEstimator) ensure() {
	if !e.dirty {
		return
	}
	e.q, e.rec = e.recalc(e.mapping)
	e.dirty = false
}

func newCachedEstimator(m *ActionMapping, recalc func(*ActionMapping) (float64, pomdp.Action)) QEstimator {
	return &cachedEstimator{mapping: m, dirty: true, recalc: recalc}
}

// MaxQEstimator values a belief as the maximum child mean q and recommends
// the maximizing action. This is the default.
func MaxQEstimator(m *ActionMapping) QEstimator {
	return newCachedEstimator(m, func(m *ActionMapping) (float64, pomdp.Action) {
		var rec pomdp.Action
		q := 0.0
		for _, entry := range m.Entries() {
			if entry.status != ActionTried || entry.visits == 0 {
				continue
			}
			if rec == nil || entry.meanQ > q {
				q = entry.meanQ
				rec = entry.action
			}
		}
		return q, rec
	})
}

// RobustQEstimator values a belief like MaxQEstimator but recommends the
// most visited action.
func RobustQEstimator(m *ActionMapping) QEstimator {
	return newCachedEstimator(m, func(m *ActionMapping) (float64, pomdp.Action) {
		var rec pomdp.Action
		q := 0.0
		haveQ := false
		var recVisits int64
		for _, entry := range m.Entries() {
			if entry.status != ActionTried || entry.visits == 0 {
				continue
			}
			if !haveQ || entry.meanQ > q {
				q = entry.meanQ
				haveQ = true
			}
			if rec == nil || entry.visits > recVisits {
				rec = entry.action
				recVisits = entry.visits
			}
		}
		return q, rec
	})
}

// AvgQEstimator values a belief as the visit-weighted average of its child
// mean qs and recommends the action with the highest mean.
func AvgQEstimator(m *ActionMapping) QEstimator {
	return newCachedEstimator(m, func(m *ActionMapping) (float64, pomdp.Action) {
		var rec pomdp.Action
		best := 0.0
		total := 0.0
		var visits int64
		for _, entry := range m.Entries() {
			if entry.status != ActionTried || entry.visits == 0 {
				continue
			}
			total += entry.totalQ
			visits += entry.visits
			if rec == nil || entry.meanQ > best {
				best = entry.meanQ
				rec = entry.action
			}
		}
		if visits == 0 {
			return 0, nil
		}
		return total / float64(visits), rec
	})
}

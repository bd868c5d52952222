package solver

import (
	"math"

	"golang.org/x/exp/rand"

	"abt/pomdp"
)

// ActionStatus tracks an action's lifecycle within one mapping.
type ActionStatus int

const (
	ActionUntried ActionStatus = iota
	ActionTried
	ActionPruned
)

// ActionEntry holds the per-action statistics of one belief. The entry, not
// the action node, owns the visit count and mean q.
type ActionEntry struct {
	mapping *ActionMapping
	action  pomdp.Action
	visits  int64
	totalQ  float64
	meanQ   float64
	status  ActionStatus
	node    *ActionNode
}

func (e *ActionEntry) Action() pomdp.Action { return e.action }
func (e *ActionEntry) Visits() int64        { return e.visits }
func (e *ActionEntry) TotalQ() float64      { return e.totalQ }
func (e *ActionEntry) MeanQ() float64       { return e.meanQ }
func (e *ActionEntry) Status() ActionStatus { return e.status }
func (e *ActionEntry) Node() *ActionNode    { return e.node }

// Update adds deltaQ to the entry's q total and deltaVisits to its visit
// count, recomputing the mean. The first positive visit moves the action
// from untried to tried.
func (e *ActionEntry) Update(deltaQ float64, deltaVisits int64) {
	e.totalQ += deltaQ
	e.visits += deltaVisits
	e.mapping.totalVisits += deltaVisits
	if e.visits > 0 {
		e.meanQ = e.totalQ / float64(e.visits)
	} else {
		e.totalQ = 0
		e.meanQ = 0
	}
	if e.status == ActionUntried && e.visits > 0 {
		e.status = ActionTried
		e.mapping.dropUntried(e.action.Bin())
	}
}

// Prune retires the action from selection and recommendation.
func (e *ActionEntry) Prune() {
	e.status = ActionPruned
}

// EnsureNode returns the entry's child action node, creating it on first
// use.
func (e *ActionEntry) EnsureNode() *ActionNode {
	if e.node == nil {
		e.node = newActionNode(e)
	}
	return e.node
}

// ActionMapping is a belief's dictionary over its legal action space. One
// concrete mapping serves both the enumerated and discretized variants:
// the model's AllActions defines the legal set and each action's Bin its
// identity.
type ActionMapping struct {
	owner       *BeliefNode
	rng         *rand.Rand
	all         []pomdp.Action
	byBin       map[int64]*ActionEntry
	untried     []int64
	totalVisits int64
}

func newActionMapping(owner *BeliefNode, actions []pomdp.Action, rng *rand.Rand) *ActionMapping {
	m := &ActionMapping{
		owner:   owner,
		rng:     rng,
		all:     actions,
		byBin:   make(map[int64]*ActionEntry, len(actions)),
		untried: make([]int64, 0, len(actions)),
	}
	for _, a := range actions {
		m.byBin[a.Bin()] = &ActionEntry{mapping: m, action: a}
		m.untried = append(m.untried, a.Bin())
	}
	return m
}

func (m *ActionMapping) Owner() *BeliefNode { return m.owner }
func (m *ActionMapping) TotalVisits() int64 { return m.totalVisits }

// Entries lists all entries in bin order.
func (m *ActionMapping) Entries() []*ActionEntry {
	out := make([]*ActionEntry, 0, len(m.all))
	for _, a := range m.all {
		out = append(out, m.byBin[a.Bin()])
	}
	return out
}

// Entry returns the entry for an action, or nil for actions outside the
// legal set.
func (m *ActionMapping) Entry(action pomdp.Action) *ActionEntry {
	return m.byBin[action.Bin()]
}

// HasUntried reports whether any action remains untried.
func (m *ActionMapping) HasUntried() bool { return len(m.untried) > 0 }

// NextUntriedAction picks an untried action uniformly with the mapping's
// seeded randomness, or reports false when all actions have been tried.
func (m *ActionMapping) NextUntriedAction() (pomdp.Action, bool) {
	if len(m.untried) == 0 {
		return nil, false
	}
	bin := m.untried[m.rng.Intn(len(m.untried))]
	return m.byBin[bin].action, true
}

func (m *ActionMapping) dropUntried(bin int64) {
	for i, b := range m.untried {
		if b == bin {
			m.untried[i] = m.untried[len(m.untried)-1]
			m.untried = m.untried[:len(m.untried)-1]
			return
		}
	}
}

// BestAction returns the visited action with the highest mean q; ties break
// toward the lowest bin. Reports false when nothing has been visited.
func (m *ActionMapping) BestAction() (pomdp.Action, bool) {
	var best *ActionEntry
	for _, a := range m.all {
		e := m.byBin[a.Bin()]
		if e.status != ActionTried || e.visits == 0 {
			continue
		}
		if best == nil || e.meanQ > best.meanQ {
			best = e
		}
	}
	if best == nil {
		return nil, false
	}
	return best.action, true
}

// UCBAction returns argmax over tried entries of meanQ + c*sqrt(ln N / n),
// with N the mapping's visit total. Ties break toward the lowest bin.
func (m *ActionMapping) UCBAction(c float64) (pomdp.Action, bool) {
	if m.totalVisits <= 0 {
		return nil, false
	}
	lnN := math.Log(float64(m.totalVisits))
	var best *ActionEntry
	bestScore := math.Inf(-1)
	for _, a := range m.all {
		e := m.byBin[a.Bin()]
		if e.status != ActionTried || e.visits == 0 {
			continue
		}
		score := e.meanQ + c*math.Sqrt(lnN/float64(e.visits))
		if score > bestScore {
			bestScore = score
			best = e
		}
	}
	if best == nil {
		return nil, false
	}
	return best.action, true
}

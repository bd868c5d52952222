package solver

import "abt/pomdp"

// ObsEntry links one observation equivalence class to its child belief.
type ObsEntry struct {
	mapping *ObservationMapping
	obs     pomdp.Observation
	child   *BeliefNode
	visits  int64
}

func (e *ObsEntry) Observation() pomdp.Observation { return e.obs }
func (e *ObsEntry) Child() *BeliefNode             { return e.child }
func (e *ObsEntry) Visits() int64                  { return e.visits }

func (e *ObsEntry) updateVisits(delta int64) {
	e.visits += delta
	e.mapping.totalVisits += delta
}

// ObservationMapping partitions a step's observations into discrete
// equivalence classes, each owning one child belief. Equivalence is the
// observation's Key; enumeration follows insertion order.
type ObservationMapping struct {
	owner       *ActionNode
	byKey       map[uint64]*ObsEntry
	order       []*ObsEntry
	totalVisits int64
}

func newObservationMapping(owner *ActionNode) *ObservationMapping {
	return &ObservationMapping{
		owner: owner,
		byKey: make(map[uint64]*ObsEntry),
	}
}

func (m *ObservationMapping) Owner() *ActionNode { return m.owner }
func (m *ObservationMapping) TotalVisits() int64 { return m.totalVisits }

// Entries enumerates in insertion order.
func (m *ObservationMapping) Entries() []*ObsEntry {
	out := make([]*ObsEntry, len(m.order))
	copy(out, m.order)
	return out
}

// GetOrCreate resolves the entry for an observation's class, constructing
// the child belief and linking it on first call. Idempotent under
// observation equivalence; reports whether the child was created.
func (m *ObservationMapping) GetOrCreate(obs pomdp.Observation) (*ObsEntry, bool) {
	if e, ok := m.byKey[obs.Key()]; ok {
		return e, false
	}
	e := &ObsEntry{mapping: m, obs: obs}
	parent := m.owner.parentEntry.mapping.owner
	e.child = parent.owner.newBeliefNode(e, parent.depth+1,
		parent.childData(m.owner.parentEntry.action, obs))
	m.byKey[obs.Key()] = e
	m.order = append(m.order, e)
	return e, true
}

// attach links a reconstructed child belief under an observation; used by
// the serializer.
func (m *ObservationMapping) attach(obs pomdp.Observation, child *BeliefNode) *ObsEntry {
	e := &ObsEntry{mapping: m, obs: obs, child: child}
	child.parentEntry = e
	m.byKey[obs.Key()] = e
	m.order = append(m.order, e)
	return e
}

// Get returns the child belief for an observation, or nil if its class has
// not been seen.
func (m *ObservationMapping) Get(obs pomdp.Observation) *BeliefNode {
	if e, ok := m.byKey[obs.Key()]; ok {
		return e.child
	}
	return nil
}

package solver

import (
	"time"

	"golang.org/x/exp/rand"

	"abt/pomdp"
)

// BeliefNode is one node of the belief tree: a nonparametric belief
// represented by its particle multiset, plus the action mapping and the
// cached q-value estimator. Nodes are owned by their parent observation
// entry; the root is owned by the solver. Particle and parent pointers are
// non-owning back references.
type BeliefNode struct {
	owner       *Solver
	id          int64
	depth       int
	parentEntry *ObsEntry
	actionMap   *ActionMapping
	estimator   QEstimator
	data        any

	particles          []*HistoryEntry
	particleIndex      map[*HistoryEntry]int
	nStartingSequences int
	lastChange         time.Time
}

func (b *BeliefNode) ID() int64                { return b.id }
func (b *BeliefNode) Depth() int               { return b.depth }
func (b *BeliefNode) Mapping() *ActionMapping  { return b.actionMap }
func (b *BeliefNode) ParentEntry() *ObsEntry   { return b.parentEntry }
func (b *BeliefNode) Data() any                { return b.data }
func (b *BeliefNode) ParticleCount() int       { return len(b.particles) }
func (b *BeliefNode) StartingSequences() int   { return b.nStartingSequences }
func (b *BeliefNode) LastChange() time.Time    { return b.lastChange }
func (b *BeliefNode) Estimator() QEstimator    { return b.estimator }

// Particles returns the particle multiset in insertion order.
func (b *BeliefNode) Particles() []*HistoryEntry {
	out := make([]*HistoryEntry, len(b.particles))
	copy(out, b.particles)
	return out
}

// States lists the particle states, with multiplicity.
func (b *BeliefNode) States() []pomdp.State {
	out := make([]pomdp.State, len(b.particles))
	for i, e := range b.particles {
		out[i] = e.State()
	}
	return out
}

// SampleParticle draws one particle uniformly.
func (b *BeliefNode) SampleParticle(rng *rand.Rand) *HistoryEntry {
	if len(b.particles) == 0 {
		return nil
	}
	return b.particles[rng.Intn(len(b.particles))]
}

func (b *BeliefNode) addParticle(e *HistoryEntry) {
	b.particleIndex[e] = len(b.particles)
	b.particles = append(b.particles, e)
	if e.id == 0 {
		b.nStartingSequences++
	}
	b.lastChange = b.owner.clock()
}

func (b *BeliefNode) removeParticle(e *HistoryEntry) {
	i, ok := b.particleIndex[e]
	if !ok {
		return
	}
	last := len(b.particles) - 1
	moved := b.particles[last]
	b.particles[i] = moved
	b.particleIndex[moved] = i
	b.particles = b.particles[:last]
	delete(b.particleIndex, e)
	if e.id == 0 {
		b.nStartingSequences--
	}
	b.lastChange = b.owner.clock()
}

// Child returns the belief reached by (action, observation), or nil if the
// path has not been expanded.
func (b *BeliefNode) Child(action pomdp.Action, obs pomdp.Observation) *BeliefNode {
	entry := b.actionMap.Entry(action)
	if entry == nil || entry.node == nil {
		return nil
	}
	return entry.node.obsMap.Get(obs)
}

// CreateOrGetChild resolves the belief reached by (action, observation),
// constructing the action node and child belief as needed, and reports
// whether the child is new.
func (b *BeliefNode) CreateOrGetChild(action pomdp.Action, obs pomdp.Observation) (*BeliefNode, bool) {
	entry := b.actionMap.Entry(action)
	if entry == nil {
		return nil, false
	}
	oe, created := entry.EnsureNode().obsMap.GetOrCreate(obs)
	return oe.child, created
}

// QValue reports the belief's estimated value, recalculating lazily.
func (b *BeliefNode) QValue() float64 { return b.estimator.QValue() }

// RecommendedAction reports the estimator's recommendation, or false when
// no action has been visited yet.
func (b *BeliefNode) RecommendedAction() (pomdp.Action, bool) {
	return b.estimator.RecommendedAction()
}

func (b *BeliefNode) childData(action pomdp.Action, obs pomdp.Observation) any {
	if hm, ok := b.owner.model.(pomdp.HistoricalModel); ok {
		return hm.ChildData(b.data, action, obs)
	}
	return nil
}

// ActionNode sits between a belief and its observation branches. It keeps
// no statistics of its own; those live in the parent mapping's entry.
type ActionNode struct {
	parentEntry *ActionEntry
	obsMap      *ObservationMapping
}

func newActionNode(parent *ActionEntry) *ActionNode {
	n := &ActionNode{parentEntry: parent}
	n.obsMap = newObservationMapping(n)
	return n
}

func (n *ActionNode) ParentEntry() *ActionEntry          { return n.parentEntry }
func (n *ActionNode) Observations() *ObservationMapping { return n.obsMap }

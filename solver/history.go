package solver

import (
	"slices"

	"abt/pomdp"
)

// HistoryEntry records one simulated step. Each entry belongs to exactly
// one sequence and is registered as a particle of exactly one belief. The
// final entry of a sequence has no action or observation.
type HistoryEntry struct {
	seq         *HistorySequence
	id          int
	stateInfo   *StateInfo
	action      pomdp.Action
	observation pomdp.Observation
	reward      float64
	discount    float64
	cumulative  float64
	belief      *BeliefNode
	flagged     bool
}

func (e *HistoryEntry) Sequence() *HistorySequence    { return e.seq }
func (e *HistoryEntry) ID() int                       { return e.id }
func (e *HistoryEntry) StateInfo() *StateInfo         { return e.stateInfo }
func (e *HistoryEntry) State() pomdp.State            { return e.stateInfo.state }
func (e *HistoryEntry) Action() pomdp.Action          { return e.action }
func (e *HistoryEntry) Observation() pomdp.Observation { return e.observation }
func (e *HistoryEntry) Reward() float64               { return e.reward }
func (e *HistoryEntry) Belief() *BeliefNode           { return e.belief }

// detach removes the entry from its belief's particle set and from its
// state's usage registry.
func (e *HistoryEntry) detach() {
	if e.belief != nil {
		e.belief.removeParticle(e)
		e.belief = nil
	}
	if e.stateInfo != nil {
		e.stateInfo.unregister(e)
	}
}

// HistorySequence is the ordered list of entries produced by one
// simulation. Entries are never moved once appended; their index is their
// id.
type HistorySequence struct {
	id      int64
	entries []*HistoryEntry
}

func (seq *HistorySequence) ID() int64                 { return seq.id }
func (seq *HistorySequence) Len() int                  { return len(seq.entries) }
func (seq *HistorySequence) Entry(i int) *HistoryEntry { return seq.entries[i] }
func (seq *HistorySequence) Last() *HistoryEntry       { return seq.entries[len(seq.entries)-1] }

// Append adds an entry for the given state and registers the state usage.
// The caller fills in action, observation and reward afterwards.
func (seq *HistorySequence) Append(info *StateInfo) *HistoryEntry {
	e := &HistoryEntry{
		seq:       seq,
		id:        len(seq.entries),
		stateInfo: info,
		discount:  1,
	}
	info.register(e)
	seq.entries = append(seq.entries, e)
	return e
}

// truncateAfter drops every entry after index i, detaching them.
func (seq *HistorySequence) truncateAfter(i int) {
	for j := i + 1; j < len(seq.entries); j++ {
		seq.entries[j].detach()
	}
	seq.entries = seq.entries[:i+1]
}

// Histories owns every history sequence and entry in the solver. All
// particles in all beliefs point into this store.
type Histories struct {
	seqs   map[int64]*HistorySequence
	nextID int64
}

func NewHistories() *Histories {
	return &Histories{seqs: make(map[int64]*HistorySequence)}
}

func (h *Histories) NewSequence() *HistorySequence {
	seq := &HistorySequence{id: h.nextID}
	h.nextID++
	h.seqs[seq.id] = seq
	return seq
}

// newSequenceWithID reconstructs a sequence under an externally assigned
// id; used by the serializer.
func (h *Histories) newSequenceWithID(id int64) *HistorySequence {
	seq := &HistorySequence{id: id}
	h.seqs[id] = seq
	if id >= h.nextID {
		h.nextID = id + 1
	}
	return seq
}

func (h *Histories) Sequence(id int64) *HistorySequence { return h.seqs[id] }
func (h *Histories) NumSequences() int                  { return len(h.seqs) }

// SequenceIDs returns all live sequence ids in ascending order.
func (h *Histories) SequenceIDs() []int64 {
	ids := make([]int64, 0, len(h.seqs))
	for id := range h.seqs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DeleteSequence removes a sequence from the store, detaching every entry
// from its belief and state as a side effect.
func (h *Histories) DeleteSequence(seq *HistorySequence) {
	for _, e := range seq.entries {
		e.detach()
	}
	seq.entries = nil
	delete(h.seqs, seq.id)
}

package solver

import (
	"fmt"

	"github.com/dhconnelly/rtreego"

	"abt/pomdp"
)

const rectTolerance = 1e-9

// StateInfo is the pool's record of one canonical state. Every other part
// of the tree refers to states through a StateInfo; the pool is the only
// owner. The entry registry backs change propagation.
type StateInfo struct {
	id      int64
	state   pomdp.State
	bounds  rtreego.Rect
	entries map[*HistoryEntry]struct{}
}

func (info *StateInfo) ID() int64          { return info.id }
func (info *StateInfo) State() pomdp.State { return info.state }

// Bounds implements rtreego.Spatial.
func (info *StateInfo) Bounds() rtreego.Rect { return info.bounds }

// Entries lists the history entries currently starting from this state.
func (info *StateInfo) Entries() []*HistoryEntry {
	out := make([]*HistoryEntry, 0, len(info.entries))
	for e := range info.entries {
		out = append(out, e)
	}
	return out
}

func (info *StateInfo) register(e *HistoryEntry)   { info.entries[e] = struct{}{} }
func (info *StateInfo) unregister(e *HistoryEntry) { delete(info.entries, e) }

// StatePool deduplicates states discovered during search and indexes them
// by their numeric state-variable vector for change propagation. Queries
// never fail; only canonicalizing a malformed state does.
type StatePool struct {
	nVars  int
	byHash map[uint64][]*StateInfo
	infos  []*StateInfo
	tree   *rtreego.Rtree
}

func NewStatePool(nVars int) *StatePool {
	return &StatePool{
		nVars:  nVars,
		byHash: make(map[uint64][]*StateInfo),
		tree:   rtreego.NewTree(nVars, 8, 16),
	}
}

// GetOrCanonicalize returns the pool's record for a state equal to s,
// creating it on first sight. Ids are dense and assigned in insertion
// order.
func (p *StatePool) GetOrCanonicalize(s pomdp.State) (*StateInfo, error) {
	if s == nil {
		return nil, &ModelContractError{Reason: "nil state"}
	}
	vec := s.Vector()
	if len(vec) != p.nVars {
		return nil, &ModelContractError{Reason: fmt.Sprintf(
			"state vector has %d variables, model declares %d", len(vec), p.nVars)}
	}

	h := s.Hash()
	for _, info := range p.byHash[h] {
		if info.state.Equal(s) {
			return info, nil
		}
	}

	point := make(rtreego.Point, len(vec))
	copy(point, vec)
	info := &StateInfo{
		id:      int64(len(p.infos)),
		state:   s,
		bounds:  point.ToRect(rectTolerance),
		entries: make(map[*HistoryEntry]struct{}),
	}
	p.byHash[h] = append(p.byHash[h], info)
	p.infos = append(p.infos, info)
	p.tree.Insert(info)
	return info, nil
}

// States enumerates all canonical states in id order.
func (p *StatePool) States() []*StateInfo {
	out := make([]*StateInfo, len(p.infos))
	copy(out, p.infos)
	return out
}

func (p *StatePool) NumStates() int { return len(p.infos) }

// StatesWithin returns the states whose vectors fall inside the axis
// aligned box [low, high].
func (p *StatePool) StatesWithin(low, high []float64) []*StateInfo {
	lengths := make([]float64, len(low))
	for i := range low {
		lengths[i] = high[i] - low[i]
		if lengths[i] <= 0 {
			lengths[i] = rectTolerance
		}
	}
	rect, err := rtreego.NewRect(rtreego.Point(low), lengths)
	if err != nil {
		return nil
	}
	found := p.tree.SearchIntersect(rect)
	out := make([]*StateInfo, 0, len(found))
	for _, sp := range found {
		out = append(out, sp.(*StateInfo))
	}
	return out
}

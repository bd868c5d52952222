package rocksample

import (
	"fmt"
	"strconv"

	"abt/pomdp"
)

// ActionType enumerates the rover's moves; CHECK is the base code for the
// per-rock sensing actions.
type ActionType int64

const (
	North ActionType = iota
	East
	South
	West
	Sample
	Check
)

// Action is one rover action. RockNo is meaningful only for Check.
type Action struct {
	Type   ActionType
	RockNo int64
}

// NewAction decodes an action from its bin number.
func NewAction(bin int64) Action {
	if bin < int64(Check) {
		return Action{Type: ActionType(bin)}
	}
	return Action{Type: Check, RockNo: bin - int64(Check)}
}

func (a Action) Equal(other pomdp.Action) bool {
	o, ok := other.(Action)
	return ok && a.Type == o.Type && a.RockNo == o.RockNo
}

func (a Action) Bin() int64 {
	if a.Type == Check {
		return int64(Check) + a.RockNo
	}
	return int64(a.Type)
}

func (a Action) String() string {
	switch a.Type {
	case North:
		return "NORTH"
	case East:
		return "EAST"
	case South:
		return "SOUTH"
	case West:
		return "WEST"
	case Sample:
		return "SAMPLE"
	case Check:
		return "CHECK-" + strconv.FormatInt(a.RockNo, 10)
	}
	return fmt.Sprintf("ERROR-%d", int64(a.Type))
}

// Observation is the reading of a CHECK action: GOOD or BAD, or NONE for
// every other action.
type Observation int64

const (
	ObsNone Observation = iota
	ObsGood
	ObsBad
)

func (o Observation) Equal(other pomdp.Observation) bool {
	v, ok := other.(Observation)
	return ok && o == v
}

func (o Observation) Key() uint64 { return uint64(o) }

func (o Observation) String() string {
	switch o {
	case ObsGood:
		return "(GOOD)"
	case ObsBad:
		return "(BAD)"
	}
	return "(NONE)"
}

// obsFor maps a sensor match to the observation it produces.
func obsFor(good bool) Observation {
	if good {
		return ObsGood
	}
	return ObsBad
}

package nav2d

import (
	"fmt"

	"abt/pomdp"
)

// Action is a (speed, rotational speed) pair from the discretized control
// set; Code is its stable bin. Rotational speed is measured in turns per
// unit time.
type Action struct {
	Code            int64
	Speed           float64
	RotationalSpeed float64
}

func (a Action) Equal(other pomdp.Action) bool {
	o, ok := other.(Action)
	return ok && a.Code == o.Code
}

func (a Action) Bin() int64 { return a.Code }

func (a Action) String() string {
	return fmt.Sprintf("%g/%g", a.Speed, a.RotationalSpeed)
}

// Observation is either a pose estimate snapped to the sensor resolution,
// or empty when the vehicle is too far from the beacon to be localized.
type Observation struct {
	Empty     bool
	X         float64
	Y         float64
	Direction float64
}

func (o Observation) Equal(other pomdp.Observation) bool {
	v, ok := other.(Observation)
	if !ok || o.Empty != v.Empty {
		return false
	}
	if o.Empty {
		return true
	}
	return o.X == v.X && o.Y == v.Y && o.Direction == v.Direction
}

func (o Observation) Key() uint64 {
	if o.Empty {
		return 0
	}
	s := State{X: o.X, Y: o.Y, Direction: o.Direction}
	return 1 + s.Hash()
}

func (o Observation) String() string {
	if o.Empty {
		return "(NONE)"
	}
	return fmt.Sprintf("(%g %g):%g", o.X, o.Y, o.Direction)
}

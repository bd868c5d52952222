package nav2d

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"abt/pomdp"
)

// State is the vehicle pose: position plus heading, with the heading
// measured in turns (1.0 = 360 degrees).
type State struct {
	X         float64
	Y         float64
	Direction float64
}

func (s *State) Equal(other pomdp.State) bool {
	o, ok := other.(*State)
	return ok && s.X == o.X && s.Y == o.Y && s.Direction == o.Direction
}

func (s *State) Hash() uint64 {
	h := fnv.New64a()
	buf := make([]byte, 8)
	for _, v := range []float64{s.X, s.Y, s.Direction} {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}
	return h.Sum64()
}

func (s *State) DistanceTo(other pomdp.State) float64 {
	o, ok := other.(*State)
	if !ok {
		return 0
	}
	dx := s.X - o.X
	dy := s.Y - o.Y
	dd := turnDistance(s.Direction, o.Direction)
	return math.Sqrt(dx*dx+dy*dy) + dd
}

func (s *State) Vector() []float64 {
	return []float64{s.X, s.Y, s.Direction}
}

func (s *State) String() string {
	return fmt.Sprintf("(%g %g):%g", s.X, s.Y, s.Direction)
}

func (s *State) distanceTo(x, y float64) float64 {
	dx := s.X - x
	dy := s.Y - y
	return math.Sqrt(dx*dx + dy*dy)
}

// turnDistance is the shortest angular distance between two headings, in
// turns.
func turnDistance(a, b float64) float64 {
	d := math.Abs(normalizeTurns(a) - normalizeTurns(b))
	if d > 0.5 {
		d = 1 - d
	}
	return d
}

func normalizeTurns(d float64) float64 {
	d = math.Mod(d, 1)
	if d < 0 {
		d++
	}
	return d
}

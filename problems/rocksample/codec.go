package rocksample

import (
	"fmt"
	"strings"

	"abt/pomdp"
)

// codec writes states as "(row col):bits", actions by name and
// observations in parentheses, matching the String forms.
type codec struct {
	nRocks int
}

func (c codec) EncodeState(state pomdp.State) string {
	return state.(*State).String()
}

func (c codec) DecodeState(text string) (pomdp.State, error) {
	head, bits, ok := strings.Cut(text, ":")
	if !ok {
		return nil, fmt.Errorf("bad state %q", text)
	}
	s := &State{}
	if _, err := fmt.Sscanf(head, "(%d %d)", &s.Pos.Row, &s.Pos.Col); err != nil {
		return nil, fmt.Errorf("bad state %q: %w", text, err)
	}
	if len(bits) != c.nRocks {
		return nil, fmt.Errorf("state %q has %d rock flags, want %d", text, len(bits), c.nRocks)
	}
	s.Rocks = make([]bool, c.nRocks)
	for i := 0; i < c.nRocks; i++ {
		switch bits[i] {
		case '1':
			s.Rocks[i] = true
		case '0':
		default:
			return nil, fmt.Errorf("bad rock flag %q in state %q", bits[i], text)
		}
	}
	return s, nil
}

func (c codec) EncodeAction(action pomdp.Action) string {
	return action.(Action).String()
}

func (c codec) DecodeAction(text string) (pomdp.Action, error) {
	switch text {
	case "NORTH":
		return Action{Type: North}, nil
	case "EAST":
		return Action{Type: East}, nil
	case "SOUTH":
		return Action{Type: South}, nil
	case "WEST":
		return Action{Type: West}, nil
	case "SAMPLE":
		return Action{Type: Sample}, nil
	}
	var rockNo int64
	if _, err := fmt.Sscanf(text, "CHECK-%d", &rockNo); err != nil {
		return nil, fmt.Errorf("bad action %q", text)
	}
	return Action{Type: Check, RockNo: rockNo}, nil
}

func (c codec) EncodeObservation(obs pomdp.Observation) string {
	return obs.(Observation).String()
}

func (c codec) DecodeObservation(text string) (pomdp.Observation, error) {
	switch text {
	case "(NONE)":
		return ObsNone, nil
	case "(GOOD)":
		return ObsGood, nil
	case "(BAD)":
		return ObsBad, nil
	}
	return nil, fmt.Errorf("bad observation %q", text)
}

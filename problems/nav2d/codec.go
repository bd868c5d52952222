package nav2d

import (
	"fmt"
	"strconv"
	"strings"

	"abt/pomdp"
)

// codec writes poses as "(x y):direction", actions as "speed/rotation" and
// the empty observation as "(NONE)". Floats round-trip exactly through
// strconv's shortest 'g' form.
type codec struct {
	model *Model
}

func (c codec) EncodeState(state pomdp.State) string {
	return state.(*State).String()
}

func (c codec) DecodeState(text string) (pomdp.State, error) {
	x, y, dir, err := parsePose(text)
	if err != nil {
		return nil, err
	}
	return &State{X: x, Y: y, Direction: dir}, nil
}

func (c codec) EncodeAction(action pomdp.Action) string {
	return action.(Action).String()
}

func (c codec) DecodeAction(text string) (pomdp.Action, error) {
	speedText, rotText, ok := strings.Cut(text, "/")
	if !ok {
		return nil, fmt.Errorf("bad action %q", text)
	}
	speed, err := strconv.ParseFloat(speedText, 64)
	if err != nil {
		return nil, fmt.Errorf("bad action %q: %w", text, err)
	}
	rot, err := strconv.ParseFloat(rotText, 64)
	if err != nil {
		return nil, fmt.Errorf("bad action %q: %w", text, err)
	}
	for _, a := range c.model.actions {
		na := a.(Action)
		if na.Speed == speed && na.RotationalSpeed == rot {
			return na, nil
		}
	}
	return nil, fmt.Errorf("action %q outside the control set", text)
}

func (c codec) EncodeObservation(obs pomdp.Observation) string {
	return obs.(Observation).String()
}

func (c codec) DecodeObservation(text string) (pomdp.Observation, error) {
	if text == "(NONE)" {
		return Observation{Empty: true}, nil
	}
	x, y, dir, err := parsePose(text)
	if err != nil {
		return nil, err
	}
	return Observation{X: x, Y: y, Direction: dir}, nil
}

func parsePose(text string) (x, y, dir float64, err error) {
	head, dirText, ok := strings.Cut(text, "):")
	if !ok || !strings.HasPrefix(head, "(") {
		return 0, 0, 0, fmt.Errorf("bad pose %q", text)
	}
	xText, yText, ok := strings.Cut(strings.TrimPrefix(head, "("), " ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("bad pose %q", text)
	}
	if x, err = strconv.ParseFloat(xText, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("bad pose %q: %w", text, err)
	}
	if y, err = strconv.ParseFloat(yText, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("bad pose %q: %w", text, err)
	}
	if dir, err = strconv.ParseFloat(dirText, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("bad pose %q: %w", text, err)
	}
	return x, y, dir, nil
}

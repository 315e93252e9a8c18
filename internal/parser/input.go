package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Crys266/IoT-Project/internal/model"
)

// ErrEmptyLine is returned for blank and comment lines, which callers skip.
var ErrEmptyLine = errors.New("empty input line")

// ParseInputLine parses one gamepad line into an input event. The device sends
// one action per line:
//
//	DOWN <forward|backward|left|right>
//	UP
//	SPEED <level>
//	STEP <+n|-n>
//	TOGGLE <negative|detection>
//	SAVE
func ParseInputLine(line string) (model.InputEvent, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return model.InputEvent{}, ErrEmptyLine
	}
	fields := strings.Fields(line)
	verb := strings.ToUpper(fields[0])
	args := fields[1:]

	switch verb {
	case "DOWN":
		if len(args) != 1 {
			return model.InputEvent{}, fmt.Errorf("DOWN expects 1 argument, got %d", len(args))
		}
		d := model.Direction(strings.ToLower(args[0]))
		if !d.Valid() {
			return model.InputEvent{}, errors.New("invalid direction")
		}
		return model.InputEvent{Kind: model.InputDirectionDown, Direction: d}, nil
	case "UP":
		return model.InputEvent{Kind: model.InputDirectionUp}, nil
	case "SPEED", "STEP":
		if len(args) != 1 {
			return model.InputEvent{}, fmt.Errorf("%s expects 1 argument, got %d", verb, len(args))
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return model.InputEvent{}, errors.New("invalid speed")
		}
		kind := model.InputSpeedSet
		if verb == "STEP" {
			kind = model.InputSpeedStep
		}
		return model.InputEvent{Kind: kind, Speed: n}, nil
	case "TOGGLE":
		if len(args) != 1 {
			return model.InputEvent{}, fmt.Errorf("TOGGLE expects 1 argument, got %d", len(args))
		}
		e, err := model.ParseEffect(strings.ToLower(args[0]))
		if err != nil {
			return model.InputEvent{}, err
		}
		return model.InputEvent{Kind: model.InputToggleEffect, Effect: e}, nil
	case "SAVE":
		return model.InputEvent{Kind: model.InputSaveFrame}, nil
	default:
		return model.InputEvent{}, fmt.Errorf("unknown verb %q", fields[0])
	}
}

// Package parser converts the speed control wire format.
//
// control_command payload (dashboard -> controller):
//
//	DIRECTION:speed:LEVEL
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Crys266/IoT-Project/internal/model"
)

// FormatSpeedCommand renders the control_command payload for d at level.
func FormatSpeedCommand(d model.Direction, level int) string {
	return fmt.Sprintf("%s:speed:%d", d, level)
}

// ParseSpeedCommand parses a control_command payload.
func ParseSpeedCommand(s string) (model.Direction, int, error) {
	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) != 3 {
		return "", 0, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	if fields[1] != "speed" {
		return "", 0, errors.New("invalid speed keyword")
	}
	d, err := model.ParseDirection(fields[0])
	if err != nil {
		return "", 0, err
	}
	level, err := strconv.Atoi(fields[2])
	if err != nil {
		return "", 0, errors.New("invalid speed level")
	}
	return d, level, nil
}

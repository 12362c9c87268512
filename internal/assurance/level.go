// Package assurance models the level-of-assurance hint sent with a prediction.
package assurance

import (
	"errors"
	"fmt"
)

// Level is the requested strength of the age check. The zero value means no
// level is selected and the hint is omitted from the request.
type Level string

const (
	None   Level = ""
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

// ErrUnknownLevel is returned when a value outside Levels is selected.
var ErrUnknownLevel = errors.New("unknown level of assurance")

// Levels lists the selectable options in display order.
var Levels = []Level{Low, Medium, High}

// Parse validates a raw option value. The empty string parses to None.
func Parse(raw string) (Level, error) {
	switch Level(raw) {
	case None, Low, Medium, High:
		return Level(raw), nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownLevel, raw)
}

// Toggle returns the level that results from clicking next while current is
// active: clicking the active option clears it, any other option replaces it.
// An empty click leaves current untouched.
func Toggle(current, next Level) Level {
	if next == None {
		return current
	}
	if next == current {
		return None
	}
	return next
}

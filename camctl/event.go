package camctl

import (
	"fmt"
	"strings"
)

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// EventKind discriminates Event.
type EventKind int

const (
	EventPointerDown EventKind = iota + 1
	EventPointerMove
	EventPointerUp
	EventWheel
	EventResize
)

var eventKindNames = map[EventKind]string{
	EventPointerDown: "pointerdown",
	EventPointerMove: "pointermove",
	EventPointerUp:   "pointerup",
	EventWheel:       "wheel",
	EventResize:      "resize",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind maps a wire name such as "pointermove" back to its kind.
func ParseEventKind(s string) (EventKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range eventKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown input event %q", s)
}

// Event is one input notification. Which fields matter depends on Kind:
// pointer events use Button, X and Y; wheel uses Delta; resize uses Width
// and Height.
type Event struct {
	Kind   EventKind
	Button Button
	X, Y   float64
	Delta  float64
	Width  int
	Height int
}

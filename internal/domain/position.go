package domain

import "fmt"

// DropPosition places a dragged task relative to the task under the pointer.
type DropPosition string

// Drop positions
const (
	DropAbove  DropPosition = "above"
	DropBelow  DropPosition = "below"
	DropInside DropPosition = "inside"
)

// ParseDropPosition creates a DropPosition with validation
func ParseDropPosition(value string) (DropPosition, error) {
	p := DropPosition(value)
	switch p {
	case DropAbove, DropBelow, DropInside:
		return p, nil
	default:
		return "", fmt.Errorf("invalid drop position %q: must be above, below, or inside", value)
	}
}

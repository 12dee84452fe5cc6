package wizard

import (
	"errors"
	"fmt"
)

// ErrStepNotFound is returned when navigating to a step the definition does
// not contain.
var ErrStepNotFound = errors.New("step not found")

// Navigator tracks the active step and keeps the surface's step panels and
// progress indicator in sync with it.
type Navigator struct {
	def     *Definition
	surface Surface
	current int
}

// NewNavigator creates a navigator positioned on the first step. Nothing is
// rendered until the first GoTo.
func NewNavigator(def *Definition, surface Surface) *Navigator {
	return &Navigator{def: def, surface: surface, current: def.First()}
}

// Current returns the active step number.
func (n *Navigator) Current() int {
	return n.current
}

// GoTo activates step. An unknown step leaves the current step active and
// nothing on the surface changes.
func (n *Navigator) GoTo(step int) error {
	if !n.def.HasStep(step) {
		return fmt.Errorf("%w: %d", ErrStepNotFound, step)
	}
	n.surface.ShowStep(step)
	n.current = step
	n.surface.SetProgress(n.Progress())
	n.surface.ScrollToTop()
	return nil
}

// Progress computes the marker states for the current step.
func (n *Navigator) Progress() []Marker {
	return Progress(n.def, n.current)
}

// Progress marks steps before current completed, current active, and the
// rest pending.
func Progress(def *Definition, current int) []Marker {
	markers := make([]Marker, 0, len(def.Steps))
	for _, s := range def.Steps {
		m := Marker{Step: s.Number, Title: s.Title}
		switch {
		case s.Number < current:
			m.State = MarkerCompleted
		case s.Number == current:
			m.State = MarkerActive
		}
		markers = append(markers, m)
	}
	return markers
}

package wizard

import (
	"context"

	"github.com/gabrielmiguelok/formwizard/pkg/forms"
)

// MarkerState is the display state of a progress marker.
type MarkerState int

const (
	MarkerPending MarkerState = iota
	MarkerActive
	MarkerCompleted
)

func (s MarkerState) String() string {
	switch s {
	case MarkerActive:
		return "active"
	case MarkerCompleted:
		return "completed"
	default:
		return ""
	}
}

// Marker is one entry of the progress indicator.
type Marker struct {
	Step  int
	Title string
	State MarkerState
}

// Surface is what a Controller renders to. Implementations exist for HTML
// pages and terminals; tests use a recording fake.
type Surface interface {
	// ShowStep deactivates every step panel and activates step n.
	ShowStep(n int)
	SetProgress(markers []Marker)
	ScrollToTop()
	SetFieldValue(name, value string)
	// SetFieldError shows message next to the field and flags it invalid.
	// An empty message clears both.
	SetFieldError(name, message string)
	// ShowSuccess hides the form and header and reveals the success panel.
	ShowSuccess()
}

// NavigationHandler receives step navigation events.
type NavigationHandler interface {
	Next(ctx context.Context, target int) error
	Previous(ctx context.Context, target int) error
	Submit(ctx context.Context) error
}

// ValidationHandler receives per-field events.
type ValidationHandler interface {
	Input(ctx context.Context, name, value string) error
	Blur(ctx context.Context, name string) (forms.Result, error)
}

// Binder is implemented by surfaces that deliver events themselves.
type Binder interface {
	BindNavigation(h NavigationHandler)
	BindValidation(h ValidationHandler)
}

// NopSurface discards all output.
type NopSurface struct{}

func (NopSurface) ShowStep(int)                 {}
func (NopSurface) SetProgress([]Marker)         {}
func (NopSurface) ScrollToTop()                 {}
func (NopSurface) SetFieldValue(string, string) {}
func (NopSurface) SetFieldError(string, string) {}
func (NopSurface) ShowSuccess()                 {}

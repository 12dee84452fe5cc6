package wizard

import (
	"context"

	"github.com/gabrielmiguelok/formwizard/pkg/forms"
)

// recordingSurface captures what a controller rendered.
type recordingSurface struct {
	active    int
	shown     []int
	progress  []Marker
	scrolls   int
	values    map[string]string
	errors    map[string]string
	success   bool
	nav       NavigationHandler
	validator ValidationHandler
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{
		values: make(map[string]string),
		errors: make(map[string]string),
	}
}

func (s *recordingSurface) ShowStep(n int) {
	s.active = n
	s.shown = append(s.shown, n)
}

func (s *recordingSurface) SetProgress(markers []Marker) { s.progress = markers }
func (s *recordingSurface) ScrollToTop()                 { s.scrolls++ }

func (s *recordingSurface) SetFieldValue(name, value string) { s.values[name] = value }

func (s *recordingSurface) SetFieldError(name, message string) {
	if message == "" {
		delete(s.errors, name)
		return
	}
	s.errors[name] = message
}

func (s *recordingSurface) ShowSuccess() { s.success = true }

func (s *recordingSurface) BindNavigation(h NavigationHandler) { s.nav = h }
func (s *recordingSurface) BindValidation(h ValidationHandler) { s.validator = h }

// type assertions
var (
	_ Surface = (*recordingSurface)(nil)
	_ Binder  = (*recordingSurface)(nil)

	_ NavigationHandler = (*Controller)(nil)
	_ ValidationHandler = (*Controller)(nil)
)

func fillStep(ctx context.Context, c *Controller, values forms.Data) error {
	for _, name := range values.Keys() {
		if err := c.Input(ctx, name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

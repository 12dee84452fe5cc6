package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

// Action labels offered after each step.
const (
	ActionPrevious = "Previous"
	ActionNext     = "Next"
	ActionSubmit   = "Submit Application"
)

// Surface prints wizard output to a terminal and collects input through a
// PromptDriver. It drives the controller it is bound to.
type Surface struct {
	def    *wizard.Definition
	driver PromptDriver
	out    io.Writer

	nav    wizard.NavigationHandler
	fields wizard.ValidationHandler

	active int
	values map[string]string
	done   bool
}

var (
	_ wizard.Surface = (*Surface)(nil)
	_ wizard.Binder  = (*Surface)(nil)
)

// NewSurface creates a terminal surface. A nil out writes to stdout.
func NewSurface(def *wizard.Definition, driver PromptDriver, out io.Writer) *Surface {
	if out == nil {
		out = os.Stdout
	}
	return &Surface{def: def, driver: driver, out: out, values: make(map[string]string)}
}

func (s *Surface) BindNavigation(h wizard.NavigationHandler) { s.nav = h }
func (s *Surface) BindValidation(h wizard.ValidationHandler) { s.fields = h }

func (s *Surface) ShowStep(n int) {
	s.active = n
	if step, ok := s.def.Step(n); ok {
		fmt.Fprintf(s.out, "\n== Step %d of %d: %s ==\n", n, len(s.def.Steps), step.Title)
	}
}

func (s *Surface) SetProgress(markers []wizard.Marker) {
	parts := make([]string, 0, len(markers))
	for _, m := range markers {
		switch m.State {
		case wizard.MarkerCompleted:
			parts = append(parts, fmt.Sprintf("[x] %s", m.Title))
		case wizard.MarkerActive:
			parts = append(parts, fmt.Sprintf("[>] %s", m.Title))
		default:
			parts = append(parts, fmt.Sprintf("[ ] %s", m.Title))
		}
	}
	fmt.Fprintln(s.out, strings.Join(parts, "  "))
}

func (s *Surface) ScrollToTop() {}

func (s *Surface) SetFieldValue(name, value string) {
	s.values[name] = value
}

func (s *Surface) SetFieldError(name, message string) {
	if message == "" {
		return
	}
	label := name
	if f, _, ok := s.def.Field(name); ok {
		label = f.Label
	}
	fmt.Fprintf(s.out, "  ! %s: %s\n", label, message)
}

func (s *Surface) ShowSuccess() {
	s.done = true
	fmt.Fprintln(s.out, "\nApplication Submitted! Thank you for applying.")
}

// Fill prompts step by step until the application is submitted or the
// user aborts.
func (s *Surface) Fill(ctx context.Context) error {
	if s.nav == nil || s.fields == nil {
		return ErrNotBound
	}
	for !s.done {
		if err := s.fillStep(ctx); err != nil {
			return err
		}
		if err := s.act(ctx); err != nil {
			return err
		}
	}
	return nil
}

// fillStep asks for each field of the active step, repeating a field until
// it passes validation.
func (s *Surface) fillStep(ctx context.Context) error {
	step, ok := s.def.Step(s.active)
	if !ok {
		return fmt.Errorf("%w: %d", wizard.ErrStepNotFound, s.active)
	}
	for _, f := range step.Fields {
		for {
			value, err := s.prompt(ctx, f)
			if err != nil {
				return err
			}
			if err := s.fields.Input(ctx, f.Name, value); err != nil {
				return err
			}
			s.values[f.Name] = value
			res, err := s.fields.Blur(ctx, f.Name)
			if err != nil {
				return err
			}
			if res.Valid {
				break
			}
		}
	}
	return nil
}

func (s *Surface) prompt(ctx context.Context, f forms.Field) (string, error) {
	msg := f.Label
	if f.Required {
		msg += " *"
	}
	cfg := InputConfig{Message: msg, Default: s.values[f.Name], Help: f.Help}
	if cfg.Help == "" {
		cfg.Help = f.Placeholder
	}
	if f.Type == forms.FieldTextarea {
		return s.driver.TextArea(ctx, cfg)
	}
	return s.driver.Input(ctx, cfg)
}

func (s *Surface) act(ctx context.Context) error {
	var options []string
	if s.def.Before(s.active) != 0 {
		options = append(options, ActionPrevious)
	}
	if s.def.After(s.active) != 0 {
		options = append(options, ActionNext)
	} else {
		options = append(options, ActionSubmit)
	}

	idx, err := s.driver.Select(ctx, SelectConfig{Message: "Continue", Options: options})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(options) {
		return fmt.Errorf("tui: invalid choice %d", idx)
	}
	switch options[idx] {
	case ActionPrevious:
		return s.nav.Previous(ctx, 0)
	case ActionNext:
		return s.nav.Next(ctx, 0)
	default:
		return s.nav.Submit(ctx)
	}
}

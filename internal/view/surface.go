// Package view renders wizard sessions as HTML. Surface records what a
// wizard.Controller displayed and Render turns it into markup for full
// page loads and live channel updates.
package view

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"sync"

	"github.com/gabrielmiguelok/formwizard/pkg/core"
	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// CSRFField is the hidden form field carrying the CSRF token.
const CSRFField = "_csrf"

// Surface is an in-memory wizard.Surface. It is safe for concurrent use.
type Surface struct {
	def *wizard.Definition

	mu        sync.RWMutex
	active    int
	markers   []wizard.Marker
	values    map[string]string
	errors    map[string]string
	success   bool
	scrollTop bool
}

var _ wizard.Surface = (*Surface)(nil)

// NewSurface creates a surface for def. Nothing is active until the
// controller shows a step.
func NewSurface(def *wizard.Definition) *Surface {
	return &Surface{
		def:     def,
		markers: wizard.Progress(def, 0),
		values:  make(map[string]string),
		errors:  make(map[string]string),
	}
}

func (s *Surface) ShowStep(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = n
}

func (s *Surface) SetProgress(markers []wizard.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append([]wizard.Marker(nil), markers...)
}

// ScrollToTop flags the next render so the client scrolls up.
func (s *Surface) ScrollToTop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollTop = true
}

func (s *Surface) SetFieldValue(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

func (s *Surface) SetFieldError(name, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		delete(s.errors, name)
		return
	}
	s.errors[name] = message
}

func (s *Surface) ShowSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.success = true
}

// Active returns the displayed step.
func (s *Surface) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Error returns the message displayed for a field.
func (s *Surface) Error(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors[name]
}

// Succeeded reports whether the success panel is shown.
func (s *Surface) Succeeded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.success
}

type fieldModel struct {
	forms.Field
	Value string
	Error string
}

type stepModel struct {
	Number int
	Title  string
	Active bool
	Prev   int
	Next   int
	Fields []fieldModel
}

type wizardModel struct {
	Title     string
	Markers   []wizard.Marker
	Steps     []stepModel
	Success   bool
	ScrollTop bool
	CSRFField string
	CSRFToken string
}

// snapshot builds the template model and consumes the pending scroll.
func (s *Surface) snapshot(csrfToken string) wizardModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := wizardModel{
		Title:     s.def.Title,
		Markers:   append([]wizard.Marker(nil), s.markers...),
		Success:   s.success,
		ScrollTop: s.scrollTop,
		CSRFField: CSRFField,
		CSRFToken: csrfToken,
	}
	s.scrollTop = false

	for _, step := range s.def.Steps {
		sm := stepModel{
			Number: step.Number,
			Title:  step.Title,
			Active: step.Number == s.active,
			Prev:   s.def.Before(step.Number),
			Next:   s.def.After(step.Number),
		}
		for _, f := range step.Fields {
			sm.Fields = append(sm.Fields, fieldModel{
				Field: f,
				Value: s.values[f.Name],
				Error: s.errors[f.Name],
			})
		}
		m.Steps = append(m.Steps, sm)
	}
	return m
}

// Render writes the wizard fragment. The CSRF token for the fallback form
// is taken from ctx.
func (s *Surface) Render(ctx context.Context, w io.Writer) error {
	if err := templates.ExecuteTemplate(w, "wizard", s.snapshot(core.CSRFTokenFromContext(ctx))); err != nil {
		return fmt.Errorf("render wizard: %w", err)
	}
	return nil
}

// Page is the document shell around a rendered fragment.
type Page struct {
	Title      string
	CSRFToken  string
	ScriptPath string
	LivePath   string
	Body       template.HTML
}

// RenderPage writes a complete HTML document.
func RenderPage(w io.Writer, p Page) error {
	if p.ScriptPath == "" {
		p.ScriptPath = "/assets/wizard.js"
	}
	if p.LivePath == "" {
		p.LivePath = "/live"
	}
	if err := templates.ExecuteTemplate(w, "page", p); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

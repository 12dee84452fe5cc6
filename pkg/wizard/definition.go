package wizard

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gabrielmiguelok/formwizard/pkg/forms"
)

//go:embed admission.yaml
var admissionYAML []byte

// ErrInvalidDefinition is returned for definitions that cannot drive a wizard.
var ErrInvalidDefinition = errors.New("invalid wizard definition")

// Step is one screen of the wizard.
type Step struct {
	Number int           `yaml:"number" json:"number"`
	Title  string        `yaml:"title" json:"title"`
	Fields []forms.Field `yaml:"fields" json:"fields"`
}

// Form returns the step's fields as a form.
func (s Step) Form() *forms.Form {
	return forms.NewForm(fmt.Sprintf("step-%d", s.Number), s.Fields...)
}

// Definition is the wizard layout: steps in display order.
type Definition struct {
	Title string `yaml:"title" json:"title"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// ParseDefinition decodes and validates a YAML definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	for i := range def.Steps {
		for j := range def.Steps[i].Fields {
			if def.Steps[i].Fields[j].Type == "" {
				def.Steps[i].Fields[j].Type = forms.FieldText
			}
		}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinition reads a YAML definition from disk.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return ParseDefinition(data)
}

// DefaultDefinition returns the built-in admission form.
func DefaultDefinition() *Definition {
	def, err := ParseDefinition(admissionYAML)
	if err != nil {
		panic(fmt.Sprintf("wizard: embedded admission definition: %v", err))
	}
	return def
}

// Validate checks that steps are non-empty, numbered in strictly increasing
// positive order, and that field names are unique across the wizard.
func (d *Definition) Validate() error {
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidDefinition)
	}
	seen := make(map[string]int)
	prev := 0
	for _, s := range d.Steps {
		if s.Number <= prev {
			return fmt.Errorf("%w: step %d must be positive and greater than %d", ErrInvalidDefinition, s.Number, prev)
		}
		prev = s.Number
		for _, f := range s.Fields {
			if f.Name == "" {
				return fmt.Errorf("%w: step %d has a field without a name", ErrInvalidDefinition, s.Number)
			}
			if !f.Type.Valid() {
				return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidDefinition, f.Name, f.Type)
			}
			if other, dup := seen[f.Name]; dup {
				return fmt.Errorf("%w: field %q appears in steps %d and %d", ErrInvalidDefinition, f.Name, other, s.Number)
			}
			seen[f.Name] = s.Number
		}
	}
	return nil
}

// Step returns the step numbered n.
func (d *Definition) Step(n int) (Step, bool) {
	if i := d.index(n); i >= 0 {
		return d.Steps[i], true
	}
	return Step{}, false
}

// HasStep reports whether a step numbered n exists.
func (d *Definition) HasStep(n int) bool {
	return d.index(n) >= 0
}

func (d *Definition) index(n int) int {
	for i, s := range d.Steps {
		if s.Number == n {
			return i
		}
	}
	return -1
}

// First returns the first step number.
func (d *Definition) First() int {
	return d.Steps[0].Number
}

// Last returns the final step number.
func (d *Definition) Last() int {
	return d.Steps[len(d.Steps)-1].Number
}

// After returns the step following n, or 0 when n is last or unknown.
func (d *Definition) After(n int) int {
	i := d.index(n)
	if i < 0 || i == len(d.Steps)-1 {
		return 0
	}
	return d.Steps[i+1].Number
}

// Before returns the step preceding n, or 0 when n is first or unknown.
func (d *Definition) Before(n int) int {
	i := d.index(n)
	if i <= 0 {
		return 0
	}
	return d.Steps[i-1].Number
}

// Field finds a field by name and returns it with its step number.
func (d *Definition) Field(name string) (forms.Field, int, bool) {
	for _, s := range d.Steps {
		for _, f := range s.Fields {
			if f.Name == name {
				return f, s.Number, true
			}
		}
	}
	return forms.Field{}, 0, false
}

// FieldNames lists every field name in display order.
func (d *Definition) FieldNames() []string {
	var names []string
	for _, s := range d.Steps {
		for _, f := range s.Fields {
			names = append(names, f.Name)
		}
	}
	return names
}

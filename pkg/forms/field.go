package forms

import (
	"fmt"
	"strings"
)

// FieldType identifies the type of form field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldTel      FieldType = "tel"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldTextarea FieldType = "textarea"
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldEmail, FieldTel, FieldNumber, FieldDate, FieldTextarea:
		return true
	default:
		return false
	}
}

// UnmarshalText normalizes and checks the type when decoding definitions.
func (t *FieldType) UnmarshalText(b []byte) error {
	ft := FieldType(strings.ToLower(strings.TrimSpace(string(b))))
	if ft == "" {
		ft = FieldText
	}
	if !ft.Valid() {
		return fmt.Errorf("unknown field type %q", string(b))
	}
	*t = ft
	return nil
}

// Field describes one input of a form.
type Field struct {
	// Name is the field name (used as the FormData key).
	Name string `yaml:"name" json:"name"`

	// Type is the input type.
	Type FieldType `yaml:"type" json:"type"`

	// Label is the display label.
	Label string `yaml:"label" json:"label"`

	// Placeholder is the placeholder text.
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`

	// Required marks the field as mandatory.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Help is shown below the field.
	Help string `yaml:"help,omitempty" json:"help,omitempty"`
}

// Package forms provides field definitions and rule-based validation for
// wizard forms.
package forms

import (
	"encoding/json"
	"sort"
)

// Data maps field names to their last entered value.
type Data map[string]string

// Clone returns a copy of d. A nil Data clones to an empty map.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (d Data) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON always emits an object, never null.
func (d Data) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(d))
}

// Form is an ordered group of fields validated together.
type Form struct {
	Name   string
	Fields []Field
}

// NewForm creates a new form.
func NewForm(name string, fields ...Field) *Form {
	return &Form{Name: name, Fields: fields}
}

// Validate validates every field against values. It returns one result per
// field, in field order, and whether all of them passed.
func (f *Form) Validate(v *Validator, values Data) ([]Result, bool) {
	results := make([]Result, 0, len(f.Fields))
	ok := true
	for _, field := range f.Fields {
		res := v.Validate(field, values[field.Name])
		if !res.Valid {
			ok = false
		}
		results = append(results, res)
	}
	return results, ok
}

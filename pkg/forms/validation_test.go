package forms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func field(name string, typ FieldType, required bool) Field {
	return Field{Name: name, Type: typ, Label: name, Required: required}
}

func newTestValidator() *Validator {
	return NewValidator(WithClock(func() time.Time { return fixedNow }))
}

func TestValidate_Required(t *testing.T) {
	v := newTestValidator()
	fields := []Field{
		field("firstName", FieldText, true),
		field("email", FieldEmail, true),
		field("mobilePhone", FieldTel, true),
		field("graduationYear", FieldNumber, true),
		field("dob", FieldDate, true),
		field("statement", FieldTextarea, true),
	}

	for _, f := range fields {
		for _, value := range []string{"", "   ", "\t\n"} {
			res := v.Validate(f, value)
			assert.False(t, res.Valid, "%s=%q", f.Name, value)
			assert.Equal(t, MsgRequired, res.Message, "%s=%q", f.Name, value)
			assert.Equal(t, "required", res.Rule)
		}
	}
}

func TestValidate_OptionalEmptyIsValid(t *testing.T) {
	v := newTestValidator()
	res := v.Validate(field("middleName", FieldText, false), "")
	assert.True(t, res.Valid)
	assert.Empty(t, res.Message)
	assert.Empty(t, res.Rule)
}

func TestValidate_NameLikeFields(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name  string
		field Field
		value string
		valid bool
	}{
		{"plain", field("firstName", FieldText, false), "Ada", true},
		{"apostrophe", field("lastName", FieldText, false), "O'Brien", true},
		{"hyphen and space", field("lastName", FieldText, false), "Smith-Jones de la Cruz", true},
		{"digits", field("firstName", FieldText, false), "Ada2", false},
		{"symbols", field("kinName", FieldText, false), "<b>", false},
		{"relationship", field("kinRelationship", FieldText, false), "Mother", true},
		{"relationship digits", field("kinRelationship", FieldText, false), "No. 1", false},
		{"trimmed", field("firstName", FieldText, false), "  Ada  ", true},
		{"textarea not name-like", field("schoolName", FieldTextarea, false), "St. Mary's #2", true},
		{"other text field", field("city", FieldText, false), "Area 51", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.field, tt.value)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.Equal(t, MsgName, res.Message)
			}
		})
	}
}

func TestValidate_Email(t *testing.T) {
	v := newTestValidator()
	f := field("email", FieldEmail, true)

	assert.True(t, v.Validate(f, "ada@example.com").Valid)
	assert.True(t, v.Validate(f, "a.b+c@sub.example.org").Valid)

	for _, bad := range []string{"ada", "ada@example", "ada @example.com", "@example.com", "ada@@example.com"} {
		res := v.Validate(f, bad)
		assert.False(t, res.Valid, bad)
		assert.Equal(t, MsgEmail, res.Message, bad)
	}
}

func TestValidate_Phone(t *testing.T) {
	v := newTestValidator()
	f := field("mobilePhone", FieldTel, true)

	t.Run("formatted number passes both checks", func(t *testing.T) {
		res := v.Validate(f, "(555) 123-4567")
		assert.True(t, res.Valid)
		assert.Equal(t, "phone", res.Rule)
	})

	t.Run("international prefix", func(t *testing.T) {
		assert.True(t, v.Validate(f, "+1 555 123 4567").Valid)
	})

	t.Run("too few digits", func(t *testing.T) {
		res := v.Validate(f, "555-1234")
		assert.False(t, res.Valid)
		assert.Equal(t, MsgPhoneLength, res.Message)
	})

	t.Run("bad characters with enough digits", func(t *testing.T) {
		res := v.Validate(f, "555.123.4567")
		assert.False(t, res.Valid)
		assert.Equal(t, MsgPhone, res.Message)
	})

	t.Run("both checks fail reports digit count", func(t *testing.T) {
		res := v.Validate(f, "call me")
		assert.False(t, res.Valid)
		assert.Equal(t, MsgPhoneLength, res.Message)
	})

	t.Run("digit count below ten is always invalid", func(t *testing.T) {
		for _, value := range []string{"1", "123456789", "(12) 345-6789", "+123 456 789"} {
			assert.False(t, v.Validate(f, value).Valid, value)
		}
	})
}

func TestValidate_GraduationYear(t *testing.T) {
	v := newTestValidator()
	f := field("graduationYear", FieldNumber, true)

	tests := []struct {
		value string
		valid bool
	}{
		{"1949", false},
		{"1950", true},
		{"2000", true},
		{"2025", true},
		{"2026", false},
		{"abc", false},
		{"19.5", false},
	}
	for _, tt := range tests {
		res := v.Validate(f, tt.value)
		assert.Equal(t, tt.valid, res.Valid, tt.value)
		if !tt.valid {
			assert.Equal(t, MsgYear, res.Message, tt.value)
		}
	}
}

func TestValidate_DateOfBirth(t *testing.T) {
	v := newTestValidator()
	f := field("dob", FieldDate, true)

	// Age is computed from calendar years only.
	tests := []struct {
		value string
		valid bool
	}{
		{"2010-12-31", true},  // 16
		{"2011-01-01", false}, // 15
		{"1926-01-01", true},  // 100
		{"1925-12-31", false}, // 101
		{"2000-06-15", true},
		{"not a date", false},
	}
	for _, tt := range tests {
		res := v.Validate(f, tt.value)
		assert.Equal(t, tt.valid, res.Valid, tt.value)
		if !tt.valid {
			assert.Equal(t, MsgAge, res.Message, tt.value)
		}
	}
}

func TestValidate_RequiredWinsOverPattern(t *testing.T) {
	v := newTestValidator()
	res := v.Validate(field("kinPhone", FieldTel, true), " ")
	assert.Equal(t, MsgRequired, res.Message)
}

func TestValidate_CustomRules(t *testing.T) {
	v := NewValidator(WithRules(Rule{
		Name:    "never",
		Applies: func(Field, string) bool { return true },
		Checks: []Check{{
			Fails:   func(string, time.Time) bool { return true },
			Message: "nope",
		}},
	}))
	res := v.Validate(field("anything", FieldText, false), "x")
	assert.False(t, res.Valid)
	assert.Equal(t, "nope", res.Message)
	require.Len(t, v.Rules(), 1)
}

func TestForm_Validate(t *testing.T) {
	v := newTestValidator()
	form := NewForm("personal",
		field("firstName", FieldText, true),
		field("lastName", FieldText, true),
	)

	results, ok := form.Validate(v, Data{"firstName": "Ada"})
	assert.False(t, ok)
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.Equal(t, MsgRequired, results[1].Message)

	_, ok = form.Validate(v, Data{"firstName": "Ada", "lastName": "Lovelace"})
	assert.True(t, ok)
}

func TestValidate_BrowserWhitespace(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name  string
		f     Field
		value string
		valid bool
	}{
		{"nbsp in name", field("firstName", FieldText, true), "Mary\u00a0Ann", true},
		{"ideographic space in name", field("lastName", FieldText, true), "Li\u3000Na", true},
		{"nbsp in email", field("email", FieldEmail, true), "ada\u00a0x@example.com", false},
		{"nbsp in phone", field("mobilePhone", FieldTel, true), "555\u00a0123\u00a04567", true},
		{"nbsp only is empty", field("firstName", FieldText, true), "\u00a0\ufeff", false},
		{"trimmed bom", field("firstName", FieldText, true), "\ufeffAda", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, v.Validate(tt.f, tt.value).Valid)
		})
	}
}

func TestFieldType_UnmarshalText(t *testing.T) {
	var ft FieldType
	require.NoError(t, ft.UnmarshalText([]byte(" Email ")))
	assert.Equal(t, FieldEmail, ft)

	require.NoError(t, ft.UnmarshalText([]byte("")))
	assert.Equal(t, FieldText, ft)

	assert.Error(t, ft.UnmarshalText([]byte("checkbox")))
}

package forms

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Validation messages shown next to invalid fields.
const (
	MsgRequired    = "This field is required"
	MsgName        = "Only letters, spaces, hyphens, and apostrophes are allowed"
	MsgEmail       = "Please enter a valid email address"
	MsgPhone       = "Please enter a valid phone number"
	MsgPhoneLength = "Phone number must be at least 10 digits"
	MsgYear        = "Please enter a valid year between 1950 and 2025"
	MsgAge         = "Applicant must be between 16 and 100 years old"
)

// Bounds used by the default rules.
const (
	MinGraduationYear = 1950
	MaxGraduationYear = 2025
	MinApplicantAge   = 16
	MaxApplicantAge   = 100
	MinPhoneDigits    = 10
)

// space matches what \s matches in browser regexes. RE2's \s is ASCII only.
const space = `\s\x0B\p{Zs}\x{FEFF}\x{2028}\x{2029}`

var (
	namePattern  = regexp.MustCompile(`^[a-zA-Z` + space + `'-]+$`)
	emailPattern = regexp.MustCompile(`^[^` + space + `@]+@[^` + space + `@]+\.[^` + space + `@]+$`)
	phonePattern = regexp.MustCompile(`^[\d` + space + `\-\+\(\)]+$`)
)

// isSpace is the whitespace set trimmed before validation, the same set
// space matches.
func isSpace(r rune) bool {
	return (r >= '\t' && r <= '\r') || r == '\uFEFF' || r == '\u2028' || r == '\u2029' || unicode.In(r, unicode.Zs)
}

// Result is the outcome of validating a single field.
type Result struct {
	Field   string
	Valid   bool
	Message string
	// Rule names the rule that produced the result, empty when no rule applied.
	Rule string
}

// Check is one predicate inside a rule.
type Check struct {
	// Fails reports whether value violates the check.
	Fails   func(value string, now time.Time) bool
	Message string
}

// Rule is a declarative validation record. A rule applies to a field when
// Applies returns true; then every check runs and the last failing check's
// message is reported.
type Rule struct {
	Name    string
	Applies func(f Field, value string) bool
	Checks  []Check
}

// Validator evaluates an ordered rule list. Only the first applicable rule is
// evaluated for a field.
type Validator struct {
	rules []Rule
	now   func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithClock overrides the time source used by date rules.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

// WithRules replaces the default rule list.
func WithRules(rules ...Rule) ValidatorOption {
	return func(v *Validator) {
		v.rules = rules
	}
}

// NewValidator creates a validator with the default rule list.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		rules: DefaultRules(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Rules returns a copy of the configured rules.
func (v *Validator) Rules() []Rule {
	out := make([]Rule, len(v.rules))
	copy(out, v.rules)
	return out
}

// Validate checks a single field value.
func (v *Validator) Validate(f Field, raw string) Result {
	value := strings.TrimFunc(raw, isSpace)
	now := v.now()

	for _, rule := range v.rules {
		if !rule.Applies(f, value) {
			continue
		}
		res := Result{Field: f.Name, Valid: true, Rule: rule.Name}
		for _, c := range rule.Checks {
			if c.Fails(value, now) {
				res.Valid = false
				res.Message = c.Message
			}
		}
		return res
	}

	return Result{Field: f.Name, Valid: true}
}

// DefaultRules returns the admission form rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		RequiredRule(),
		NameRule(),
		EmailRule(),
		PhoneRule(),
		GraduationYearRule(),
		DateOfBirthRule(),
	}
}

// RequiredRule fails required fields with an empty value.
func RequiredRule() Rule {
	return Rule{
		Name: "required",
		Applies: func(f Field, value string) bool {
			return f.Required && value == ""
		},
		Checks: []Check{{
			Fails:   func(string, time.Time) bool { return true },
			Message: MsgRequired,
		}},
	}
}

// NameRule restricts name-like text fields to letters, spaces, hyphens and
// apostrophes.
func NameRule() Rule {
	return Rule{
		Name: "name",
		Applies: func(f Field, value string) bool {
			return value != "" && IsNameLike(f)
		},
		Checks: []Check{{
			Fails:   func(value string, _ time.Time) bool { return !namePattern.MatchString(value) },
			Message: MsgName,
		}},
	}
}

// EmailRule checks the local@domain.tld shape.
func EmailRule() Rule {
	return Rule{
		Name: "email",
		Applies: func(f Field, value string) bool {
			return value != "" && f.Type == FieldEmail
		},
		Checks: []Check{{
			Fails:   func(value string, _ time.Time) bool { return !emailPattern.MatchString(value) },
			Message: MsgEmail,
		}},
	}
}

// PhoneRule applies the character-set and digit-count checks. Both checks
// always run; when both fail the digit-count message is reported.
func PhoneRule() Rule {
	return Rule{
		Name: "phone",
		Applies: func(f Field, value string) bool {
			return value != "" && IsPhoneLike(f)
		},
		Checks: []Check{
			{
				Fails:   func(value string, _ time.Time) bool { return !phonePattern.MatchString(value) },
				Message: MsgPhone,
			},
			{
				Fails:   func(value string, _ time.Time) bool { return CountDigits(value) < MinPhoneDigits },
				Message: MsgPhoneLength,
			},
		},
	}
}

// GraduationYearRule requires an integer year in [1950, 2025].
func GraduationYearRule() Rule {
	return Rule{
		Name: "graduation-year",
		Applies: func(f Field, value string) bool {
			return value != "" && f.Name == "graduationYear"
		},
		Checks: []Check{{
			Fails: func(value string, _ time.Time) bool {
				year, err := strconv.Atoi(value)
				if err != nil {
					return true
				}
				return year < MinGraduationYear || year > MaxGraduationYear
			},
			Message: MsgYear,
		}},
	}
}

// DateOfBirthRule requires an age between 16 and 100. Age is the difference
// in calendar years, not adjusted for month and day.
func DateOfBirthRule() Rule {
	return Rule{
		Name: "date-of-birth",
		Applies: func(f Field, value string) bool {
			return value != "" && f.Name == "dob"
		},
		Checks: []Check{{
			Fails: func(value string, now time.Time) bool {
				born, err := ParseDate(value)
				if err != nil {
					return true
				}
				age := AgeInYears(born, now)
				return age < MinApplicantAge || age > MaxApplicantAge
			},
			Message: MsgAge,
		}},
	}
}

// IsNameLike reports whether the field holds a person name or relationship.
func IsNameLike(f Field) bool {
	return f.Type == FieldText && (strings.Contains(f.Name, "Name") || f.Name == "kinRelationship")
}

// IsPhoneLike reports whether the field holds a phone number.
func IsPhoneLike(f Field) bool {
	return strings.Contains(f.Name, "Phone")
}

// CountDigits returns the number of decimal digits in s.
func CountDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006"}

// ParseDate parses the date formats produced by date inputs.
func ParseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// AgeInYears returns now.Year() - born.Year().
func AgeInYears(born, now time.Time) int {
	return now.Year() - born.Year()
}

package security

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy     *bluemonday.Policy
	strictPolicyOnce sync.Once
)

func textPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// SanitizeText strips all markup from user input and returns plain text.
// Entities produced by the policy are decoded again, so "O'Brien" survives
// unchanged while "<b>x</b>" becomes "x".
func SanitizeText(input string) string {
	if !strings.ContainsAny(input, "<>&") {
		return input
	}
	return html.UnescapeString(textPolicy().Sanitize(input))
}

// SanitizeValues applies SanitizeText to every value.
func SanitizeValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = SanitizeText(v)
	}
	return out
}

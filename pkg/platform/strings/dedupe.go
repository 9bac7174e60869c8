// Package strings provides string helpers shared by readers and handlers.
package strings

import (
	"strings"
	"unicode"
)

// DedupeAndTrim removes duplicates and blanks from values, trimming each element.
// Order of first appearance is preserved.
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// FoldKey reduces a column label to a comparison key: lower case, with spaces,
// underscores, hyphens and dots removed, and a leading byte-order mark dropped.
//
//	FoldKey(" ID_Number ") // "idnumber"
func FoldKey(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r), r == '_', r == '-', r == '.':
			continue
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

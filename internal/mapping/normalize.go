package mapping

import (
	"strings"
	"unicode"
)

// Normalize reduces a field name to its comparison key: case-folded with
// every non-alphanumeric rune removed. "Short Description" and
// "short_description" normalize to the same key. The result of normalizing
// twice equals normalizing once.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

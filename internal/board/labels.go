package board

import (
	"strings"
	"unicode"
)

// NormalizeLabel lowercases label, collapses whitespace runs to a single
// hyphen and strips leading and trailing hyphens.
func NormalizeLabel(label string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.ToLower(label) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte('-')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}

// NormalizeLabels normalizes each label, dropping empties and duplicates
// while keeping first-seen order.
func NormalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		n := NormalizeLabel(l)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

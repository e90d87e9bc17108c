// File path: internal/docstore/slug.go
package docstore

import (
	"strings"
	"unicode"
)

// Slugify derives a filesystem- and URL-safe identifier. The same function
// covers project slugs and chapter filenames so every stored name round-trips
// through a URL path segment.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128:
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	if len(out) > 80 {
		out = strings.Trim(out[:80], "-")
	}
	return out
}

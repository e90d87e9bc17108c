// File path: internal/docstore/frontmatter.go
package docstore

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type frontmatter struct {
	Title string `yaml:"title"`
	Order int    `yaml:"order"`
}

func renderFrontmatter(title string, order int) string {
	var b strings.Builder
	b.WriteString("---\n")
	encoded, err := yaml.Marshal(frontmatter{Title: title, Order: order})
	if err != nil {
		fmt.Fprintf(&b, "title: %q\norder: %d\n", title, order)
	} else {
		b.Write(encoded)
	}
	b.WriteString("---\n\n")
	return b.String()
}

// parseFrontmatter splits a stored chapter into its metadata and markdown
// body. Files without a frontmatter block come back with zero metadata and
// the full content as body.
func parseFrontmatter(raw string) (title string, order int, body string) {
	if !strings.HasPrefix(raw, "---\n") {
		return "", 0, raw
	}
	rest := raw[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", 0, raw
	}
	var meta frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return "", 0, raw
	}
	body = rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, "\n")
	return meta.Title, meta.Order, body
}

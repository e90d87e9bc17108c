// File path: internal/budget/truncate.go
package budget

import (
	"fmt"
	"strings"
)

// TruncateFileContent bounds content to maxLines, keeping roughly the first
// 80% and last 20% of the budget with an explicit omission marker between.
// The head keeps imports and definitions, the tail keeps exports and usage.
// Output never exceeds maxLines lines, so re-applying with the same bound is
// the identity.
func TruncateFileContent(content string, maxLines int) string {
	if maxLines <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) <= maxLines {
		return content
	}
	if maxLines < 3 {
		return strings.Join(lines[:maxLines], "\n")
	}
	head := maxLines * 8 / 10
	if head < 1 {
		head = 1
	}
	tail := maxLines - head - 1
	if tail < 1 {
		tail = 1
		head = maxLines - 2
	}
	omitted := len(lines) - head - tail
	marker := fmt.Sprintf("... (%d lines omitted) ...", omitted)
	out := make([]string, 0, maxLines)
	out = append(out, lines[:head]...)
	out = append(out, marker)
	out = append(out, lines[len(lines)-tail:]...)
	return strings.Join(out, "\n")
}

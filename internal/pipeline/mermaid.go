// File path: internal/pipeline/mermaid.go
package pipeline

import (
	"fmt"
	"strings"

	"github.com/showfolio/scribe/internal/prompt"
)

// Mermaid rendering is best effort: when the graph cannot be rendered the
// caller falls back to a plain text relationship list.

// mermaidFlowchart renders the abstraction relationship graph.
func mermaidFlowchart(abstractions []prompt.Abstraction, edges []prompt.Relationship) (string, bool) {
	if len(abstractions) == 0 || len(edges) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("```mermaid\nflowchart TD\n")
	for _, a := range abstractions {
		fmt.Fprintf(&b, "    A%d[%q]\n", a.Index, mermaidLabel(a.Name))
	}
	for _, edge := range edges {
		label := mermaidLabel(edge.Label)
		if label == "" {
			fmt.Fprintf(&b, "    A%d --> A%d\n", edge.FromIndex, edge.ToIndex)
			continue
		}
		fmt.Fprintf(&b, "    A%d -->|%s| A%d\n", edge.FromIndex, label, edge.ToIndex)
	}
	b.WriteString("```\n")
	return b.String(), true
}

// relationshipText is the downgrade path when a diagram is not available.
func relationshipText(abstractions []prompt.Abstraction, edges []prompt.Relationship) string {
	var b strings.Builder
	for _, edge := range edges {
		from := nameFor(abstractions, edge.FromIndex)
		to := nameFor(abstractions, edge.ToIndex)
		fmt.Fprintf(&b, "- %s %s %s\n", from, edge.Label, to)
	}
	return b.String()
}

func nameFor(abstractions []prompt.Abstraction, index int) string {
	for _, a := range abstractions {
		if a.Index == index {
			return a.Name
		}
	}
	return fmt.Sprintf("#%d", index)
}

// Mermaid labels cannot carry pipes, brackets or quotes.
func mermaidLabel(s string) string {
	replacer := strings.NewReplacer(
		"|", "/", "[", "(", "]", ")", "{", "(", "}", ")", "\"", "'", "\n", " ",
	)
	return strings.TrimSpace(replacer.Replace(s))
}

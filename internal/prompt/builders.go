// File path: internal/prompt/builders.go
package prompt

import (
	"fmt"
	"strings"

	"github.com/showfolio/scribe/internal/budget"
)

// Builders render the four pipeline prompts. Each is a pure function of its
// params so identical inputs reuse the gateway's response cache.

// AbstractionsParams feeds the first stage: identify architectural units.
type AbstractionsParams struct {
	ProjectName     string
	FileContext     string
	FileInfo        []budget.FileRef
	MaxAbstractions int
}

// Abstractions builds the stage-one prompt. The response directive asks for
// a fenced YAML list of name/description/file_indices entries.
func Abstractions(p AbstractionsParams) string {
	max := p.MaxAbstractions
	if max <= 0 {
		max = 10
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing the codebase of the project %q.\n\n", p.ProjectName)
	b.WriteString("Codebase context:\n\n")
	b.WriteString(p.FileContext)
	b.WriteString("\n\nFile index reference:\n")
	b.WriteString(formatFileListing(p.FileInfo))
	fmt.Fprintf(&b, "\nIdentify the %d or fewer core abstractions (components, subsystems, key concepts) that best explain this codebase's architecture.\n", max)
	b.WriteString(`For each abstraction provide:
- name: a short noun phrase
- description: what it does and why it exists, around 100 words, beginner friendly
- file_indices: the indices of the files (from the reference above) that implement it

Respond with ONLY a fenced YAML block in exactly this shape:

` + "```yaml" + `
- name: Query Processor
  description: |
    Explains what the abstraction does in plain language.
  file_indices:
    - 0
    - 3
` + "```" + `
`)
	return b.String()
}

// RelationshipsParams feeds the second stage: map interactions between the
// abstractions identified in stage one.
type RelationshipsParams struct {
	ProjectName  string
	Abstractions []Abstraction
	FileContext  string
}

// Relationships builds the stage-two prompt.
func Relationships(p RelationshipsParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The project %q contains these abstractions:\n\n", p.ProjectName)
	b.WriteString(formatAbstractionListing(p.Abstractions))
	b.WriteString("\nRelevant code context:\n\n")
	b.WriteString(p.FileContext)
	b.WriteString(`

Write a short project summary (2-4 sentences), then list every meaningful directed relationship between abstractions. Every abstraction must appear in at least one relationship. Use abstraction indices from the list above and a label of a few words ("calls", "stores results in", "configures").

Respond with ONLY a fenced YAML block in exactly this shape:

` + "```yaml" + `
summary: |
  One paragraph describing the project.
relationships:
  - from_abstraction: 0
    to_abstraction: 1
    label: "drives"
` + "```" + `
`)
	return b.String()
}

// ChapterOrderParams feeds the third stage: choose the narrative order.
type ChapterOrderParams struct {
	ProjectName  string
	Abstractions []Abstraction
	Summary      string
}

// ChapterOrder builds the stage-three prompt. The plan must be a permutation
// of every abstraction index.
func ChapterOrder(p ChapterOrderParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project %q summary:\n%s\n\nAbstractions:\n\n", p.ProjectName, strings.TrimSpace(p.Summary))
	b.WriteString(formatAbstractionListing(p.Abstractions))
	b.WriteString(`
Decide the best order to explain these abstractions in a tutorial: start from the most user-facing or entry-point concept and work toward supporting detail. Include EVERY abstraction index exactly once.

Respond with ONLY a fenced YAML block listing the indices in order:

` + "```yaml" + `
- 2
- 0
- 1
` + "```" + `
`)
	return b.String()
}

// ChapterRef summarizes an already-written chapter so later chapters can
// cross-reference it.
type ChapterRef struct {
	Order int
	Title string
}

// ChapterContentParams feeds the per-chapter writing stage.
type ChapterContentParams struct {
	ProjectName   string
	Abstraction   Abstraction
	ChapterNumber int
	TotalChapters int
	FileContext   string
	Relationships []Relationship
	Abstractions  []Abstraction
	Previous      []ChapterRef
}

// ChapterContent builds a stage-four prompt for a single chapter. Output is
// raw markdown, not a fenced block.
func ChapterContent(p ChapterContentParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write chapter %d of %d of a technical walkthrough of the project %q.\n\n", p.ChapterNumber, p.TotalChapters, p.ProjectName)
	fmt.Fprintf(&b, "This chapter covers the abstraction %q:\n%s\n\n", p.Abstraction.Name, strings.TrimSpace(p.Abstraction.Description))
	if len(p.Previous) > 0 {
		b.WriteString("Chapters already written:\n")
		for _, ref := range p.Previous {
			fmt.Fprintf(&b, "- Chapter %d: %s\n", ref.Order, ref.Title)
		}
		b.WriteString("\n")
	}
	if edges := relationshipsTouching(p.Relationships, p.Abstraction.Index); len(edges) > 0 {
		b.WriteString("How this abstraction relates to the others:\n")
		for _, edge := range edges {
			from := abstractionName(p.Abstractions, edge.FromIndex)
			to := abstractionName(p.Abstractions, edge.ToIndex)
			fmt.Fprintf(&b, "- %s %s %s\n", from, edge.Label, to)
		}
		b.WriteString("\n")
	}
	b.WriteString("Relevant source files:\n\n")
	b.WriteString(p.FileContext)
	b.WriteString(`

Write the chapter in markdown. Requirements:
- Start with a level-1 heading containing the abstraction name.
- Explain the problem this abstraction solves before how it works.
- Quote short, focused code excerpts from the files above, each under 15 lines, and walk through them.
- Reference earlier chapters by title where relevant.
- End with a one-paragraph summary.
- Output ONLY the markdown content, no surrounding fences.
`)
	return b.String()
}

func formatFileListing(refs []budget.FileRef) string {
	var b strings.Builder
	for _, ref := range refs {
		fmt.Fprintf(&b, "- %d: %s\n", ref.Index, ref.Path)
	}
	return b.String()
}

func formatAbstractionListing(abstractions []Abstraction) string {
	var b strings.Builder
	for _, a := range abstractions {
		fmt.Fprintf(&b, "- %d: %s: %s\n", a.Index, a.Name, firstSentence(a.Description))
	}
	return b.String()
}

func firstSentence(s string) string {
	trimmed := strings.TrimSpace(s)
	if idx := strings.IndexAny(trimmed, ".\n"); idx > 0 {
		return trimmed[:idx+1]
	}
	return trimmed
}

func relationshipsTouching(edges []Relationship, index int) []Relationship {
	var out []Relationship
	for _, edge := range edges {
		if edge.FromIndex == index || edge.ToIndex == index {
			out = append(out, edge)
		}
	}
	return out
}

func abstractionName(abstractions []Abstraction, index int) string {
	for _, a := range abstractions {
		if a.Index == index {
			return a.Name
		}
	}
	return fmt.Sprintf("abstraction %d", index)
}

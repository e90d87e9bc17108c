// File path: internal/prompt/extract.go
package prompt

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtractYAMLBlock pulls the inner content of the first fenced yaml block in
// a raw model response. The second return is false when no block is present;
// retry decisions belong to the caller.
func ExtractYAMLBlock(response string) (string, bool) {
	return extractFencedBlock(response, "yaml")
}

// ExtractJSONBlock pulls the inner content of the first fenced json block.
func ExtractJSONBlock(response string) (string, bool) {
	return extractFencedBlock(response, "json")
}

func extractFencedBlock(response, kind string) (string, bool) {
	remaining := response
	for {
		start := strings.Index(remaining, "```")
		if start < 0 {
			return "", false
		}
		rest := remaining[start+3:]
		newline := strings.Index(rest, "\n")
		if newline < 0 {
			return "", false
		}
		lang := strings.ToLower(strings.TrimSpace(rest[:newline]))
		body := rest[newline+1:]
		end := strings.Index(body, "```")
		if end < 0 {
			return "", false
		}
		if lang == kind || (lang == "" && kind == "yaml") {
			return strings.TrimRight(body[:end], "\n"), true
		}
		remaining = body[end+3:]
	}
}

type abstractionYAML struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	FileIndices []yamlInt `yaml:"file_indices"`
}

// yamlInt tolerates index entries written as "0" or "0 # path/to/file".
type yamlInt int

func (i *yamlInt) UnmarshalYAML(node *yaml.Node) error {
	value := strings.TrimSpace(node.Value)
	if idx := strings.IndexAny(value, " #"); idx > 0 {
		value = value[:idx]
	}
	var parsed int
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return fmt.Errorf("invalid index %q", node.Value)
	}
	*i = yamlInt(parsed)
	return nil
}

// ParseAbstractions decodes the stage-one response into an indexed
// abstraction set, validating every file index against fileCount.
func ParseAbstractions(raw string, fileCount int) ([]Abstraction, error) {
	block, ok := ExtractYAMLBlock(raw)
	if !ok {
		return nil, fmt.Errorf("no fenced yaml block in response")
	}
	var decoded []abstractionYAML
	if err := yaml.Unmarshal([]byte(block), &decoded); err != nil {
		return nil, fmt.Errorf("decode abstractions: %w", err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("no abstractions in response")
	}
	out := make([]Abstraction, 0, len(decoded))
	for i, entry := range decoded {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("abstraction %d has no name", i)
		}
		indices := make([]int, 0, len(entry.FileIndices))
		for _, idx := range entry.FileIndices {
			n := int(idx)
			if n < 0 || n >= fileCount {
				return nil, fmt.Errorf("abstraction %q references file index %d out of range [0,%d)", name, n, fileCount)
			}
			indices = append(indices, n)
		}
		out = append(out, Abstraction{
			Index:       i,
			Name:        name,
			Description: strings.TrimSpace(entry.Description),
			FileIndices: indices,
		})
	}
	return out, nil
}

// ParseRelationships decodes the stage-two response, dropping edges that
// reference unknown abstraction indices.
func ParseRelationships(raw string, abstractionCount int) (*RelationshipSet, error) {
	block, ok := ExtractYAMLBlock(raw)
	if !ok {
		return nil, fmt.Errorf("no fenced yaml block in response")
	}
	var decoded struct {
		Summary       string `yaml:"summary"`
		Relationships []struct {
			From  yamlInt `yaml:"from_abstraction"`
			To    yamlInt `yaml:"to_abstraction"`
			Label string  `yaml:"label"`
		} `yaml:"relationships"`
	}
	if err := yaml.Unmarshal([]byte(block), &decoded); err != nil {
		return nil, fmt.Errorf("decode relationships: %w", err)
	}
	set := &RelationshipSet{Summary: strings.TrimSpace(decoded.Summary)}
	for _, edge := range decoded.Relationships {
		from, to := int(edge.From), int(edge.To)
		if from < 0 || from >= abstractionCount || to < 0 || to >= abstractionCount {
			continue
		}
		set.Relationships = append(set.Relationships, Relationship{
			FromIndex: from,
			ToIndex:   to,
			Label:     strings.TrimSpace(edge.Label),
		})
	}
	if len(set.Relationships) == 0 {
		return nil, fmt.Errorf("no valid relationships in response")
	}
	return set, nil
}

// ParseChapterOrder decodes the stage-three response and enforces the plan
// invariant: every abstraction index appears exactly once.
func ParseChapterOrder(raw string, abstractionCount int) ([]int, error) {
	block, ok := ExtractYAMLBlock(raw)
	if !ok {
		return nil, fmt.Errorf("no fenced yaml block in response")
	}
	var decoded []yamlInt
	if err := yaml.Unmarshal([]byte(block), &decoded); err != nil {
		return nil, fmt.Errorf("decode chapter order: %w", err)
	}
	plan := make([]int, 0, len(decoded))
	for _, idx := range decoded {
		plan = append(plan, int(idx))
	}
	if err := ValidateChapterOrder(plan, abstractionCount); err != nil {
		return nil, err
	}
	return plan, nil
}

// ValidateChapterOrder checks that plan is a permutation of [0, count).
func ValidateChapterOrder(plan []int, count int) error {
	if len(plan) != count {
		return fmt.Errorf("chapter plan has %d entries, want %d", len(plan), count)
	}
	seen := make(map[int]bool, count)
	for _, idx := range plan {
		if idx < 0 || idx >= count {
			return fmt.Errorf("chapter plan index %d out of range [0,%d)", idx, count)
		}
		if seen[idx] {
			return fmt.Errorf("chapter plan repeats index %d", idx)
		}
		seen[idx] = true
	}
	return nil
}

// FormatCorrection appends the bounded re-prompt instruction used after a
// parse failure.
func FormatCorrection(original string, parseErr error) string {
	return original + fmt.Sprintf("\n\nYour previous response could not be parsed (%v). You MUST respond with only a single fenced YAML block in exactly the requested shape.", parseErr)
}

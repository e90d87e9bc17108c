// File path: internal/prompt/types.go
package prompt

// Abstraction is one architectural unit identified by the model in the
// analysis stage. Later stages refer to it by index, never by pointer.
type Abstraction struct {
	Index       int    `json:"index" yaml:"index"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	FileIndices []int  `json:"file_indices" yaml:"file_indices"`
}

// Relationship is a directed edge between two abstractions; the full set
// forms the interaction graph rendered as a diagram.
type Relationship struct {
	FromIndex int    `json:"from_index" yaml:"from_abstraction"`
	ToIndex   int    `json:"to_index" yaml:"to_abstraction"`
	Label     string `json:"label" yaml:"label"`
}

// RelationshipSet is the mapping stage's full output: a project summary plus
// the edge list.
type RelationshipSet struct {
	Summary       string         `json:"summary" yaml:"summary"`
	Relationships []Relationship `json:"relationships" yaml:"relationships"`
}

// File path: internal/prompt/extract_test.go
package prompt

import (
	"strings"
	"testing"
)

func TestExtractYAMLBlock(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     string
		ok       bool
	}{
		{
			name:     "labeled block",
			response: "Here you go:\n```yaml\n- name: A\n```\nDone.",
			want:     "- name: A",
			ok:       true,
		},
		{
			name:     "bare fence counts as yaml",
			response: "```\n- name: B\n```",
			want:     "- name: B",
			ok:       true,
		},
		{
			name:     "skips non-yaml fences",
			response: "```python\nprint(1)\n```\n```yaml\nkey: v\n```",
			want:     "key: v",
			ok:       true,
		},
		{
			name:     "no block",
			response: "plain prose with no fences",
			ok:       false,
		},
		{
			name:     "unterminated fence",
			response: "```yaml\nkey: v",
			ok:       false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractYAMLBlock(tc.response)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractJSONBlock(t *testing.T) {
	got, ok := ExtractJSONBlock("```json\n{\"a\": 1}\n```")
	if !ok || got != `{"a": 1}` {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	if _, ok := ExtractJSONBlock("```yaml\na: 1\n```"); ok {
		t.Fatal("yaml fence should not satisfy a json extract")
	}
}

func TestParseAbstractions(t *testing.T) {
	raw := "```yaml\n" +
		"- name: Router\n" +
		"  description: Dispatches requests.\n" +
		"  file_indices:\n" +
		"    - 0 # main.go\n" +
		"    - 2\n" +
		"- name: Store\n" +
		"  description: Persists docs.\n" +
		"  file_indices: [1]\n" +
		"```"
	abs, err := ParseAbstractions(raw, 3)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(abs) != 2 {
		t.Fatalf("expected 2 abstractions, got %d", len(abs))
	}
	if abs[0].Index != 0 || abs[1].Index != 1 {
		t.Fatalf("indices not assigned positionally: %+v", abs)
	}
	if abs[0].Name != "Router" || len(abs[0].FileIndices) != 2 || abs[0].FileIndices[0] != 0 || abs[0].FileIndices[1] != 2 {
		t.Fatalf("unexpected first abstraction: %+v", abs[0])
	}
}

func TestParseAbstractionsRejectsOutOfRangeIndex(t *testing.T) {
	raw := "```yaml\n- name: Router\n  file_indices: [5]\n```"
	if _, err := ParseAbstractions(raw, 3); err == nil {
		t.Fatal("expected out-of-range index error")
	}
}

func TestParseAbstractionsRejectsMissingBlock(t *testing.T) {
	if _, err := ParseAbstractions("no fences here", 3); err == nil {
		t.Fatal("expected missing-block error")
	}
}

func TestParseRelationshipsDropsInvalidEdges(t *testing.T) {
	raw := "```yaml\n" +
		"summary: Two components.\n" +
		"relationships:\n" +
		"  - from_abstraction: 0\n" +
		"    to_abstraction: 1\n" +
		"    label: calls\n" +
		"  - from_abstraction: 0\n" +
		"    to_abstraction: 9\n" +
		"    label: phantom\n" +
		"```"
	set, err := ParseRelationships(raw, 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(set.Relationships) != 1 {
		t.Fatalf("expected phantom edge dropped, got %+v", set.Relationships)
	}
	if set.Relationships[0].Label != "calls" || set.Summary != "Two components." {
		t.Fatalf("unexpected set: %+v", set)
	}
}

func TestParseRelationshipsErrorsWhenNothingSurvives(t *testing.T) {
	raw := "```yaml\nsummary: x\nrelationships:\n  - from_abstraction: 7\n    to_abstraction: 8\n    label: ghost\n```"
	if _, err := ParseRelationships(raw, 2); err == nil {
		t.Fatal("expected error when every edge is out of range")
	}
}

func TestParseChapterOrderPermutation(t *testing.T) {
	plan, err := ParseChapterOrder("```yaml\n- 2\n- 0 # Store\n- 1\n```", 3)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(plan) != 3 || plan[0] != 2 || plan[1] != 0 || plan[2] != 1 {
		t.Fatalf("unexpected plan: %v", plan)
	}
}

func TestValidateChapterOrder(t *testing.T) {
	cases := []struct {
		name  string
		plan  []int
		count int
		ok    bool
	}{
		{name: "identity", plan: []int{0, 1, 2}, count: 3, ok: true},
		{name: "reordered", plan: []int{2, 0, 1}, count: 3, ok: true},
		{name: "short", plan: []int{0, 1}, count: 3},
		{name: "duplicate", plan: []int{0, 0, 1}, count: 3},
		{name: "out of range", plan: []int{0, 1, 3}, count: 3},
		{name: "negative", plan: []int{-1, 0, 1}, count: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateChapterOrder(tc.plan, tc.count)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFormatCorrectionAppendsInstruction(t *testing.T) {
	out := FormatCorrection("original prompt", errDummy{})
	if !strings.HasPrefix(out, "original prompt") {
		t.Fatal("correction must keep the original prompt")
	}
	if !strings.Contains(out, "single fenced YAML block") {
		t.Fatal("correction instruction missing")
	}
}

type errDummy struct{}

func (errDummy) Error() string { return "boom" }

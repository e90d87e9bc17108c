// File path: internal/budget/signature.go
package budget

import "strings"

// Line shapes that survive signature extraction. The goal is the structural
// skeleton of a file in any mainstream language: module boundaries, type
// declarations, and callable signatures, with bodies elided.
var signaturePrefixes = []string{
	"package ", "import ", "from ", "export ", "module ", "using ", "use ",
	"require ", "include ", "namespace ",
	"func ", "def ", "fn ", "function ", "class ", "interface ", "type ",
	"struct ", "enum ", "trait ", "impl ", "protocol ", "extension ",
	"public ", "private ", "protected ", "internal ", "static ", "abstract ",
	"async ", "override ", "const ", "var ", "let ", "val ",
	"@", "#include", "#define",
}

const elisionMarker = "    ..."

// ExtractSignatures reduces file content to its declaration skeleton:
// imports, exports, type and function signatures. Runs of elided body lines
// collapse into a single marker. Dozens of full files exceed any practical
// context window; the skeleton is the minimum the abstraction stage needs.
func ExtractSignatures(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines)/4+8)
	elided := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isSignatureLine(line, trimmed) {
			out = append(out, strings.TrimRight(line, " \t"))
			elided = false
			continue
		}
		if !elided {
			out = append(out, elisionMarker)
			elided = true
		}
	}
	return strings.Join(out, "\n")
}

func isSignatureLine(raw, trimmed string) bool {
	if isComment(trimmed) {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range signaturePrefixes {
		if strings.HasPrefix(lower, prefix) || lower == strings.TrimSpace(prefix) {
			return true
		}
	}
	// Unindented lines are top-level structure in most languages, except
	// pure punctuation left over from elided bodies.
	if !strings.HasPrefix(raw, " ") && !strings.HasPrefix(raw, "\t") {
		switch trimmed {
		case "}", ")", "]", "};", ");", "],", "},":
			return false
		}
		return true
	}
	return false
}

func isComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "#include") && !strings.HasPrefix(trimmed, "#define") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*") ||
		strings.HasPrefix(trimmed, "--")
}

// File path: internal/crawler/patterns.go
package crawler

import (
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// PatternCategory groups glob rules under a label so crawl stats can report
// why a path was accepted or rejected.
type PatternCategory struct {
	Label       string
	Description string
	Patterns    []string
}

// Exclusion categories always win over inclusion: vendored or generated
// paths must never reach the model context even when an include rule also
// matches them.
var excludeCategories = []PatternCategory{
	{
		Label:       "dependencies",
		Description: "vendored and package-manager managed code",
		Patterns: []string{
			"node_modules/", "vendor/", "bower_components/", "jspm_packages/",
			".venv/", "venv/", "site-packages/", "__pycache__/",
		},
	},
	{
		Label:       "build-artifacts",
		Description: "compiled or bundled output",
		Patterns: []string{
			"dist/", "build/", "out/", "target/", ".next/", ".nuxt/",
			"coverage/", "*.min.js", "*.min.css", "*.map", "*.bundle.js",
		},
	},
	{
		Label:       "tests",
		Description: "test suites and fixtures",
		Patterns: []string{
			"test/", "tests/", "__tests__/", "__mocks__/", "spec/", "e2e/",
			"*_test.go", "*.test.js", "*.test.ts", "*.test.jsx", "*.test.tsx",
			"*.spec.js", "*.spec.ts", "conftest.py", "test_*.py", "*_spec.rb",
			"fixtures/", "testdata/",
		},
	},
	{
		Label:       "binary-assets",
		Description: "images, fonts, media and archives",
		Patterns: []string{
			"*.png", "*.jpg", "*.jpeg", "*.gif", "*.ico", "*.svg", "*.webp",
			"*.woff", "*.woff2", "*.ttf", "*.eot", "*.otf",
			"*.mp3", "*.mp4", "*.webm", "*.avi", "*.mov",
			"*.zip", "*.tar", "*.gz", "*.rar", "*.7z",
			"*.pdf", "*.doc", "*.docx", "*.xls", "*.xlsx", "*.ppt", "*.pptx",
			"*.exe", "*.dll", "*.so", "*.dylib", "*.bin", "*.wasm",
			"*.db", "*.sqlite", "*.sqlite3",
		},
	},
	{
		Label:       "lockfiles",
		Description: "dependency lockfiles and generated manifests",
		Patterns: []string{
			"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb",
			"go.sum", "cargo.lock", "poetry.lock", "pipfile.lock",
			"composer.lock", "gemfile.lock",
		},
	},
	{
		Label:       "tooling",
		Description: "editor, CI and VCS internals",
		Patterns: []string{
			".git/", ".github/", ".gitlab/", ".idea/", ".vscode/",
			".husky/", ".circleci/", "*.log", ".ds_store", ".env", ".env.*",
		},
	},
}

var includeCategories = []PatternCategory{
	{
		Label:       "source",
		Description: "application source code",
		Patterns: []string{
			"*.go", "*.py", "*.js", "*.jsx", "*.ts", "*.tsx", "*.mjs", "*.cjs",
			"*.java", "*.kt", "*.scala", "*.rb", "*.php", "*.rs", "*.c",
			"*.cc", "*.cpp", "*.h", "*.hpp", "*.cs", "*.swift", "*.m",
			"*.ex", "*.exs", "*.erl", "*.clj", "*.lua", "*.dart", "*.zig",
			"*.vue", "*.svelte", "*.astro", "*.sql", "*.graphql", "*.proto",
		},
	},
	{
		Label:       "config",
		Description: "project manifests and configuration",
		Patterns: []string{
			"*.json", "*.yaml", "*.yml", "*.toml", "*.ini", "*.cfg",
			"dockerfile", "makefile", "*.mk", "*.sh", "*.bash",
			"go.mod", "*.gradle", "pom.xml", "*.csproj",
		},
	},
	{
		Label:       "docs",
		Description: "project documentation",
		Patterns:    []string{"*.md", "*.mdx", "*.rst", "*.txt"},
	},
}

type compiledCategory struct {
	label   string
	matcher *ignore.GitIgnore
}

// Filter classifies repository paths against the curated include and exclude
// category tables. It is stateless once built.
type Filter struct {
	include []compiledCategory
	exclude []compiledCategory
}

// NewFilter compiles the default category tables.
func NewFilter() *Filter {
	return &Filter{
		include: compileCategories(includeCategories),
		exclude: compileCategories(excludeCategories),
	}
}

func compileCategories(categories []PatternCategory) []compiledCategory {
	out := make([]compiledCategory, 0, len(categories))
	for _, cat := range categories {
		out = append(out, compiledCategory{
			label:   cat.Label,
			matcher: ignore.CompileIgnoreLines(cat.Patterns...),
		})
	}
	return out
}

// Classify reports whether the path should be crawled and which category
// decided it. Matching is case-insensitive; exclusion dominates inclusion and
// an unmatched path is excluded.
func (f *Filter) Classify(path string) (bool, string) {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(path), "/"))
	if normalized == "" {
		return false, ""
	}
	for _, cat := range f.exclude {
		if cat.matcher.MatchesPath(normalized) {
			return false, cat.label
		}
	}
	for _, cat := range f.include {
		if cat.matcher.MatchesPath(normalized) {
			return true, cat.label
		}
	}
	return false, ""
}

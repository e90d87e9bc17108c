// File path: internal/crawler/crawler.go
package crawler

import (
	"context"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/showfolio/scribe/internal/common"
)

// Per-file ceiling: anything larger is treated as generated or binary and
// recorded in stats without a content fetch.
const maxFileSize = 200 * 1024

// RepoFile is one crawled source file. Immutable once produced.
type RepoFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Size     int64  `json:"size"`
	Language string `json:"language,omitempty"`
}

// Stats aggregates the outcome of a crawl for observability.
type Stats struct {
	TotalFiles    int            `json:"total_files"`
	TotalSize     int64          `json:"total_size"`
	Languages     map[string]int `json:"languages,omitempty"`
	SkippedFilter int            `json:"skipped_filter"`
	SkippedSize   int            `json:"skipped_size"`
	SkippedBinary int            `json:"skipped_binary"`
	FetchFailures []string       `json:"fetch_failures,omitempty"`

	// Truncated reports that GitHub cut off the recursive tree listing, so
	// the crawl covers only part of the repository.
	Truncated bool `json:"truncated,omitempty"`
}

// Result carries the crawled files and aggregate stats.
type Result struct {
	Repo  RepoRef
	Files []RepoFile
	Stats Stats
}

// Crawler walks a remote GitHub repository through the REST API, applying the
// pattern filter before any content fetch so excluded paths never spend quota.
type Crawler struct {
	filter *Filter

	// apiBaseURL overrides the GitHub API endpoint, for tests.
	apiBaseURL string
}

// Option adjusts crawler construction.
type Option func(*Crawler)

// WithAPIBaseURL overrides the GitHub API endpoint, for tests.
func WithAPIBaseURL(baseURL string) Option {
	return func(c *Crawler) { c.apiBaseURL = baseURL }
}

// New returns a Crawler using the default pattern filter.
func New(opts ...Option) *Crawler {
	c := &Crawler{filter: NewFilter()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl lists the repository tree, filters it, and fetches content for every
// included path. A single file fetch failure is recorded and the crawl
// continues; only an unlistable tree fails the whole crawl.
func (c *Crawler) Crawl(ctx context.Context, repoURL, token string) (*Result, error) {
	logger := common.Logger()
	ref, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	client := newGithubClient(token)
	if c.apiBaseURL != "" {
		client.baseURL = c.apiBaseURL
	}

	info, err := client.repository(ctx, ref)
	if err != nil {
		return nil, err
	}
	branch := ref.Ref
	if branch == "" {
		branch = info.DefaultBranch
	}
	if branch == "" {
		branch = "main"
	}
	logger.Info("crawler: listing tree", "repo", ref.String(), "branch", branch)

	entries, truncated, err := client.tree(ctx, ref, branch)
	if err != nil {
		return nil, err
	}
	if truncated {
		logger.Warn("crawler: tree listing truncated by github", "repo", ref.String(), "entries", len(entries))
	}

	result := &Result{Repo: ref, Stats: Stats{Languages: make(map[string]int), Truncated: truncated}}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		included, category := c.filter.Classify(entry.Path)
		if !included {
			result.Stats.SkippedFilter++
			continue
		}
		if entry.Size > maxFileSize {
			logger.Debug("crawler: skipping oversized file", "path", entry.Path, "size", entry.Size)
			result.Stats.SkippedSize++
			continue
		}
		content, err := client.fileContent(ctx, ref, branch, entry.Path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("crawler: file fetch failed", "path", entry.Path, "error", err)
			result.Stats.FetchFailures = append(result.Stats.FetchFailures, entry.Path)
			continue
		}
		// Extension filters let generated or minified blobs through; a
		// content sniff catches them.
		if looksBinary(content) {
			result.Stats.SkippedBinary++
			continue
		}
		lang := languageForPath(entry.Path)
		result.Files = append(result.Files, RepoFile{
			Path:     entry.Path,
			Content:  content,
			Size:     entry.Size,
			Language: lang,
		})
		result.Stats.TotalFiles++
		result.Stats.TotalSize += entry.Size
		if lang != "" {
			result.Stats.Languages[lang]++
		}
		logger.Debug("crawler: included file", "path", entry.Path, "category", category)
	}
	logger.Info(
		"crawler: crawl complete",
		"repo", ref.String(),
		"files", result.Stats.TotalFiles,
		"skipped_filter", result.Stats.SkippedFilter,
		"skipped_size", result.Stats.SkippedSize,
		"fetch_failures", len(result.Stats.FetchFailures),
	)
	return result, nil
}

// looksBinary sniffs content the way git does: NUL bytes or invalid UTF-8 in
// the first chunk mark the file binary. Extremely long lines mark minified
// output.
func looksBinary(content string) bool {
	sample := content
	if len(sample) > 8000 {
		// Back the cut off to a rune boundary so a multi-byte rune
		// straddling the sample edge does not read as invalid UTF-8.
		cut := 8000
		for cut > 8000-utf8.UTFMax && !utf8.RuneStart(content[cut]) {
			cut--
		}
		sample = content[:cut]
	}
	if strings.ContainsRune(sample, 0) {
		return true
	}
	if !utf8.ValidString(sample) {
		return true
	}
	for _, line := range strings.Split(sample, "\n") {
		if len(line) > 5000 {
			return true
		}
	}
	return false
}

var languageByExtension = map[string]string{
	".go": "Go", ".py": "Python", ".js": "JavaScript", ".jsx": "JavaScript",
	".ts": "TypeScript", ".tsx": "TypeScript", ".mjs": "JavaScript",
	".cjs": "JavaScript", ".java": "Java", ".kt": "Kotlin", ".scala": "Scala",
	".rb": "Ruby", ".php": "PHP", ".rs": "Rust", ".c": "C", ".h": "C",
	".cc": "C++", ".cpp": "C++", ".hpp": "C++", ".cs": "C#", ".swift": "Swift",
	".ex": "Elixir", ".exs": "Elixir", ".erl": "Erlang", ".clj": "Clojure",
	".lua": "Lua", ".dart": "Dart", ".zig": "Zig", ".vue": "Vue",
	".svelte": "Svelte", ".astro": "Astro", ".sql": "SQL", ".md": "Markdown",
	".yaml": "YAML", ".yml": "YAML", ".json": "JSON", ".toml": "TOML",
	".sh": "Shell", ".bash": "Shell", ".proto": "Protobuf",
}

func languageForPath(p string) string {
	return languageByExtension[strings.ToLower(path.Ext(p))]
}

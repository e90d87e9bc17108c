// File path: internal/budget/context.go
package budget

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/showfolio/scribe/internal/common"
	"github.com/showfolio/scribe/internal/crawler"
)

// Mode selects how file content is reduced before entering a prompt.
type Mode string

const (
	// ModeArchitecture replaces content with its signature skeleton.
	ModeArchitecture Mode = "architecture"
	// ModeTutorial keeps literal content, head/tail truncated.
	ModeTutorial Mode = "tutorial"
)

// FileRef records an included file's prompt index and path, used by later
// stages to refer to files by index instead of repeating content.
type FileRef struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// Context is the budgeted file context for one generation pass, discarded
// once the corresponding prompt has been sent.
type Context struct {
	Content       string
	FileInfo      []FileRef
	FilesIncluded int
	FilesSkipped  int
}

// Options bound a context build. MaxContextChars of zero means unlimited.
type Options struct {
	Mode            Mode
	MaxLinesPerFile int
	MaxContextChars int
}

// Build reorders files by architectural priority, reduces each per the mode,
// and packs them first-fit against the character ceiling: a file that would
// overflow is skipped whole and the scan continues, so smaller lower-priority
// files can still use the remaining headroom. Entry points sort first and are
// guaranteed in on a tight budget.
func Build(files []crawler.RepoFile, opts Options) Context {
	ordered := make([]crawler.RepoFile, len(files))
	copy(ordered, files)
	sortByPriority(ordered)

	maxLines := opts.MaxLinesPerFile
	if maxLines <= 0 {
		maxLines = 400
	}

	var (
		b      strings.Builder
		result Context
		chars  int
	)
	for _, file := range ordered {
		var reduced string
		switch opts.Mode {
		case ModeArchitecture:
			reduced = ExtractSignatures(file.Content)
		default:
			reduced = TruncateFileContent(file.Content, maxLines)
		}
		block := fmt.Sprintf("--- File %d: %s ---\n%s\n\n", result.FilesIncluded, file.Path, reduced)
		if opts.MaxContextChars > 0 && chars+len(block) > opts.MaxContextChars {
			result.FilesSkipped++
			continue
		}
		b.WriteString(block)
		chars += len(block)
		result.FileInfo = append(result.FileInfo, FileRef{Index: result.FilesIncluded, Path: file.Path})
		result.FilesIncluded++
	}
	result.Content = b.String()
	common.Logger().Debug(
		"budget: context built",
		"mode", string(opts.Mode),
		"included", result.FilesIncluded,
		"skipped", result.FilesSkipped,
		"chars", chars,
	)
	return result
}

// Priority tiers: entry points first, framework surfaces next, shared code
// after, everything else last. Abstraction quality depends on the model
// seeing entry points, so they must survive a tight budget.
func priorityFor(p string) int {
	base := strings.ToLower(path.Base(p))
	stem := strings.TrimSuffix(base, path.Ext(base))
	lower := strings.ToLower(p)
	switch stem {
	case "main", "index", "app", "server", "cli", "__main__":
		return 0
	case "route", "routes", "router", "layout", "urls", "handler", "handlers":
		return 1
	}
	switch {
	case strings.Contains(lower, "/cmd/"), strings.HasPrefix(lower, "cmd/"):
		return 0
	case strings.Contains(lower, "/routes/"), strings.Contains(lower, "/pages/"), strings.Contains(lower, "/api/"):
		return 1
	case strings.Contains(lower, "/lib/"), strings.Contains(lower, "/utils/"),
		strings.Contains(lower, "/util/"), strings.Contains(lower, "/components/"),
		strings.Contains(lower, "/internal/"), strings.Contains(lower, "/src/"):
		return 2
	}
	return 3
}

func sortByPriority(files []crawler.RepoFile) {
	sort.SliceStable(files, func(i, j int) bool {
		return priorityFor(files[i].Path) < priorityFor(files[j].Path)
	})
}

// File path: internal/pipeline/events.go
package pipeline

import (
	"context"
	"errors"

	"github.com/showfolio/scribe/internal/crawler"
	"github.com/showfolio/scribe/internal/llm"
)

// Stage names the pipeline state machine's steps.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageCrawling     Stage = "crawling"
	StageAnalyzing    Stage = "analyzing"
	StageMapping      Stage = "mapping"
	StageOrdering     Stage = "ordering"
	StageWriting      Stage = "writing"
	StageFinalizing   Stage = "finalizing"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Progress is one transient progress event; streamed, never persisted.
type Progress struct {
	Stage          Stage  `json:"stage"`
	Message        string `json:"message"`
	Percent        int    `json:"progress"`
	CurrentChapter int    `json:"current_chapter,omitempty"`
	TotalChapters  int    `json:"total_chapters,omitempty"`
	ChapterName    string `json:"chapter_name,omitempty"`
}

// ChapterInfo is the terminal event's per-chapter listing.
type ChapterInfo struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
}

// Result is the terminal success payload.
type Result struct {
	ProjectName string        `json:"project_name"`
	ProjectSlug string        `json:"project_slug"`
	Chapters    []ChapterInfo `json:"chapters"`
}

// Event is one message on the run's stream: exactly one field is set, and a
// Result or Error event terminates the stream.
type Event struct {
	Progress  *Progress `json:"progress,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
}

// Error kinds let the consuming UI offer a specific remedy instead of a
// generic failure message.
const (
	KindValidation  = "validation"
	KindNotFound    = "not_found"
	KindRateLimited = "rate_limited"
	KindParse       = "parse"
	KindOverflow    = "overflow"
	KindGateway     = "gateway"
	KindCanceled    = "canceled"
	KindInternal    = "internal"
)

// parseError marks a stage whose output stayed unparseable after the one
// corrective re-prompt.
type parseError struct {
	stage Stage
	err   error
}

func (e *parseError) Error() string {
	return "stage " + string(e.stage) + " returned unparseable output: " + e.err.Error()
}

func (e *parseError) Unwrap() error { return e.err }

// ErrorKind classifies err into the taxonomy above.
func ErrorKind(err error) string {
	var overflow *llm.OverflowError
	var parse *parseError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, crawler.ErrInvalidRepoURL):
		return KindValidation
	case errors.Is(err, crawler.ErrRepoNotFound):
		return KindNotFound
	case errors.Is(err, crawler.ErrRateLimited):
		return KindRateLimited
	case errors.As(err, &parse):
		return KindParse
	case errors.As(err, &overflow):
		return KindOverflow
	case errors.Is(err, llm.ErrUnknownProvider), errors.Is(err, llm.ErrMissingAPIKey):
		return KindValidation
	default:
		return KindGateway
	}
}

// UserMessage renders a short actionable message for a terminal failure.
func UserMessage(err error) string {
	switch ErrorKind(err) {
	case KindValidation:
		return "Request rejected: " + err.Error()
	case KindNotFound:
		return "Repository not found. Check the URL, or supply a token if it is private."
	case KindRateLimited:
		return "GitHub rate limit exceeded. Supply a GitHub token to raise the quota."
	case KindParse:
		return "The model kept returning malformed output. Try a different model."
	case KindOverflow:
		return "The repository is too large for the model's context window, even after reduction. Try a model with a larger context."
	case KindCanceled:
		return "Generation canceled."
	default:
		return "Generation failed: " + err.Error()
	}
}

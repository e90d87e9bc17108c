// File path: internal/llm/errors.go
package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProvider reports a provider name absent from the table.
	ErrUnknownProvider = errors.New("unknown llm provider")
	// ErrMissingAPIKey reports a hosted provider called without a key.
	ErrMissingAPIKey = errors.New("api key required")
	// ErrEmptyPrompt reports a call without a prompt.
	ErrEmptyPrompt = errors.New("empty prompt")
)

// OverflowError reports a context-length failure that survived the
// self-healing reduction loop. It carries the attempt count and the last
// provider error so the orchestrator can decide skip versus abort.
type OverflowError struct {
	Attempts int
	Last     error
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("context overflow after %d attempts: %v", e.Attempts, e.Last)
}

func (e *OverflowError) Unwrap() error { return e.Last }

// Provider overflow messages vary by vendor; these fragments cover the
// OpenAI-compatible family and Ollama.
var overflowFragments = []string{
	"context_length_exceeded",
	"maximum context length",
	"context length",
	"context window",
	"too many tokens",
	"request too large",
	"input is too long",
	"prompt is too long",
}

// IsOverflow reports whether err looks like a context-length failure.
func IsOverflow(err error) bool {
	if err == nil {
		return false
	}
	var overflow *OverflowError
	if errors.As(err, &overflow) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range overflowFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// File path: internal/llm/ollama_backend.go
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ollamaBackend runs prompts against a local Ollama server.
type ollamaBackend struct {
	info ProviderInfo
}

func (b ollamaBackend) complete(ctx context.Context, prompt string, opts CallOptions) (string, Usage, error) {
	serverURL := strings.TrimSpace(opts.BaseURL)
	if serverURL == "" {
		serverURL = b.info.BaseURL
	}
	model, err := ollama.New(
		ollama.WithModel(opts.Model),
		ollama.WithServerURL(serverURL),
	)
	if err != nil {
		return "", Usage{}, fmt.Errorf("init ollama client: %w", err)
	}
	callOpts := []llms.CallOption{}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	content, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, callOpts...)
	if err != nil {
		return "", Usage{}, err
	}
	// Ollama does not report usage; estimate both sides for cost accounting.
	usage := Usage{
		PromptTokens:     EstimateTokens(prompt),
		CompletionTokens: EstimateTokens(content),
	}
	return content, usage, nil
}

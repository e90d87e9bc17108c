// File path: internal/llm/openai_backend.go
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// openaiBackend serves every hosted provider in the capability table; they
// all speak the OpenAI chat-completions format behind different base URLs.
type openaiBackend struct {
	info ProviderInfo
}

func (b openaiBackend) complete(ctx context.Context, prompt string, opts CallOptions) (string, Usage, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" && b.info.RequiresKey {
		return "", Usage{}, fmt.Errorf("%w: provider %s", ErrMissingAPIKey, b.info.Name)
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(key)}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = b.info.BaseURL
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(clientOpts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no choices returned")
	}
	usage := Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}

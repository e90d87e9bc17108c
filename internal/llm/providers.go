// File path: internal/llm/providers.go
package llm

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ProviderInfo is one row of the provider capability table. Adding a
// provider is a data entry here, not a new type.
type ProviderInfo struct {
	Name        string   `json:"name"`
	Models      []string `json:"models"`
	RequiresKey bool     `json:"requires_key"`
	BaseURL     string   `json:"base_url,omitempty"`
	Local       bool     `json:"local"`
}

// Every hosted entry speaks the OpenAI chat-completions wire format, so one
// client covers them all via the base URL. The local entry is served by
// Ollama.
var providerTable = map[string]ProviderInfo{
	"openai": {
		Name:        "openai",
		Models:      []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o4-mini"},
		RequiresKey: true,
	},
	"openrouter": {
		Name:        "openrouter",
		Models:      []string{"anthropic/claude-sonnet-4", "google/gemini-2.5-flash", "meta-llama/llama-3.3-70b-instruct"},
		RequiresKey: true,
		BaseURL:     "https://openrouter.ai/api/v1",
	},
	"groq": {
		Name:        "groq",
		Models:      []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"},
		RequiresKey: true,
		BaseURL:     "https://api.groq.com/openai/v1",
	},
	"deepseek": {
		Name:        "deepseek",
		Models:      []string{"deepseek-chat", "deepseek-reasoner"},
		RequiresKey: true,
		BaseURL:     "https://api.deepseek.com/v1",
	},
	"ollama": {
		Name:    "ollama",
		Models:  []string{"llama3.1", "qwen2.5-coder", "mistral"},
		BaseURL: "http://localhost:11434",
		Local:   true,
	},
}

// Providers returns the capability table sorted by name.
func Providers() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(providerTable))
	for _, info := range providerTable {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupProvider resolves a provider name case-insensitively.
func LookupProvider(name string) (ProviderInfo, bool) {
	info, ok := providerTable[strings.ToLower(strings.TrimSpace(name))]
	return info, ok
}

// modelPricing holds USD per million tokens. Advisory only: estimates are
// surfaced to the operator and never gate a call.
type modelPricing struct {
	InputPerM  float64
	OutputPerM float64
}

var pricingTable = map[string]modelPricing{
	"gpt-4o":                    {InputPerM: 2.50, OutputPerM: 10.00},
	"gpt-4o-mini":               {InputPerM: 0.15, OutputPerM: 0.60},
	"gpt-4.1":                   {InputPerM: 2.00, OutputPerM: 8.00},
	"gpt-4.1-mini":              {InputPerM: 0.40, OutputPerM: 1.60},
	"o4-mini":                   {InputPerM: 1.10, OutputPerM: 4.40},
	"deepseek-chat":             {InputPerM: 0.27, OutputPerM: 1.10},
	"deepseek-reasoner":         {InputPerM: 0.55, OutputPerM: 2.19},
	"llama-3.3-70b-versatile":   {InputPerM: 0.59, OutputPerM: 0.79},
	"llama-3.1-8b-instant":      {InputPerM: 0.05, OutputPerM: 0.08},
	"anthropic/claude-sonnet-4": {InputPerM: 3.00, OutputPerM: 15.00},
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// EstimateCost computes the advisory USD cost of a call from the pricing
// table. Unknown models cost zero.
func EstimateCost(model string, usage Usage) float64 {
	pricing, ok := pricingTable[strings.ToLower(strings.TrimSpace(model))]
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)*pricing.InputPerM/1e6 +
		float64(usage.CompletionTokens)*pricing.OutputPerM/1e6
}

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token count of text with the cl100k_base
// encoding, falling back to a chars/4 heuristic when the encoding cannot be
// loaded.
func EstimateTokens(text string) int {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoder = enc
		}
	})
	if encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// File path: internal/llm/gateway.go
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/showfolio/scribe/internal/common"
)

const defaultMaxAttempts = 3

// ReduceFunc rebuilds the prompt with a tighter content budget for the given
// retry attempt. Returning false means no further reduction is possible.
type ReduceFunc func(attempt int) (string, bool)

// ReductionStep describes one self-healing attempt, surfaced to the caller's
// progress stream.
type ReductionStep struct {
	Attempt        int     `json:"attempt"`
	OriginalTokens int     `json:"original_tokens"`
	ReducedTokens  int     `json:"reduced_tokens"`
	Percent        float64 `json:"percent"`
}

// CallOptions parameterizes a single gateway call.
type CallOptions struct {
	Prompt      string
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
	BaseURL     string
	NoCache     bool

	// Self-healing: on an overflow failure the gateway asks Reduce for a
	// smaller prompt and retries, up to MaxAttempts.
	Reduce      ReduceFunc
	MaxAttempts int
	OnReduction func(ReductionStep)
}

// CallResult is the structured outcome of a gateway call.
type CallResult struct {
	Content    string  `json:"content"`
	Usage      Usage   `json:"usage"`
	Cost       float64 `json:"cost"`
	Cached     bool    `json:"cached"`
	Attempts   int     `json:"attempts"`
	WasReduced bool    `json:"was_reduced"`
}

type backend interface {
	complete(ctx context.Context, prompt string, opts CallOptions) (string, Usage, error)
}

// Gateway is the provider-agnostic LLM client. Its cache and cost counters
// are shared across concurrent generation runs.
type Gateway struct {
	cache *Cache

	mu        sync.Mutex
	totalCost float64
	calls     int64

	// testBackend overrides provider dispatch, for tests.
	testBackend backend
}

// NewGateway builds a gateway around the given cache. A nil cache gets the
// default bounded cache.
func NewGateway(cache *Cache) *Gateway {
	if cache == nil {
		cache = NewCache()
	}
	return &Gateway{cache: cache}
}

// Call runs the prompt against the selected provider. Overflow failures
// trigger the bounded reduce-and-retry loop; other provider failures are
// returned as-is since most causes (bad key, unknown model) are not
// transient.
func (g *Gateway) Call(ctx context.Context, opts CallOptions) (*CallResult, error) {
	logger := common.Logger()
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	info, ok := LookupProvider(opts.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("model required for provider %s", info.Name)
	}
	var be backend
	switch {
	case g.testBackend != nil:
		be = g.testBackend
	case info.Local:
		be = ollamaBackend{info: info}
	default:
		be = openaiBackend{info: info}
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	prompt := opts.Prompt
	originalTokens := EstimateTokens(prompt)
	previousTokens := originalTokens

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := CacheKey(info.Name, opts.Model, opts.Temperature, prompt)
		if !opts.NoCache {
			if content, hit := g.cache.Get(key); hit {
				logger.Debug("llm: cache hit", "provider", info.Name, "model", opts.Model)
				return &CallResult{
					Content:    content,
					Cached:     true,
					Attempts:   attempt,
					WasReduced: attempt > 1,
				}, nil
			}
		}
		logger.Debug("llm: calling provider", "provider", info.Name, "model", opts.Model, "attempt", attempt, "prompt_tokens_est", EstimateTokens(prompt))
		content, usage, err := be.complete(ctx, prompt, opts)
		if err == nil {
			if !opts.NoCache {
				g.cache.Put(key, content)
			}
			cost := EstimateCost(opts.Model, usage)
			g.recordCall(cost)
			return &CallResult{
				Content:    content,
				Usage:      usage,
				Cost:       cost,
				Attempts:   attempt,
				WasReduced: attempt > 1,
			}, nil
		}
		lastErr = err
		if !IsOverflow(err) || opts.Reduce == nil {
			logger.Error("llm: call failed", "provider", info.Name, "model", opts.Model, "error", err)
			return nil, err
		}
		reduced, ok := opts.Reduce(attempt)
		if !ok {
			break
		}
		reducedTokens := EstimateTokens(reduced)
		step := ReductionStep{
			Attempt:        attempt,
			OriginalTokens: originalTokens,
			ReducedTokens:  reducedTokens,
			Percent:        reductionPercent(originalTokens, reducedTokens),
		}
		logger.Warn(
			"llm: context overflow, reducing input",
			"provider", info.Name,
			"attempt", attempt,
			"from_tokens", previousTokens,
			"to_tokens", reducedTokens,
		)
		if opts.OnReduction != nil {
			opts.OnReduction(step)
		}
		prompt = reduced
		previousTokens = reducedTokens
	}
	return nil, &OverflowError{Attempts: maxAttempts, Last: lastErr}
}

func reductionPercent(original, reduced int) float64 {
	if original <= 0 {
		return 0
	}
	return 100 * float64(original-reduced) / float64(original)
}

func (g *Gateway) recordCall(cost float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.totalCost += cost
}

// GatewayStats is a point-in-time snapshot of call and cache counters.
type GatewayStats struct {
	Calls     int64      `json:"calls"`
	TotalCost float64    `json:"total_cost"`
	Cache     CacheStats `json:"cache"`
}

// Stats snapshots the gateway's counters.
func (g *Gateway) Stats() GatewayStats {
	g.mu.Lock()
	calls, cost := g.calls, g.totalCost
	g.mu.Unlock()
	return GatewayStats{Calls: calls, TotalCost: cost, Cache: g.cache.Stats()}
}

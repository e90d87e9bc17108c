// File path: internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/showfolio/scribe/internal/budget"
	"github.com/showfolio/scribe/internal/common"
	"github.com/showfolio/scribe/internal/crawler"
	"github.com/showfolio/scribe/internal/docstore"
	"github.com/showfolio/scribe/internal/llm"
	"github.com/showfolio/scribe/internal/prompt"
)

const (
	// Aggregate character ceilings per stage context. Halved on each
	// self-healing attempt, never below the floor.
	archContextChars    = 240_000
	chapterContextChars = 60_000
	minContextChars     = 8_000

	chapterLineBudget      = 300
	defaultMaxAbstractions = 8
	defaultWriteWorkers    = 1

	structuredTemperature = 0.1
	chapterTemperature    = 0.3
)

// Request parameterizes one generation run.
type Request struct {
	RepoURL     string
	GithubToken string

	Provider string
	Model    string
	APIKey   string
	BaseURL  string

	UserID          string
	LinkedProjectID string

	MaxAbstractions int
	// WriteWorkers bounds parallel chapter generation. Progress events stay
	// in plan order regardless.
	WriteWorkers int
}

// Generator drives the crawl, budget, staged LLM calls and persistence for
// generation runs. All runs share the gateway's cache and counters.
type Generator struct {
	crawler *crawler.Crawler
	gateway *llm.Gateway
	store   *docstore.Store
}

// New wires a Generator from its collaborators.
func New(c *crawler.Crawler, gateway *llm.Gateway, store *docstore.Store) *Generator {
	return &Generator{crawler: c, gateway: gateway, store: store}
}

// Run starts a generation run and returns its event stream. The stream
// closes after exactly one terminal event (result or error). Cancelling ctx
// aborts the run without persisting anything.
func (g *Generator) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		result, err := g.execute(ctx, req, events)
		if err != nil {
			common.Logger().Error("pipeline: run failed", "repo", req.RepoURL, "kind", ErrorKind(err), "error", err)
			sendEvent(ctx, events, Event{Error: UserMessage(err), ErrorKind: ErrorKind(err)})
			return
		}
		sendEvent(ctx, events, Event{Result: result})
	}()
	return events
}

// sendEvent delivers the terminal event, waiting for a slow reader to catch
// up. A reader that is merely behind still gets its terminal event; only a
// cancelled run with a full buffer gives up the wait.
func sendEvent(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
		return
	default:
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (g *Generator) execute(ctx context.Context, req Request, events chan<- Event) (*Result, error) {
	logger := common.Logger()
	start := time.Now()

	progress := func(p Progress) error {
		select {
		case events <- Event{Progress: &p}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := progress(Progress{Stage: StageInitializing, Message: "Starting generation", Percent: 2}); err != nil {
		return nil, err
	}
	ref, err := crawler.ParseRepoURL(req.RepoURL)
	if err != nil {
		return nil, err
	}
	if _, ok := llm.LookupProvider(req.Provider); !ok {
		return nil, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, req.Provider)
	}
	projectName := ref.Name
	slug := docstore.Slugify(ref.Owner + "-" + ref.Name)

	// crawling
	if err := progress(Progress{Stage: StageCrawling, Message: "Crawling " + ref.String(), Percent: 5}); err != nil {
		return nil, err
	}
	crawled, err := g.crawler.Crawl(ctx, req.RepoURL, req.GithubToken)
	if err != nil {
		return nil, err
	}
	if len(crawled.Files) == 0 {
		return nil, fmt.Errorf("%w: no crawlable source files in repository", crawler.ErrInvalidRepoURL)
	}
	crawlMessage := fmt.Sprintf("Crawled %d files (%d skipped)", crawled.Stats.TotalFiles, crawled.Stats.SkippedFilter+crawled.Stats.SkippedSize)
	if crawled.Stats.Truncated {
		crawlMessage += "; repository too large for a full listing, documenting the crawled subset"
	}
	if err := progress(Progress{
		Stage:   StageCrawling,
		Message: crawlMessage,
		Percent: 20,
	}); err != nil {
		return nil, err
	}

	// analyzing: identify abstractions from the signature context
	if err := progress(Progress{Stage: StageAnalyzing, Message: "Identifying abstractions", Percent: 25}); err != nil {
		return nil, err
	}
	maxAbstractions := req.MaxAbstractions
	if maxAbstractions <= 0 {
		maxAbstractions = defaultMaxAbstractions
	}
	var archCtx budget.Context
	buildAbstractionsPrompt := func(maxChars int) string {
		archCtx = budget.Build(crawled.Files, budget.Options{
			Mode:            budget.ModeArchitecture,
			MaxContextChars: maxChars,
		})
		return prompt.Abstractions(prompt.AbstractionsParams{
			ProjectName:     projectName,
			FileContext:     archCtx.Content,
			FileInfo:        archCtx.FileInfo,
			MaxAbstractions: maxAbstractions,
		})
	}
	var abstractions []prompt.Abstraction
	err = g.callStage(ctx, req, StageAnalyzing, stageCall{
		prompt:      buildAbstractionsPrompt(archContextChars),
		temperature: structuredTemperature,
		reduce:      shrinkBuilder(buildAbstractionsPrompt, archContextChars),
		onReduction: reductionProgress(progress, StageAnalyzing, 25),
		parse: func(raw string) error {
			parsed, perr := prompt.ParseAbstractions(raw, archCtx.FilesIncluded)
			if perr != nil {
				return perr
			}
			abstractions = parsed
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if err := progress(Progress{
		Stage:   StageAnalyzing,
		Message: fmt.Sprintf("Identified %d abstractions", len(abstractions)),
		Percent: 35,
	}); err != nil {
		return nil, err
	}

	// mapping: relate the abstractions to each other
	if err := progress(Progress{Stage: StageMapping, Message: "Mapping relationships", Percent: 40}); err != nil {
		return nil, err
	}
	relevant := filesForIndices(crawled.Files, archCtx.FileInfo, allFileIndices(abstractions))
	buildRelationshipsPrompt := func(maxChars int) string {
		relCtx := budget.Build(relevant, budget.Options{
			Mode:            budget.ModeArchitecture,
			MaxContextChars: maxChars,
		})
		return prompt.Relationships(prompt.RelationshipsParams{
			ProjectName:  projectName,
			Abstractions: abstractions,
			FileContext:  relCtx.Content,
		})
	}
	var relationships *prompt.RelationshipSet
	err = g.callStage(ctx, req, StageMapping, stageCall{
		prompt:      buildRelationshipsPrompt(archContextChars),
		temperature: structuredTemperature,
		reduce:      shrinkBuilder(buildRelationshipsPrompt, archContextChars),
		onReduction: reductionProgress(progress, StageMapping, 40),
		parse: func(raw string) error {
			parsed, perr := prompt.ParseRelationships(raw, len(abstractions))
			if perr != nil {
				return perr
			}
			relationships = parsed
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if err := progress(Progress{Stage: StageMapping, Message: "Relationship graph ready", Percent: 45}); err != nil {
		return nil, err
	}

	// ordering: decide the narrative sequence
	if err := progress(Progress{Stage: StageOrdering, Message: "Ordering chapters", Percent: 48}); err != nil {
		return nil, err
	}
	orderPrompt := prompt.ChapterOrder(prompt.ChapterOrderParams{
		ProjectName:  projectName,
		Abstractions: abstractions,
		Summary:      relationships.Summary,
	})
	var plan []int
	err = g.callStage(ctx, req, StageOrdering, stageCall{
		prompt:      orderPrompt,
		temperature: structuredTemperature,
		parse: func(raw string) error {
			parsed, perr := prompt.ParseChapterOrder(raw, len(abstractions))
			if perr != nil {
				return perr
			}
			plan = parsed
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	// writing: one chapter per abstraction, in plan order
	chapters, err := g.writeChapters(ctx, req, progress, writeInput{
		projectName:   projectName,
		plan:          plan,
		abstractions:  abstractions,
		relationships: relationships,
		files:         crawled.Files,
		fileInfo:      archCtx.FileInfo,
	})
	if err != nil {
		return nil, err
	}

	// finalizing: synthesize the overview and persist atomically
	if err := progress(Progress{Stage: StageFinalizing, Message: "Writing overview and saving", Percent: 95}); err != nil {
		return nil, err
	}
	overview := buildOverview(projectName, relationships, abstractions, chapters)
	all := append([]docstore.Chapter{overview}, chapters...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := docstore.ProjectDoc{
		Slug:            slug,
		ProjectName:     projectName,
		RepoURL:         req.RepoURL,
		UserID:          req.UserID,
		LinkedProjectID: req.LinkedProjectID,
		CreatedAt:       time.Now().UTC(),
		Chapters:        all,
	}
	if err := g.store.Save(ctx, doc); err != nil {
		return nil, err
	}

	stats := g.gateway.Stats()
	logger.Info(
		"pipeline: run complete",
		"repo", ref.String(),
		"slug", slug,
		"chapters", len(all),
		"duration", time.Since(start),
		"llm_calls", stats.Calls,
		"est_cost_usd", stats.TotalCost,
	)
	if err := progress(Progress{Stage: StageComplete, Message: "Generation complete", Percent: 100}); err != nil {
		return nil, err
	}

	result := &Result{ProjectName: projectName, ProjectSlug: slug}
	for _, chapter := range all {
		result.Chapters = append(result.Chapters, ChapterInfo{Filename: chapter.Filename, Title: chapter.Title})
	}
	return result, nil
}

// stageCall bundles one staged LLM call: prompt, optional self-healing
// rebuild, and the parse step that gates the next stage.
type stageCall struct {
	prompt      string
	temperature float64
	reduce      llm.ReduceFunc
	onReduction func(llm.ReductionStep)
	parse       func(raw string) error
}

// callStage runs one staged call. A parse failure triggers exactly one
// corrective re-prompt; a second failure is fatal for the run.
func (g *Generator) callStage(ctx context.Context, req Request, stage Stage, call stageCall) error {
	opts := llm.CallOptions{
		Prompt:      call.prompt,
		Provider:    req.Provider,
		Model:       req.Model,
		APIKey:      req.APIKey,
		BaseURL:     req.BaseURL,
		Temperature: call.temperature,
		Reduce:      call.reduce,
		OnReduction: call.onReduction,
	}
	result, err := g.gateway.Call(ctx, opts)
	if err != nil {
		return err
	}
	perr := call.parse(result.Content)
	if perr == nil {
		return nil
	}
	common.Logger().Warn("pipeline: stage output unparseable, re-prompting", "stage", string(stage), "error", perr)
	// Rebuild the base prompt at full budget so the correction rides on a
	// consistent context, and keep the correction attached to every
	// self-healing rebuild of the retry.
	base := call.prompt
	if call.reduce != nil {
		if rebuilt, ok := call.reduce(0); ok {
			base = rebuilt
		}
		reduce := call.reduce
		opts.Reduce = func(attempt int) (string, bool) {
			reduced, ok := reduce(attempt)
			if !ok {
				return "", false
			}
			return prompt.FormatCorrection(reduced, perr), true
		}
	}
	opts.Prompt = prompt.FormatCorrection(base, perr)
	opts.NoCache = true
	result, err = g.gateway.Call(ctx, opts)
	if err != nil {
		return err
	}
	if perr := call.parse(result.Content); perr != nil {
		return &parseError{stage: stage, err: perr}
	}
	return nil
}

// shrinkBuilder halves the character budget on each self-healing attempt.
func shrinkBuilder(build func(maxChars int) string, initial int) llm.ReduceFunc {
	return func(attempt int) (string, bool) {
		chars := initial >> attempt
		if chars < minContextChars {
			return "", false
		}
		return build(chars), true
	}
}

// reductionProgress surfaces self-healing steps on the progress stream.
func reductionProgress(progress func(Progress) error, stage Stage, percent int) func(llm.ReductionStep) {
	return func(step llm.ReductionStep) {
		_ = progress(Progress{
			Stage:   stage,
			Message: fmt.Sprintf("Context too large, reduced from %d to %d tokens (%.0f%% smaller)", step.OriginalTokens, step.ReducedTokens, step.Percent),
			Percent: percent,
		})
	}
}

func allFileIndices(abstractions []prompt.Abstraction) []int {
	seen := make(map[int]bool)
	var out []int
	for _, a := range abstractions {
		for _, idx := range a.FileIndices {
			if !seen[idx] {
				seen[idx] = true
				out = append(out, idx)
			}
		}
	}
	return out
}

// filesForIndices resolves budgeted-context file indices back to crawled
// files via the context's file listing.
func filesForIndices(all []crawler.RepoFile, info []budget.FileRef, indices []int) []crawler.RepoFile {
	byPath := make(map[string]crawler.RepoFile, len(all))
	for _, file := range all {
		byPath[file.Path] = file
	}
	var out []crawler.RepoFile
	for _, idx := range indices {
		if idx < 0 || idx >= len(info) {
			continue
		}
		if file, ok := byPath[info[idx].Path]; ok {
			out = append(out, file)
		}
	}
	return out
}

func stripMarkdownFence(content string) string {
	trimmed := strings.TrimSpace(content)
	for _, prefix := range []string{"```markdown\n", "```md\n"} {
		if strings.HasPrefix(trimmed, prefix) && strings.HasSuffix(trimmed, "```") {
			return strings.TrimSpace(strings.TrimSuffix(trimmed[len(prefix):], "```"))
		}
	}
	return trimmed
}

// File path: internal/pipeline/writer.go
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/showfolio/scribe/internal/budget"
	"github.com/showfolio/scribe/internal/common"
	"github.com/showfolio/scribe/internal/crawler"
	"github.com/showfolio/scribe/internal/docstore"
	"github.com/showfolio/scribe/internal/llm"
	"github.com/showfolio/scribe/internal/prompt"
)

type writeInput struct {
	projectName   string
	plan          []int
	abstractions  []prompt.Abstraction
	relationships *prompt.RelationshipSet
	files         []crawler.RepoFile
	fileInfo      []budget.FileRef
}

// writeChapters produces one chapter per plan entry. Chapters are
// independent given the finalized relationship graph, so they may run on a
// bounded worker pool; completions are re-sequenced so progress events
// always arrive in plan order.
func (g *Generator) writeChapters(ctx context.Context, req Request, progress func(Progress) error, in writeInput) ([]docstore.Chapter, error) {
	total := len(in.plan)
	if err := progress(Progress{
		Stage:         StageWriting,
		Message:       "Writing chapters",
		Percent:       50,
		TotalChapters: total,
	}); err != nil {
		return nil, err
	}

	workers := req.WriteWorkers
	if workers <= 0 {
		workers = defaultWriteWorkers
	}
	if workers > total {
		workers = total
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chapters := make([]docstore.Chapter, total)
	done := make([]chan error, total)
	sem := make(chan struct{}, workers)
	for i := range in.plan {
		done[i] = make(chan error, 1)
		go func(position int) {
			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				done[position] <- runCtx.Err()
				return
			}
			defer func() { <-sem }()
			chapter, err := g.writeChapter(runCtx, req, position, in)
			if err == nil {
				chapters[position] = chapter
			}
			done[position] <- err
		}(i)
	}

	for i := range in.plan {
		if err := <-done[i]; err != nil {
			cancel()
			return nil, err
		}
		abstraction := in.abstractions[in.plan[i]]
		if err := progress(Progress{
			Stage:          StageWriting,
			Message:        fmt.Sprintf("Wrote chapter %d of %d", i+1, total),
			Percent:        50 + 40*(i+1)/total,
			CurrentChapter: i + 1,
			TotalChapters:  total,
			ChapterName:    abstraction.Name,
		}); err != nil {
			return nil, err
		}
	}
	return chapters, nil
}

// writeChapter generates the chapter for plan position `position`.
func (g *Generator) writeChapter(ctx context.Context, req Request, position int, in writeInput) (docstore.Chapter, error) {
	abstraction := in.abstractions[in.plan[position]]
	order := position + 1
	relevant := filesForIndices(in.files, in.fileInfo, abstraction.FileIndices)

	previous := make([]prompt.ChapterRef, 0, position)
	for p := 0; p < position; p++ {
		previous = append(previous, prompt.ChapterRef{Order: p + 1, Title: in.abstractions[in.plan[p]].Name})
	}

	buildPrompt := func(maxChars int) string {
		chapterCtx := budget.Build(relevant, budget.Options{
			Mode:            budget.ModeTutorial,
			MaxLinesPerFile: chapterLineBudget,
			MaxContextChars: maxChars,
		})
		return prompt.ChapterContent(prompt.ChapterContentParams{
			ProjectName:   in.projectName,
			Abstraction:   abstraction,
			ChapterNumber: order,
			TotalChapters: len(in.plan),
			FileContext:   chapterCtx.Content,
			Relationships: in.relationships.Relationships,
			Abstractions:  in.abstractions,
			Previous:      previous,
		})
	}

	result, err := g.gateway.Call(ctx, llm.CallOptions{
		Prompt:      buildPrompt(chapterContextChars),
		Provider:    req.Provider,
		Model:       req.Model,
		APIKey:      req.APIKey,
		BaseURL:     req.BaseURL,
		Temperature: chapterTemperature,
		Reduce:      shrinkBuilder(buildPrompt, chapterContextChars),
	})
	if err != nil {
		return docstore.Chapter{}, err
	}
	content := stripMarkdownFence(result.Content)
	if strings.TrimSpace(content) == "" {
		return docstore.Chapter{}, &parseError{stage: StageWriting, err: fmt.Errorf("empty chapter content for %q", abstraction.Name)}
	}
	content = appendChapterDiagram(content, abstraction, in.abstractions, in.relationships.Relationships)

	return docstore.Chapter{
		Filename: docstore.ChapterFilename(order, abstraction.Name),
		Title:    abstraction.Name,
		Content:  content,
		Order:    order,
	}, nil
}

// appendChapterDiagram adds a relationship diagram scoped to this chapter's
// abstraction. Diagram failure downgrades to a text list.
func appendChapterDiagram(content string, abstraction prompt.Abstraction, abstractions []prompt.Abstraction, edges []prompt.Relationship) string {
	var touching []prompt.Relationship
	for _, edge := range edges {
		if edge.FromIndex == abstraction.Index || edge.ToIndex == abstraction.Index {
			touching = append(touching, edge)
		}
	}
	if len(touching) == 0 {
		return content
	}
	var scoped []prompt.Abstraction
	seen := make(map[int]bool)
	for _, edge := range touching {
		for _, idx := range []int{edge.FromIndex, edge.ToIndex} {
			if !seen[idx] {
				seen[idx] = true
				for _, a := range abstractions {
					if a.Index == idx {
						scoped = append(scoped, a)
					}
				}
			}
		}
	}
	section := "\n\n## Related Components\n\n"
	if diagram, ok := mermaidFlowchart(scoped, touching); ok {
		return content + section + diagram
	}
	return content + section + relationshipText(abstractions, touching)
}

// buildOverview synthesizes the index chapter: project summary, the full
// relationship diagram, and the chapter listing. Always present even when
// the ordering stage omitted it.
func buildOverview(projectName string, relationships *prompt.RelationshipSet, abstractions []prompt.Abstraction, chapters []docstore.Chapter) docstore.Chapter {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", projectName)
	if summary := strings.TrimSpace(relationships.Summary); summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	b.WriteString("## Architecture\n\n")
	if diagram, ok := mermaidFlowchart(abstractions, relationships.Relationships); ok {
		b.WriteString(diagram)
	} else {
		common.Logger().Warn("pipeline: overview diagram unavailable, using text list")
		b.WriteString(relationshipText(abstractions, relationships.Relationships))
	}
	b.WriteString("\n## Chapters\n\n")
	for _, chapter := range chapters {
		fmt.Fprintf(&b, "%d. [%s](%s)\n", chapter.Order, chapter.Title, chapter.Filename)
	}
	return docstore.Chapter{
		Filename: docstore.ChapterFilename(0, "overview"),
		Title:    "Overview",
		Content:  b.String(),
		Order:    0,
	}
}

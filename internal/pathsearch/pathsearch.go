// Package pathsearch decides which of workflow triggering, definition lookup, or
// section retrieval best matches a user's question, embedding the question once and
// querying all three candidate pools with that single embedding.
package pathsearch

import (
	"context"
	"fmt"

	"github.com/sjondavey/regulations-rag/internal/corpusindex"
	"github.com/sjondavey/regulations-rag/internal/llmclient"
	"github.com/sjondavey/regulations-rag/internal/rerank"
	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// Result reports what similarity search found: the question's embedding (so later
// retrieval steps don't have to re-embed it), whether a workflow was triggered, and the
// definitions/sections that matched closely enough to be worth presenting to the model.
type Result struct {
	QueryEmbedding    []float32
	WorkflowTriggered bool
	Workflow          []corpusindex.ScoredRow
	Definitions       []corpusindex.ScoredRow
	Sections          []corpusindex.ScoredRow
}

// Search embeds question once via embedder, then queries the workflow, definition, and
// section pools of index in that order of precedence: a workflow only "wins" if it
// exists at all and its best match is closer than both the best definition match and
// the best section match, since a workflow trigger is meant to short-circuit normal
// retrieval only when nothing more specific looks relevant.
func Search(ctx context.Context, embedder domain.Embedder, index corpusindex.Index, embeddingParams *llmclient.EmbeddingParameters, rerankStrategy rerank.Strategy, rerankParams rerank.Params, tokenCount func(string) int, gen domain.Generator, question string) (Result, error) {
	vec, err := embedder.Embed(ctx, question, embeddingParams.Model, embeddingParams.Dimensions)
	if err != nil {
		return Result{}, fmt.Errorf("pathsearch: embedding question: %w", err)
	}

	workflow, err := index.GetRelevantWorkflow(ctx, vec, embeddingParams.SectionThreshold)
	if err != nil {
		return Result{}, fmt.Errorf("pathsearch: querying workflow: %w", err)
	}

	definitions, err := index.GetRelevantDefinitions(ctx, vec, embeddingParams.DefinitionThreshold)
	if err != nil {
		return Result{}, fmt.Errorf("pathsearch: querying definitions: %w", err)
	}

	sections, err := index.GetRelevantSections(ctx, vec, embeddingParams.SectionThreshold, rerankStrategy, rerankParams, tokenCount, gen)
	if err != nil {
		return Result{}, fmt.Errorf("pathsearch: querying sections: %w", err)
	}

	triggered := false
	if len(workflow) > 0 {
		best := workflow[0].CosineDistance
		beatsDefinitions := len(definitions) == 0 || best < definitions[0].CosineDistance
		beatsSections := len(sections) == 0 || best < sections[0].CosineDistance
		triggered = beatsDefinitions && beatsSections
	}

	return Result{
		QueryEmbedding:    vec,
		WorkflowTriggered: triggered,
		Workflow:          workflow,
		Definitions:       definitions,
		Sections:          sections,
	}, nil
}

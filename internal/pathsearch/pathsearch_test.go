package pathsearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjondavey/regulations-rag/internal/corpusindex"
	"github.com/sjondavey/regulations-rag/internal/llmclient"
	"github.com/sjondavey/regulations-rag/internal/rerank"
	"github.com/sjondavey/regulations-rag/pkg/domain"
)

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) Embed(ctx context.Context, text, model string, dimensions int) ([]float32, error) {
	return s.vec, nil
}

type stubIndex struct {
	workflow    []corpusindex.ScoredRow
	definitions []corpusindex.ScoredRow
	sections    []corpusindex.ScoredRow
}

func (s stubIndex) GetRelevantDefinitions(ctx context.Context, queryEmbedding []float32, threshold float32) ([]corpusindex.ScoredRow, error) {
	return s.definitions, nil
}

func (s stubIndex) GetRelevantSections(ctx context.Context, queryEmbedding []float32, threshold float32, strategy rerank.Strategy, params rerank.Params, tokenCount func(string) int, gen domain.Generator) ([]corpusindex.ScoredRow, error) {
	return s.sections, nil
}

func (s stubIndex) GetRelevantWorkflow(ctx context.Context, queryEmbedding []float32, threshold float32) ([]corpusindex.ScoredRow, error) {
	return s.workflow, nil
}

func embedParams(t *testing.T) *llmclient.EmbeddingParameters {
	t.Helper()
	p, err := llmclient.NewEmbeddingParameters("text-embedding-004", 768)
	require.NoError(t, err)
	return p
}

func TestSearchTriggersWorkflowWhenItBeatsOtherPools(t *testing.T) {
	idx := stubIndex{
		workflow:    []corpusindex.ScoredRow{{CosineDistance: 0.05}},
		definitions: []corpusindex.ScoredRow{{CosineDistance: 0.5}},
		sections:    []corpusindex.ScoredRow{{CosineDistance: 0.5}},
	}
	result, err := Search(context.Background(), stubEmbedder{vec: []float32{1, 0}}, idx, embedParams(t),
		rerank.StrategyNone, rerank.DefaultParams(), nil, nil, "trigger phrase")
	require.NoError(t, err)
	assert.True(t, result.WorkflowTriggered)
}

func TestSearchDoesNotTriggerWorkflowWhenSectionsAreCloser(t *testing.T) {
	idx := stubIndex{
		workflow:    []corpusindex.ScoredRow{{CosineDistance: 0.5}},
		definitions: []corpusindex.ScoredRow{{CosineDistance: 0.5}},
		sections:    []corpusindex.ScoredRow{{CosineDistance: 0.05}},
	}
	result, err := Search(context.Background(), stubEmbedder{vec: []float32{1, 0}}, idx, embedParams(t),
		rerank.StrategyNone, rerank.DefaultParams(), nil, nil, "a real question")
	require.NoError(t, err)
	assert.False(t, result.WorkflowTriggered)
}

func TestSearchNoWorkflowWhenPoolEmpty(t *testing.T) {
	idx := stubIndex{}
	result, err := Search(context.Background(), stubEmbedder{vec: []float32{1, 0}}, idx, embedParams(t),
		rerank.StrategyNone, rerank.DefaultParams(), nil, nil, "anything")
	require.NoError(t, err)
	assert.False(t, result.WorkflowTriggered)
	assert.Empty(t, result.Definitions)
	assert.Empty(t, result.Sections)
}

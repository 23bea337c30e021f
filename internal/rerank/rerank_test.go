package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

type stubGenerator struct {
	response string
	err      error
}

func (s stubGenerator) Generate(ctx context.Context, systemMessage string, messages []domain.ChatMessage, temperature float32, maxOutputTokens int) (string, error) {
	return s.response, s.err
}

func TestRerankMostCommonPicksModeAndTop(t *testing.T) {
	candidates := []Candidate{
		{DocumentKey: "d", SectionReference: "3", CosineDistance: 0.05},
		{DocumentKey: "d", SectionReference: "1", CosineDistance: 0.10},
		{DocumentKey: "d", SectionReference: "1", CosineDistance: 0.12},
		{DocumentKey: "d", SectionReference: "1", CosineDistance: 0.20},
		{DocumentKey: "d", SectionReference: "2", CosineDistance: 0.30},
	}

	out := RerankMostCommon(candidates)

	refs := make([]string, len(out))
	for i, c := range out {
		refs[i] = c.SectionReference
	}
	assert.Contains(t, refs, "3") // closest candidate always included
	assert.Contains(t, refs, "1") // unique mode (appears 3 times)
	assert.Len(t, refs, 2)        // "2" is a singleton and not needed once len>=2
}

func TestRerankMostCommonBackfillsSingletons(t *testing.T) {
	candidates := []Candidate{
		{DocumentKey: "d", SectionReference: "1", CosineDistance: 0.05},
		{DocumentKey: "d", SectionReference: "2", CosineDistance: 0.10},
		{DocumentKey: "d", SectionReference: "3", CosineDistance: 0.20},
	}
	out := RerankMostCommon(candidates)
	assert.GreaterOrEqual(t, len(out), 2)
}

func TestRerankMostCommonEmpty(t *testing.T) {
	assert.Nil(t, RerankMostCommon(nil))
}

func TestRerankMostCommonNeverDuplicatesASection(t *testing.T) {
	candidates := []Candidate{
		{DocumentKey: "d", SectionReference: "1", CosineDistance: 0.05},
		{DocumentKey: "d", SectionReference: "1", CosineDistance: 0.10},
	}
	out := RerankMostCommon(candidates)
	seen := map[string]bool{}
	for _, c := range out {
		assert.False(t, seen[c.key()], "section emitted twice")
		seen[c.key()] = true
	}
}

func TestRerankLLMParsesPipeDelimitedIndices(t *testing.T) {
	candidates := []Candidate{
		{DocumentKey: "d", SectionReference: "1", Text: "first"},
		{DocumentKey: "d", SectionReference: "2", Text: "second"},
		{DocumentKey: "d", SectionReference: "3", Text: "third"},
	}
	gen := stubGenerator{response: "2|0"}

	out, err := RerankLLM(context.Background(), candidates, gen)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "3", out[0].SectionReference)
	assert.Equal(t, "1", out[1].SectionReference)
}

func TestRerankLLMIgnoresOutOfRangeAndDuplicateIndices(t *testing.T) {
	candidates := []Candidate{
		{DocumentKey: "d", SectionReference: "1", Text: "first"},
	}
	gen := stubGenerator{response: "0|0|9|notanumber"}

	out, err := RerankLLM(context.Background(), candidates, gen)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRerankLLMRequiresGenerator(t *testing.T) {
	_, err := RerankLLM(context.Background(), []Candidate{{DocumentKey: "d", SectionReference: "1"}}, nil)
	assert.Error(t, err)
}

func TestRerankDispatchesByStrategy(t *testing.T) {
	candidates := []Candidate{{DocumentKey: "d", SectionReference: "1"}}

	out, err := Rerank(context.Background(), StrategyNone, candidates, nil)
	require.NoError(t, err)
	assert.Equal(t, candidates, out)

	_, err = Rerank(context.Background(), Strategy("bogus"), candidates, nil)
	assert.Error(t, err)
}

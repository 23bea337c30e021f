package corpusindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjondavey/regulations-rag/internal/rerank"
)

func TestGetRelevantDefinitionsFiltersByThreshold(t *testing.T) {
	idx := NewInMemoryIndex(
		[]Row{
			{SectionReference: "close", Embedding: []float32{1, 0}},
			{SectionReference: "far", Embedding: []float32{0, 1}},
		},
		nil, nil, nil,
	)

	out, err := idx.GetRelevantDefinitions(context.Background(), []float32{1, 0}, 0.5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "close", out[0].SectionReference)
}

func TestGetRelevantDefinitionsSortedByDistance(t *testing.T) {
	idx := NewInMemoryIndex(
		[]Row{
			{SectionReference: "a", Embedding: []float32{0.9, 0.1}},
			{SectionReference: "b", Embedding: []float32{1, 0}},
		},
		nil, nil, nil,
	)
	out, err := idx.GetRelevantDefinitions(context.Background(), []float32{1, 0}, 1.0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].SectionReference)
	assert.Equal(t, "a", out[1].SectionReference)
}

func TestGetRelevantSectionsMaterializesTextAndCapsTokens(t *testing.T) {
	sections := []Row{
		{DocumentKey: "d", SectionReference: "1", Text: "short excerpt", Embedding: []float32{1, 0}},
		{DocumentKey: "d", SectionReference: "2", Text: "short excerpt", Embedding: []float32{0.9, 0.1}},
	}
	getText := func(documentKey, sectionReference string) (string, error) {
		return "materialized:" + sectionReference, nil
	}
	idx := NewInMemoryIndex(nil, sections, nil, getText)

	out, err := idx.GetRelevantSections(context.Background(), []float32{1, 0}, 1.0,
		rerank.StrategyNone, rerank.Params{InitialSectionCap: 15, FinalTokenCap: 1000},
		func(string) int { return 1 }, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "materialized:1", out[0].Text)
}

func TestGetRelevantSectionsEmptyWhenNothingMatches(t *testing.T) {
	idx := NewInMemoryIndex(nil, []Row{{SectionReference: "1", Embedding: []float32{0, 1}}}, nil, nil)
	out, err := idx.GetRelevantSections(context.Background(), []float32{1, 0}, 0.1,
		rerank.StrategyNone, rerank.DefaultParams(), func(string) int { return 1 }, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCapByTokenBudgetKeepsOversizedFirstRowAlone(t *testing.T) {
	rows := []ScoredRow{
		{Row: Row{Text: "huge"}, CosineDistance: 0.1},
		{Row: Row{Text: "small"}, CosineDistance: 0.2},
	}
	tokenCount := func(s string) int {
		if s == "huge" {
			return 1000
		}
		return 1
	}
	out := capByTokenBudget(rows, 10, tokenCount)
	require.Len(t, out, 1)
	assert.Equal(t, "huge", out[0].Text)
}

func TestCapByTokenBudgetStopsBeforeExceedingCap(t *testing.T) {
	rows := []ScoredRow{
		{Row: Row{Text: "a"}, CosineDistance: 0.1},
		{Row: Row{Text: "b"}, CosineDistance: 0.2},
		{Row: Row{Text: "c"}, CosineDistance: 0.3},
	}
	tokenCount := func(string) int { return 5 }
	out := capByTokenBudget(rows, 12, tokenCount)
	assert.Len(t, out, 2)
}

func TestCapByTokenBudgetCapsToFive(t *testing.T) {
	var rows []ScoredRow
	for i := 0; i < 8; i++ {
		rows = append(rows, ScoredRow{Row: Row{Text: "x"}, CosineDistance: float32(i)})
	}
	tokenCount := func(string) int { return 1 }
	out := capByTokenBudget(rows, 1000, tokenCount)
	assert.Len(t, out, 5)
}

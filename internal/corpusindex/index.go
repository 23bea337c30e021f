// Package corpusindex resolves a question embedding into the definitions, sections, and
// workflow triggers most likely to help answer it. InMemoryIndex holds its rows as plain
// slices and scores them with cosine distance in-process; TursoIndex (turso.go) delegates
// the same scoring to libSQL's native vector functions for corpora too large to hold in
// memory.
package corpusindex

import (
	"context"
	"math"
	"sort"

	"github.com/sjondavey/regulations-rag/internal/rerank"
	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// Row is one embedded unit of retrievable content: a definition, a section, or a
// workflow trigger phrase, depending on which table it lives in.
type Row struct {
	DocumentKey      string
	DocumentName     string
	SectionReference string
	Text             string
	Source           string
	Embedding        []float32
	IsDefinition     bool
}

// ScoredRow pairs a Row with its cosine distance from a query embedding.
type ScoredRow struct {
	Row
	CosineDistance float32
}

// Index is the retrieval surface an orchestrator queries against. It mirrors the
// three-table shape (definitions, sections/index, workflow) used throughout the
// reference design: a flat list of embedded candidates per kind, filtered and ranked
// per call.
type Index interface {
	GetRelevantDefinitions(ctx context.Context, queryEmbedding []float32, threshold float32) ([]ScoredRow, error)
	GetRelevantSections(ctx context.Context, queryEmbedding []float32, threshold float32, strategy rerank.Strategy, params rerank.Params, tokenCount func(string) int, gen domain.Generator) ([]ScoredRow, error)
	GetRelevantWorkflow(ctx context.Context, queryEmbedding []float32, threshold float32) ([]ScoredRow, error)
}

// InMemoryIndex implements Index over in-process slices, scoring every row by cosine
// distance on each call. It is intended for corpora small enough to fit comfortably in
// memory; TursoIndex should be preferred once a corpus outgrows that.
type InMemoryIndex struct {
	definitions []Row
	sections    []Row
	workflow    []Row
	getText     func(documentKey, sectionReference string) (string, error)
}

// NewInMemoryIndex builds an index from the three embedded row sets. getText is used by
// GetRelevantSections to materialize each surviving section's full text (with markdown
// decorators) before it is returned, since retrieval rows only carry the cosine-scored
// excerpt used for matching.
func NewInMemoryIndex(definitions, sections, workflow []Row, getText func(documentKey, sectionReference string) (string, error)) *InMemoryIndex {
	return &InMemoryIndex{definitions: definitions, sections: sections, workflow: workflow, getText: getText}
}

func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	cosine := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return float32(1 - cosine)
}

func closestNodes(rows []Row, query []float32, threshold float32) []ScoredRow {
	var out []ScoredRow
	for _, r := range rows {
		d := cosineDistance(r.Embedding, query)
		if d < threshold {
			out = append(out, ScoredRow{Row: r, CosineDistance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CosineDistance < out[j].CosineDistance })
	return out
}

func (idx *InMemoryIndex) GetRelevantDefinitions(_ context.Context, query []float32, threshold float32) ([]ScoredRow, error) {
	return closestNodes(idx.definitions, query, threshold), nil
}

func (idx *InMemoryIndex) GetRelevantWorkflow(_ context.Context, query []float32, threshold float32) ([]ScoredRow, error) {
	return closestNodes(idx.workflow, query, threshold), nil
}

// GetRelevantSections filters by cosine distance, caps the pool to
// params.InitialSectionCap closest candidates, reranks, materializes full section text
// for survivors, and finally caps the result to params.FinalTokenCap accumulated tokens,
// returning at most the five closest-scoring sections that fit.
func (idx *InMemoryIndex) GetRelevantSections(ctx context.Context, query []float32, threshold float32, strategy rerank.Strategy, params rerank.Params, tokenCount func(string) int, gen domain.Generator) ([]ScoredRow, error) {
	scored := closestNodes(idx.sections, query, threshold)
	if len(scored) == 0 {
		return nil, nil
	}
	if len(scored) > params.InitialSectionCap {
		scored = scored[:params.InitialSectionCap]
	}

	candidates := make([]rerank.Candidate, 0, len(scored))
	byKey := make(map[string]ScoredRow, len(scored))
	for _, s := range scored {
		c := rerank.Candidate{
			SectionReference: s.SectionReference,
			DocumentKey:      s.DocumentKey,
			Text:             s.Text,
			CosineDistance:   s.CosineDistance,
		}
		candidates = append(candidates, c)
		byKey[s.DocumentKey+"|"+s.SectionReference] = s
	}

	reranked, err := rerank.Rerank(ctx, strategy, candidates, gen)
	if err != nil {
		return nil, err
	}
	if len(reranked) == 0 {
		return nil, nil
	}

	materialized := make([]ScoredRow, 0, len(reranked))
	for _, c := range reranked {
		row := byKey[c.DocumentKey+"|"+c.SectionReference]
		if idx.getText != nil {
			if text, err := idx.getText(row.DocumentKey, row.SectionReference); err == nil {
				row.Text = text
			}
		}
		materialized = append(materialized, row)
	}

	return capByTokenBudget(materialized, params.FinalTokenCap, tokenCount), nil
}

// capByTokenBudget walks rows in their given order, accumulating token counts, and
// stops before the running total would exceed cap. If even the first row alone exceeds
// cap, that row is kept alone rather than returning nothing. The survivors are then
// sorted ascending by cosine distance and capped to at most five, matching the final
// shape handed to prompt construction.
func capByTokenBudget(rows []ScoredRow, cap int, tokenCount func(string) int) []ScoredRow {
	if len(rows) == 0 {
		return nil
	}
	if tokenCount == nil {
		tokenCount = func(string) int { return 0 }
	}

	var kept []ScoredRow
	total := 0
	for i, r := range rows {
		n := tokenCount(r.Text)
		if i == 0 && n > cap {
			kept = append(kept, r)
			break
		}
		if total+n > cap {
			break
		}
		total += n
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].CosineDistance < kept[j].CosineDistance })
	if len(kept) > 5 {
		kept = kept[:5]
	}
	return kept
}

var _ Index = (*InMemoryIndex)(nil)

package corpusindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sjondavey/regulations-rag/internal/rerank"
	"github.com/sjondavey/regulations-rag/pkg/domain"
	"github.com/tursodatabase/libsql-client-go/libsql"
)

// TursoIndex implements Index against three libSQL tables (definitions, sections,
// workflow), each carrying an F32_BLOB embedding column and scored via libSQL's native
// vector_distance_cos, for corpora too large to embed and rank in process memory.
type TursoIndex struct {
	db               *sql.DB
	definitionsTable string
	sectionsTable    string
	workflowTable    string
	getText          func(documentKey, sectionReference string) (string, error)
}

// TursoIndexConfig names the three tables backing a TursoIndex. Each table is expected
// to carry the columns (document_key, document_name, section_reference, text, source,
// embedding) — embedding stored as F32_BLOB via vector32().
type TursoIndexConfig struct {
	URL              string
	AuthToken        string
	DefinitionsTable string
	SectionsTable    string
	WorkflowTable    string
}

// NewTursoIndex opens a libSQL connection and returns an Index backed by it.
func NewTursoIndex(ctx context.Context, cfg TursoIndexConfig, getText func(documentKey, sectionReference string) (string, error)) (*TursoIndex, error) {
	connector, err := libsql.NewConnector(cfg.URL, libsql.WithAuthToken(cfg.AuthToken))
	if err != nil {
		return nil, fmt.Errorf("corpusindex: creating libsql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("corpusindex: connecting to libsql: %w", err)
	}
	return &TursoIndex{
		db:               db,
		definitionsTable: cfg.DefinitionsTable,
		sectionsTable:    cfg.SectionsTable,
		workflowTable:    cfg.WorkflowTable,
		getText:          getText,
	}, nil
}

func (t *TursoIndex) Close() error { return t.db.Close() }

func (t *TursoIndex) closestNodes(ctx context.Context, table string, query []float32, threshold float32, limit int) ([]ScoredRow, error) {
	embeddingJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("corpusindex: serializing query embedding: %w", err)
	}

	sqlText := fmt.Sprintf(`
		SELECT document_key, document_name, section_reference, text, source,
		       vector_distance_cos(embedding, vector32(?)) AS distance
		FROM %s
		ORDER BY distance ASC
		LIMIT ?`, table)

	rows, err := t.db.QueryContext(ctx, sqlText, string(embeddingJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("corpusindex: querying %s: %w", table, err)
	}
	defer rows.Close()

	var out []ScoredRow
	for rows.Next() {
		var r ScoredRow
		if err := rows.Scan(&r.DocumentKey, &r.DocumentName, &r.SectionReference, &r.Text, &r.Source, &r.CosineDistance); err != nil {
			return nil, fmt.Errorf("corpusindex: scanning %s row: %w", table, err)
		}
		if r.CosineDistance < threshold {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

func (t *TursoIndex) GetRelevantDefinitions(ctx context.Context, query []float32, threshold float32) ([]ScoredRow, error) {
	rows, err := t.closestNodes(ctx, t.definitionsTable, query, threshold, 50)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].IsDefinition = true
	}
	return rows, nil
}

func (t *TursoIndex) GetRelevantWorkflow(ctx context.Context, query []float32, threshold float32) ([]ScoredRow, error) {
	return t.closestNodes(ctx, t.workflowTable, query, threshold, 10)
}

func (t *TursoIndex) GetRelevantSections(ctx context.Context, query []float32, threshold float32, strategy rerank.Strategy, params rerank.Params, tokenCount func(string) int, gen domain.Generator) ([]ScoredRow, error) {
	scored, err := t.closestNodes(ctx, t.sectionsTable, query, threshold, params.InitialSectionCap)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, nil
	}

	candidates := make([]rerank.Candidate, 0, len(scored))
	byKey := make(map[string]ScoredRow, len(scored))
	for _, s := range scored {
		candidates = append(candidates, rerank.Candidate{
			SectionReference: s.SectionReference,
			DocumentKey:      s.DocumentKey,
			Text:             s.Text,
			CosineDistance:   s.CosineDistance,
		})
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
		if t.getText != nil {
			if text, err := t.getText(row.DocumentKey, row.SectionReference); err == nil {
				row.Text = text
			}
		}
		materialized = append(materialized, row)
	}

	return capByTokenBudget(materialized, params.FinalTokenCap, tokenCount), nil
}

var _ Index = (*TursoIndex)(nil)

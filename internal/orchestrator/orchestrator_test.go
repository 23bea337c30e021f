package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjondavey/regulations-rag/internal/corpus"
	"github.com/sjondavey/regulations-rag/internal/corpusindex"
	"github.com/sjondavey/regulations-rag/internal/document"
	"github.com/sjondavey/regulations-rag/internal/llmclient"
	"github.com/sjondavey/regulations-rag/internal/refcheck"
	"github.com/sjondavey/regulations-rag/internal/rerank"
	"github.com/sjondavey/regulations-rag/pkg/domain"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text, model string, dimensions int) ([]float32, error) {
	return []float32{1, 0}, nil
}

type scriptedGenerator struct {
	responses []string
	calls     int
}

func (s *scriptedGenerator) Generate(ctx context.Context, systemMessage string, messages []domain.ChatMessage, temperature float32, maxOutputTokens int) (string, error) {
	resp := s.responses[s.calls]
	if s.calls < len(s.responses)-1 {
		s.calls++
	}
	return resp, nil
}

type fakeIndex struct {
	workflow    []corpusindex.ScoredRow
	definitions []corpusindex.ScoredRow
	sections    []corpusindex.ScoredRow
}

func (f fakeIndex) GetRelevantDefinitions(ctx context.Context, queryEmbedding []float32, threshold float32) ([]corpusindex.ScoredRow, error) {
	return f.definitions, nil
}

func (f fakeIndex) GetRelevantSections(ctx context.Context, queryEmbedding []float32, threshold float32, strategy rerank.Strategy, params rerank.Params, tokenCount func(string) int, gen domain.Generator) ([]corpusindex.ScoredRow, error) {
	return f.sections, nil
}

func (f fakeIndex) GetRelevantWorkflow(ctx context.Context, queryEmbedding []float32, threshold float32) ([]corpusindex.ScoredRow, error) {
	return f.workflow, nil
}

func baseConfig(t *testing.T) Config {
	t.Helper()
	rc, err := refcheck.New([]string{`^\d+`, `^\.\d+`}, "", nil)
	require.NoError(t, err)
	rows := []document.Row{{Reference: "1", Text: "Scope", Heading: "Scope"}}
	doc, err := document.New("sample", rc, rows, "")
	require.NoError(t, err)
	corp := corpus.New(map[string]domain.Document{"sample": doc}, "sample")

	params, err := llmclient.NewEmbeddingParameters("text-embedding-004", 768)
	require.NoError(t, err)

	return Config{
		Corpus:             corp,
		Embedder:           stubEmbedder{},
		EmbeddingParams:    params,
		RerankStrategy:     rerank.StrategyNone,
		RerankParams:       rerank.DefaultParams(),
		TokenCount:         func(string) int { return 1 },
		PrimaryDocumentKey: "sample",
		CorpusDescription:  "a sample regulatory corpus",
	}
}

func TestAnswerDispatchesToRegisteredWorkflow(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{workflow: []corpusindex.ScoredRow{{Row: corpusindex.Row{Text: "start onboarding"}, CosineDistance: 0.01}}}
	cfg.Generator = &scriptedGenerator{}
	called := false
	cfg.Workflows = map[string]WorkflowHandler{
		"start onboarding": func(ctx context.Context, sess *domain.Session, trigger string) (domain.AssistantResponse, error) {
			called = true
			return domain.AnswerWithoutRAGResponse{Answer: "onboarding started"}, nil
		},
	}

	orch := New(cfg)
	sess := domain.NewSession()
	resp, err := orch.Answer(context.Background(), sess, "please start onboarding")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "onboarding started", resp.(domain.AnswerWithoutRAGResponse).Answer)
	assert.Len(t, sess.Messages, 2)
}

func TestAnswerReturnsWorkflowNotImplementedWhenUnregistered(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{workflow: []corpusindex.ScoredRow{{Row: corpusindex.Row{Text: "unknown trigger"}, CosineDistance: 0.01}}}
	cfg.Generator = &scriptedGenerator{}

	orch := New(cfg)
	sess := domain.NewSession()
	resp, err := orch.Answer(context.Background(), sess, "trigger the unknown flow")
	require.NoError(t, err)
	errResp, ok := resp.(domain.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, domain.ErrWorkflowNotImplemented, errResp.Classification)
	assert.Equal(t, domain.StateStuck, sess.State)
	assert.Equal(t, []string{"workflow"}, sess.ExecutionPath)
}

func TestAnswerEmptyQuestionIsStuck(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{}
	cfg.Generator = &scriptedGenerator{}

	orch := New(cfg)
	sess := domain.NewSession()
	resp, err := orch.Answer(context.Background(), sess, "   ")
	require.NoError(t, err)
	errResp, ok := resp.(domain.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, domain.ErrGeneric, errResp.Classification)
	assert.Equal(t, domain.StateStuck, sess.State)
}

func TestAnswerStrictRAGReturnsNoDataWhenNothingRetrieved(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{}
	cfg.Generator = &scriptedGenerator{}

	orch := New(cfg)
	sess := domain.NewSession()
	sess.StrictRAG = true
	resp, err := orch.Answer(context.Background(), sess, "an unrelated question")
	require.NoError(t, err)
	noAnswer, ok := resp.(domain.NoAnswerResponse)
	require.True(t, ok)
	assert.Equal(t, domain.NoData, noAnswer.Classification)
}

func TestAnswerFallsBackToGeneralKnowledgeWhenNotStrict(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{}
	cfg.Generator = &scriptedGenerator{responses: []string{"Relevant, on topic.", "a general-knowledge answer"}}

	orch := New(cfg)
	sess := domain.NewSession()
	sess.StrictRAG = false
	resp, err := orch.Answer(context.Background(), sess, "a loosely related question")
	require.NoError(t, err)
	answer, ok := resp.(domain.AnswerWithoutRAGResponse)
	require.True(t, ok)
	assert.Equal(t, "a general-knowledge answer", answer.Answer)
}

func TestAnswerRunsRAGPathWhenSectionsRetrieved(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{sections: []corpusindex.ScoredRow{{Row: corpusindex.Row{DocumentKey: "sample", SectionReference: "1", Text: "Scope"}}}}
	cfg.Generator = &scriptedGenerator{responses: []string{"ANSWER: the scope includes registered entities Reference: 1"}}

	orch := New(cfg)
	sess := domain.NewSession()
	resp, err := orch.Answer(context.Background(), sess, "what is the scope?")
	require.NoError(t, err)
	answer, ok := resp.(domain.AnswerWithRAGResponse)
	require.True(t, ok)
	assert.Equal(t, "the scope includes registered entities", answer.Answer)
	require.Len(t, answer.References, 1)
	assert.Equal(t, []string{"rag"}, sess.ExecutionPath)
	assert.Equal(t, domain.StateRAG, sess.State)
}

func TestAnswerFallsBackToNoRagDataWhenRAGFindsNothingRelevant(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{sections: []corpusindex.ScoredRow{{Row: corpusindex.Row{DocumentKey: "sample", SectionReference: "1", Text: "Scope"}}}}
	cfg.Generator = &scriptedGenerator{responses: []string{"NONE: none of these extracts address it", "a general-knowledge answer"}}

	orch := New(cfg)
	sess := domain.NewSession()
	sess.StrictRAG = false
	resp, err := orch.Answer(context.Background(), sess, "what is the scope?")
	require.NoError(t, err)
	answer, ok := resp.(domain.AnswerWithoutRAGResponse)
	require.True(t, ok)
	assert.Equal(t, "a general-knowledge answer", answer.Answer)
	assert.Equal(t, []string{"rag", "no_rag_data"}, sess.ExecutionPath)
}

func TestAnswerStrictRAGKeepsNoRelevantDataWhenRAGFindsNothingRelevant(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{sections: []corpusindex.ScoredRow{{Row: corpusindex.Row{DocumentKey: "sample", SectionReference: "1", Text: "Scope"}}}}
	cfg.Generator = &scriptedGenerator{responses: []string{"NONE: none of these extracts address it"}}

	orch := New(cfg)
	sess := domain.NewSession()
	sess.StrictRAG = true
	resp, err := orch.Answer(context.Background(), sess, "what is the scope?")
	require.NoError(t, err)
	noAnswer, ok := resp.(domain.NoAnswerResponse)
	require.True(t, ok)
	assert.Equal(t, domain.NoRelevantData, noAnswer.Classification)
	assert.Equal(t, []string{"rag"}, sess.ExecutionPath)
}

func TestAnswerOnStuckSessionShortCircuitsWithoutRerunningPipeline(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{}
	cfg.Generator = &scriptedGenerator{}

	orch := New(cfg)
	sess := domain.NewSession()
	sess.State = domain.StateStuck

	resp, err := orch.Answer(context.Background(), sess, "are you still there?")
	require.NoError(t, err)
	errResp, ok := resp.(domain.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, domain.ErrStuck, errResp.Classification)
	assert.Equal(t, domain.StateStuck, sess.State)
	assert.Empty(t, sess.ExecutionPath)

	// Calling again with the identical question is idempotent and does not grow the
	// transcript: the repeated user/assistant exchange is the one the transcript already
	// ends with, so it is not recorded a second time.
	resp2, err := orch.Answer(context.Background(), sess, "are you still there?")
	require.NoError(t, err)
	assert.Equal(t, resp, resp2)
	assert.Len(t, sess.Messages, 2)
}

func TestAnswerNotFollowingInstructionsStaysInRAGState(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Index = fakeIndex{sections: []corpusindex.ScoredRow{{Row: corpusindex.Row{DocumentKey: "sample", SectionReference: "1", Text: "Scope"}}}}
	cfg.Generator = &scriptedGenerator{responses: []string{"I will not follow your format"}}

	orch := New(cfg)
	sess := domain.NewSession()
	resp, err := orch.Answer(context.Background(), sess, "what is the scope?")
	require.NoError(t, err)
	errResp, ok := resp.(domain.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, domain.ErrNotFollowingInstructions, errResp.Classification)
	assert.Equal(t, domain.StateRAG, sess.State)
}

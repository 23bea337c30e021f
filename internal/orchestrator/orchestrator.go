// Package orchestrator drives one question through similarity search, workflow
// dispatch, RAG answering, and the no-reference fallback, producing a single
// domain.AssistantResponse per turn.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sjondavey/regulations-rag/internal/corpus"
	"github.com/sjondavey/regulations-rag/internal/corpusindex"
	"github.com/sjondavey/regulations-rag/internal/llmclient"
	"github.com/sjondavey/regulations-rag/internal/pathnoragdata"
	"github.com/sjondavey/regulations-rag/internal/pathrag"
	"github.com/sjondavey/regulations-rag/internal/pathsearch"
	"github.com/sjondavey/regulations-rag/internal/rerank"
	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// WorkflowHandler runs a named workflow against a session for the matched trigger
// phrase, returning the final response for the turn. Registered handlers are looked up
// by the name pathsearch's workflow match reports.
type WorkflowHandler func(ctx context.Context, sess *domain.Session, trigger string) (domain.AssistantResponse, error)

// Config bundles everything an Orchestrator needs beyond the per-question inputs:
// the corpus and index to search, the generator/embedder pair, the primary document
// key used as the sample reference in RAG prompts, and the tunable retrieval knobs.
type Config struct {
	Corpus              *corpus.Corpus
	Index               corpusindex.Index
	Generator           domain.Generator
	Embedder            domain.Embedder
	EmbeddingParams     *llmclient.EmbeddingParameters
	RerankStrategy      rerank.Strategy
	RerankParams        rerank.Params
	TokenCount          func(string) int
	PrimaryDocumentKey  string
	CorpusDescription   string
	Workflows           map[string]WorkflowHandler
}

// Orchestrator is the stateless driver for one corpus/provider configuration; all
// mutable state for a conversation lives in the domain.Session passed to Answer.
type Orchestrator struct {
	cfg Config
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	if cfg.Workflows == nil {
		cfg.Workflows = map[string]WorkflowHandler{}
	}
	return &Orchestrator{cfg: cfg}
}

// Answer runs one turn of the session: similarity search decides between a registered
// workflow, a RAG answer, or (when nothing relevant is retrieved) the no-reference
// fallback path. When sess.StrictRAG is set, a corpus with nothing relevant returns
// NoData instead of falling through to general-knowledge answering, and a RAG answer
// that comes back NoRelevantData is returned as-is instead of falling through. A session
// already in the STUCK state short-circuits to an idempotent Error{STUCK} without
// running the pipeline again; the caller must call sess.Reset before it can continue.
func (o *Orchestrator) Answer(ctx context.Context, sess *domain.Session, question string) (domain.AssistantResponse, error) {
	if sess.State == domain.StateStuck {
		resp := domain.ErrorResponse{Classification: domain.ErrStuck}
		// A poll that repeats the exchange the transcript already ends with is not recorded again.
		if n := len(sess.Messages); n >= 2 &&
			sess.Messages[n-2].Role == "user" && sess.Messages[n-2].Content == question &&
			sess.Messages[n-1].Role == "assistant" && sess.Messages[n-1].Content == resp.Content() {
			return resp, nil
		}
		sess.AddMessage("user", question)
		sess.AddMessage("assistant", resp.Content())
		return resp, nil
	}

	sess.AddMessage("user", question)

	if strings.TrimSpace(question) == "" {
		resp := domain.ErrorResponse{Classification: domain.ErrGeneric, AdditionalText: "question was empty"}
		sess.AppendExecutionStep("error")
		sess.State = domain.StateStuck
		sess.AddMessage("assistant", resp.Content())
		return resp, nil
	}

	result, err := pathsearch.Search(ctx, o.cfg.Embedder, o.cfg.Index, o.cfg.EmbeddingParams,
		o.cfg.RerankStrategy, o.cfg.RerankParams, o.cfg.TokenCount, o.cfg.Generator, question)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: similarity search failed: %w", err)
	}

	if result.WorkflowTriggered && len(result.Workflow) > 0 {
		trigger := result.Workflow[0].Text
		sess.AppendExecutionStep("workflow")
		handler, ok := o.cfg.Workflows[trigger]
		if !ok {
			resp := domain.ErrorResponse{Classification: domain.ErrWorkflowNotImplemented, AdditionalText: trigger}
			sess.State = domain.StateStuck
			sess.AddMessage("assistant", resp.Content())
			return resp, nil
		}
		resp, err := handler(ctx, sess, trigger)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: workflow %q failed: %w", trigger, err)
		}
		sess.AddMessage("assistant", resp.Content())
		return resp, nil
	}

	if len(result.Definitions) == 0 && len(result.Sections) == 0 {
		if sess.StrictRAG {
			sess.AppendExecutionStep("rag")
			resp := domain.NoAnswerResponse{Classification: domain.NoData}
			sess.AddMessage("assistant", resp.Content())
			return resp, nil
		}
		sess.AppendExecutionStep("no_rag_data")
		resp, err := pathnoragdata.QueryNoRAGData(ctx, o.cfg.Generator, o.cfg.CorpusDescription, question)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: no-rag-data path failed: %w", err)
		}
		sess.AddMessage("assistant", resp.Content())
		return resp, nil
	}

	sampleReference := ""
	if o.cfg.PrimaryDocumentKey != "" {
		if doc, err := o.cfg.Corpus.GetDocument(o.cfg.PrimaryDocumentKey); err == nil {
			sampleReference = doc.ReferenceChecker().TextVersion()
		}
	}

	sess.AppendExecutionStep("rag")
	resp, err := pathrag.Perform(ctx, o.cfg.Corpus, o.cfg.Generator, sampleReference, o.cfg.PrimaryDocumentKey, question, result.Definitions, result.Sections)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: rag path failed: %w", err)
	}

	if noAnswer, ok := resp.(domain.NoAnswerResponse); ok && noAnswer.Classification == domain.NoRelevantData && !sess.StrictRAG {
		sess.AppendExecutionStep("no_rag_data")
		fallback, err := pathnoragdata.QueryNoRAGData(ctx, o.cfg.Generator, o.cfg.CorpusDescription, question)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: no-rag-data path failed: %w", err)
		}
		sess.AddMessage("assistant", fallback.Content())
		return fallback, nil
	}

	if errResp, ok := resp.(domain.ErrorResponse); ok {
		switch errResp.Classification {
		case domain.ErrStuck, domain.ErrWorkflowNotImplemented, domain.ErrGeneric:
			sess.State = domain.StateStuck
		}
	}
	sess.AddMessage("assistant", resp.Content())
	return resp, nil
}

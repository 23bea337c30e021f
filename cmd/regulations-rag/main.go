// Command regulations-rag wires a small hierarchically-referenced document corpus to
// the orchestrator and answers questions from stdin, one per line, until EOF.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sjondavey/regulations-rag/internal/corpus"
	"github.com/sjondavey/regulations-rag/internal/corpusindex"
	"github.com/sjondavey/regulations-rag/internal/document"
	"github.com/sjondavey/regulations-rag/internal/llmclient"
	"github.com/sjondavey/regulations-rag/internal/logging"
	"github.com/sjondavey/regulations-rag/internal/orchestrator"
	"github.com/sjondavey/regulations-rag/internal/refcheck"
	"github.com/sjondavey/regulations-rag/internal/rerank"
	"github.com/sjondavey/regulations-rag/pkg/config"
	"github.com/sjondavey/regulations-rag/pkg/domain"
)

func main() {
	ctx := context.Background()

	cfgManager := config.NewManager()
	if err := cfgManager.Load(); err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	if err := cfgManager.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	cfg := cfgManager.Get()

	logger := logging.New(os.Stdout, logging.LevelDev)

	client, err := llmclient.NewGenkitClient(ctx, cfg.GoogleAI.APIKey, cfg.GoogleAI.ChatModel, llmclient.RetryConfig{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  durationMs(cfg.Retry.BaseDelayMs),
		MaxDelay:   durationMs(cfg.Retry.MaxDelayMs),
	}, logger)
	if err != nil {
		log.Fatalf("initializing genkit client: %v", err)
	}

	manager := llmclient.NewManager(logger)
	manager.Register("google_ai", client, client)

	embedParams, err := llmclient.NewEmbeddingParameters(cfg.GoogleAI.EmbeddingModel, cfg.GoogleAI.EmbeddingDimensions)
	if err != nil {
		log.Fatalf("resolving embedding parameters: %v", err)
	}

	corp, index := buildSampleCorpus(ctx, manager, embedParams)

	orch := orchestrator.New(orchestrator.Config{
		Corpus:             corp,
		Index:              index,
		Generator:          manager,
		Embedder:           manager,
		EmbeddingParams:    embedParams,
		RerankStrategy:     rerank.Strategy(cfg.Retrieval.RerankStrategy),
		RerankParams:       rerank.Params{InitialSectionCap: cfg.Retrieval.InitialSectionCap, FinalTokenCap: cfg.Retrieval.FinalTokenCap},
		TokenCount:         func(s string) int { return llmclient.NumTokensFromString(s, cfg.GoogleAI.ChatModel) },
		PrimaryDocumentKey: cfg.RAG.PrimaryDocumentKey,
		CorpusDescription:  cfg.RAG.CorpusDescription,
	})

	sess := domain.NewSession()
	sess.StrictRAG = cfg.RAG.StrictRAG
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("regulations-rag ready. Ask a question (Ctrl-D to exit):")
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		resp, err := orch.Answer(ctx, sess, question)
		if err != nil {
			logger.Error("answer failed", "error", err)
			continue
		}
		fmt.Println(resp.Content())
	}
}

func durationMs(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// buildSampleCorpus registers one small document so the binary runs end-to-end out of
// the box; real deployments replace this with documents loaded from disk or a CMS.
func buildSampleCorpus(ctx context.Context, embedder domain.Embedder, params *llmclient.EmbeddingParameters) (*corpus.Corpus, corpusindex.Index) {
	rc, err := refcheck.New([]string{`^\d+`, `^\.\d+`, `^\([a-z]\)`}, "1.1(a)", nil)
	if err != nil {
		log.Fatalf("building reference checker: %v", err)
	}

	rows := []document.Row{
		{Reference: "1", Text: "Scope", Heading: "Scope"},
		{Reference: "1.1", Text: "This part applies to all registered entities.", Heading: "Application"},
		{Reference: "2", Text: "Definitions", Heading: "Definitions"},
		{Reference: "2.1", Text: "\"Entity\" means any person or organization subject to this part.", Heading: "Entity"},
	}

	doc, err := document.New("sample-regulation", rc, rows, "")
	if err != nil {
		log.Fatalf("building sample document: %v", err)
	}

	corp := corpus.New(map[string]domain.Document{"sample-regulation": doc}, "sample-regulation")

	var sections, definitions []corpusindex.Row
	for _, r := range rows {
		vec, err := embedder.Embed(ctx, r.Text, params.Model, params.Dimensions)
		if err != nil {
			log.Fatalf("embedding row %s: %v", r.Reference, err)
		}
		row := corpusindex.Row{
			DocumentKey:      "sample-regulation",
			DocumentName:     "Sample Regulation",
			SectionReference: r.Reference,
			Text:             r.Text,
			Embedding:        vec,
		}
		if strings.HasPrefix(r.Reference, "2") {
			row.IsDefinition = true
			definitions = append(definitions, row)
		} else {
			sections = append(sections, row)
		}
	}

	index := corpusindex.NewInMemoryIndex(definitions, sections, nil, func(documentKey, sectionReference string) (string, error) {
		return corp.GetText(documentKey, sectionReference, true, true, false)
	})

	return corp, index
}

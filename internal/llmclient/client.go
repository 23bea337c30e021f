// Package llmclient adapts Genkit's generation and embedding surfaces to the narrow
// domain.Generator/domain.Embedder interfaces the rest of this module depends on, and
// layers a primary/fallback Manager on top for multi-provider resilience.
package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sjondavey/regulations-rag/pkg/domain"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// RetryConfig bounds the exponential backoff applied to a single provider before it is
// declared failed for this call and the Manager moves on to the next one.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns three retries with a one-second base delay capped at thirty
// seconds. These values differ from pkg/config's retry defaults (500ms base, 8s cap),
// which are what cmd/regulations-rag passes to NewGenkitClient.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// GenkitClient implements domain.Generator and domain.Embedder over a single Genkit
// instance configured with the googlegenai plugin.
type GenkitClient struct {
	g           *genkit.Genkit
	model       string
	retry       RetryConfig
	logger      domain.Logger
}

// NewGenkitClient initializes Genkit with the googlegenai plugin for apiKey and returns
// a client that defaults to defaultModel for calls that don't override it.
func NewGenkitClient(ctx context.Context, apiKey, defaultModel string, retry RetryConfig, logger domain.Logger) (*GenkitClient, error) {
	g, err := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: apiKey}))
	if err != nil {
		return nil, fmt.Errorf("llmclient: initializing genkit: %w", err)
	}
	return &GenkitClient{g: g, model: defaultModel, retry: retry, logger: logger}, nil
}

// Generate sends systemMessage plus messages to the configured model, retrying
// transient failures with exponential backoff.
func (c *GenkitClient) Generate(ctx context.Context, systemMessage string, messages []domain.ChatMessage, temperature float32, maxOutputTokens int) (string, error) {
	model := googlegenai.GoogleAIModel(c.g, c.model)

	var prompt strings.Builder
	if systemMessage != "" {
		prompt.WriteString(systemMessage)
		prompt.WriteString("\n\n")
	}
	for _, m := range messages {
		fmt.Fprintf(&prompt, "%s: %s\n\n", m.Role, m.Content)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retry.BaseDelay * time.Duration(1<<(attempt-1))
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
			if c.logger != nil {
				c.logger.Dev("retrying generation call", "attempt", attempt, "delay", delay.String())
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := genkit.Generate(ctx, c.g,
			ai.WithModel(model),
			ai.WithPrompt(prompt.String()),
			ai.WithConfig(&ai.GenerationCommonConfig{
				Temperature:     float64(temperature),
				MaxOutputTokens: maxOutputTokens,
			}),
		)
		if err == nil {
			return result.Text(), nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return "", fmt.Errorf("llmclient: generation failed after retries: %w", lastErr)
}

// Embed produces an embedding for text using model, delegating to Genkit's embedder
// registry. dimensions is not passed to the embedder; the vector length is whatever the
// model returns.
func (c *GenkitClient) Embed(ctx context.Context, text string, model string, dimensions int) ([]float32, error) {
	embedder := genkit.LookupEmbedder(c.g, model)
	if embedder == nil {
		return nil, fmt.Errorf("llmclient: embedder %q is not registered", model)
	}
	resp, err := ai.Embed(ctx, embedder, ai.WithTextDocs(text))
	if err != nil {
		return nil, fmt.Errorf("llmclient: embedding call failed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("llmclient: embedder returned no vectors")
	}
	return resp.Embeddings[0].Embedding, nil
}

var retryablePatterns = []string{
	"rate limit",
	"too many requests",
	"quota exceeded",
	"service unavailable",
	"internal error",
	"timeout",
	"connection reset",
	"temporary failure",
	"server error",
	"resource exhausted",
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

var (
	_ domain.Generator = (*GenkitClient)(nil)
	_ domain.Embedder  = (*GenkitClient)(nil)
)

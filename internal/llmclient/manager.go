package llmclient

import (
	"context"
	"fmt"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// Manager tries a primary domain.Generator/domain.Embedder and falls back, in order,
// through any number of secondary providers when the primary fails or a call is
// classified retriable against a different backend entirely (as opposed to llmclient's
// own within-provider retry in GenkitClient.Generate).
type Manager struct {
	generators map[string]domain.Generator
	embedders  map[string]domain.Embedder
	primary    string
	order      []string
	logger     domain.Logger
}

// NewManager creates an empty Manager; providers are added with Register.
func NewManager(logger domain.Logger) *Manager {
	return &Manager{
		generators: make(map[string]domain.Generator),
		embedders:  make(map[string]domain.Embedder),
		logger:     logger,
	}
}

// Register adds a named provider. The first provider registered becomes primary.
func (m *Manager) Register(name string, gen domain.Generator, emb domain.Embedder) {
	m.generators[name] = gen
	m.embedders[name] = emb
	m.order = append(m.order, name)
	if m.primary == "" {
		m.primary = name
	}
}

// Generate tries the primary provider, then every fallback in registration order.
func (m *Manager) Generate(ctx context.Context, systemMessage string, messages []domain.ChatMessage, temperature float32, maxOutputTokens int) (string, error) {
	var lastErr error
	for _, name := range m.candidateOrder() {
		gen, ok := m.generators[name]
		if !ok {
			continue
		}
		result, err := gen.Generate(ctx, systemMessage, messages, temperature, maxOutputTokens)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if m.logger != nil {
			m.logger.Warn("provider generation failed, trying next", "provider", name, "error", err.Error())
		}
	}
	if lastErr == nil {
		return "", fmt.Errorf("llmclient: no generation providers registered")
	}
	return "", fmt.Errorf("llmclient: all providers failed: %w", lastErr)
}

// Embed tries the primary provider, then every fallback in registration order.
func (m *Manager) Embed(ctx context.Context, text string, model string, dimensions int) ([]float32, error) {
	var lastErr error
	for _, name := range m.candidateOrder() {
		emb, ok := m.embedders[name]
		if !ok {
			continue
		}
		result, err := emb.Embed(ctx, text, model, dimensions)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if m.logger != nil {
			m.logger.Warn("provider embedding failed, trying next", "provider", name, "error", err.Error())
		}
	}
	if lastErr == nil {
		return nil, fmt.Errorf("llmclient: no embedding providers registered")
	}
	return nil, fmt.Errorf("llmclient: all providers failed: %w", lastErr)
}

func (m *Manager) candidateOrder() []string {
	if m.primary == "" {
		return m.order
	}
	out := []string{m.primary}
	for _, name := range m.order {
		if name != m.primary {
			out = append(out, name)
		}
	}
	return out
}

var (
	_ domain.Generator = (*Manager)(nil)
	_ domain.Embedder  = (*Manager)(nil)
)

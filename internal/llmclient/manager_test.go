package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

type fakeProvider struct {
	genResponse string
	genErr      error
	embedding   []float32
	embedErr    error
}

func (f fakeProvider) Generate(ctx context.Context, systemMessage string, messages []domain.ChatMessage, temperature float32, maxOutputTokens int) (string, error) {
	return f.genResponse, f.genErr
}

func (f fakeProvider) Embed(ctx context.Context, text string, model string, dimensions int) ([]float32, error) {
	return f.embedding, f.embedErr
}

func TestManagerUsesPrimaryWhenItSucceeds(t *testing.T) {
	m := NewManager(nil)
	m.Register("primary", fakeProvider{genResponse: "from primary"}, fakeProvider{})
	m.Register("fallback", fakeProvider{genResponse: "from fallback"}, fakeProvider{})

	resp, err := m.Generate(context.Background(), "", nil, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, "from primary", resp)
}

func TestManagerFallsBackWhenPrimaryFails(t *testing.T) {
	m := NewManager(nil)
	m.Register("primary", fakeProvider{genErr: errors.New("boom")}, fakeProvider{})
	m.Register("fallback", fakeProvider{genResponse: "from fallback"}, fakeProvider{})

	resp, err := m.Generate(context.Background(), "", nil, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp)
}

func TestManagerReturnsErrorWhenAllFail(t *testing.T) {
	m := NewManager(nil)
	m.Register("primary", fakeProvider{genErr: errors.New("boom")}, fakeProvider{})

	_, err := m.Generate(context.Background(), "", nil, 0, 100)
	assert.Error(t, err)
}

func TestManagerEmbedDelegatesToPrimary(t *testing.T) {
	m := NewManager(nil)
	m.Register("primary", fakeProvider{}, fakeProvider{embedding: []float32{0.1, 0.2}})

	vec, err := m.Embed(context.Background(), "text", "model", 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestManagerNoProvidersRegistered(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Generate(context.Background(), "", nil, 0, 100)
	assert.Error(t, err)
}

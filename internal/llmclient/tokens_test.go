package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

func TestNumTokensFromStringEmpty(t *testing.T) {
	assert.Equal(t, 0, NumTokensFromString("", "gemini-2.0-flash"))
}

func TestNumTokensFromStringGrowsWithLength(t *testing.T) {
	short := NumTokensFromString("hello", "gemini-2.0-flash")
	long := NumTokensFromString("hello hello hello hello hello hello hello hello", "gemini-2.0-flash")
	assert.Greater(t, long, short)
}

func TestNumTokensFromStringFallsBackForUnknownModel(t *testing.T) {
	// gemini model names aren't in tiktoken's table; this must not panic or error out,
	// it should fall back to cl100k_base.
	n := NumTokensFromString("a reasonably sized sentence of text", "googleai/gemini-2.5-flash")
	assert.Greater(t, n, 0)
}

func TestNumTokensFromMessagesIncludesEnvelopeOverhead(t *testing.T) {
	messages := []domain.ChatMessage{
		{Role: "user", Content: "hi"},
	}
	n := NumTokensFromMessages(messages, "gemini-2.0-flash")
	// at minimum: tokensPerMessageDefault + role + content + the 3-token reply primer
	assert.Greater(t, n, tokensPerMessageDefault+3)
}

func TestNumTokensFromMessagesEmptyList(t *testing.T) {
	n := NumTokensFromMessages(nil, "gemini-2.0-flash")
	assert.Equal(t, 3, n)
}

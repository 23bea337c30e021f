package ragerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCarriesKindAndMessage(t *testing.T) {
	err := New(KindStuck, "exceeded follow-up rounds")
	assert.Equal(t, KindStuck, KindOf(err))
	assert.Equal(t, "exceeded follow-up rounds", err.Error())
}

func TestWrapPreservesUnderlyingError(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(cause, KindCallForMoreDocumentsFailed, "fetching section")

	assert.Equal(t, KindCallForMoreDocumentsFailed, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, cause))
}

func TestKindOfNonRAGErrorIsGeneric(t *testing.T) {
	assert.Equal(t, KindGeneric, KindOf(errors.New("plain error")))
}

func TestIsRetriableDefaultsFalse(t *testing.T) {
	err := New(KindGeneric, "boom")
	assert.False(t, IsRetriable(err))

	retriable := WithRetriable(err, true)
	assert.True(t, IsRetriable(retriable))
}

func TestWithDetailsMergesIntoExistingError(t *testing.T) {
	err := New(KindInvalidReference, "bad ref")
	err = WithDetails(err, map[string]any{"reference": "9.9"})
	err = WithDetails(err, map[string]any{"document": "reg-a"})

	var ragErr *RAGError
	require := errors.As(err, &ragErr)
	assert.True(t, require)
	assert.Equal(t, "9.9", ragErr.Details["reference"])
	assert.Equal(t, "reg-a", ragErr.Details["document"])
}

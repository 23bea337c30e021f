package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjondavey/regulations-rag/internal/document"
	"github.com/sjondavey/regulations-rag/internal/refcheck"
	"github.com/sjondavey/regulations-rag/pkg/domain"
)

func buildDoc(t *testing.T, name string) domain.Document {
	t.Helper()
	rc, err := refcheck.New([]string{`^\d+`}, "", nil)
	require.NoError(t, err)
	doc, err := document.New(name, rc, []document.Row{
		{Reference: "1", Text: "body", Heading: "Heading"},
	}, "")
	require.NoError(t, err)
	return doc
}

func TestGetDocumentKnownKey(t *testing.T) {
	doc := buildDoc(t, "reg-a")
	c := New(map[string]domain.Document{"a": doc}, "a")

	got, err := c.GetDocument("a")
	require.NoError(t, err)
	assert.Equal(t, "reg-a", got.Name())
}

func TestGetDocumentUnknownKey(t *testing.T) {
	c := New(map[string]domain.Document{}, "")
	_, err := c.GetDocument("missing")
	assert.Error(t, err)
}

func TestGetPrimaryDocumentConfigured(t *testing.T) {
	doc := buildDoc(t, "reg-a")
	c := New(map[string]domain.Document{"a": doc}, "a")
	got, err := c.GetPrimaryDocument()
	require.NoError(t, err)
	assert.Equal(t, "reg-a", got.Name())
}

func TestGetPrimaryDocumentUnconfigured(t *testing.T) {
	c := New(map[string]domain.Document{}, "")
	_, err := c.GetPrimaryDocument()
	assert.Error(t, err)
}

func TestGetTextAndHeadingDelegate(t *testing.T) {
	doc := buildDoc(t, "reg-a")
	c := New(map[string]domain.Document{"a": doc}, "a")

	text, err := c.GetText("a", "1", false, false, false)
	require.NoError(t, err)
	assert.Equal(t, "body", text)

	heading, err := c.GetHeading("a", "1", false)
	require.NoError(t, err)
	assert.Equal(t, "Heading", heading)
}

func TestKeysReturnsAllRegistered(t *testing.T) {
	doc := buildDoc(t, "reg-a")
	c := New(map[string]domain.Document{"a": doc, "b": doc}, "a")
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
}

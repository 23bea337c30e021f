// Package corpus aggregates a fixed set of named Documents behind a single lookup
// surface. Document construction is explicit: callers build concrete domain.Document
// values (see package document) and register them by key, rather than this package
// discovering and instantiating document types by scanning source files at runtime —
// see DESIGN.md for why the dynamic-class-loading approach in the original engine is
// replaced with an explicit registry here.
package corpus

import (
	"fmt"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// Corpus is a read-only collection of documents, addressed by a short key distinct
// from the document's display name.
type Corpus struct {
	documents map[string]domain.Document
	primary   string
}

// New builds a Corpus from a key-to-document map. primaryKey names the document used
// as the fallback reference source when a workflow or path needs "the" document for a
// corpus with no section reference supplied; it may be empty if no document plays
// that role.
func New(documents map[string]domain.Document, primaryKey string) *Corpus {
	return &Corpus{documents: documents, primary: primaryKey}
}

// GetDocument returns the document registered under key.
func (c *Corpus) GetDocument(key string) (domain.Document, error) {
	doc, ok := c.documents[key]
	if !ok {
		return nil, fmt.Errorf("corpus: no document registered under key %q", key)
	}
	return doc, nil
}

// GetPrimaryDocument returns the corpus's configured primary document, or an error if
// none was configured.
func (c *Corpus) GetPrimaryDocument() (domain.Document, error) {
	if c.primary == "" {
		return nil, fmt.Errorf("corpus: no primary document configured")
	}
	return c.GetDocument(c.primary)
}

// GetHeading is a convenience wrapper around GetDocument(key).GetHeading.
func (c *Corpus) GetHeading(key, sectionReference string, addMarkdown bool) (string, error) {
	doc, err := c.GetDocument(key)
	if err != nil {
		return "", err
	}
	return doc.GetHeading(sectionReference, addMarkdown), nil
}

// GetText is a convenience wrapper around GetDocument(key).GetText.
func (c *Corpus) GetText(key, sectionReference string, addMarkdown, addHeadings, sectionOnly bool) (string, error) {
	doc, err := c.GetDocument(key)
	if err != nil {
		return "", err
	}
	return doc.GetText(sectionReference, addMarkdown, addHeadings, sectionOnly), nil
}

// Keys returns every registered document key, in no particular order.
func (c *Corpus) Keys() []string {
	keys := make([]string, 0, len(c.documents))
	for k := range c.documents {
		keys = append(keys, k)
	}
	return keys
}

package domain

import "context"

// ReferenceChecker validates and decomposes hierarchical section identifiers for a
// single document's numbering grammar.
type ReferenceChecker interface {
	IsValid(reference string) bool
	Split(reference string) ([]string, error)
	ExtractValidReference(input string) (string, bool)
	Parent(reference string) (string, error)
	AncestorsInclusive(reference string) []string
	AnyAncestorIn(reference string, set map[string]struct{}) bool
	TextVersion() string
}

// Document exposes the text and table of contents for one member of a Corpus. It is
// read-only: all rows are fixed at construction time.
type Document interface {
	Name() string
	ReferenceChecker() ReferenceChecker
	GetText(sectionReference string, addMarkdown, addHeadings, sectionOnly bool) string
	GetHeading(sectionReference string, addMarkdown bool) string
	TableOfContents() (TableOfContents, error)
}

// TableOfContents is a tree over a document's section references.
type TableOfContents interface {
	GetNode(reference string) (TOCNode, error)
	Root() TOCNode
}

// TOCNode is one node of a TableOfContents.
type TOCNode interface {
	Name() string
	FullNodeName() string
	HeadingText() string
	Children() []TOCNode
}

// Embedder turns text into a fixed-dimension vector via a configured embedding model.
type Embedder interface {
	Embed(ctx context.Context, text string, model string, dimensions int) ([]float32, error)
}

// ChatMessage is the wire-level shape sent to a Generator: only role and content travel.
type ChatMessage struct {
	Role    string
	Content string
}

// Generator hides the LLM chat provider behind a single call shape.
type Generator interface {
	Generate(ctx context.Context, systemMessage string, messages []ChatMessage, temperature float32, maxOutputTokens int) (string, error)
}

// Logger is the narrow structured-logging seam every component logs through, so tests can
// substitute a capturing logger without reaching for global state.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Dev(msg string, args ...any)      // below INFO: fine-grained execution trace
	Analysis(msg string, args ...any) // above INFO: audit-level events worth keeping long term
}

// ErrorHandler centralizes construction of classified errors so call sites don't each
// reinvent wrapping/detail attachment.
type ErrorHandler interface {
	Wrap(err error, message string, details map[string]any) error
}

// Package toc builds a tree over a document's section references and supports
// splitting oversized nodes into their children until every node fits inside a token
// budget. There is no tree library in the dependency surface this module draws on, so
// the tree here is a small hand-rolled structure rather than a wrapped third-party
// package; see DESIGN.md for why that's the right call for this one piece.
package toc

import (
	"fmt"
	"strings"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// Entry is one row contributed to a table of contents: a reference and the heading
// text shown for it.
type Entry struct {
	Reference string
	Heading   string
}

// Node is a tree node keyed by its own reference segment (not the full dotted
// reference — that's FullNodeName).
type Node struct {
	name     string
	full     string
	heading  string
	parent   *Node
	children []*Node
}

func (n *Node) Name() string         { return n.name }
func (n *Node) FullNodeName() string { return n.full }
func (n *Node) HeadingText() string  { return n.heading }

func (n *Node) Children() []domain.TOCNode {
	out := make([]domain.TOCNode, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	return out
}

var _ domain.TOCNode = (*Node)(nil)

// Tree is a table of contents keyed by full reference string.
type Tree struct {
	root  *Node
	byRef map[string]*Node
}

func (t *Tree) GetNode(reference string) (domain.TOCNode, error) {
	n, ok := t.byRef[reference]
	if !ok {
		return nil, fmt.Errorf("toc: no node for reference %q", reference)
	}
	return n, nil
}

func (t *Tree) Root() domain.TOCNode { return t.root }

var _ domain.TableOfContents = (*Tree)(nil)

// Build constructs a Tree from entries using rc to split each reference into its
// hierarchy levels. Ancestor nodes missing from entries (a section whose parent has
// no heading row of its own) are created automatically with empty heading text.
func Build(rc domain.ReferenceChecker, entries []Entry) (*Tree, error) {
	t := &Tree{
		root:  &Node{name: "root", full: ""},
		byRef: make(map[string]*Node),
	}
	for _, e := range entries {
		if err := t.addEntry(rc, e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) addEntry(rc domain.ReferenceChecker, e Entry) error {
	if _, exists := t.byRef[e.Reference]; exists {
		return nil
	}
	parts, err := rc.Split(e.Reference)
	if err != nil {
		return fmt.Errorf("toc: splitting reference %q: %w", e.Reference, err)
	}

	parent := t.root
	var built strings.Builder
	for _, part := range parts {
		built.WriteString(part)
		full := built.String()

		node, ok := t.byRef[full]
		if !ok {
			heading := ""
			if full == e.Reference {
				heading = e.Heading
			}
			node = &Node{name: part, full: full, heading: heading, parent: parent}
			parent.children = append(parent.children, node)
			t.byRef[full] = node
		} else if full == e.Reference && node.heading == "" {
			node.heading = e.Heading
		}
		parent = node
	}
	return nil
}

// SplitResult reports the outcome of descending one oversized node during Split.
type SplitResult struct {
	Reference string
	Unsplittable bool
}

// Split walks the tree and, for every node whose token count (as measured by
// tokenCount over its own rendered text) exceeds limit, descends into its children
// instead of keeping it as one unit. A leaf node that still exceeds limit is reported
// as unsplittable rather than silently dropped or truncated, since that represents a
// section the caller's retrieval budget genuinely cannot accommodate as a whole.
func (t *Tree) Split(limit int, tokenCount func(reference string) int) ([]string, []SplitResult) {
	var accepted []string
	var unsplittable []SplitResult
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, child := range n.children {
			if tokenCount(child.full) <= limit || len(child.children) == 0 {
				if tokenCount(child.full) > limit {
					unsplittable = append(unsplittable, SplitResult{Reference: child.full, Unsplittable: true})
				} else {
					accepted = append(accepted, child.full)
				}
				continue
			}
			walk(child)
		}
	}
	walk(t.root)
	return accepted, unsplittable
}

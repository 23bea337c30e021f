// Package document implements domain.Document over an in-memory, ordered list of
// section rows — the Go analogue of the pandas-DataFrame-backed documents in the
// original retrieval engine. A MarkdownDocument owns its rows, its reference checker,
// and its table of contents, and is safe for concurrent reads once constructed.
package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sjondavey/regulations-rag/internal/toc"
	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// defaultFootnotePattern matches a footnote definition line like "[^3]: see also section 2".
var defaultFootnotePattern = regexp.MustCompile(`^\[\^\d+\]:`)

// Row is one addressable unit of a document: a section reference, its body text, and
// the heading text shown for it in a table of contents.
type Row struct {
	Reference string
	Text      string
	Heading   string
}

// MarkdownDocument is a Document backed by a flat, pre-ordered list of Rows. Ordering
// matters: GetText with sectionOnly=false walks rows in slice order to find a section's
// descendants, stopping at the first row whose reference is not a descendant of the
// requested section.
type MarkdownDocument struct {
	name            string
	rc              domain.ReferenceChecker
	rows            []Row
	index           map[string]int
	footnotePattern *regexp.Regexp
	toc             domain.TableOfContents
}

// New builds a MarkdownDocument. An empty footnotePattern selects the default footnote
// pattern; footnote extraction is disabled only when the pattern is empty and there are
// no rows.
func New(name string, rc domain.ReferenceChecker, rows []Row, footnotePattern string) (*MarkdownDocument, error) {
	idx := make(map[string]int, len(rows))
	for i, r := range rows {
		idx[r.Reference] = i
	}
	pat := defaultFootnotePattern
	if footnotePattern != "" {
		compiled, err := regexp.Compile(footnotePattern)
		if err != nil {
			return nil, fmt.Errorf("document: compiling footnote pattern: %w", err)
		}
		pat = compiled
	} else if footnotePattern == "" && len(rows) == 0 {
		pat = nil
	}

	entries := make([]toc.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, toc.Entry{Reference: r.Reference, Heading: r.Heading})
	}
	tree, err := toc.Build(rc, entries)
	if err != nil {
		return nil, fmt.Errorf("document: building table of contents for %s: %w", name, err)
	}

	return &MarkdownDocument{
		name:            name,
		rc:              rc,
		rows:            rows,
		index:           idx,
		footnotePattern: pat,
		toc:             tree,
	}, nil
}

func (d *MarkdownDocument) Name() string                          { return d.name }
func (d *MarkdownDocument) ReferenceChecker() domain.ReferenceChecker { return d.rc }

func (d *MarkdownDocument) TableOfContents() (domain.TableOfContents, error) {
	if d.toc == nil {
		return nil, fmt.Errorf("document: %s has no table of contents", d.name)
	}
	return d.toc, nil
}

// isDescendantOrSelf reports whether candidate is section or one of section's descendants,
// determined by whether candidate's own ancestor chain passes through section.
func (d *MarkdownDocument) isDescendantOrSelf(section, candidate string) bool {
	if section == "" || strings.EqualFold(section, "all") {
		return true
	}
	if candidate == section {
		return true
	}
	for _, ancestor := range d.rc.AncestorsInclusive(candidate) {
		if ancestor == section {
			return true
		}
	}
	return false
}

// formatLine renders one row's text with an optional markdown heading prefix. Table
// rows (lines beginning with "|") never get a heading prefix, since prefixing would
// break the table's own alignment.
func (d *MarkdownDocument) formatLine(row Row, addMarkdown bool) string {
	text := row.Text
	if !addMarkdown || strings.HasPrefix(strings.TrimSpace(text), "|") {
		return text
	}
	depth := 1
	if parts, err := d.rc.Split(row.Reference); err == nil && len(parts) > 0 {
		depth = len(parts)
	}
	return strings.Repeat("#", depth) + " " + text
}

// GetText assembles the body text for sectionReference. When sectionOnly is false, the
// text of every descendant section is appended in document order. When addHeadings is
// true, the heading text of every ancestor of sectionReference is prepended so the
// caller can see where in the hierarchy the excerpt sits. When addMarkdown is true,
// headings get a depth-appropriate "#" prefix. Footnote lines are collected separately
// and appended once at the end, deduplicated by their raw text.
func (d *MarkdownDocument) GetText(sectionReference string, addMarkdown, addHeadings, sectionOnly bool) string {
	var body []string
	var footnotes []string
	seenFootnotes := make(map[string]struct{})

	startIdx := 0
	if sectionReference != "" && !strings.EqualFold(sectionReference, "all") {
		idx, ok := d.index[sectionReference]
		if !ok {
			return ""
		}
		startIdx = idx
	}

	inTable := false
	for i := startIdx; i < len(d.rows); i++ {
		row := d.rows[i]
		if !d.isDescendantOrSelf(sectionReference, row.Reference) {
			if sectionReference != "" && !strings.EqualFold(sectionReference, "all") {
				break
			}
		}
		if d.footnotePattern != nil && d.footnotePattern.MatchString(strings.TrimSpace(row.Text)) {
			if _, dup := seenFootnotes[row.Text]; !dup {
				seenFootnotes[row.Text] = struct{}{}
				footnotes = append(footnotes, row.Text)
			}
			continue
		}
		isTableRow := strings.HasPrefix(strings.TrimSpace(row.Text), "|")
		if inTable && !isTableRow {
			body = append(body, "")
		}
		inTable = isTableRow
		body = append(body, d.formatLine(row, addMarkdown))
		if sectionOnly && row.Reference == sectionReference {
			break
		}
	}

	var out strings.Builder
	if addHeadings {
		if sectionReference != "" && !strings.EqualFold(sectionReference, "all") {
			ancestors := d.rc.AncestorsInclusive(sectionReference)
			for i := len(ancestors) - 1; i > 0; i-- {
				heading := d.GetHeading(ancestors[i], addMarkdown)
				if heading != "" {
					out.WriteString(heading)
					out.WriteString("\n")
				}
			}
		}
	}
	out.WriteString(strings.Join(body, "\n"))
	if len(footnotes) > 0 {
		out.WriteString("\n\n")
		out.WriteString(strings.Join(footnotes, "  \n"))
	}
	return out.String()
}

// GetHeading returns the heading text recorded for sectionReference, optionally
// markdown-prefixed by its depth in the hierarchy.
func (d *MarkdownDocument) GetHeading(sectionReference string, addMarkdown bool) string {
	idx, ok := d.index[sectionReference]
	if !ok {
		return ""
	}
	row := d.rows[idx]
	if row.Heading == "" {
		return ""
	}
	if !addMarkdown {
		return row.Heading
	}
	depth := 1
	if parts, err := d.rc.Split(sectionReference); err == nil && len(parts) > 0 {
		depth = len(parts)
	}
	return strings.Repeat("#", depth) + " " + row.Heading
}

var _ domain.Document = (*MarkdownDocument)(nil)

// Package pathrag drives the retrieval-augmented answer loop: present the model with
// definitions and sections found so far, parse its structured response, and either
// return a final answer or fetch one more section and ask again.
package pathrag

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sjondavey/regulations-rag/internal/corpus"
	"github.com/sjondavey/regulations-rag/internal/corpusindex"
	"github.com/sjondavey/regulations-rag/internal/ragerrors"
	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// LLMPrefix is the closed set of response-opening tokens the model is instructed to use
// so its reply can be parsed without a second round trip.
type LLMPrefix string

const (
	PrefixAnswer  LLMPrefix = "ANSWER:"
	PrefixSection LLMPrefix = "SECTION:"
	PrefixNone    LLMPrefix = "NONE:"
)

// Path is which direction process continues in after check: SECTION means the model
// asked for one more document section; FollowUp means it asked a clarifying question of
// its own (not reachable from the orchestrator's normal turn loop, carried only so the
// parser's shape matches the full original protocol).
type Path int

const (
	PathSection Path = iota
	PathFollowUp
)

// referenceKeyword is the literal line prefix a SECTION response must use to name the
// section it wants fetched, and also the prefix an ANSWER response may use to cite the
// extracts it drew on.
const referenceKeyword = "Reference:"

var sectionLineRe = regexp.MustCompile(`(?i)extract\s*:?\s*(\d+).*reference\s*:?\s*(.+)`)

// answerReferenceRe splits an ANSWER response body into its answer text and an optional
// trailing "Reference: <int>(, <int>)*" citation list.
var answerReferenceRe = regexp.MustCompile(`(?is)^(.*?)\s*Reference:\s*(\d+(?:\s*,\s*\d+)*)\s*$`)

// MaxFollowUpRounds bounds how many additional sections perform will fetch before
// giving up with a Stuck error, so a model that keeps asking for more material can never
// spin the session forever.
const MaxFollowUpRounds = 5

// candidate is one definition or section offered to the model this round, numbered for
// the "Extract N" protocol.
type candidate struct {
	corpusindex.ScoredRow
	extractIndex int
}

// formatUserQuestion renders the numbered "Extract N: <text>" listing the model chooses
// from, definitions first and sections after, preserving the order they were retrieved
// in.
func formatUserQuestion(question string, definitions, sections []corpusindex.ScoredRow) (string, []candidate) {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n\n")

	all := make([]candidate, 0, len(definitions)+len(sections))
	n := 1
	for _, d := range definitions {
		all = append(all, candidate{ScoredRow: d, extractIndex: n})
		fmt.Fprintf(&b, "Extract %d: %s\n\n", n, d.Text)
		n++
	}
	for _, s := range sections {
		all = append(all, candidate{ScoredRow: s, extractIndex: n})
		fmt.Fprintf(&b, "Extract %d: %s\n\n", n, s.Text)
		n++
	}
	return b.String(), all
}

// createSystemMessage builds the instructions sent alongside formatUserQuestion's
// listing. numberOfOptions is 3 when the model may ask for another section (NONE is
// always available; SECTION is only offered when the corpus has more to give), 2
// otherwise. review rewords the final line to make clear this is a second attempt.
func createSystemMessage(sampleReference string, numberOfOptions int, review bool) string {
	var b strings.Builder
	b.WriteString("You answer questions using only the numbered extracts provided. ")
	b.WriteString("Respond in one of the following forms:\n\n")
	b.WriteString("ANSWER: <your answer> Reference: <N>(, <N>)* naming every extract your answer relied on, or omit the Reference: line entirely if none did\n")
	if numberOfOptions >= 3 {
		fmt.Fprintf(&b, "SECTION: Extract <N>, Reference: <a section reference such as %q that would let you answer more completely>\n", sampleReference)
	}
	b.WriteString("NONE: <a short explanation of why none of the extracts let you answer>\n\n")
	if review {
		b.WriteString("This is a follow-up attempt with one additional extract available above; answer now if at all possible.")
	} else {
		b.WriteString("Use the ANSWER form whenever the extracts above are sufficient.")
	}
	return b.String()
}

// checkResult is the outcome of parsing one model response. IsAnswer marks an ANSWER
// response: AnswerText is the reply with any trailing Reference: list stripped, and
// AnswerIndices holds the 1-based extract numbers it cited, in the order given (empty
// when the reply carried no Reference: list at all).
type checkResult struct {
	Final          domain.AssistantResponse
	IsAnswer       bool
	AnswerText     string
	AnswerIndices  []int
	NeedsMore      bool
	Path           Path
	RequestedIndex int
	RequestedRef   string
}

// parseAnswerReferences splits body into its answer text and the 1-based extract indices
// named in a trailing "Reference: <int>(, <int>)*" list, if any. Every cited index must
// be in range and none may repeat; body with no such trailing list is returned unchanged
// with a nil index list, meaning the answer cited nothing in particular.
func parseAnswerReferences(body string, numCandidates int) (string, []int, error) {
	m := answerReferenceRe.FindStringSubmatch(body)
	if m == nil {
		return strings.TrimSpace(body), nil, nil
	}

	parts := strings.Split(m[2], ",")
	seen := make(map[int]struct{}, len(parts))
	indices := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", nil, ragerrors.New(ragerrors.KindNotFollowingInstructions,
				"ANSWER response's Reference list contained a non-integer")
		}
		if n < 1 || n > numCandidates {
			return "", nil, ragerrors.New(ragerrors.KindNotFollowingInstructions,
				fmt.Sprintf("ANSWER response cited extract %d, outside the offered range 1-%d", n, numCandidates))
		}
		if _, dup := seen[n]; dup {
			return "", nil, ragerrors.New(ragerrors.KindNotFollowingInstructions,
				"ANSWER response cited the same extract more than once")
		}
		seen[n] = struct{}{}
		indices = append(indices, n)
	}
	return strings.TrimSpace(m[1]), indices, nil
}

// checkResponse parses resp against the LLMPrefix protocol. A malformed or
// out-of-range SECTION or ANSWER response is treated as NotFollowingInstructions rather
// than retried indefinitely.
func checkResponse(resp string, candidates []candidate) (checkResult, error) {
	trimmed := strings.TrimSpace(resp)
	upper := strings.ToUpper(trimmed)

	switch {
	case strings.HasPrefix(upper, string(PrefixAnswer)):
		body := strings.TrimSpace(trimmed[len(PrefixAnswer):])
		answerText, indices, err := parseAnswerReferences(body, len(candidates))
		if err != nil {
			return checkResult{}, err
		}
		return checkResult{IsAnswer: true, AnswerText: answerText, AnswerIndices: indices}, nil

	case strings.HasPrefix(upper, string(PrefixNone)):
		explanation := strings.TrimSpace(trimmed[len(PrefixNone):])
		return checkResult{Final: domain.NoAnswerResponse{
			Classification: domain.NoRelevantData,
			AdditionalText: explanation,
		}}, nil

	case strings.HasPrefix(upper, string(PrefixSection)):
		body := trimmed[len(PrefixSection):]
		if strings.Count(body, referenceKeyword) > 1 {
			return checkResult{}, ragerrors.New(ragerrors.KindNotFollowingInstructions,
				"SECTION response named more than one Reference:")
		}
		m := sectionLineRe.FindStringSubmatch(body)
		if m == nil {
			return checkResult{}, ragerrors.New(ragerrors.KindNotFollowingInstructions,
				"SECTION response did not match the Extract N / Reference: format")
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return checkResult{}, ragerrors.New(ragerrors.KindNotFollowingInstructions,
				"SECTION response's extract index was not an integer")
		}
		if idx < 1 || idx > len(candidates) {
			return checkResult{}, ragerrors.New(ragerrors.KindNotFollowingInstructions,
				fmt.Sprintf("SECTION response named extract %d, outside the offered range 1-%d", idx, len(candidates)))
		}
		return checkResult{
			NeedsMore:      true,
			Path:           PathSection,
			RequestedIndex: idx,
			RequestedRef:   strings.TrimSpace(m[2]),
		}, nil

	default:
		return checkResult{}, ragerrors.New(ragerrors.KindNotFollowingInstructions,
			"response did not begin with ANSWER:, SECTION:, or NONE:")
	}
}

// addSectionToResource validates requestedRef against the referring document's reference
// grammar, falling back to the primary document's grammar (when primaryDocumentKey names
// one other than docKey) if the referring grammar rejects it, fetches its full text from
// whichever document accepted the reference, and appends it to sections. All previously retrieved sections are kept — the context window
// is assumed to have room for every section fetched so far, so there is never a need to
// evict one to make space for the next.
func addSectionToResource(corp *corpus.Corpus, docKey, documentName, requestedRef, primaryDocumentKey string, sections []corpusindex.ScoredRow) ([]corpusindex.ScoredRow, error) {
	doc, err := corp.GetDocument(docKey)
	if err != nil {
		return sections, ragerrors.Wrap(err, ragerrors.KindCallForMoreDocumentsFailed, "could not resolve document")
	}

	ref, ok := doc.ReferenceChecker().ExtractValidReference(requestedRef)
	if !ok && primaryDocumentKey != "" && primaryDocumentKey != docKey {
		if primaryDoc, perr := corp.GetDocument(primaryDocumentKey); perr == nil {
			if primaryRef, primaryOk := primaryDoc.ReferenceChecker().ExtractValidReference(requestedRef); primaryOk {
				ref, ok = primaryRef, true
				doc, docKey, documentName = primaryDoc, primaryDocumentKey, primaryDoc.Name()
			}
		}
	}
	if !ok {
		return sections, ragerrors.Newf(ragerrors.KindCallForMoreDocumentsFailed,
			"%q is not a valid reference for %s", requestedRef, docKey)
	}

	for _, s := range sections {
		if s.DocumentKey == docKey && s.SectionReference == ref {
			return sections, nil
		}
	}

	text := doc.GetText(ref, true, true, false)
	if strings.TrimSpace(text) == "" {
		return sections, ragerrors.Newf(ragerrors.KindCallForMoreDocumentsFailed,
			"section %s of %s retrieved empty text", ref, docKey)
	}

	return append(sections, corpusindex.ScoredRow{Row: corpusindex.Row{
		DocumentKey:      docKey,
		DocumentName:     documentName,
		SectionReference: ref,
		Text:             text,
	}}), nil
}

// extractUsedReferences builds the final reference list for an AnswerWithRAGResponse out
// of exactly the extracts cited, in citation order. Definitions keep the text they were
// retrieved with; sections are re-fetched with markdown decorators and ancestor headings
// so the final citation reads standalone.
func extractUsedReferences(corp *corpus.Corpus, cited []corpusindex.ScoredRow) []domain.Reference {
	var out []domain.Reference
	for _, c := range cited {
		text := c.Text
		if !c.IsDefinition {
			if doc, err := corp.GetDocument(c.DocumentKey); err == nil {
				text = doc.GetText(c.SectionReference, true, true, false)
			}
		}
		out = append(out, domain.Reference{
			DocumentKey:    c.DocumentKey,
			DocumentName:   c.DocumentName,
			SectionRef:     c.SectionReference,
			IsDefinition:   c.IsDefinition,
			Text:           text,
			CosineDistance: c.CosineDistance,
		})
	}
	return out
}

// Perform runs the full RAG answer loop for question against definitions/sections
// already retrieved by pathsearch, asking gen for an answer and following up on SECTION
// requests up to MaxFollowUpRounds times before giving up as Stuck. primaryDocumentKey
// is consulted as a fallback grammar when a SECTION request's reference isn't valid in
// the referring document.
func Perform(ctx context.Context, corp *corpus.Corpus, gen domain.Generator, sampleReference, primaryDocumentKey, question string, definitions, sections []corpusindex.ScoredRow) (domain.AssistantResponse, error) {
	if len(definitions) == 0 && len(sections) == 0 {
		return domain.NoAnswerResponse{Classification: domain.NoData}, nil
	}

	review := false
	for round := 0; round <= MaxFollowUpRounds; round++ {
		userMessage, candidates := formatUserQuestion(question, definitions, sections)
		numberOfOptions := 2
		if len(candidates) > 0 {
			numberOfOptions = 3
		}
		system := createSystemMessage(sampleReference, numberOfOptions, review)

		resp, err := gen.Generate(ctx, system, []domain.ChatMessage{{Role: "user", Content: userMessage}}, 0, 1500)
		if err != nil {
			return nil, fmt.Errorf("pathrag: generation failed: %w", err)
		}

		result, parseErr := checkResponse(resp, candidates)
		if parseErr != nil {
			// One follow-up attempt: show the model its own bad reply plus a correction
			// and give it one more chance before giving up as NotFollowingInstructions.
			correction := fmt.Sprintf("Your previous reply did not follow the required format (%s). "+
				"Reply again using ANSWER:, SECTION:, or NONE:.", parseErr.Error())
			retryResp, err := gen.Generate(ctx, system, []domain.ChatMessage{
				{Role: "user", Content: userMessage},
				{Role: "assistant", Content: resp},
				{Role: "user", Content: correction},
			}, 0, 1500)
			if err != nil {
				return nil, fmt.Errorf("pathrag: generation failed: %w", err)
			}
			result, parseErr = checkResponse(retryResp, candidates)
			if parseErr != nil {
				return domain.ErrorResponse{Classification: domain.ErrNotFollowingInstructions, AdditionalText: parseErr.Error()}, nil
			}
		}

		if result.IsAnswer {
			if len(result.AnswerIndices) == 0 {
				return domain.AnswerWithoutRAGResponse{
					Answer: result.AnswerText,
					Caveat: domain.GetCaveatForNoRAGResponse(),
				}, nil
			}
			cited := make([]corpusindex.ScoredRow, 0, len(result.AnswerIndices))
			for _, idx := range result.AnswerIndices {
				cited = append(cited, candidates[idx-1].ScoredRow)
			}
			return domain.AnswerWithRAGResponse{
				Answer:     result.AnswerText,
				References: extractUsedReferences(corp, cited),
			}, nil
		}

		if result.Final != nil {
			return result.Final, nil
		}

		if result.Path != PathSection {
			return domain.ErrorResponse{Classification: domain.ErrWorkflowNotImplemented}, nil
		}

		chosen := candidates[result.RequestedIndex-1]
		sections, err = addSectionToResource(corp, chosen.DocumentKey, chosen.DocumentName, result.RequestedRef, primaryDocumentKey, sections)
		if err != nil {
			return domain.ErrorResponse{Classification: domain.ErrCallForMoreDocumentsFailed, AdditionalText: err.Error()}, nil
		}
		review = true
	}

	return domain.ErrorResponse{Classification: domain.ErrStuck,
		AdditionalText: "exceeded the maximum number of section follow-up requests"}, nil
}

// Package pathnoragdata answers questions when no retrieved reference backs the answer:
// either because the corpus genuinely has nothing relevant, or because the caller has
// chosen to let the model answer from general knowledge with a caveat attached.
package pathnoragdata

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// tapOutPhrase is the exact phrase the model is instructed to answer with when it has
// nothing useful to say, compared case/whitespace-insensitively.
const tapOutPhrase = "no answer"

var notRelevantPattern = regexp.MustCompile(`(?i)not\s+relevant`)

// RelevanceResult is the outcome of asking whether a question is worth answering at all
// given the corpus's subject matter.
type RelevanceResult struct {
	Relevant    bool
	Explanation string
}

// IsUserContentRelevant asks gen, via a dedicated system prompt, whether question is in
// scope for corpusDescription. The "not relevant" phrase, and any punctuation left leading
// the text after it, is stripped from the returned explanation since it only exists to drive the relevant/not-relevant classification and
// reads redundantly once that classification is already reflected in Relevant.
func IsUserContentRelevant(ctx context.Context, gen domain.Generator, corpusDescription, question string) (RelevanceResult, error) {
	system := fmt.Sprintf(
		"You decide whether a question is relevant to the following subject matter:\n\n%s\n\n"+
			"Respond with either 'Relevant' or 'Not relevant' followed by a short explanation.",
		corpusDescription)

	resp, err := gen.Generate(ctx, system, []domain.ChatMessage{{Role: "user", Content: question}}, 0, 300)
	if err != nil {
		return RelevanceResult{}, fmt.Errorf("pathnoragdata: relevance check failed: %w", err)
	}

	relevant := !strings.Contains(strings.ToLower(resp), "not relevant")
	explanation := strings.TrimSpace(strings.TrimLeft(notRelevantPattern.ReplaceAllString(resp, ""), " \t\n.,:;-"))
	return RelevanceResult{Relevant: relevant, Explanation: explanation}, nil
}

// QueryNoRAGData answers question without any retrieved reference. It first checks
// relevance; if the question isn't relevant to corpusDescription it returns a
// QuestionNotRelevant NoAnswerResponse. Otherwise it asks gen to answer directly, and if
// the model taps out with tapOutPhrase it returns an UnableToAnswer NoAnswerResponse;
// any other answer is wrapped with the standard no-reference caveat.
func QueryNoRAGData(ctx context.Context, gen domain.Generator, corpusDescription, question string) (domain.AssistantResponse, error) {
	relevance, err := IsUserContentRelevant(ctx, gen, corpusDescription, question)
	if err != nil {
		return nil, err
	}
	if !relevance.Relevant {
		return domain.NoAnswerResponse{
			Classification: domain.QuestionNotRelevant,
			AdditionalText: relevance.Explanation,
		}, nil
	}

	system := fmt.Sprintf(
		"Answer the question using your general knowledge. The subject matter is:\n\n%s\n\n"+
			"If you cannot answer, respond with exactly '%s' and nothing else.",
		corpusDescription, tapOutPhrase)

	answer, err := gen.Generate(ctx, system, []domain.ChatMessage{{Role: "user", Content: question}}, 0, 1000)
	if err != nil {
		return nil, fmt.Errorf("pathnoragdata: answer generation failed: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(answer), tapOutPhrase) {
		return domain.NoAnswerResponse{Classification: domain.UnableToAnswer}, nil
	}

	return domain.AnswerWithoutRAGResponse{
		Answer: answer,
		Caveat: domain.GetCaveatForNoRAGResponse(),
	}, nil
}

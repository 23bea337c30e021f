package llmclient

import (
	"fmt"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// testedModels is the allowlist of chat models this module has actually been exercised
// against. A model outside this set entirely is a configuration error; one inside it
// but not in knownGoodModels still works but hasn't been validated end to end.
var testedModels = map[string]struct{}{
	"gemini-1.5-flash": {},
	"gemini-1.5-pro":   {},
	"gemini-2.0-flash": {},
	"gpt-4o":           {},
	"gpt-4o-mini":      {},
}

var knownGoodModels = map[string]struct{}{
	"gemini-1.5-flash": {},
	"gemini-2.0-flash": {},
	"gpt-4o":           {},
}

// totalTokenHardLimit mirrors the point at which the original engine gave up and
// returned a canned "too much information" response rather than sending an
// unreasonably large prompt to the model.
const totalTokenHardLimit = 15000

// ChatParameters bundles the model, sampling, and truncation settings for one LLM call
// site, and enforces the allowlist/overflow behavior every call site shares.
type ChatParameters struct {
	Model                         string
	Temperature                   float32
	MaxOutputTokens               int
	TokenLimitWhenTruncatingQueue int
	logger                        domain.Logger
}

// NewChatParameters validates model against the allowlist and returns a ChatParameters.
// A model outside the tested set is rejected; a tested model outside the known-good set
// is accepted and logged.
func NewChatParameters(model string, temperature float32, maxOutputTokens, tokenLimitWhenTruncating int, logger domain.Logger) (*ChatParameters, error) {
	if _, ok := testedModels[model]; !ok {
		return nil, fmt.Errorf("llmclient: model %q is not in the set of tested chat models", model)
	}
	if _, ok := knownGoodModels[model]; !ok && logger != nil {
		logger.Dev("chat model is tested but not in the known-good set", "model", model)
	}
	return &ChatParameters{
		Model:                         model,
		Temperature:                   temperature,
		MaxOutputTokens:               maxOutputTokens,
		TokenLimitWhenTruncatingQueue: tokenLimitWhenTruncating,
		logger:                        logger,
	}, nil
}

// TruncateMessageList drops the oldest non-system messages until the remaining list fits
// within TokenLimitWhenTruncatingQueue, always keeping the system message (messages[0])
// and at least one further message even if that message alone exceeds the budget.
func (c *ChatParameters) TruncateMessageList(messages []domain.ChatMessage) []domain.ChatMessage {
	if len(messages) <= 2 {
		return messages
	}

	system := messages[0]
	rest := messages[1:]

	kept := make([]domain.ChatMessage, 0, len(rest))
	total := NumTokensFromString(system.Content, c.Model)
	for i := len(rest) - 1; i >= 0; i-- {
		n := NumTokensFromString(rest[i].Content, c.Model)
		if total+n > c.TokenLimitWhenTruncatingQueue && len(kept) > 0 {
			break
		}
		kept = append([]domain.ChatMessage{rest[i]}, kept...)
		total += n
	}

	return append([]domain.ChatMessage{system}, kept...)
}

// PrepareCall truncates messages and reports whether the resulting prompt is so large
// that the caller should short-circuit with the canned overflow response instead of
// spending a real generation call on it.
func (c *ChatParameters) PrepareCall(messages []domain.ChatMessage) (truncated []domain.ChatMessage, overflow bool) {
	truncated = c.TruncateMessageList(messages)
	total := NumTokensFromMessages(truncated, c.Model)
	return truncated, total > totalTokenHardLimit
}

// OverflowResponse is returned in place of a real generation call when PrepareCall
// reports overflow.
func OverflowResponse() string {
	return "There is too much information in the prompt to answer this question. Please try again or word the question differently."
}

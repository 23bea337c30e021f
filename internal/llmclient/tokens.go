package llmclient

import (
	"github.com/sjondavey/regulations-rag/pkg/domain"
	"github.com/pkoukk/tiktoken-go"
)

// tokensPerMessage/tokensPerName follow the per-model-family overhead used by OpenAI's
// own chat token counting guidance: every message costs a few tokens of envelope beyond
// its content, and naming the speaker costs a little more.
const (
	tokensPerMessageDefault = 3
	tokensPerNameDefault    = 1
)

// encodingFor resolves a tiktoken encoding for model, falling back to cl100k_base (the
// encoding shared by the gpt-3.5/gpt-4 family) for any model tiktoken-go doesn't
// recognize by name, since the embedding and generation models this module targets are
// newer than tiktoken-go's built-in model table.
func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return enc, nil
	}
	return tiktoken.GetEncoding("cl100k_base")
}

// NumTokensFromString counts the tokens string would occupy when sent to model.
func NumTokensFromString(s, model string) int {
	if s == "" {
		return 0
	}
	enc, err := encodingFor(model)
	if err != nil {
		return len(s) / 4
	}
	return len(enc.Encode(s, nil, nil))
}

// NumTokensFromMessages counts the tokens a full chat message list would occupy: per
// message the envelope overhead plus the role and content tokens, then 3 tokens for the
// reply primer. No per-name overhead is added.
func NumTokensFromMessages(messages []domain.ChatMessage, model string) int {
	enc, err := encodingFor(model)
	if err != nil {
		total := 0
		for _, m := range messages {
			total += len(m.Content)/4 + tokensPerMessageDefault
		}
		return total
	}
	total := 0
	for _, m := range messages {
		total += tokensPerMessageDefault
		total += len(enc.Encode(m.Role, nil, nil))
		total += len(enc.Encode(m.Content, nil, nil))
	}
	total += 3 // every reply is primed with a 3-token assistant-turn header
	return total
}

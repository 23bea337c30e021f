// Package rerank reduces an over-fetched set of candidate sections down to the ones
// worth spending context-window budget on, using one of a small number of interchangeable
// strategies.
package rerank

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

// Candidate is one retrieved section under consideration for reranking.
type Candidate struct {
	SectionReference string
	DocumentKey      string
	Text             string
	CosineDistance   float32
}

// key identifies a candidate for dedup purposes: document + section is unique within a
// single retrieval pass.
func (c Candidate) key() string { return c.DocumentKey + "|" + c.SectionReference }

// Strategy is the closed set of reranking algorithms. Every strategy carries the same
// two budget knobs so callers configure them once regardless of which algorithm runs.
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategyMostCommon Strategy = "most_common"
	StrategyLLM        Strategy = "llm"
)

// Params bounds a reranking pass: InitialSectionCap limits how many cosine-ranked
// candidates are considered at all, FinalTokenCap bounds the combined token size of the
// reranked result.
type Params struct {
	InitialSectionCap int
	FinalTokenCap     int
}

// DefaultParams matches the defaults carried by every built-in strategy.
func DefaultParams() Params {
	return Params{InitialSectionCap: 15, FinalTokenCap: 3500}
}

// Rerank dispatches to the algorithm named by strategy. It does not cap by token budget;
// that is left to the caller.
func Rerank(ctx context.Context, strategy Strategy, candidates []Candidate, gen domain.Generator) ([]Candidate, error) {
	switch strategy {
	case StrategyNone, "":
		return candidates, nil
	case StrategyMostCommon:
		return RerankMostCommon(candidates), nil
	case StrategyLLM:
		return RerankLLM(ctx, candidates, gen)
	default:
		return nil, fmt.Errorf("rerank: unknown strategy %q", strategy)
	}
}

// RerankMostCommon favors the single closest candidate, then any one section whose
// reference is the strict mode (most frequent, uniquely) among the candidate set, then
// every remaining section that recurs more than once, in first-seen order, and finally,
// when fewer than two candidates have been emitted, backfills with up to two singleton
// sections (in cosine order) or until the pool is exhausted. It never emits the same
// section twice.
func RerankMostCommon(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CosineDistance < sorted[j].CosineDistance })

	counts := make(map[string]int)
	firstSeen := make(map[string]Candidate)
	order := make([]string, 0, len(sorted))
	for _, c := range sorted {
		k := c.key()
		if counts[k] == 0 {
			firstSeen[k] = c
			order = append(order, k)
		}
		counts[k]++
	}

	emitted := make(map[string]struct{})
	var out []Candidate

	top := sorted[0]
	out = append(out, top)
	emitted[top.key()] = struct{}{}

	// Unique mode: the single most frequent section, only if no other section ties it.
	modeKey, modeCount, tie := "", 0, false
	for k, n := range counts {
		switch {
		case n > modeCount:
			modeKey, modeCount, tie = k, n, false
		case n == modeCount:
			tie = true
		}
	}
	if !tie && modeCount > 1 {
		if _, already := emitted[modeKey]; !already {
			out = append(out, firstSeen[modeKey])
			emitted[modeKey] = struct{}{}
		}
	}

	for _, k := range order {
		if counts[k] <= 1 {
			continue
		}
		if _, already := emitted[k]; already {
			continue
		}
		out = append(out, firstSeen[k])
		emitted[k] = struct{}{}
	}

	if len(out) < 2 {
		added := 0
		for _, k := range order {
			if added >= 2 {
				break
			}
			if _, already := emitted[k]; already {
				continue
			}
			out = append(out, firstSeen[k])
			emitted[k] = struct{}{}
			added++
		}
	}

	return out
}

// RerankLLM asks gen to pick the most relevant candidates out of an indexed listing,
// then maps the response back onto the original candidates, deduplicated by
// document+section.
func RerankLLM(ctx context.Context, candidates []Candidate, gen domain.Generator) ([]Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if gen == nil {
		return nil, fmt.Errorf("rerank: llm strategy requires a Generator")
	}

	var prompt strings.Builder
	prompt.WriteString("Below is a numbered list of candidate passages. Return the indices of the passages that are relevant, separated by '|', most relevant first. Return nothing else.\n\n")
	for i, c := range candidates {
		fmt.Fprintf(&prompt, "Index %d: %s\n\n", i, c.Text)
	}

	resp, err := gen.Generate(ctx,
		"You select the most relevant passages from a numbered list and respond with only their indices.",
		[]domain.ChatMessage{{Role: "user", Content: prompt.String()}},
		0, 500)
	if err != nil {
		return nil, fmt.Errorf("rerank: llm call failed: %w", err)
	}

	seen := make(map[string]struct{})
	var out []Candidate
	for _, tok := range strings.Split(resp, "|") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 || idx >= len(candidates) {
			continue
		}
		c := candidates[idx]
		if _, dup := seen[c.key()]; dup {
			continue
		}
		seen[c.key()] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

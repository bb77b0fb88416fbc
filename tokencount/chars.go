// Package tokencount provides concrete TokenCounter implementations for the
// pruning package's external tokenCounter collaborator (spec §4.1/§6).
package tokencount

import (
	"strings"

	"github.com/initializ/contextprune/message"
)

// charsPerToken and the model-window table are ported from the teacher's
// forge-core/runtime/memory.go ContextBudgetForModel/charsPerToken heuristic.
const (
	charsPerToken = 4
	safetyMargin  = 0.85 // use 85% of context window
	defaultWindow = 128_000
)

// toolResultWeightMultiplier weights tool results at 2x in char counting:
// tool results contain structured data (JSON, logs) that tokenizes less
// efficiently than prose, same rationale as the teacher's memory.go.
const toolResultWeightMultiplier = 2

// modelContextWindows maps model name prefixes to context window sizes (in
// tokens), ported verbatim from the teacher.
var modelContextWindows = map[string]int{
	"gpt-4o":        128_000,
	"gpt-4":         128_000,
	"gpt-5":         128_000,
	"gpt-3.5":       16_000,
	"claude-opus":   200_000,
	"claude-sonnet": 200_000,
	"claude-haiku":  200_000,
	"gemini-2.5":    1_000_000,
	"gemini-2.0":    1_000_000,
	"llama3.1":      128_000,
	"llama3":        8_000,
	"mistral":       32_000,
	"codellama":     16_000,
	"deepseek":      64_000,
	"qwen":          32_000,
}

// ContextBudgetForModel returns the token budget for a given model name.
// Uses longest-prefix matching against known models (so "llama3.1" isn't
// shadowed by "llama3"), falling back to defaultWindow.
func ContextBudgetForModel(model string) int {
	model = strings.ToLower(model)
	bestPrefix := ""
	bestTokens := 0
	for prefix, tokens := range modelContextWindows {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix = prefix
			bestTokens = tokens
		}
	}
	if bestPrefix != "" {
		return int(float64(bestTokens) * safetyMargin)
	}
	return defaultWindow
}

// CharCounter is the charsPerToken≈4 heuristic TokenCounter: the default,
// zero-dependency implementation used when no real tokenizer is available.
type CharCounter struct{}

// NewCharCounter constructs the char-heuristic counter.
func NewCharCounter() CharCounter { return CharCounter{} }

// CountMessage estimates the token count of a message by character length,
// weighting Tool content 2x per toolResultWeightMultiplier.
func (CharCounter) CountMessage(msg message.Message) int {
	total := len(msg.Role)
	for _, b := range msg.Content {
		n := len(b.Text) + len(b.Input) + len(b.ID) + len(b.Name)
		if b.Summary != nil {
			n += len(b.Summary.Text)
		}
		total += n
	}
	total += len(msg.Name)
	for _, tc := range msg.ToolCalls {
		total += len(tc.Name) + len(tc.Args)
	}
	if msg.Role == message.RoleTool {
		total *= toolResultWeightMultiplier
	}
	chars := total
	tokens := chars / charsPerToken
	if chars%charsPerToken != 0 {
		tokens++
	}
	return tokens
}

// CountText estimates the token count of a raw string rather than a whole
// message, rounding up to whole tokens.
func (CharCounter) CountText(s string) int {
	tokens := len(s) / charsPerToken
	if len(s)%charsPerToken != 0 {
		tokens++
	}
	return tokens
}

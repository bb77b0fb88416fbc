// Package pruning implements the conversation-context pruning pipeline:
// TokenLedger, PositionPruner, PreFlightTruncator, BackwardPacker,
// StructuralRepairer, EmergencyTruncator, SummarizationTrigger, and the
// Orchestrator that sequences them once per agent turn.
package pruning

import (
	"github.com/initializ/contextprune/message"
)

// TokenCounter estimates the token count of a single message. Implementations
// live in package tokencount (CharCounter, TiktokenCounter); callers may
// supply their own to match a specific provider's tokenizer.
type TokenCounter interface {
	CountMessage(msg message.Message) int
	CountText(s string) int
}

// IndexTokenMap maps a message's original index to its estimated token
// count. Entries persist across turns, keyed by original index rather than
// pointer identity, so they survive list reconstruction (spec §3, §9).
type IndexTokenMap map[int]int

// Clone returns a shallow copy of the map.
func (m IndexTokenMap) Clone() IndexTokenMap {
	out := make(IndexTokenMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Usage carries provider-reported token-usage metadata, used both as the
// just-completed call's usageMetadata (for ensureCounted's authoritative
// output-token override) and as lastCallUsage (for Calibrate).
type Usage struct {
	InputTokens            *int
	OutputTokens           *int
	InputTokenCacheCreate  *int
	InputTokenCacheRead    *int
	TotalTokens            *int
}

// sum returns input + cache_creation + cache_read + output, treating nil
// fields as zero. Used as the calibrationTotal fallback when TotalTokens is
// absent (spec §4.1).
func (u *Usage) sum() int {
	if u == nil {
		return 0
	}
	v := deref(u.InputTokens) + deref(u.InputTokenCacheCreate) + deref(u.InputTokenCacheRead) + deref(u.OutputTokens)
	return v
}

// hasCalibrationData reports whether the provider supplied at least one of
// input_tokens, input_token_details.cache_creation/cache_read — the
// precondition for Calibrate (spec §4.1).
func (u *Usage) hasCalibrationData() bool {
	if u == nil {
		return false
	}
	return u.InputTokens != nil || u.InputTokenCacheCreate != nil || u.InputTokenCacheRead != nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// TurnState is the per-agent closure that survives between prune
// invocations (spec §3/§9): created when the manager is created, mutated on
// every call, destroyed with the manager. Callers needing durability across
// process restarts use package store to snapshot it alongside the context.
type TurnState struct {
	StartIndex            int
	LastCutOffIndex        int
	LastTurnStartIndex     int
	RunThinkingStartIndex  int
	TotalTokens            int
}

// ReasoningType distinguishes which provider family's reasoning-block
// encoding BackwardPacker should track (spec §4.4).
type ReasoningType string

const (
	ReasoningThinking         ReasoningType = "thinking"
	ReasoningReasoningContent ReasoningType = "reasoning_content"
)

// Provider is a free-form provider label (mirrors the teacher's
// ResolveModelConfig, which also treats providers as plain strings rather
// than a closed enum).
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOther     Provider = ""
)

// Params configures a Pruner for the lifetime of one agent (spec §6
// PruneMessagesFactoryParams).
type Params struct {
	Provider             Provider
	MaxTokens            int
	StartIndex           int
	TokenCounter         TokenCounter
	IndexTokenCountMap   IndexTokenMap
	ThinkingEnabled      bool
	ReasoningType        ReasoningType
	ContextPruning       *ContextPruningConfig
	GetInstructionTokens func() int
	ReserveRatio         float64
	Log                  Logger
}

// Logger is re-exported here so callers of package pruning don't need to
// import package logging directly for the common case.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// Input is the per-invocation payload (spec §6 PruneMessagesParams).
type Input struct {
	Messages         []message.Message
	UsageMetadata    *Usage
	StartType        []message.Role
	LastCallUsage    *Usage
	TotalTokensFresh bool
}

// Output is what Prune returns (spec §6).
type Output struct {
	Context                []message.Message
	IndexTokenCountMap     IndexTokenMap
	MessagesToRefine       []message.Message
	PrePruneTotalTokens    int
	RemainingContextTokens int
	ThinkingStartIndex     *int

	// SoftTrimmedCount, HardClearedCount, and DroppedOrphanCount report how
	// many messages PositionPruner and StructuralRepairer degraded this
	// call, for callers (cmd/contextprune inspect, package store) that
	// surface pruning decisions rather than just the surviving context.
	SoftTrimmedCount   int
	HardClearedCount   int
	DroppedOrphanCount int
}

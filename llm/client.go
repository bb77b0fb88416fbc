// Package llm defines the minimal provider-agnostic interface the
// summarization collaborator uses to call out to a model, plus the
// failover/cooldown machinery for running several candidate providers in
// sequence. It intentionally carries no HTTP transport or wire-format code:
// summarization is the only caller, and it exchanges ordinary
// message.Message values rather than a provider-specific request shape.
package llm

import (
	"context"

	"github.com/initializ/contextprune/message"
	"github.com/initializ/contextprune/pruning"
)

// Provider identifies which backend a Client/FallbackCandidate talks to. It
// is the same closed-ish string type the pruning pipeline already uses for
// ProviderOpenAI/ProviderAnthropic/ProviderGemini, so a cooldown or failover
// classification recorded against "openai" here and a thinking-block
// encoding decision made against the same label in package pruning are
// guaranteed to agree.
type Provider = pruning.Provider

// UsageInfo mirrors a provider's token-usage accounting for one call.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatRequest asks a Client to produce a single completion over a message
// history.
type ChatRequest struct {
	Model       string
	Messages    []message.Message
	Temperature *float64
	MaxTokens   int
}

// ChatResponse is a Client's completion result.
type ChatResponse struct {
	Message      message.Message
	Usage        UsageInfo
	FinishReason string
}

// Client is implemented by every LLM provider backend usable as the
// summarization collaborator. It has no streaming method: summarization
// only needs a single completed response from Chat.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ModelID() string
}

// ClientConfig configures a single provider backend.
type ClientConfig struct {
	Provider    Provider
	APIKey      string
	BaseURL     string
	Model       string
	TimeoutSecs int
}

// Package summarize implements the external summarization collaborator the
// orchestrator hands messagesToRefine to when SummarizationTrigger fires
// (spec §6). It produces a message.Summary content block the caller
// reattaches to the next turn's system context.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/initializ/contextprune/llm"
	"github.com/initializ/contextprune/message"
)

const (
	summaryMaxTokens   = 1024
	summaryTimeout     = 30 * time.Second
	maxExtractiveChars = 2000
)

// Summarizer condenses a run of pruned messages into a single summary block.
type Summarizer interface {
	Summarize(ctx context.Context, messages []message.Message, existingSummary string) (message.Summary, error)
}

// ExtractiveSummarizer builds a bullet-point summary without calling a
// model: one line per message, tool-call names called out separately. It is
// the fallback used whenever an LLMSummarizer's model call fails, and is
// usable standalone when no Client is configured at all.
type ExtractiveSummarizer struct {
	Provider string
}

// NewExtractiveSummarizer builds an ExtractiveSummarizer; provider is stamped
// onto the resulting Summary for observability ("extractive" by default).
func NewExtractiveSummarizer(provider string) *ExtractiveSummarizer {
	if provider == "" {
		provider = "extractive"
	}
	return &ExtractiveSummarizer{Provider: provider}
}

// Summarize never returns an error: it's the no-dependency fallback floor.
func (s *ExtractiveSummarizer) Summarize(_ context.Context, messages []message.Message, existingSummary string) (message.Summary, error) {
	var sb strings.Builder

	if existingSummary != "" {
		sb.WriteString(existingSummary)
		sb.WriteString("\n\n")
	}

	for _, m := range messages {
		text := m.Text()
		if len(text) > maxExtractiveChars {
			text = text[:maxExtractiveChars] + "..."
		}
		if text != "" {
			fmt.Fprintf(&sb, "- [%s] %s\n", m.Role, text)
		}
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&sb, "- [tool_call] %s\n", tc.Name)
		}
		if m.Role == message.RoleTool && text == "" {
			fmt.Fprintf(&sb, "- [tool_result] %s\n", m.Name)
		}
	}

	text := sb.String()
	return message.Summary{
		Text:       text,
		TokenCount: len(text) / 4,
		Provider:   s.Provider,
		CreatedAt:  time.Now(),
	}, nil
}

// LLMSummarizer asks a model for an abstractive summary, falling back to an
// ExtractiveSummarizer on any error (spec §7: summarization failures are the
// external collaborator's concern, never surfaced as pipeline errors).
type LLMSummarizer struct {
	client   llm.Client
	fallback *ExtractiveSummarizer
	log      Logger
}

// Logger is the minimal structured-event sink LLMSummarizer reports to.
type Logger interface {
	Warn(msg string, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, map[string]any) {}

// NewLLMSummarizer builds an LLMSummarizer around client, falling back to
// extractive summarization (tagged with client.ModelID()) when the call
// fails or times out.
func NewLLMSummarizer(client llm.Client, log Logger) *LLMSummarizer {
	if log == nil {
		log = nopLogger{}
	}
	return &LLMSummarizer{
		client:   client,
		fallback: NewExtractiveSummarizer(client.ModelID()),
		log:      log,
	}
}

// Summarize tries the model first; on error it logs a warning and falls
// back to extractive summarization rather than propagating the failure.
func (s *LLMSummarizer) Summarize(ctx context.Context, messages []message.Message, existingSummary string) (message.Summary, error) {
	summary, err := s.llmSummarize(ctx, messages, existingSummary)
	if err != nil {
		s.log.Warn("llm summarization failed, falling back to extractive", map[string]any{
			"error": err.Error(),
		})
		return s.fallback.Summarize(ctx, messages, existingSummary)
	}
	return summary, nil
}

func (s *LLMSummarizer) llmSummarize(ctx context.Context, messages []message.Message, existingSummary string) (message.Summary, error) {
	var sb strings.Builder
	sb.WriteString("Summarize the following conversation concisely. ")
	sb.WriteString("Preserve key facts, decisions, tool results, and action items. ")
	sb.WriteString("Output only the summary, no preamble.\n\n")

	if existingSummary != "" {
		sb.WriteString("## Existing Summary (incorporate and update)\n")
		sb.WriteString(existingSummary)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Conversation to summarize\n")
	for _, m := range messages {
		fmt.Fprintf(&sb, "[%s]: %s\n", m.Role, truncateForPrompt(m.Text(), 500))
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&sb, "  -> tool_call: %s(%s)\n", tc.Name, truncateForPrompt(string(tc.Args), 200))
		}
	}

	temp := 0.3
	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	resp, err := s.client.Chat(ctx, &llm.ChatRequest{
		Messages:    []message.Message{message.NewText(message.RoleHuman, message.NewMessageID(), sb.String())},
		Temperature: &temp,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return message.Summary{}, err
	}

	return message.Summary{
		Text:       resp.Message.Text(),
		TokenCount: resp.Usage.CompletionTokens,
		Provider:   "llm",
		Model:      s.client.ModelID(),
		CreatedAt:  time.Now(),
	}, nil
}

func truncateForPrompt(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

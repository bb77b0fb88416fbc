package pruning

import (
	"testing"

	"github.com/initializ/contextprune/message"
)

func TestPrunerEmptyMessagesReturnsZeroOutput(t *testing.T) {
	pr := NewPruner(Params{MaxTokens: 1000, TokenCounter: fixedCounter{n: 1}})
	out := pr.Prune(Input{})

	if out.Context != nil {
		t.Error("empty input should produce a nil context")
	}
	if out.RemainingContextTokens != 1000 {
		t.Errorf("RemainingContextTokens = %d, want MaxTokens (1000)", out.RemainingContextTokens)
	}
}

func TestPrunerFastPathReturnsAllMessagesUnchanged(t *testing.T) {
	pr := NewPruner(Params{MaxTokens: 1000, ReserveRatio: 0.05, TokenCounter: fixedCounter{n: 5}})
	messages := []message.Message{
		textMsg(message.RoleHuman, "hi"),
		textMsg(message.RoleAI, "hello"),
	}
	out := pr.Prune(Input{Messages: messages})

	if len(out.Context) != 2 {
		t.Fatalf("fast path should return every message untouched, got %d", len(out.Context))
	}
	if len(out.MessagesToRefine) != 0 {
		t.Errorf("fast path should produce no messages to refine, got %d", len(out.MessagesToRefine))
	}
	if out.PrePruneTotalTokens != 10 {
		t.Errorf("PrePruneTotalTokens = %d, want 10", out.PrePruneTotalTokens)
	}
}

func TestPrunerPacksWhenOverBudget(t *testing.T) {
	pr := NewPruner(Params{MaxTokens: 50, ReserveRatio: 0, TokenCounter: fixedCounter{n: 10}})
	messages := []message.Message{
		textMsg(message.RoleHuman, "one"),
		textMsg(message.RoleAI, "two"),
		textMsg(message.RoleHuman, "three"),
		textMsg(message.RoleAI, "four"),
		textMsg(message.RoleHuman, "five"),
		textMsg(message.RoleAI, "six"),
	}
	out := pr.Prune(Input{Messages: messages})

	if len(out.Context) >= len(messages) {
		t.Errorf("over-budget conversation should be pruned down, got %d of %d messages", len(out.Context), len(messages))
	}
	if len(out.MessagesToRefine) == 0 {
		t.Error("pruned-away messages should be reported as messagesToRefine")
	}
	last := out.Context[len(out.Context)-1]
	if last.Text() != "six" {
		t.Errorf("the newest message must survive packing, got %q", last.Text())
	}
}

func TestPrunerIsIdempotentOnAStableConversation(t *testing.T) {
	pr := NewPruner(Params{MaxTokens: 1000, ReserveRatio: 0.05, TokenCounter: fixedCounter{n: 5}})
	messages := []message.Message{
		textMsg(message.RoleHuman, "hi"),
		textMsg(message.RoleAI, "hello"),
	}
	first := pr.Prune(Input{Messages: messages})
	second := pr.Prune(Input{Messages: first.Context})

	if len(second.Context) != len(first.Context) {
		t.Errorf("re-running Prune on an already-fitting context should be a no-op, got %d vs %d", len(second.Context), len(first.Context))
	}
	if len(second.MessagesToRefine) != 0 {
		t.Errorf("an already-fitting context should never produce new messagesToRefine, got %d", len(second.MessagesToRefine))
	}
}

func TestShouldSummarizeDefaultsToFiringOnAnyRefine(t *testing.T) {
	pr := NewPruner(Params{MaxTokens: 50, ReserveRatio: 0, TokenCounter: fixedCounter{n: 10}})
	messages := []message.Message{
		textMsg(message.RoleHuman, "one"),
		textMsg(message.RoleAI, "two"),
		textMsg(message.RoleHuman, "three"),
		textMsg(message.RoleAI, "four"),
		textMsg(message.RoleHuman, "five"),
		textMsg(message.RoleAI, "six"),
	}
	out := pr.Prune(Input{Messages: messages})
	if !pr.ShouldSummarize(out) {
		t.Error("with no trigger configured, any pruning should request summarization")
	}
}

func TestShouldSummarizeFalseWithNothingPruned(t *testing.T) {
	pr := NewPruner(Params{MaxTokens: 1000, ReserveRatio: 0.05, TokenCounter: fixedCounter{n: 5}})
	out := pr.Prune(Input{Messages: []message.Message{textMsg(message.RoleHuman, "hi")}})
	if pr.ShouldSummarize(out) {
		t.Error("nothing was pruned, summarization should never be requested")
	}
}

func TestHoistOpenAIReasoningMovesIntoThinkingBlock(t *testing.T) {
	pr := NewPruner(Params{
		MaxTokens:       1000,
		ReserveRatio:    0.05,
		TokenCounter:    fixedCounter{n: 5},
		Provider:        ProviderOpenAI,
		ThinkingEnabled: true,
	})
	messages := []message.Message{
		textMsg(message.RoleHuman, "hi"),
		{
			Role:      message.RoleAI,
			ID:        message.NewMessageID(),
			ToolCalls: []message.ToolCall{{ID: "t1", Name: "search"}},
			AdditionalKwargs: map[string]any{
				"reasoning_content": "thinking it through",
			},
		},
	}
	out := pr.Prune(Input{Messages: messages})

	found := false
	for _, m := range out.Context {
		if tb, ok := m.ThinkingBlock(); ok && tb.Text == "thinking it through" {
			found = true
		}
		if _, present := m.AdditionalKwargs["reasoning_content"]; present {
			t.Error("reasoning_content should be removed after hoisting into a content block")
		}
	}
	if !found {
		t.Error("expected reasoning_content to be hoisted into a Thinking content block")
	}
}

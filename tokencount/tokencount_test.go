package tokencount

import (
	"testing"

	"github.com/initializ/contextprune/message"
)

func TestCountTextRoundsUpToWholeTokens(t *testing.T) {
	c := NewCharCounter()
	cases := []struct {
		s    string
		want int
	}{
		{"", 0},
		{"abcd", 1},   // exactly 4 chars -> 1 token
		{"abcde", 2},  // 5 chars -> rounds up
		{"abcdefgh", 2},
	}
	for _, tc := range cases {
		if got := c.CountText(tc.s); got != tc.want {
			t.Errorf("CountText(%q) = %d, want %d", tc.s, got, tc.want)
		}
	}
}

func TestCountMessageWeightsToolRoleDouble(t *testing.T) {
	c := NewCharCounter()
	human := message.NewText(message.RoleHuman, "1", "abcdefgh") // 8 chars + role(5) = 13 -> 4 tokens
	tool := message.Message{
		Role:       message.RoleTool,
		ToolCallID: "t1",
		Content:    []message.ContentBlock{{Type: message.BlockText, Text: "abcdefgh"}},
	}

	humanTokens := c.CountMessage(human)
	toolTokens := c.CountMessage(tool)

	if toolTokens <= humanTokens {
		t.Errorf("a Tool message with identical text content should count for more tokens than a Human one (role weighting): tool=%d human=%d", toolTokens, humanTokens)
	}
}

func TestCountMessageIncludesToolCallNameAndArgs(t *testing.T) {
	c := NewCharCounter()
	withoutCall := message.Message{Role: message.RoleAI}
	withCall := message.Message{
		Role:      message.RoleAI,
		ToolCalls: []message.ToolCall{{ID: "t1", Name: "search", Args: []byte(`{"q":"hello world"}`)}},
	}

	if c.CountMessage(withCall) <= c.CountMessage(withoutCall) {
		t.Error("tool call name and args should contribute to the token estimate")
	}
}

func TestContextBudgetForModelPrefersLongestPrefixMatch(t *testing.T) {
	llama31 := ContextBudgetForModel("llama3.1-instruct")
	llama3 := ContextBudgetForModel("llama3-instruct")

	if llama31 == llama3 {
		t.Error("llama3.1 should not be shadowed by the shorter llama3 prefix")
	}
	wantLlama31 := int(128_000 * safetyMargin)
	if llama31 != wantLlama31 {
		t.Errorf("ContextBudgetForModel(llama3.1-instruct) = %d, want %d", llama31, wantLlama31)
	}
}

func TestContextBudgetForModelFallsBackToDefaultWindow(t *testing.T) {
	got := ContextBudgetForModel("some-unknown-model")
	if got != defaultWindow {
		t.Errorf("unknown model should fall back to defaultWindow, got %d want %d", got, defaultWindow)
	}
}

func TestContextBudgetForModelIsCaseInsensitive(t *testing.T) {
	lower := ContextBudgetForModel("gpt-4o")
	upper := ContextBudgetForModel("GPT-4O")
	if lower != upper {
		t.Errorf("ContextBudgetForModel should be case-insensitive: %d vs %d", lower, upper)
	}
}

func TestTiktokenCounterCountsRealTokensWhenEncodingLoads(t *testing.T) {
	c, err := NewTiktokenCounter("cl100k_base")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable in this environment: %v", err)
	}

	msg := message.NewText(message.RoleHuman, "1", "hello world")
	tokens := c.CountMessage(msg)
	if tokens <= 0 {
		t.Errorf("expected a positive token count, got %d", tokens)
	}

	toolMsg := message.Message{
		Role:       message.RoleTool,
		ToolCallID: "t1",
		Content:    []message.ContentBlock{{Type: message.BlockText, Text: "hello world"}},
	}
	if c.CountMessage(toolMsg) <= tokens-4 {
		t.Error("tool role weighting should roughly double the encoded token count")
	}
}

func TestTiktokenCounterDefaultsEncodingWhenEmpty(t *testing.T) {
	c, err := NewTiktokenCounter("")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable in this environment: %v", err)
	}
	if c.CountText("hi") <= 0 {
		t.Error("expected a positive token count from the default encoding")
	}
}

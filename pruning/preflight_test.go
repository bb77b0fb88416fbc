package pruning

import (
	"strings"
	"testing"

	"github.com/initializ/contextprune/message"
)

func TestTruncateToolResultsPreservesPrefixAndSuffix(t *testing.T) {
	ledger := NewTokenLedger(charLikeCounter{}, nil)
	big := strings.Repeat("a", 1000)
	messages := []message.Message{
		{Role: message.RoleTool, ID: message.NewMessageID(), ToolCallID: "t1", Content: []message.ContentBlock{{Type: message.BlockText, Text: big}}},
	}
	ledger.EnsureCounted(messages, 0, nil)

	truncator := NewPreFlightTruncator(ledger)
	// maxContextTokens chosen so the 30%*4 limit is well under 1000 chars.
	count := truncator.TruncateToolResults(messages, 100)

	if count != 1 {
		t.Fatalf("expected 1 tool result truncated, got %d", count)
	}
	text, _ := messages[0].ContentText()
	if !strings.HasPrefix(text, "aaa") {
		t.Error("truncated text should preserve a prefix of the original")
	}
	if !strings.HasSuffix(text, "aaa") {
		t.Error("truncated text should preserve a suffix of the original")
	}
	if len(text) >= len(big) {
		t.Error("truncated text should be shorter than the original")
	}
}

func TestTruncateToolResultsLeavesSmallResultsAlone(t *testing.T) {
	ledger := NewTokenLedger(charLikeCounter{}, nil)
	messages := []message.Message{
		{Role: message.RoleTool, ID: message.NewMessageID(), ToolCallID: "t1", Content: []message.ContentBlock{{Type: message.BlockText, Text: "short"}}},
	}
	ledger.EnsureCounted(messages, 0, nil)

	truncator := NewPreFlightTruncator(ledger)
	count := truncator.TruncateToolResults(messages, 100_000)

	if count != 0 {
		t.Errorf("small tool results should not be truncated, got count %d", count)
	}
}

func TestTruncateToolCallInputsMirrorsIntoToolCallsArgs(t *testing.T) {
	ledger := NewTokenLedger(charLikeCounter{}, nil)
	bigInput := []byte(`{"data":"` + strings.Repeat("b", 2000) + `"}`)
	messages := []message.Message{
		{
			Role: message.RoleAI,
			ID:   message.NewMessageID(),
			Content: []message.ContentBlock{
				{Type: message.BlockToolUse, ID: "call1", Name: "search", Input: bigInput},
			},
			ToolCalls: []message.ToolCall{{ID: "call1", Name: "search", Args: bigInput}},
		},
	}
	ledger.EnsureCounted(messages, 0, nil)

	truncator := NewPreFlightTruncator(ledger)
	count := truncator.TruncateToolCallInputs(messages, 100)

	if count != 1 {
		t.Fatalf("expected 1 message with truncated tool inputs, got %d", count)
	}
	if len(messages[0].Content[0].Input) >= len(bigInput) {
		t.Error("tool_use Input should have been truncated")
	}
	if string(messages[0].Content[0].Input) != string(messages[0].ToolCalls[0].Args) {
		t.Error("truncation must mirror identically onto the parallel ToolCalls.Args")
	}
}

func TestJSONQuoteEscapesControlCharacters(t *testing.T) {
	got := jsonQuote("a\nb\tc\"d\\e")
	want := `"a\nb\tc\"d\\e"`
	if got != want {
		t.Errorf("jsonQuote(...) = %q, want %q", got, want)
	}
}

func TestJSONQuoteReplacesLowControlBytesWithSpace(t *testing.T) {
	got := jsonQuote("a\x01b")
	if got != `"a b"` {
		t.Errorf("jsonQuote with a control byte = %q, want %q", got, `"a b"`)
	}
}

func TestHeadTailTruncateNoopUnderLimit(t *testing.T) {
	if got := headTailTruncate("short", 100); got != "short" {
		t.Errorf("headTailTruncate should be a no-op under the limit, got %q", got)
	}
}

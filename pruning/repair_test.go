package pruning

import (
	"testing"

	"github.com/initializ/contextprune/message"
)

func aiWithToolCall(id string) message.Message {
	return message.Message{
		Role:      message.RoleAI,
		ID:        message.NewMessageID(),
		ToolCalls: []message.ToolCall{{ID: id, Name: "search"}},
		Content:   []message.ContentBlock{{Type: message.BlockToolUse, ID: id, Name: "search"}},
	}
}

func toolResult(id string) message.Message {
	return message.Message{
		Role:       message.RoleTool,
		ID:         message.NewMessageID(),
		ToolCallID: id,
		Content:    []message.ContentBlock{{Type: message.BlockText, Text: "result"}},
	}
}

func TestStructuralRepairerDropsOrphanToolResult(t *testing.T) {
	ledger := NewTokenLedger(fixedCounter{n: 1}, IndexTokenMap{0: 1})
	context := []message.Message{toolResult("missing")}
	result := NewStructuralRepairer(ledger).Repair(context, []int{0})

	if len(result.Context) != 0 {
		t.Errorf("orphan tool result should be dropped, got %d remaining", len(result.Context))
	}
	if result.DroppedOrphanCount != 1 {
		t.Errorf("DroppedOrphanCount = %d, want 1", result.DroppedOrphanCount)
	}
	if result.ReclaimedTokens != 1 {
		t.Errorf("ReclaimedTokens = %d, want 1", result.ReclaimedTokens)
	}
}

func TestStructuralRepairerDropsTrailingStrippedAIEvenWithSurvivingText(t *testing.T) {
	ledger := NewTokenLedger(fixedCounter{n: 1}, IndexTokenMap{0: 1})
	ai := aiWithToolCall("t1")
	ai.Content = append(ai.Content, message.ContentBlock{Type: message.BlockText, Text: "here's my answer"})
	context := []message.Message{ai}

	result := NewStructuralRepairer(ledger).Repair(context, []int{0})

	if len(result.Context) != 0 {
		t.Fatalf("a trailing AI message with stripped tool_use must be dropped even when text survives, got %d messages", len(result.Context))
	}
	if len(result.DroppedMessages) != 1 {
		t.Errorf("expected the dropped AI in DroppedMessages, got %d", len(result.DroppedMessages))
	}
}

func TestStructuralRepairerKeepsStrippedAIWithTextWhenNotLast(t *testing.T) {
	ledger := NewTokenLedger(fixedCounter{n: 1}, IndexTokenMap{0: 1, 1: 1})
	ai := aiWithToolCall("t1")
	ai.Content = append(ai.Content, message.ContentBlock{Type: message.BlockText, Text: "here's my answer"})
	context := []message.Message{ai, textMsg(message.RoleHuman, "thanks")}

	result := NewStructuralRepairer(ledger).Repair(context, []int{0, 1})

	if len(result.Context) != 2 {
		t.Fatalf("a stripped AI followed by another surviving message should keep its text, got %d messages", len(result.Context))
	}
	if result.Context[0].Text() != "here's my answer" {
		t.Errorf("surviving AI message should keep its text content, got %q", result.Context[0].Text())
	}
	if len(result.Context[0].ToolCalls) != 0 {
		t.Error("orphan tool call should be stripped from ToolCalls")
	}
}

func TestStructuralRepairerDropsAIEntirelyWhenNothingRemains(t *testing.T) {
	ledger := NewTokenLedger(fixedCounter{n: 1}, IndexTokenMap{0: 1})
	context := []message.Message{aiWithToolCall("t1")}

	result := NewStructuralRepairer(ledger).Repair(context, []int{0})

	if len(result.Context) != 0 {
		t.Errorf("AI message with nothing left after stripping should be dropped entirely, got %d", len(result.Context))
	}
	if len(result.DroppedMessages) != 1 {
		t.Errorf("dropped AI should be reported in DroppedMessages, got %d", len(result.DroppedMessages))
	}
}

func TestStructuralRepairerKeepsPairedToolCall(t *testing.T) {
	ledger := NewTokenLedger(fixedCounter{n: 1}, IndexTokenMap{0: 1, 1: 1})
	context := []message.Message{aiWithToolCall("t1"), toolResult("t1")}

	result := NewStructuralRepairer(ledger).Repair(context, []int{0, 1})

	if len(result.Context) != 2 {
		t.Fatalf("a correctly paired tool_use/tool_result must survive intact, got %d messages", len(result.Context))
	}
	if result.DroppedOrphanCount != 0 {
		t.Errorf("no orphans expected, got %d", result.DroppedOrphanCount)
	}
}

func TestSanitizeOrphanToolBlocksFastPathOnFullyPaired(t *testing.T) {
	messages := []message.Message{aiWithToolCall("t1"), toolResult("t1")}
	out := SanitizeOrphanToolBlocks(messages)

	if len(out) != len(messages) {
		t.Fatalf("fully paired input should pass through unchanged in length, got %d want %d", len(out), len(messages))
	}
}

func TestSanitizeOrphanToolBlocksDropsTrailingIncompleteToolUse(t *testing.T) {
	messages := []message.Message{
		textMsg(message.RoleHuman, "go"),
		aiWithToolCall("t1"), // no matching tool result: trailing incomplete exchange
	}
	out := SanitizeOrphanToolBlocks(messages)

	if len(out) != 1 {
		t.Fatalf("a trailing AI left with nothing after stripping should be dropped, got %d messages", len(out))
	}
	if out[0].Role != message.RoleHuman {
		t.Errorf("expected only the human message to remain, got role %q", out[0].Role)
	}
}

package pruning

import (
	"strings"
	"testing"

	"github.com/initializ/contextprune/message"
)

func TestEmergencyMaxChars(t *testing.T) {
	cases := []struct {
		effectiveMax, n, want int
	}{
		{effectiveMax: 400, n: 4, want: 400},   // (400/4)*4 = 400
		{effectiveMax: 4, n: 100, want: 200},   // floors to the 200-char minimum
		{effectiveMax: 1000, n: 0, want: 4000}, // n<1 clamps to 1, so v = (1000/1)*4
	}
	for _, c := range cases {
		if got := emergencyMaxChars(c.effectiveMax, c.n); got != c.want {
			t.Errorf("emergencyMaxChars(%d,%d) = %d, want %d", c.effectiveMax, c.n, got, c.want)
		}
	}
}

func TestEmergencyTruncatorRecoversNonEmptyContextAndBoundsContent(t *testing.T) {
	ledger := NewTokenLedger(fixedCounter{n: 1}, nil)
	messages := []message.Message{
		aiWithToolCall("t1"),
		{
			Role:       message.RoleTool,
			ID:         message.NewMessageID(),
			ToolCallID: "t1",
			Content:    []message.ContentBlock{{Type: message.BlockText, Text: strings.Repeat("z", 5000)}},
		},
	}
	ledger.EnsureCounted(messages, 0, nil)

	packer := NewBackwardPacker(ledger)
	repairer := NewStructuralRepairer(ledger)
	truncator := NewEmergencyTruncator(ledger, packer, repairer)

	result := truncator.Run(messages, PackOptions{Budget: 100, EndIndex: 0})

	if result.EmergencyChars <= 0 {
		t.Fatalf("EmergencyChars should be positive, got %d", result.EmergencyChars)
	}
	if len(result.Repair.Context) != 2 {
		t.Fatalf("expected the paired AI/tool exchange to survive emergency recovery, got %d messages", len(result.Repair.Context))
	}
	for _, m := range result.Repair.Context {
		if m.Role != message.RoleTool {
			continue
		}
		text, _ := m.ContentText()
		if len(text) >= 5000 {
			t.Errorf("tool content should have been truncated below its original 5000 chars, got %d", len(text))
		}
	}
	// The original messages slice must never be mutated by the speculative pass.
	text, _ := messages[1].ContentText()
	if len(text) != 5000 {
		t.Errorf("caller's original message must be untouched, got content length %d", len(text))
	}
}

func TestEmergencyTruncatorDoesNotMutateCallerMessages(t *testing.T) {
	ledger := NewTokenLedger(fixedCounter{n: 1}, nil)
	original := strings.Repeat("q", 3000)
	messages := []message.Message{
		aiWithToolCall("t1"),
		{Role: message.RoleTool, ID: message.NewMessageID(), ToolCallID: "t1", Content: []message.ContentBlock{{Type: message.BlockText, Text: original}}},
	}
	ledger.EnsureCounted(messages, 0, nil)

	packer := NewBackwardPacker(ledger)
	repairer := NewStructuralRepairer(ledger)
	truncator := NewEmergencyTruncator(ledger, packer, repairer)

	snapshot := ledger.Snapshot()
	_ = truncator.Run(messages, PackOptions{Budget: 50, EndIndex: 0})
	ledger.Restore(snapshot)

	text, _ := messages[1].ContentText()
	if text != original {
		t.Error("emergency truncation must operate on a clone, never the caller's slice")
	}
}

package pruning

import (
	"github.com/initializ/contextprune/message"
)

// RepairResult is what StructuralRepairer.Repair returns (spec §4.5).
type RepairResult struct {
	Context            []message.Message
	ContextIndices     []int
	ReclaimedTokens    int
	DroppedOrphanCount int
	DroppedMessages    []message.Message
}

// StructuralRepairer restores tool-call <-> tool-result pairing invariants
// after packing (spec §4.5). Anthropic/Bedrock-family providers reject
// unpaired tool_use/tool_result; OpenAI-family providers reject dangling
// tool_calls. This is the single choke point guaranteeing invariants (1)-(3)
// of spec §3.
type StructuralRepairer struct {
	ledger *TokenLedger
}

// NewStructuralRepairer builds a StructuralRepairer over the given ledger.
func NewStructuralRepairer(ledger *TokenLedger) *StructuralRepairer {
	return &StructuralRepairer{ledger: ledger}
}

// Repair walks context once, collecting valid tool-call ids and present
// tool-result ids, then drops orphan Tool messages and strips orphan
// ToolUse blocks (dropping the AI message entirely if nothing remains).
func (r *StructuralRepairer) Repair(context []message.Message, indices []int) RepairResult {
	validToolCallIDs := make(map[string]bool)
	presentResultIDs := make(map[string]bool)

	for _, m := range context {
		if m.Role != message.RoleAI {
			continue
		}
		for _, tc := range m.ToolCalls {
			validToolCallIDs[tc.ID] = true
		}
		for _, b := range m.ToolUseBlocks() {
			validToolCallIDs[b.ID] = true
		}
	}
	for _, m := range context {
		if m.Role == message.RoleTool && m.ToolCallID != "" {
			presentResultIDs[m.ToolCallID] = true
		}
	}

	var out []message.Message
	var outIdx []int
	var strippedKept []bool // parallel to out: true if that entry is an AI message stripped of ToolUse this call
	var dropped []message.Message
	reclaimed := 0
	orphanCount := 0

	for k, m := range context {
		idx := indices[k]
		origTokens := r.ledger.counts[idx]

		if m.Role == message.RoleTool {
			if m.ToolCallID == "" || !validToolCallIDs[m.ToolCallID] {
				dropped = append(dropped, m)
				reclaimed += origTokens
				orphanCount++
				continue
			}
			out = append(out, m)
			outIdx = append(outIdx, idx)
			strippedKept = append(strippedKept, false)
			continue
		}

		if m.Role == message.RoleAI {
			stripped, changed := stripOrphanToolUse(m, presentResultIDs)
			if changed {
				if len(stripped.Content) == 0 && len(stripped.ToolCalls) == 0 && stripped.Text() == "" {
					dropped = append(dropped, m)
					reclaimed += origTokens
					continue
				}
				newTokens := r.ledger.counter.CountMessage(stripped)
				reclaimed += origTokens - newTokens
				r.ledger.counts[idx] = newTokens
				out = append(out, stripped)
				outIdx = append(outIdx, idx)
				strippedKept = append(strippedKept, true)
				continue
			}
		}

		out = append(out, m)
		outIdx = append(outIdx, idx)
		strippedKept = append(strippedKept, false)
	}

	// Invariant 3 (spec §3): an AI message whose ToolUse blocks were
	// stripped in this call cannot be the last message of the output, even
	// if other content survives — it reads as an incomplete exchange to
	// providers that reject a conversation ending on a dangling tool call.
	if n := len(out); n > 0 && strippedKept[n-1] {
		reclaimed += r.ledger.counts[outIdx[n-1]]
		dropped = append(dropped, out[n-1])
		out = out[:n-1]
		outIdx = outIdx[:n-1]
	}

	return RepairResult{
		Context:            out,
		ContextIndices:     outIdx,
		ReclaimedTokens:    reclaimed,
		DroppedOrphanCount: orphanCount,
		DroppedMessages:    dropped,
	}
}

// stripOrphanToolUse removes any ToolUse content block and ToolCalls entry
// whose id has no matching Tool result in presentResultIDs.
func stripOrphanToolUse(m message.Message, presentResultIDs map[string]bool) (message.Message, bool) {
	changed := false

	var content []message.ContentBlock
	for _, b := range m.Content {
		if b.Type == message.BlockToolUse && !presentResultIDs[b.ID] {
			changed = true
			continue
		}
		content = append(content, b)
	}

	var toolCalls []message.ToolCall
	for _, tc := range m.ToolCalls {
		if !presentResultIDs[tc.ID] {
			changed = true
			continue
		}
		toolCalls = append(toolCalls, tc)
	}

	if !changed {
		return m, false
	}

	out := m
	out.Content = content
	out.ToolCalls = toolCalls
	return out, true
}

// SanitizeOrphanToolBlocks is the lighter safety-net variant invoked by the
// orchestrator just before model dispatch, operating without token
// accounting (spec §4.5). It includes a fast path: if every tool-call id has
// a matching result id and vice versa, the input slice itself is returned
// unchanged, without building a new one.
func SanitizeOrphanToolBlocks(messages []message.Message) []message.Message {
	validToolCallIDs := make(map[string]bool)
	presentResultIDs := make(map[string]bool)
	for _, m := range messages {
		if m.Role == message.RoleAI {
			for _, tc := range m.ToolCalls {
				validToolCallIDs[tc.ID] = true
			}
			for _, b := range m.ToolUseBlocks() {
				validToolCallIDs[b.ID] = true
			}
		}
		if m.Role == message.RoleTool && m.ToolCallID != "" {
			presentResultIDs[m.ToolCallID] = true
		}
	}

	allPaired := true
	for id := range validToolCallIDs {
		if !presentResultIDs[id] {
			allPaired = false
			break
		}
	}
	if allPaired {
		for id := range presentResultIDs {
			if !validToolCallIDs[id] {
				allPaired = false
				break
			}
		}
	}
	if allPaired {
		return messages
	}

	var out []message.Message
	for _, m := range messages {
		switch m.Role {
		case message.RoleTool:
			if m.ToolCallID == "" || !validToolCallIDs[m.ToolCallID] {
				continue
			}
			out = append(out, m)
		case message.RoleAI:
			stripped, _ := stripOrphanToolUse(m, presentResultIDs)
			out = append(out, stripped)
		default:
			out = append(out, m)
		}
	}

	// A stripped trailing AI is an incomplete exchange; some providers
	// require the conversation to end with a user-role message.
	if len(out) > 0 {
		last := out[len(out)-1]
		if last.Role == message.RoleAI && len(last.ToolUseBlocks()) == 0 && len(last.ToolCalls) == 0 {
			origLast := messages[len(messages)-1]
			if origLast.Role == message.RoleAI && (len(origLast.ToolUseBlocks()) > 0 || len(origLast.ToolCalls) > 0) {
				out = out[:len(out)-1]
			}
		}
	}

	return out
}

package pruning

import (
	"strconv"

	"github.com/initializ/contextprune/message"
)

// calculateMaxToolResultChars implements the ~30%-of-max-tokens-at-4-chars-
// per-token policy from spec §4.3(a).
func calculateMaxToolResultChars(maxContextTokens int) int {
	return int(float64(maxContextTokens) * 0.30 * 4)
}

// maxToolCallInputChars implements spec §4.3(b)'s cap: min(floor(max*0.15)*4, 200_000).
func maxToolCallInputChars(maxContextTokens int) int {
	v := (maxContextTokens * 15 / 100) * 4
	if v > 200_000 {
		v = 200_000
	}
	return v
}

// PreFlightCounters reports how many messages were pre-flight truncated.
type PreFlightCounters struct {
	ToolResultsTruncated int
	ToolInputsTruncated  int
}

// PreFlightTruncator caps oversized tool results and oversized tool-call
// inputs before the main pruning pass (spec §4.3), so no single message can
// exceed the entire budget on its own.
type PreFlightTruncator struct {
	ledger *TokenLedger
}

// NewPreFlightTruncator builds a PreFlightTruncator over the given ledger.
func NewPreFlightTruncator(ledger *TokenLedger) *PreFlightTruncator {
	return &PreFlightTruncator{ledger: ledger}
}

// TruncateToolResults caps any Tool message whose flat string content
// exceeds calculateMaxToolResultChars(maxContextTokens), preserving both
// prefix and suffix.
func (p *PreFlightTruncator) TruncateToolResults(messages []message.Message, maxContextTokens int) int {
	limit := calculateMaxToolResultChars(maxContextTokens)
	count := 0
	for i := range messages {
		if messages[i].Role != message.RoleTool {
			continue
		}
		text, isFlat := messages[i].ContentText()
		if !isFlat || len(text) <= limit {
			continue
		}
		messages[i] = messages[i].WithText(headTailTruncate(text, limit))
		p.ledger.Recount(i, messages[i])
		count++
	}
	return count
}

// TruncateToolCallInputs caps any AI message's tool_use content block (and
// mirrors the cap onto the parallel ToolCalls slice) whose serialized input
// exceeds maxToolCallInputChars(maxContextTokens).
func (p *PreFlightTruncator) TruncateToolCallInputs(messages []message.Message, maxContextTokens int) int {
	limit := maxToolCallInputChars(maxContextTokens)
	count := 0
	for i := range messages {
		if messages[i].Role != message.RoleAI {
			continue
		}
		changed := false
		for b := range messages[i].Content {
			blk := &messages[i].Content[b]
			if blk.Type != message.BlockToolUse || len(blk.Input) <= limit {
				continue
			}
			orig := len(blk.Input)
			truncated := truncateJSONInput(blk.Input, limit, orig)
			blk.Input = truncated
			changed = true
			for tc := range messages[i].ToolCalls {
				if messages[i].ToolCalls[tc].ID == blk.ID {
					messages[i].ToolCalls[tc].Args = truncated
				}
			}
		}
		if changed {
			p.ledger.Recount(i, messages[i])
			count++
		}
	}
	return count
}

// truncateJSONInput replaces an oversized tool-call input with
// {"_truncated": head+marker, "_originalChars": N} as raw JSON bytes.
func truncateJSONInput(input []byte, limit, origChars int) []byte {
	head := string(input)
	if len(head) > limit {
		head = head[:limit]
	}
	marker := "...[truncated, original " + strconv.Itoa(origChars) + " chars]"
	// Hand-built JSON rather than encoding/json.Marshal: the head is an
	// arbitrary byte slice (often itself malformed/partial JSON once cut),
	// so it must be escaped as a string, not embedded as a raw value.
	return []byte(`{"_truncated":` + jsonQuote(head+marker) + `,"_originalChars":` + strconv.Itoa(origChars) + `}`)
}

func headTailTruncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	head := limit * 2 / 3
	tail := limit - head
	if head+tail >= len(s) {
		return s
	}
	marker := "\n\n[... " + strconv.Itoa(len(s)-head-tail) + " chars truncated ...]\n\n"
	return s[:head] + marker + s[len(s)-tail:]
}

func jsonQuote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for _, r := range s {
		switch r {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\t':
			out = append(out, '\\', 't')
		default:
			if r < 0x20 {
				out = append(out, ' ')
				continue
			}
			out = append(out, []byte(string(r))...)
		}
	}
	out = append(out, '"')
	return string(out)
}

package pruning

import (
	"strconv"

	"github.com/initializ/contextprune/message"
)

// PositionCounters reports how many tool results were degraded.
type PositionCounters struct {
	SoftTrimmed int
	HardCleared int
}

// protectedZone computes, for a message list, the set of indices that
// PositionPruner must never degrade (spec §4.2):
//
//	(a) index 0 if System
//	(b) all indices before the first Human
//	(c) the last keepLastAssistants assistant turns (contiguous AI+Tool runs,
//	    walking backwards from the end)
//	(d) any Human sandwiched between protected assistant turns
//	(e) any message whose content contains an Image block
func protectedZone(messages []message.Message, keepLastAssistants int) map[int]bool {
	protected := make(map[int]bool)
	n := len(messages)
	if n == 0 {
		return protected
	}

	if messages[0].Role == message.RoleSystem {
		protected[0] = true
	}

	firstHuman := -1
	for i, m := range messages {
		if m.Role == message.RoleHuman {
			firstHuman = i
			break
		}
	}
	if firstHuman >= 0 {
		for i := 0; i < firstHuman; i++ {
			protected[i] = true
		}
	} else {
		for i := range messages {
			protected[i] = true
		}
	}

	// Walk backwards collecting the last keepLastAssistants assistant turns
	// (maximal contiguous AI+Tool runs).
	turnsSeen := 0
	i := n - 1
	lastProtectedStart := n
	for i >= 0 && turnsSeen < keepLastAssistants {
		if messages[i].Role != message.RoleAI && messages[i].Role != message.RoleTool {
			i--
			continue
		}
		end := i
		for i >= 0 && (messages[i].Role == message.RoleAI || messages[i].Role == message.RoleTool) {
			protected[i] = true
			i--
		}
		_ = end
		turnsSeen++
		lastProtectedStart = i + 1
	}

	// Any Human message sandwiched between protected assistant turns: scan
	// forward from lastProtectedStart and protect Human messages that have a
	// protected assistant-turn message both before and after them.
	for idx := lastProtectedStart; idx < n; idx++ {
		if messages[idx].Role != message.RoleHuman {
			continue
		}
		hasBefore, hasAfter := false, false
		for j := idx - 1; j >= 0; j-- {
			if protected[j] {
				hasBefore = true
				break
			}
			if messages[j].Role == message.RoleHuman {
				break
			}
		}
		for j := idx + 1; j < n; j++ {
			if protected[j] {
				hasAfter = true
				break
			}
			if messages[j].Role == message.RoleHuman {
				break
			}
		}
		if hasBefore && hasAfter {
			protected[idx] = true
		}
	}

	for i, m := range messages {
		if m.HasImage() {
			protected[i] = true
		}
	}

	return protected
}

// ageRatio is (N-i)/N for index i in a list of length N: 1 for the oldest
// (i=0), falling to 1/N for the latest (i=N-1) (spec §4.2). Monotone
// non-increasing as i increases (spec §8 property 7).
func ageRatio(i, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(n-i) / float64(n)
}

// PositionPruner degrades stale Tool results outside the protected zone via
// soft-trim or hard-clear, based on relative position (spec §4.2).
type PositionPruner struct {
	ledger *TokenLedger
}

// NewPositionPruner builds a PositionPruner over the given ledger (so it can
// recount degraded messages).
func NewPositionPruner(ledger *TokenLedger) *PositionPruner {
	return &PositionPruner{ledger: ledger}
}

// Run mutates messages in place, replacing old Tool content with
// placeholders or head/tail trims per cfg.
func (p *PositionPruner) Run(messages []message.Message, cfg ContextPruningConfig) PositionCounters {
	var counters PositionCounters
	if !cfg.Enabled {
		return counters
	}

	protected := protectedZone(messages, cfg.KeepLastAssistants)
	n := len(messages)

	for i := range messages {
		if protected[i] {
			continue
		}
		if messages[i].Role != message.RoleTool {
			continue
		}
		text, isFlat := messages[i].ContentText()
		if !isFlat {
			continue
		}

		ratio := ageRatio(i, n)

		if ratio >= cfg.HardClearRatio && cfg.HardClear.Enabled && len(text) >= cfg.MinPrunableToolChars {
			messages[i] = messages[i].WithText(cfg.HardClear.Placeholder)
			p.ledger.Recount(i, messages[i])
			counters.HardCleared++
			continue
		}

		if ratio >= cfg.SoftTrimRatio && len(text) > cfg.SoftTrim.MaxChars {
			elided := len(text) - cfg.SoftTrim.HeadChars - cfg.SoftTrim.TailChars
			if elided < 0 {
				elided = 0
			}
			marker := " […" + strconv.Itoa(elided) + " chars elided…] "
			head := text[:min(cfg.SoftTrim.HeadChars, len(text))]
			tailStart := len(text) - cfg.SoftTrim.TailChars
			if tailStart < len(head) {
				tailStart = len(head)
			}
			tail := text[tailStart:]
			messages[i] = messages[i].WithText(head + marker + tail)
			p.ledger.Recount(i, messages[i])
			counters.SoftTrimmed++
		}
	}

	return counters
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

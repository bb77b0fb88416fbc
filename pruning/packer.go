package pruning

import (
	"github.com/initializ/contextprune/message"
)

// assistantPrimingTokens reserves room for the provider-agnostic chat-
// template label ("assistant:") every provider implicitly prepends before
// generation (spec §4.4 step 1).
const assistantPrimingTokens = 3

// PackOptions configures one BackwardPacker.Pack call.
type PackOptions struct {
	Budget               int // B = maxTokens - reserveTokens
	EndIndex             int // 1 if System present, else 0
	SystemPresent        bool
	InstructionTokens    int // subtracted from remaining only when no leading System
	StartType            []message.Role
	ThinkingEnabled       bool
	ReasoningType         ReasoningType
}

// PackResult is everything BackwardPacker.Pack produces.
type PackResult struct {
	Context            []message.Message
	ContextIndices     []int // original indices, chronological
	PrunedMemory       []message.Message
	PrunedIndices      []int // original indices, chronological (oldest-to-newest)
	Remaining          int   // leftover budget after packing + reattachment
	ThinkingEndIndex   int   // -1 if thinking wasn't tracked
	ThinkingReattached bool
}

// BackwardPacker walks messages newest-to-oldest, packing into the budget,
// and preserves thinking-block sequences across the cut (spec §4.4).
type BackwardPacker struct {
	ledger *TokenLedger
}

// NewBackwardPacker builds a BackwardPacker over the given ledger.
func NewBackwardPacker(ledger *TokenLedger) *BackwardPacker {
	return &BackwardPacker{ledger: ledger}
}

// Pack implements spec §4.4.
func (bp *BackwardPacker) Pack(messages []message.Message, opts PackOptions) PackResult {
	n := len(messages)
	if n == 0 {
		return PackResult{ThinkingEndIndex: -1}
	}

	remaining := opts.Budget - assistantPrimingTokens
	if opts.SystemPresent {
		remaining -= bp.ledger.counts[0]
	} else {
		remaining -= opts.InstructionTokens
	}

	if remaining <= 0 {
		return PackResult{ThinkingEndIndex: -1}
	}

	top := n - 1
	currentTokens := 0

	// newest-first accumulators; reversed into chronological order below.
	var context []message.Message
	var contextIdx []int
	var pruned []message.Message
	var prunedIdx []int

	thinkingEndIndex := -1
	var thinkingBlock *message.ContentBlock
	sequenceOpen := true // still within the newest contiguous AI/Tool run

	i := top
	for ; i >= opts.EndIndex; i-- {
		m := messages[i]
		isAIOrTool := m.Role == message.RoleAI || m.Role == message.RoleTool

		if opts.ThinkingEnabled {
			// False start: the message believed to open the latest AI/Tool
			// sequence turns out to be immediately preceded by something
			// else. Reset the index but — matching the documented source
			// quirk (spec §9) — do NOT clear an already-captured
			// thinkingBlock.
			if thinkingEndIndex == i+1 && !isAIOrTool {
				thinkingEndIndex = -1
			}
			if thinkingEndIndex == -1 && isAIOrTool {
				thinkingEndIndex = i
			}
			if sequenceOpen {
				if isAIOrTool {
					if thinkingBlock == nil {
						if tb, ok := m.ThinkingBlock(); ok {
							cp := tb
							thinkingBlock = &cp
						}
					}
				} else {
					sequenceOpen = false
				}
			}
		}

		tok := bp.ledger.counts[i]
		if currentTokens+tok <= remaining {
			context = append(context, m)
			contextIdx = append(contextIdx, i)
			currentTokens += tok
			continue
		}

		pruned = append(pruned, m)
		prunedIdx = append(prunedIdx, i)
		if opts.ThinkingEnabled && thinkingBlock == nil && sequenceOpen {
			continue
		}
		break
	}

	// i now holds the last index visited (already recorded above); anything
	// strictly below it and at/above opts.EndIndex was never walked.
	unwalkedStart := opts.EndIndex
	unwalkedEnd := i
	if unwalkedEnd < unwalkedStart {
		unwalkedEnd = unwalkedStart
	}

	// Reverse newest-first slices into chronological order.
	chron := reverseMessages(context)
	chronIdx := reverseInts(contextIdx)

	// Step 4: a tool result must never start the context.
	startType := opts.StartType
	if len(context) > 0 && context[0].Role == message.RoleTool {
		startType = []message.Role{message.RoleAI, message.RoleHuman}
	}

	// Step 5: type trim — drop leading messages until one matches startType.
	if len(startType) > 0 {
		matchAt := -1
		for k, m := range chron {
			if roleIn(m.Role, startType) {
				matchAt = k
				break
			}
		}
		if matchAt == -1 {
			chron = nil
			chronIdx = nil
		} else {
			chron = chron[matchAt:]
			chronIdx = chronIdx[matchAt:]
		}
	}

	// Step 6: re-attach System at the front.
	if opts.SystemPresent {
		chron = append([]message.Message{messages[0]}, chron...)
		chronIdx = append([]int{0}, chronIdx...)
	}

	prunedChron := reverseMessages(pruned)
	prunedChronIdx := reverseInts(prunedIdx)
	if unwalkedEnd > unwalkedStart {
		prefix := messages[unwalkedStart:unwalkedEnd]
		prefixIdx := make([]int, 0, len(prefix))
		for idx := unwalkedStart; idx < unwalkedEnd; idx++ {
			prefixIdx = append(prefixIdx, idx)
		}
		prunedChron = append(append([]message.Message(nil), prefix...), prunedChron...)
		prunedChronIdx = append(prefixIdx, prunedChronIdx...)
	}

	result := PackResult{
		Context:          chron,
		ContextIndices:   chronIdx,
		PrunedMemory:     prunedChron,
		PrunedIndices:    prunedChronIdx,
		Remaining:        remaining - currentTokens,
		ThinkingEndIndex: thinkingEndIndex,
	}

	if opts.ThinkingEnabled && thinkingEndIndex >= 0 && thinkingBlock != nil {
		bp.reattachThinking(&result, *thinkingBlock, remaining)
	}

	return result
}

// reattachThinking implements spec §4.4's thinking reintegration: if the
// captured thinking block didn't survive packing, prepend it to the latest
// surviving AI; if that overflows the budget, fall back to the oldest AI,
// then to a freshly inserted AI carrying only the block; otherwise skip
// silently (the orchestrator handles recovery).
func (bp *BackwardPacker) reattachThinking(result *PackResult, block message.ContentBlock, remaining int) {
	for _, m := range result.Context {
		if m.Role == message.RoleAI {
			if tb, ok := m.ThinkingBlock(); ok && sameBlock(tb, block) {
				return // already present
			}
		}
	}

	currentTotal := 0
	for _, idx := range result.ContextIndices {
		currentTotal += bp.ledger.counts[idx]
	}

	tryAttach := func(at int) bool {
		m := result.Context[at]
		oldTok := bp.ledger.counts[result.ContextIndices[at]]
		newContent := append([]message.ContentBlock{block}, m.Content...)
		candidate := m
		candidate.Content = newContent
		newTok := bp.ledger.counter.CountMessage(candidate)
		if currentTotal-oldTok+newTok > remaining {
			return false
		}
		result.Context[at] = candidate
		bp.ledger.counts[result.ContextIndices[at]] = newTok
		result.ThinkingReattached = true
		result.Remaining = remaining - (currentTotal - oldTok + newTok)
		return true
	}

	latestAI := -1
	for k := len(result.Context) - 1; k >= 0; k-- {
		if result.Context[k].Role == message.RoleAI {
			latestAI = k
			break
		}
	}
	if latestAI >= 0 && tryAttach(latestAI) {
		return
	}

	oldestAI := -1
	for k := 0; k < len(result.Context); k++ {
		if result.Context[k].Role == message.RoleAI {
			oldestAI = k
			break
		}
	}
	if oldestAI >= 0 && oldestAI != latestAI && tryAttach(oldestAI) {
		return
	}

	// No AI survives (or none of it has room): insert a fresh AI carrying
	// only the thinking block, if it fits on its own.
	fresh := message.Message{
		ID:      message.NewMessageID(),
		Role:    message.RoleAI,
		Content: []message.ContentBlock{block},
	}
	freshTok := bp.ledger.counter.CountMessage(fresh)
	if currentTotal+freshTok > remaining {
		return // skip reattachment silently
	}
	insertAt := len(result.Context)
	for k, m := range result.Context {
		if m.Role == message.RoleAI || m.Role == message.RoleTool {
			insertAt = k
			break
		}
	}
	result.Context = append(result.Context[:insertAt:insertAt], append([]message.Message{fresh}, result.Context[insertAt:]...)...)
	result.ContextIndices = append(result.ContextIndices[:insertAt:insertAt], append([]int{-1}, result.ContextIndices[insertAt:]...)...)
	result.ThinkingReattached = true
	result.Remaining = remaining - (currentTotal + freshTok)
}

func sameBlock(a, b message.ContentBlock) bool {
	return a.Type == b.Type && a.Text == b.Text && a.Signature == b.Signature
}

func roleIn(r message.Role, set []message.Role) bool {
	for _, s := range set {
		if r == s {
			return true
		}
	}
	return false
}

func reverseMessages(in []message.Message) []message.Message {
	if len(in) == 0 {
		return nil
	}
	out := make([]message.Message, len(in))
	for i, m := range in {
		out[len(in)-1-i] = m
	}
	return out
}

func reverseInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

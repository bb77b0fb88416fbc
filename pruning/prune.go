package pruning

import (
	"math"

	"github.com/initializ/contextprune/logging"
	"github.com/initializ/contextprune/message"
)

// Pruner sequences TokenLedger, PositionPruner, PreFlightTruncator,
// BackwardPacker, StructuralRepairer, EmergencyTruncator, and
// SummarizationTrigger once per agent turn (spec §4.8). One Pruner is owned
// exclusively by one agent's closure; its TurnState and ledger must not be
// shared across concurrent turns.
type Pruner struct {
	params    Params
	log       Logger
	ledger    *TokenLedger
	position  *PositionPruner
	preflight *PreFlightTruncator
	packer    *BackwardPacker
	repairer  *StructuralRepairer
	trigger   *SummarizationTrigger

	state TurnState
}

// NewPruner builds a Pruner from factory params (spec §6
// PruneMessagesFactoryParams), resolving defaults the way the teacher
// resolves memory/runtime config.
func NewPruner(p Params) *Pruner {
	log := p.Log
	if log == nil {
		log = logging.NewNop()
	}
	if p.ContextPruning == nil {
		d := DefaultContextPruningConfig()
		p.ContextPruning = &d
	} else {
		merged := mergeContextPruningConfig(p.ContextPruning)
		p.ContextPruning = &merged
	}

	ledger := NewTokenLedger(p.TokenCounter, p.IndexTokenCountMap)
	var trig *SummarizationTrigger

	return &Pruner{
		params:    p,
		log:       log,
		ledger:    ledger,
		position:  NewPositionPruner(ledger),
		preflight: NewPreFlightTruncator(ledger),
		packer:    NewBackwardPacker(ledger),
		repairer:  NewStructuralRepairer(ledger),
		trigger:   trig,
		state: TurnState{
			StartIndex: p.StartIndex,
		},
	}
}

// SetSummarizationTrigger installs (or clears, with nil) the trigger config
// used by ShouldSummarize. Kept separate from NewPruner because the trigger
// config commonly arrives from a different config source than the factory
// params (spec §6).
func (pr *Pruner) SetSummarizationTrigger(cfg *SummarizationTriggerConfig) {
	pr.trigger = NewSummarizationTrigger(cfg)
}

// Prune runs one full pipeline pass (spec §4.8 steps 1-14).
func (pr *Pruner) Prune(in Input) Output {
	messages := in.Messages

	// Step 1: empty guard.
	if len(messages) == 0 {
		return Output{
			Context:                nil,
			IndexTokenCountMap:     pr.ledger.Map().Clone(),
			MessagesToRefine:       nil,
			PrePruneTotalTokens:    0,
			RemainingContextTokens: pr.params.MaxTokens,
		}
	}

	// Step 2: provider-specific normalization.
	if pr.params.Provider == ProviderOpenAI && pr.params.ThinkingEnabled {
		hoistOpenAIReasoning(messages)
	}

	// Step 3: ensureCounted + calibrate.
	pr.ledger.EnsureCounted(messages, pr.state.LastTurnStartIndex, in.UsageMetadata)
	if in.TotalTokensFresh && in.LastCallUsage != nil {
		newOutputStart := pr.state.LastTurnStartIndex
		pr.ledger.Calibrate(messages, in.TotalTokensFresh, pr.state.LastCutOffIndex, newOutputStart, in.LastCallUsage)
	}

	// Step 4: budget arithmetic.
	reserveTokens := int(math.Round(float64(pr.params.MaxTokens) * pr.params.ReserveRatio))
	pruningBudget := pr.params.MaxTokens - reserveTokens
	instructionTokens := 0
	if pr.params.GetInstructionTokens != nil {
		instructionTokens = pr.params.GetInstructionTokens()
	}
	effectiveMax := pruningBudget - instructionTokens
	if effectiveMax < 0 {
		effectiveMax = 0
	}

	pr.log.Debug("pruner.budget", map[string]any{
		"maxTokens":         pr.params.MaxTokens,
		"reserveTokens":     reserveTokens,
		"pruningBudget":     pruningBudget,
		"instructionTokens": instructionTokens,
		"effectiveMax":      effectiveMax,
		"messageCount":      len(messages),
	})

	// Step 5: pre-flight truncation, using raw maxTokens as capacity.
	resultsTruncated := pr.preflight.TruncateToolResults(messages, pr.params.MaxTokens)
	inputsTruncated := pr.preflight.TruncateToolCallInputs(messages, pr.params.MaxTokens)
	if resultsTruncated > 0 || inputsTruncated > 0 {
		pr.log.Debug("pruner.preflight", map[string]any{
			"toolResultsTruncated": resultsTruncated,
			"toolInputsTruncated":  inputsTruncated,
		})
	}

	// Step 6: position-based degradation.
	var posCounters PositionCounters
	if pr.params.ContextPruning.Enabled {
		posCounters = pr.position.Run(messages, *pr.params.ContextPruning)
		if posCounters.SoftTrimmed > 0 || posCounters.HardCleared > 0 {
			pr.log.Debug("pruner.position", map[string]any{
				"softTrimmed": posCounters.SoftTrimmed,
				"hardCleared": posCounters.HardCleared,
			})
		}
	}

	// Step 7: recompute totalTokens from the ledger.
	totalTokens := pr.ledger.Total(0, len(messages))

	// Step 8: fast path.
	if pr.state.LastCutOffIndex == 0 && totalTokens+instructionTokens <= pruningBudget {
		pr.state.TotalTokens = totalTokens
		pr.state.LastTurnStartIndex = len(messages)
		return Output{
			Context:                messages,
			IndexTokenCountMap:     pr.ledger.Map().Clone(),
			MessagesToRefine:       nil,
			PrePruneTotalTokens:    totalTokens,
			RemainingContextTokens: clampInt(pruningBudget-totalTokens, 0, pruningBudget),
			SoftTrimmedCount:       posCounters.SoftTrimmed,
			HardClearedCount:       posCounters.HardCleared,
		}
	}

	systemPresent := messages[0].Role == message.RoleSystem
	endIndex := 0
	if systemPresent {
		endIndex = 1
	}

	packOpts := PackOptions{
		Budget:            effectiveMax,
		EndIndex:          endIndex,
		SystemPresent:     systemPresent,
		InstructionTokens: instructionTokens,
		StartType:         in.StartType,
		ThinkingEnabled:   pr.params.ThinkingEnabled,
		ReasoningType:     pr.params.ReasoningType,
	}

	// Step 9: backward packing.
	pack := pr.packer.Pack(messages, packOpts)

	// Step 10: structural repair.
	repair := pr.repairer.Repair(pack.Context, pack.ContextIndices)
	messagesToRefine := append([]message.Message(nil), pack.PrunedMemory...)
	messagesToRefine = append(messagesToRefine, repair.DroppedMessages...)

	reclaimed := repair.ReclaimedTokens
	finalContext := repair.Context
	finalIndices := repair.ContextIndices

	// Step 11: emergency path.
	droppedOrphans := repair.DroppedOrphanCount
	if len(finalContext) == 0 && effectiveMax > 0 {
		pr.log.Warn("pruner.emergency_triggered", map[string]any{"messageCount": len(messages)})
		snapshot := pr.ledger.Snapshot()
		emer := NewEmergencyTruncator(pr.ledger, pr.packer, pr.repairer).Run(messages, packOpts)
		finalContext = emer.Repair.Context
		finalIndices = emer.Repair.ContextIndices
		reclaimed += emer.Repair.ReclaimedTokens
		messagesToRefine = append(messagesToRefine, emer.Pack.PrunedMemory...)
		messagesToRefine = append(messagesToRefine, emer.Repair.DroppedMessages...)
		droppedOrphans += emer.Repair.DroppedOrphanCount
		pr.ledger.Restore(snapshot)
		pr.log.Info("pruner.emergency_completed", map[string]any{
			"emergencyChars": emer.EmergencyChars,
			"contextSize":    len(finalContext),
		})
	}

	// Step 12: remaining tokens.
	remainingContextTokens := clampInt(pack.Remaining+reclaimed, 0, pruningBudget)

	// Step 13: update closure state for next turn.
	if len(finalIndices) > 0 {
		pr.state.LastCutOffIndex = finalIndices[0]
	} else {
		pr.state.LastCutOffIndex = 0
	}
	pr.state.LastTurnStartIndex = len(messages)
	pr.state.TotalTokens = totalTokens
	if pack.ThinkingReattached || pack.ThinkingEndIndex >= 0 {
		pr.state.RunThinkingStartIndex = pack.ThinkingEndIndex
	}

	var thinkingStartIndex *int
	if pack.ThinkingEndIndex >= 0 {
		v := pack.ThinkingEndIndex
		thinkingStartIndex = &v
	}

	pr.log.Debug("pruner.result", map[string]any{
		"contextSize":            len(finalContext),
		"messagesToRefineCount":  len(messagesToRefine),
		"remainingContextTokens": remainingContextTokens,
	})

	return Output{
		Context:                finalContext,
		IndexTokenCountMap:     pr.ledger.Map().Clone(),
		MessagesToRefine:       messagesToRefine,
		PrePruneTotalTokens:    totalTokens,
		RemainingContextTokens: remainingContextTokens,
		ThinkingStartIndex:     thinkingStartIndex,
		SoftTrimmedCount:       posCounters.SoftTrimmed,
		HardClearedCount:       posCounters.HardCleared,
		DroppedOrphanCount:     droppedOrphans,
	}
}

// State returns a snapshot of the Pruner's closure state as it stands after
// the most recent Prune call, for callers that persist it via package store
// to resume across a process restart instead of starting cold.
func (pr *Pruner) State() TurnState {
	return pr.state
}

// ShouldSummarize evaluates the installed SummarizationTrigger against this
// call's output, forwarding to SummarizationTrigger.ShouldFire.
func (pr *Pruner) ShouldSummarize(out Output) bool {
	if pr.trigger == nil {
		pr.trigger = NewSummarizationTrigger(nil)
	}
	return pr.trigger.ShouldFire(TriggerInputs{
		MaxContextTokens:       pr.params.MaxTokens,
		PrePruneTotalTokens:    out.PrePruneTotalTokens,
		RemainingContextTokens: out.RemainingContextTokens,
		MessagesToRefineCount:  len(out.MessagesToRefine),
	})
}

// hoistOpenAIReasoning moves additionalKwargs["reasoning_content"] and the
// trailing thinking_blocks[*].signature into a leading Thinking content
// block on AI messages that also carry tool calls, clearing the original
// field (spec §4.8 step 2). OpenAI's Responses API returns reasoning
// out-of-band from content; downstream stages only understand the Thinking
// content-block representation.
func hoistOpenAIReasoning(messages []message.Message) {
	for i := range messages {
		m := &messages[i]
		if m.Role != message.RoleAI || len(m.ToolCalls) == 0 {
			continue
		}
		if m.AdditionalKwargs == nil {
			continue
		}
		reasoning, ok := m.AdditionalKwargs["reasoning_content"].(string)
		if !ok || reasoning == "" {
			continue
		}

		signature := ""
		if blocks, ok := m.AdditionalKwargs["thinking_blocks"].([]any); ok && len(blocks) > 0 {
			if last, ok := blocks[len(blocks)-1].(map[string]any); ok {
				if sig, ok := last["signature"].(string); ok {
					signature = sig
				}
			}
		}

		block := message.ContentBlock{
			Type:      message.BlockThinking,
			Text:      reasoning,
			Signature: signature,
		}
		m.Content = append([]message.ContentBlock{block}, m.Content...)
		delete(m.AdditionalKwargs, "reasoning_content")
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

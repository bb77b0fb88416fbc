package pruning

import (
	"github.com/initializ/contextprune/message"
)

// EmergencyResult is what EmergencyTruncator.Run produces.
type EmergencyResult struct {
	Pack           PackResult
	Repair         RepairResult
	EmergencyChars int
}

// EmergencyTruncator is the last-resort recovery path invoked when
// BackwardPacker returns an empty context despite a positive budget (spec
// §4.6). It speculatively truncates a clone of the message list, never the
// caller's original, and the orchestrator restores the ledger snapshot
// afterward so the next turn counts originals at true size.
type EmergencyTruncator struct {
	ledger   *TokenLedger
	packer   *BackwardPacker
	repairer *StructuralRepairer
}

// NewEmergencyTruncator builds an EmergencyTruncator sharing the ledger with
// the rest of the pipeline (so its speculative recounts are visible to the
// re-pack/re-repair calls it makes internally, and restorable afterward).
func NewEmergencyTruncator(ledger *TokenLedger, packer *BackwardPacker, repairer *StructuralRepairer) *EmergencyTruncator {
	return &EmergencyTruncator{ledger: ledger, packer: packer, repairer: repairer}
}

// emergencyMaxChars implements spec §4.6's proportional floor: never blank,
// never below 200 chars per message.
func emergencyMaxChars(effectiveMax, n int) int {
	if n < 1 {
		n = 1
	}
	v := (effectiveMax / n) * 4
	if v < 200 {
		v = 200
	}
	return v
}

// Run clones messages, aggressively truncates oversized Tool content and
// ToolUse inputs on the clone, then re-invokes the packer and repairer.
// Run recounts the truncated clones into the shared ledger, so callers must
// snapshot the ledger before calling Run and restore it afterward (the
// orchestrator does both around its emergency branch).
func (e *EmergencyTruncator) Run(messages []message.Message, opts PackOptions) EmergencyResult {
	n := len(messages)
	clone := message.CloneAll(messages)
	limit := emergencyMaxChars(opts.Budget, n)

	for i := range clone {
		switch clone[i].Role {
		case message.RoleTool:
			text, isFlat := clone[i].ContentText()
			if isFlat && len(text) > limit {
				clone[i] = clone[i].WithText(headTailTruncate(text, limit))
			}
		case message.RoleAI:
			for b := range clone[i].Content {
				blk := &clone[i].Content[b]
				if blk.Type != message.BlockToolUse || len(blk.Input) <= limit {
					continue
				}
				orig := len(blk.Input)
				truncated := truncateJSONInput(blk.Input, limit, orig)
				blk.Input = truncated
				for tc := range clone[i].ToolCalls {
					if clone[i].ToolCalls[tc].ID == blk.ID {
						clone[i].ToolCalls[tc].Args = truncated
					}
				}
			}
		}
		e.ledger.Recount(i, clone[i])
	}

	pack := e.packer.Pack(clone, opts)
	repair := e.repairer.Repair(pack.Context, pack.ContextIndices)

	return EmergencyResult{Pack: pack, Repair: repair, EmergencyChars: limit}
}

package pruning

import (
	"github.com/initializ/contextprune/message"
)

// TokenLedger maps message index to estimated token count and recalibrates
// against provider-reported usage (spec §4.1).
type TokenLedger struct {
	counts  IndexTokenMap
	counter TokenCounter
}

// NewTokenLedger creates a ledger backed by the given counter, seeded with
// any counts the caller already has (e.g. restored from a prior turn).
func NewTokenLedger(counter TokenCounter, seed IndexTokenMap) *TokenLedger {
	counts := make(IndexTokenMap)
	for k, v := range seed {
		counts[k] = v
	}
	return &TokenLedger{counts: counts, counter: counter}
}

// Map returns the live IndexTokenMap (not a copy) for callers that need
// direct access, e.g. the orchestrator handing it back in Output.
func (l *TokenLedger) Map() IndexTokenMap { return l.counts }

// Snapshot returns a copy of the current counts, used by EmergencyTruncator
// to restore the ledger after a speculative clone-and-truncate pass.
func (l *TokenLedger) Snapshot() IndexTokenMap { return l.counts.Clone() }

// Restore replaces the ledger's counts with a prior snapshot.
func (l *TokenLedger) Restore(snap IndexTokenMap) { l.counts = snap.Clone() }

// EnsureCounted computes a token count for any index >= lastTurnStartIndex
// that doesn't already have one. The first such index in a turn uses the
// provider's authoritative output_tokens from usage, if supplied, instead
// of the local counter (spec §4.1).
func (l *TokenLedger) EnsureCounted(messages []message.Message, lastTurnStartIndex int, usage *Usage) {
	usedAuthoritative := false
	for i := lastTurnStartIndex; i < len(messages); i++ {
		if _, ok := l.counts[i]; ok {
			continue
		}
		if !usedAuthoritative && usage != nil && usage.OutputTokens != nil {
			l.counts[i] = *usage.OutputTokens
			usedAuthoritative = true
			continue
		}
		l.counts[i] = l.counter.CountMessage(messages[i])
	}
}

// Recount replaces one entry, used after PositionPruner/PreFlightTruncator
// rewrite a message's content.
func (l *TokenLedger) Recount(index int, msg message.Message) {
	l.counts[index] = l.counter.CountMessage(msg)
}

// Total recomputes the sum over the given index range [start, end)
// (inclusive start, exclusive end) by summation, called after every
// mutating truncation rather than trusted incrementally.
func (l *TokenLedger) Total(start, end int) int {
	total := 0
	for i := start; i < end; i++ {
		total += l.counts[i]
	}
	return total
}

// calibrationSafetyMin/Max gate Calibrate's ratio application (spec §4.1).
const (
	calibrationSafetyMin = 1.0 / 3.0
	calibrationSafetyMax = 2.5
	calibrationCheckMin  = 1.0 / 4.0
	calibrationCheckMax  = 3.0
)

// Calibrate adjusts ledger entries so their sum aligns with provider-
// reported totals (spec §4.1). Preconditions: usage is fresh (the
// just-completed call) and the provider supplied at least one of
// input_tokens/cache_creation/cache_read. Applies a ratio-based rescale only
// within the ⅓..2.5 safety gate, then reverts unless the post-rescale sum is
// still within ¼..3 of the raw sum.
//
// messages[0] is included in rawSum when it is a System message, matching
// the source's inclusion of the leading system prompt in the calibration
// base even though System sits outside the normal lastCutOffIndex walk.
func (l *TokenLedger) Calibrate(messages []message.Message, fresh bool, lastCutOffIndex int, newOutputStart int, usage *Usage) {
	if !fresh || usage == nil || !usage.hasCalibrationData() {
		return
	}

	calibrationTotal := 0
	if usage.TotalTokens != nil {
		calibrationTotal = *usage.TotalTokens
	} else {
		calibrationTotal = usage.sum()
	}
	if calibrationTotal <= 0 {
		return
	}

	start := lastCutOffIndex
	rawSum := 0
	indices := make([]int, 0, len(messages))
	if start == 0 && len(messages) > 0 && messages[0].Role == message.RoleSystem {
		rawSum += l.counts[0]
		indices = append(indices, 0)
		start = 1
	} else if start > 0 && len(messages) > 0 && messages[0].Role == message.RoleSystem {
		rawSum += l.counts[0]
		indices = append(indices, 0)
	}
	for i := start; i < newOutputStart && i < len(messages); i++ {
		rawSum += l.counts[i]
		indices = append(indices, i)
	}
	if rawSum <= 0 {
		return
	}

	ratio := float64(calibrationTotal) / float64(rawSum)
	if ratio < calibrationSafetyMin || ratio > calibrationSafetyMax {
		return
	}

	snapshot := make(map[int]int, len(indices))
	calibratedSum := 0
	for _, idx := range indices {
		snapshot[idx] = l.counts[idx]
		rescaled := int(float64(l.counts[idx])*ratio + 0.5)
		l.counts[idx] = rescaled
		calibratedSum += rescaled
	}

	sanity := float64(calibratedSum) / float64(rawSum)
	if sanity < calibrationCheckMin || sanity > calibrationCheckMax {
		// Revert: calibration produced an implausible result.
		for idx, v := range snapshot {
			l.counts[idx] = v
		}
	}
}

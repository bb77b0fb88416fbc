package pruning

// TriggerInputs is the per-invocation data SummarizationTrigger evaluates
// (spec §4.7).
type TriggerInputs struct {
	MaxContextTokens       int
	PrePruneTotalTokens    int
	RemainingContextTokens int
	MessagesToRefineCount  int
}

// SummarizationTrigger decides whether messagesToRefine warrants invoking
// the external summarization collaborator (spec §4.7). A nil *config means
// "absent": fire on any pruning. A non-nil config with HasValue == false is
// the malformed row: never fire.
type SummarizationTrigger struct {
	cfg *SummarizationTriggerConfig
}

// NewSummarizationTrigger builds a SummarizationTrigger over the given
// config (nil is valid: "absent").
func NewSummarizationTrigger(cfg *SummarizationTriggerConfig) *SummarizationTrigger {
	return &SummarizationTrigger{cfg: cfg}
}

// ShouldFire evaluates the decision table in spec §4.7.
func (t *SummarizationTrigger) ShouldFire(in TriggerInputs) bool {
	if in.MessagesToRefineCount == 0 {
		return false
	}

	if t.cfg == nil {
		return true
	}
	if !t.cfg.HasValue {
		return false
	}

	switch t.cfg.Type {
	case TriggerMessagesToRefine:
		return float64(in.MessagesToRefineCount) >= t.cfg.Value

	case TriggerTokenRatio:
		if in.MaxContextTokens <= 0 {
			return false
		}
		remaining, ok := effectiveRemaining(in)
		if !ok {
			return false
		}
		used := 1 - float64(remaining)/float64(in.MaxContextTokens)
		return used >= t.cfg.Value

	case TriggerRemainingTokens:
		remaining, ok := effectiveRemaining(in)
		if !ok {
			return false
		}
		return float64(remaining) <= t.cfg.Value

	default:
		return false
	}
}

// effectiveRemaining prefers maxContextTokens - prePruneTotalTokens, falling
// back to remainingContextTokens, per spec §4.7.
func effectiveRemaining(in TriggerInputs) (int, bool) {
	if in.MaxContextTokens > 0 {
		return in.MaxContextTokens - in.PrePruneTotalTokens, true
	}
	if in.RemainingContextTokens > 0 {
		return in.RemainingContextTokens, true
	}
	return 0, false
}

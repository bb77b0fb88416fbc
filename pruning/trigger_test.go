package pruning

import "testing"

func TestSummarizationTriggerNeverFiresWithNothingToRefine(t *testing.T) {
	trig := NewSummarizationTrigger(nil)
	got := trig.ShouldFire(TriggerInputs{MessagesToRefineCount: 0, MaxContextTokens: 1000, PrePruneTotalTokens: 999})
	if got {
		t.Error("trigger must never fire when nothing was pruned, regardless of config")
	}
}

func TestSummarizationTriggerFiresOnAnyPruningWhenAbsent(t *testing.T) {
	trig := NewSummarizationTrigger(nil)
	got := trig.ShouldFire(TriggerInputs{MessagesToRefineCount: 1})
	if !got {
		t.Error("a nil config should fire on any pruning")
	}
}

func TestSummarizationTriggerNeverFiresWhenMalformed(t *testing.T) {
	trig := NewSummarizationTrigger(&SummarizationTriggerConfig{Type: TriggerMessagesToRefine, HasValue: false})
	got := trig.ShouldFire(TriggerInputs{MessagesToRefineCount: 5})
	if got {
		t.Error("a malformed config (no value) must never fire")
	}
}

func TestSummarizationTriggerMessagesToRefineThreshold(t *testing.T) {
	trig := NewSummarizationTrigger(&SummarizationTriggerConfig{Type: TriggerMessagesToRefine, Value: 3, HasValue: true})

	if trig.ShouldFire(TriggerInputs{MessagesToRefineCount: 2}) {
		t.Error("should not fire below the threshold")
	}
	if !trig.ShouldFire(TriggerInputs{MessagesToRefineCount: 3}) {
		t.Error("should fire at the threshold")
	}
}

func TestSummarizationTriggerTokenRatio(t *testing.T) {
	trig := NewSummarizationTrigger(&SummarizationTriggerConfig{Type: TriggerTokenRatio, Value: 0.5, HasValue: true})

	in := TriggerInputs{MessagesToRefineCount: 1, MaxContextTokens: 1000, PrePruneTotalTokens: 600}
	if !trig.ShouldFire(in) {
		t.Error("60% used should fire at a 50% ratio threshold")
	}

	in.PrePruneTotalTokens = 400
	if trig.ShouldFire(in) {
		t.Error("40% used should not fire at a 50% ratio threshold")
	}
}

func TestSummarizationTriggerTokenRatioFalseWithoutMaxContextTokens(t *testing.T) {
	trig := NewSummarizationTrigger(&SummarizationTriggerConfig{Type: TriggerTokenRatio, Value: 0.1, HasValue: true})
	got := trig.ShouldFire(TriggerInputs{MessagesToRefineCount: 1, MaxContextTokens: 0})
	if got {
		t.Error("token_ratio requires a positive MaxContextTokens")
	}
}

func TestSummarizationTriggerRemainingTokens(t *testing.T) {
	trig := NewSummarizationTrigger(&SummarizationTriggerConfig{Type: TriggerRemainingTokens, Value: 500, HasValue: true})

	in := TriggerInputs{MessagesToRefineCount: 1, MaxContextTokens: 1000, PrePruneTotalTokens: 600}
	if !trig.ShouldFire(in) {
		t.Error("remaining of 400 should fire at a 500 threshold")
	}

	in.PrePruneTotalTokens = 100
	if trig.ShouldFire(in) {
		t.Error("remaining of 900 should not fire at a 500 threshold")
	}
}

func TestSummarizationTriggerRemainingTokensFallsBackToFieldWithoutMax(t *testing.T) {
	trig := NewSummarizationTrigger(&SummarizationTriggerConfig{Type: TriggerRemainingTokens, Value: 500, HasValue: true})
	in := TriggerInputs{MessagesToRefineCount: 1, MaxContextTokens: 0, RemainingContextTokens: 200}
	if !trig.ShouldFire(in) {
		t.Error("should fall back to RemainingContextTokens when MaxContextTokens is absent")
	}
}

func TestSummarizationTriggerUnknownTypeNeverFires(t *testing.T) {
	trig := NewSummarizationTrigger(&SummarizationTriggerConfig{Type: "unknown", Value: 0, HasValue: true})
	got := trig.ShouldFire(TriggerInputs{MessagesToRefineCount: 1, MaxContextTokens: 1000})
	if got {
		t.Error("an unrecognized trigger type must never fire")
	}
}

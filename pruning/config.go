package pruning

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Default resolution constants (spec §3/§9).
const (
	DefaultReserveRatio         = 0.05
	DefaultSoftTrimRatio        = 0.5
	DefaultHardClearRatio       = 0.8
	DefaultKeepLastAssistants   = 2
	DefaultSoftTrimHeadChars    = 2_000
	DefaultSoftTrimTailChars    = 2_000
	DefaultSoftTrimMaxChars     = 6_000
	DefaultMinPrunableToolChars = 500
	DefaultHardClearPlaceholder = "[older tool result cleared to free context space]"
)

// SoftTrimConfig controls PositionPruner's soft-trim degradation.
type SoftTrimConfig struct {
	HeadChars int `yaml:"headChars"`
	TailChars int `yaml:"tailChars"`
	MaxChars  int `yaml:"maxChars"` // invariant: maxChars >= headChars+tailChars
}

// HardClearConfig controls PositionPruner's hard-clear degradation.
type HardClearConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Placeholder string `yaml:"placeholder"`
}

// ContextPruningConfig is the recognized-options struct for PositionPruner
// (spec §3/§9).
type ContextPruningConfig struct {
	Enabled              bool            `yaml:"enabled"`
	SoftTrimRatio        float64         `yaml:"softTrimRatio"`  // [0,1]
	HardClearRatio       float64         `yaml:"hardClearRatio"` // [0,1]
	KeepLastAssistants   int             `yaml:"keepLastAssistants"`
	SoftTrim             SoftTrimConfig  `yaml:"softTrim"`
	HardClear            HardClearConfig `yaml:"hardClear"`
	MinPrunableToolChars int             `yaml:"minPrunableToolChars"`
}

// DefaultContextPruningConfig returns the recognized defaults, mirroring the
// teacher's default-resolution idiom (ContextBudgetForModel/NewMemory).
func DefaultContextPruningConfig() ContextPruningConfig {
	return ContextPruningConfig{
		Enabled:            true,
		SoftTrimRatio:      DefaultSoftTrimRatio,
		HardClearRatio:     DefaultHardClearRatio,
		KeepLastAssistants: DefaultKeepLastAssistants,
		SoftTrim: SoftTrimConfig{
			HeadChars: DefaultSoftTrimHeadChars,
			TailChars: DefaultSoftTrimTailChars,
			MaxChars:  DefaultSoftTrimMaxChars,
		},
		HardClear: HardClearConfig{
			Enabled:     true,
			Placeholder: DefaultHardClearPlaceholder,
		},
		MinPrunableToolChars: DefaultMinPrunableToolChars,
	}
}

// mergeContextPruningConfig fills zero-valued numeric and string fields of
// cfg with defaults, matching spec §9's "merge caller config with defaults
// before use". The Enabled and HardClear.Enabled flags are kept as given.
func mergeContextPruningConfig(cfg *ContextPruningConfig) ContextPruningConfig {
	d := DefaultContextPruningConfig()
	if cfg == nil {
		return d
	}
	out := *cfg
	if out.SoftTrimRatio == 0 {
		out.SoftTrimRatio = d.SoftTrimRatio
	}
	if out.HardClearRatio == 0 {
		out.HardClearRatio = d.HardClearRatio
	}
	if out.KeepLastAssistants == 0 {
		out.KeepLastAssistants = d.KeepLastAssistants
	}
	if out.SoftTrim.HeadChars == 0 {
		out.SoftTrim.HeadChars = d.SoftTrim.HeadChars
	}
	if out.SoftTrim.TailChars == 0 {
		out.SoftTrim.TailChars = d.SoftTrim.TailChars
	}
	if out.SoftTrim.MaxChars == 0 {
		out.SoftTrim.MaxChars = d.SoftTrim.MaxChars
	}
	if out.HardClear.Placeholder == "" {
		out.HardClear.Placeholder = d.HardClear.Placeholder
	}
	if out.MinPrunableToolChars == 0 {
		out.MinPrunableToolChars = d.MinPrunableToolChars
	}
	return out
}

// TriggerType selects which rule SummarizationTrigger evaluates (spec §4.7).
type TriggerType string

const (
	TriggerMessagesToRefine TriggerType = "messages_to_refine"
	TriggerTokenRatio       TriggerType = "token_ratio"
	TriggerRemainingTokens  TriggerType = "remaining_tokens"
)

// SummarizationTriggerConfig configures SummarizationTrigger. A nil
// *SummarizationTriggerConfig means "absent" (fires on any pruning per the
// decision table); a non-nil config with an unset/NaN Value represents the
// "malformed" row (never fires).
type SummarizationTriggerConfig struct {
	Type     TriggerType `yaml:"type"`
	Value    float64     `yaml:"value"`
	HasValue bool        `yaml:"-"` // false => malformed/NaN row
}

// UnmarshalYAML tracks whether "value" was actually present in the document
// so a field left out of the YAML (malformed config) is distinguishable
// from an explicit 0.
func (c *SummarizationTriggerConfig) UnmarshalYAML(unmarshal func(any) error) error {
	var raw struct {
		Type  TriggerType `yaml:"type"`
		Value *float64    `yaml:"value"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	c.Type = raw.Type
	if raw.Value != nil {
		c.Value = *raw.Value
		c.HasValue = true
	}
	return nil
}

// PruningConfig is the top-level recognized-options struct (spec §3).
type PruningConfig struct {
	MaxTokens                int                         `yaml:"maxTokens"`
	ReserveRatio             float64                     `yaml:"reserveRatio"`
	ContextPruning           ContextPruningConfig         `yaml:"contextPruning"`
	SummarizationTrigger     *SummarizationTriggerConfig  `yaml:"summarizationTrigger"`
	instructionTokensProvider func() int
}

// LoadPruningConfigFile reads a YAML-encoded PruningConfig from disk,
// mirroring the teacher's forge.yaml loading pattern (forge-core/runtime
// config.go, forge-skills) — gopkg.in/yaml.v3 throughout the pack.
func LoadPruningConfigFile(path string) (*PruningConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg PruningConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.ReserveRatio == 0 {
		cfg.ReserveRatio = DefaultReserveRatio
	}
	cfg.ContextPruning = mergeContextPruningConfig(&cfg.ContextPruning)
	return &cfg, nil
}

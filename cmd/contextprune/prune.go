package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/initializ/contextprune/message"
	"github.com/initializ/contextprune/pruning"
	"github.com/initializ/contextprune/store"
	"github.com/initializ/contextprune/tokencount"
)

var (
	pruneTranscriptPath string
	pruneConfigPath     string
	pruneMaxTokens      int
	pruneReserveRatio   float64
	pruneProvider       string
	pruneThinking       bool
	pruneReasoningType  string
	pruneTokenizer      string
	pruneEncoding       string
	pruneOutputPath     string
	pruneStateDir       string
	pruneSessionID      string
	pruneTurnIndex      int
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Run one pruning pass against a saved transcript and report the result",
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().StringVarP(&pruneTranscriptPath, "transcript", "f", "", "path to a JSON message transcript (required)")
	pruneCmd.Flags().StringVarP(&pruneConfigPath, "config", "c", "", "path to a YAML PruningConfig (defaults applied when absent)")
	pruneCmd.Flags().IntVar(&pruneMaxTokens, "max-tokens", 0, "override the config's maxTokens")
	pruneCmd.Flags().Float64Var(&pruneReserveRatio, "reserve-ratio", 0, "override the config's reserveRatio")
	pruneCmd.Flags().StringVar(&pruneProvider, "provider", "", "provider label: openai, anthropic, gemini")
	pruneCmd.Flags().BoolVar(&pruneThinking, "thinking", false, "treat the transcript as having extended thinking enabled")
	pruneCmd.Flags().StringVar(&pruneReasoningType, "reasoning-type", "", "thinking | reasoning_content")
	pruneCmd.Flags().StringVar(&pruneTokenizer, "tokenizer", "char", "char | tiktoken")
	pruneCmd.Flags().StringVar(&pruneEncoding, "encoding", "cl100k_base", "tiktoken encoding name, used when --tokenizer=tiktoken")
	pruneCmd.Flags().StringVarP(&pruneOutputPath, "out", "o", "", "write the pruned context as JSON to this path instead of discarding it")
	pruneCmd.Flags().StringVar(&pruneStateDir, "state-dir", "", "persist this pass's PruneRecord here for later `contextprune inspect`")
	pruneCmd.Flags().StringVar(&pruneSessionID, "session-id", "", "session identifier under which to persist state (defaults to the transcript filename)")
	pruneCmd.Flags().IntVar(&pruneTurnIndex, "turn", 0, "this pass's turn number within the session, for turn-by-turn history")
	_ = pruneCmd.MarkFlagRequired("transcript")
}

func runPrune(_ *cobra.Command, _ []string) error {
	log := newLogger()

	raw, err := os.ReadFile(pruneTranscriptPath)
	if err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}
	var messages []message.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return fmt.Errorf("parsing transcript: %w", err)
	}

	cfg := pruning.PruningConfig{
		ReserveRatio:   pruning.DefaultReserveRatio,
		ContextPruning: pruning.DefaultContextPruningConfig(),
	}
	if pruneConfigPath != "" {
		loaded, err := pruning.LoadPruningConfigFile(pruneConfigPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = *loaded
	}
	if pruneMaxTokens > 0 {
		cfg.MaxTokens = pruneMaxTokens
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = tokencount.ContextBudgetForModel(pruneProvider)
	}
	if pruneReserveRatio > 0 {
		cfg.ReserveRatio = pruneReserveRatio
	}

	counter, err := resolveCounter()
	if err != nil {
		return err
	}

	pruner := pruning.NewPruner(pruning.Params{
		Provider:        pruning.Provider(pruneProvider),
		MaxTokens:       cfg.MaxTokens,
		TokenCounter:    counter,
		ThinkingEnabled: pruneThinking,
		ReasoningType:   pruning.ReasoningType(pruneReasoningType),
		ContextPruning:  &cfg.ContextPruning,
		ReserveRatio:    cfg.ReserveRatio,
		Log:             log,
	})
	if cfg.SummarizationTrigger != nil {
		pruner.SetSummarizationTrigger(cfg.SummarizationTrigger)
	}

	out := pruner.Prune(pruning.Input{Messages: messages})

	fmt.Printf("messages in:        %d\n", len(messages))
	fmt.Printf("messages out:       %d\n", len(out.Context))
	fmt.Printf("pre-prune tokens:   %d\n", out.PrePruneTotalTokens)
	fmt.Printf("remaining budget:   %d\n", out.RemainingContextTokens)
	fmt.Printf("messages to refine: %d\n", len(out.MessagesToRefine))
	fmt.Printf("soft trimmed:       %d\n", out.SoftTrimmedCount)
	fmt.Printf("hard cleared:       %d\n", out.HardClearedCount)
	fmt.Printf("dropped orphans:    %d\n", out.DroppedOrphanCount)
	fmt.Printf("should summarize:   %v\n", pruner.ShouldSummarize(out))

	if pruneStateDir != "" {
		if err := persistPruneRecord(pruner, out); err != nil {
			return err
		}
	}

	if pruneOutputPath == "" {
		return nil
	}
	marshaled, err := json.MarshalIndent(out.Context, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling pruned context: %w", err)
	}
	if err := os.WriteFile(pruneOutputPath, marshaled, 0o644); err != nil {
		return fmt.Errorf("writing pruned context: %w", err)
	}
	fmt.Printf("wrote pruned context to %s\n", pruneOutputPath)
	return nil
}

// persistPruneRecord snapshots this pass's closure state and context into
// --state-dir: once as the session's latest-snapshot record (for resuming a
// Pruner across a restart) and once as a turn-history entry keyed by
// --turn (for `contextprune inspect` to step through later).
func persistPruneRecord(pruner *pruning.Pruner, out pruning.Output) error {
	st, err := store.New(pruneStateDir)
	if err != nil {
		return fmt.Errorf("opening state dir: %w", err)
	}

	sessionID := pruneSessionID
	if sessionID == "" {
		sessionID = filepath.Base(pruneTranscriptPath)
	}

	state := pruner.State()
	rec := &store.PruneRecord{
		AgentID:               sessionID,
		Context:               out.Context,
		IndexTokenCountMap:    out.IndexTokenCountMap,
		LastCutOffIndex:       state.LastCutOffIndex,
		LastTurnStartIndex:    state.LastTurnStartIndex,
		RunThinkingStartIndex: state.RunThinkingStartIndex,
		SoftTrimmedCount:      out.SoftTrimmedCount,
		HardClearedCount:      out.HardClearedCount,
		DroppedOrphanCount:    out.DroppedOrphanCount,
		MessagesToRefineCount: len(out.MessagesToRefine),
	}
	if err := st.Save(rec); err != nil {
		return fmt.Errorf("saving prune record: %w", err)
	}
	if err := st.SaveTurn(sessionID, pruneTurnIndex, rec); err != nil {
		return fmt.Errorf("saving turn history: %w", err)
	}
	fmt.Printf("saved state for session %q turn %d under %s\n", sessionID, pruneTurnIndex, pruneStateDir)
	return nil
}

func resolveCounter() (pruning.TokenCounter, error) {
	switch pruneTokenizer {
	case "", "char":
		return tokencount.NewCharCounter(), nil
	case "tiktoken":
		return tokencount.NewTiktokenCounter(pruneEncoding)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q (want char or tiktoken)", pruneTokenizer)
	}
}

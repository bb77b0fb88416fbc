package summarize

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/initializ/contextprune/message"
)

// ErrLocalNotCompiled is returned when the local engine's build tag is not
// enabled.
var ErrLocalNotCompiled = errors.New("summarize: local engine not compiled (build with -tags brain)")

// thinkTagRe strips <think>...</think> reasoning leakage some small local
// models still emit despite being asked for a plain summary.
var thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>\s*`)

// LocalConfig configures the local (offline) summarization engine.
type LocalConfig struct {
	ModelPath   string
	ContextSize int
	GPULayers   int
	Threads     int
	Temperature float32
	MaxTokens   int
}

// DefaultLocalConfig mirrors the teacher's brain.DefaultConfig sizing,
// tuned for small local models running the summarization prompt rather than
// general tool-using chat.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		ContextSize: 8192,
		GPULayers:   0,
		Threads:     0,
		Temperature: 0.3,
		MaxTokens:   1024,
	}
}

// localEngine is the internal seam between LocalSummarizer and the
// llama-go-backed implementation, so the non-brain build tag can compile a
// stub without pulling in CGo.
type localEngine interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
	Close() error
}

// LocalSummarizer runs summarization entirely offline against a local GGUF
// model, for agents with no network-reachable LLM provider configured. It
// implements Summarizer and falls back to ExtractiveSummarizer on any
// engine error, same policy as LLMSummarizer.
type LocalSummarizer struct {
	eng      localEngine
	cfg      LocalConfig
	fallback *ExtractiveSummarizer
	log      Logger
}

// NewLocalSummarizer loads the configured GGUF model and returns a
// LocalSummarizer. Returns ErrLocalNotCompiled when built without the
// "brain" tag.
func NewLocalSummarizer(cfg LocalConfig, log Logger) (*LocalSummarizer, error) {
	if log == nil {
		log = nopLogger{}
	}
	eng, err := newLocalEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &LocalSummarizer{
		eng:      eng,
		cfg:      cfg,
		fallback: NewExtractiveSummarizer("local"),
		log:      log,
	}, nil
}

// Close releases the underlying model and context.
func (s *LocalSummarizer) Close() error {
	if s.eng == nil {
		return nil
	}
	return s.eng.Close()
}

// Summarize builds a prompt with the same instructions and sections as
// LLMSummarizer's, without its per-tool-call lines, and runs it through the
// local engine, falling back to extractive summarization on error.
func (s *LocalSummarizer) Summarize(ctx context.Context, messages []message.Message, existingSummary string) (message.Summary, error) {
	prompt := buildSummaryPrompt(messages, existingSummary)

	maxTokens := s.cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = summaryMaxTokens
	}

	out, err := s.eng.Complete(ctx, prompt, maxTokens, s.cfg.Temperature)
	if err != nil {
		s.log.Warn("local summarization failed, falling back to extractive", map[string]any{
			"error": err.Error(),
		})
		return s.fallback.Summarize(ctx, messages, existingSummary)
	}

	text := thinkTagRe.ReplaceAllString(out, "")
	return message.Summary{
		Text:       text,
		TokenCount: len(text) / 4,
		Provider:   "local",
		Model:      s.cfg.ModelPath,
		CreatedAt:  time.Now(),
	}, nil
}

func buildSummaryPrompt(messages []message.Message, existingSummary string) string {
	out := "Summarize the following conversation concisely. Preserve key facts, decisions, tool results, and action items. Output only the summary, no preamble.\n\n"
	if existingSummary != "" {
		out += "## Existing Summary (incorporate and update)\n" + existingSummary + "\n\n"
	}
	out += "## Conversation to summarize\n"
	for _, m := range messages {
		out += fmt.Sprintf("[%s]: %s\n", m.Role, truncateForPrompt(m.Text(), 500))
	}
	return out
}

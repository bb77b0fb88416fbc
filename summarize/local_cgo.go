//go:build brain

package summarize

import (
	"context"
	"fmt"
	"sync"

	llamago "github.com/tcpipuk/llama-go"
)

// cgoLocalEngine implements localEngine using the llama-go CGo bindings,
// mirroring the teacher's brain.cgoEngine but exposing a plain-prompt
// Complete call rather than the chat-with-tools interface: summarization
// never needs tool calling.
type cgoLocalEngine struct {
	model    *llamago.Model
	llamaCtx *llamago.Context
	mu       sync.Mutex
}

func newLocalEngine(cfg LocalConfig) (localEngine, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("summarize: local model path is required")
	}

	modelOpts := []llamago.ModelOption{
		llamago.WithGPULayers(cfg.GPULayers),
		llamago.WithSilentLoading(),
	}

	model, err := llamago.LoadModel(cfg.ModelPath, modelOpts...)
	if err != nil {
		return nil, fmt.Errorf("summarize: load model: %w", err)
	}

	var ctxOpts []llamago.ContextOption
	if cfg.ContextSize > 0 {
		ctxOpts = append(ctxOpts, llamago.WithContext(cfg.ContextSize))
	}
	if cfg.Threads > 0 {
		ctxOpts = append(ctxOpts, llamago.WithThreads(cfg.Threads))
	}

	llamaCtx, err := model.NewContext(ctxOpts...)
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("summarize: create context: %w", err)
	}

	return &cgoLocalEngine{model: model, llamaCtx: llamaCtx}, nil
}

func (e *cgoLocalEngine) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	msgs := []llamago.Message{{Role: "user", Content: prompt}}

	opts := llamago.ChatOptions{}
	if maxTokens > 0 {
		opts.MaxTokens = llamago.Int(maxTokens)
	}
	if temperature > 0 {
		opts.Temperature = llamago.Float32(temperature)
	}

	resp, err := e.llamaCtx.Chat(ctx, msgs, opts)
	if err != nil {
		return "", fmt.Errorf("summarize: local chat: %w", err)
	}
	return resp.Content, nil
}

func (e *cgoLocalEngine) Close() error {
	if e.llamaCtx != nil {
		_ = e.llamaCtx.Close()
	}
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

package llm

import (
	"context"
	"fmt"
)

// FallbackCandidate pairs a provider/model label with its Client.
type FallbackCandidate struct {
	Provider Provider
	Model    string
	Client   Client
}

// FallbackChain implements Client by trying multiple candidates in order.
// When the primary candidate fails with a retriable error (rate limit,
// overloaded, timeout), the chain moves to the next. Non-retriable errors
// (bad request, auth, billing, a prompt too large for the model's context
// window) abort immediately — another candidate in the chain would see the
// same oversized input and fail the same way.
//
// With a single candidate, FallbackChain delegates directly without error
// classification.
type FallbackChain struct {
	candidates []FallbackCandidate
	cooldown   *CooldownTracker
}

// NewFallbackChain creates a fallback chain from the given candidates. At
// least one candidate is required.
func NewFallbackChain(candidates []FallbackCandidate) *FallbackChain {
	return &FallbackChain{
		candidates: candidates,
		cooldown:   NewCooldownTracker(),
	}
}

// Chat tries each candidate in order until one succeeds or all are
// exhausted.
func (fc *FallbackChain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if len(fc.candidates) == 1 {
		return fc.candidates[0].Client.Chat(ctx, req)
	}

	attempted := 0
	var errs []*FailoverError

	for _, c := range fc.candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !fc.cooldown.IsAvailable(c.Provider) {
			continue
		}
		attempted++

		resp, err := c.Client.Chat(ctx, req)
		if err == nil {
			fc.cooldown.MarkSuccess(c.Provider)
			return resp, nil
		}

		fe := ClassifyError(err, c.Provider, c.Model)
		errs = append(errs, fe)

		if !fe.IsRetriable() {
			return nil, fe
		}
		fc.cooldown.MarkFailure(c.Provider, fe.Reason)
	}

	if attempted == 0 {
		return nil, fmt.Errorf("all %d fallback candidates are in cooldown", len(fc.candidates))
	}
	return nil, &FallbackExhaustedError{Errors: errs}
}

// ModelID returns the primary candidate's model identifier.
func (fc *FallbackChain) ModelID() string {
	if len(fc.candidates) > 0 {
		return fc.candidates[0].Client.ModelID()
	}
	return ""
}

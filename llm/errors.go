package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FailoverReason describes why a provider call failed.
type FailoverReason string

const (
	FailoverAuth            FailoverReason = "auth"             // 401/403
	FailoverRateLimit       FailoverReason = "rate_limit"        // 429
	FailoverBilling         FailoverReason = "billing"           // 402
	FailoverTimeout         FailoverReason = "timeout"           // 408/504/deadline
	FailoverOverloaded      FailoverReason = "overloaded"        // 500/502/503/529
	FailoverFormat          FailoverReason = "format"            // 400
	FailoverContextExceeded FailoverReason = "context_exceeded"  // prompt too large for the model's window
	FailoverUnknown         FailoverReason = "unknown"           // unclassified, treated as retriable
)

// FailoverError wraps a provider error with classification metadata.
type FailoverError struct {
	Reason   FailoverReason
	Provider Provider
	Model    string
	Status   int
	Wrapped  error
}

func (e *FailoverError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s/%s failover (%s, status %d): %v",
			e.Provider, e.Model, e.Reason, e.Status, e.Wrapped)
	}
	return fmt.Sprintf("%s/%s failover (%s): %v", e.Provider, e.Model, e.Reason, e.Wrapped)
}

func (e *FailoverError) Unwrap() error { return e.Wrapped }

// IsRetriable reports whether this error should trigger a fallback attempt.
// Auth, billing, and format errors never clear on retry. A context-exceeded
// error is also terminal for this candidate: the next candidate in the chain
// sees the same oversized prompt and will fail identically, so retrying (or
// even falling over) buys nothing until the caller shrinks the transcript
// that this module exists to shrink — LLMSummarizer's caller handles that by
// falling back to ExtractiveSummarizer instead of chasing another provider.
func (e *FailoverError) IsRetriable() bool {
	switch e.Reason {
	case FailoverFormat, FailoverAuth, FailoverBilling, FailoverContextExceeded:
		return false
	default:
		return true
	}
}

// FallbackExhaustedError is returned when every candidate has been tried and
// failed.
type FallbackExhaustedError struct {
	Errors []*FailoverError
}

func (e *FallbackExhaustedError) Error() string {
	if len(e.Errors) == 0 {
		return "all fallback candidates exhausted"
	}
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Error()
	}
	return fmt.Sprintf("all fallback candidates exhausted: [%s]", strings.Join(parts, "; "))
}

var statusRegex = regexp.MustCompile(`\(status (\d+)\)`)

// messagePattern pairs a substring to look for in a lower-cased error
// message with the reason it implies. Checked in order, before falling back
// to an embedded HTTP status code, because a provider's context-length
// rejection is frequently reported as a 400 alongside a generic "bad
// request" status — the phrase is the more specific signal.
var messagePatterns = []struct {
	reason   FailoverReason
	matchAny []string
}{
	{FailoverContextExceeded, []string{"context_length_exceeded", "maximum context length", "context window", "too many tokens", "input is too long"}},
	{FailoverAuth, []string{"unauthorized", "authentication", "invalid api key", "permission denied"}},
	{FailoverRateLimit, []string{"rate limit", "too many requests"}},
	{FailoverTimeout, []string{"timeout", "deadline exceeded", "context deadline"}},
	{FailoverOverloaded, []string{"overloaded", "service unavailable", "bad gateway"}},
}

// ClassifyError wraps a raw provider error into a FailoverError. Message
// pattern matching runs first since it can identify failure modes (like a
// too-large prompt) that a bare status code leaves ambiguous; an embedded
// HTTP status code is the fallback for everything else.
func ClassifyError(err error, provider Provider, model string) *FailoverError {
	fe := &FailoverError{Provider: provider, Model: model, Wrapped: err}
	lower := strings.ToLower(err.Error())

	for _, p := range messagePatterns {
		if containsAny(lower, p.matchAny) {
			fe.Reason = p.reason
			if matches := statusRegex.FindStringSubmatch(lower); len(matches) == 2 {
				if status, parseErr := strconv.Atoi(matches[1]); parseErr == nil {
					fe.Status = status
				}
			}
			return fe
		}
	}

	if matches := statusRegex.FindStringSubmatch(lower); len(matches) == 2 {
		if status, parseErr := strconv.Atoi(matches[1]); parseErr == nil {
			fe.Status = status
			fe.Reason = reasonFromStatus(status)
			return fe
		}
	}

	fe.Reason = FailoverUnknown
	return fe
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func reasonFromStatus(status int) FailoverReason {
	switch status {
	case 400:
		return FailoverFormat
	case 401, 403:
		return FailoverAuth
	case 402:
		return FailoverBilling
	case 429:
		return FailoverRateLimit
	case 408, 504:
		return FailoverTimeout
	case 500, 502, 503, 529:
		return FailoverOverloaded
	default:
		return FailoverUnknown
	}
}

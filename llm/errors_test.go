package llm

import (
	"errors"
	"testing"
)

func TestClassifyErrorExtractsStatusFromMessage(t *testing.T) {
	cases := []struct {
		msg        string
		wantReason FailoverReason
		wantStatus int
	}{
		{"provider x failed (status 429)", FailoverRateLimit, 429},
		{"provider x failed (status 401)", FailoverAuth, 401},
		{"provider x failed (status 402)", FailoverBilling, 402},
		{"provider x failed (status 500)", FailoverOverloaded, 500},
		{"provider x failed (status 400)", FailoverFormat, 400},
		{"provider x failed (status 418)", FailoverUnknown, 418},
	}
	for _, c := range cases {
		fe := ClassifyError(errors.New(c.msg), "openai", "gpt-4o")
		if fe.Reason != c.wantReason {
			t.Errorf("ClassifyError(%q).Reason = %s, want %s", c.msg, fe.Reason, c.wantReason)
		}
		if fe.Status != c.wantStatus {
			t.Errorf("ClassifyError(%q).Status = %d, want %d", c.msg, fe.Status, c.wantStatus)
		}
	}
}

func TestClassifyErrorMatchesMessagePatterns(t *testing.T) {
	cases := []struct {
		msg        string
		wantReason FailoverReason
	}{
		{"401 Unauthorized: invalid api key", FailoverAuth},
		{"rate limit exceeded, too many requests", FailoverRateLimit},
		{"context deadline exceeded", FailoverTimeout},
		{"503 Service Unavailable, server overloaded", FailoverOverloaded},
		{"something entirely unrecognized happened", FailoverUnknown},
	}
	for _, c := range cases {
		fe := ClassifyError(errors.New(c.msg), "anthropic", "claude-sonnet")
		if fe.Reason != c.wantReason {
			t.Errorf("ClassifyError(%q).Reason = %s, want %s", c.msg, fe.Reason, c.wantReason)
		}
	}
}

func TestClassifyErrorRecognizesContextExceededBeforeStatusCode(t *testing.T) {
	cases := []struct {
		msg string
	}{
		{"this model's maximum context length is 128000 tokens (status 400)"},
		{"context_length_exceeded: reduce the number of messages"},
		{"input is too long for the requested model"},
	}
	for _, c := range cases {
		fe := ClassifyError(errors.New(c.msg), "anthropic", "claude-sonnet")
		if fe.Reason != FailoverContextExceeded {
			t.Errorf("ClassifyError(%q).Reason = %s, want %s", c.msg, fe.Reason, FailoverContextExceeded)
		}
	}
}

func TestFailoverErrorIsRetriable(t *testing.T) {
	retriable := []FailoverReason{FailoverRateLimit, FailoverTimeout, FailoverOverloaded, FailoverUnknown}
	for _, r := range retriable {
		fe := &FailoverError{Reason: r}
		if !fe.IsRetriable() {
			t.Errorf("reason %s should be retriable", r)
		}
	}

	terminal := []FailoverReason{FailoverFormat, FailoverAuth, FailoverBilling, FailoverContextExceeded}
	for _, r := range terminal {
		fe := &FailoverError{Reason: r}
		if fe.IsRetriable() {
			t.Errorf("reason %s should not be retriable", r)
		}
	}
}

func TestFailoverErrorUnwrap(t *testing.T) {
	wrapped := errors.New("boom")
	fe := &FailoverError{Wrapped: wrapped}
	if errors.Unwrap(fe) != wrapped {
		t.Error("Unwrap should return the wrapped error")
	}
}

func TestFailoverErrorMessageIncludesStatus(t *testing.T) {
	fe := &FailoverError{Provider: "openai", Model: "gpt-4o", Reason: FailoverRateLimit, Status: 429, Wrapped: errors.New("boom")}
	msg := fe.Error()
	if msg == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestFallbackExhaustedErrorJoinsAllCandidateErrors(t *testing.T) {
	errs := []*FailoverError{
		{Provider: "a", Reason: FailoverRateLimit, Wrapped: errors.New("x")},
		{Provider: "b", Reason: FailoverTimeout, Wrapped: errors.New("y")},
	}
	fee := &FallbackExhaustedError{Errors: errs}
	msg := fee.Error()
	if msg == "" {
		t.Fatal("expected a non-empty combined message")
	}
}

func TestFallbackExhaustedErrorEmpty(t *testing.T) {
	fee := &FallbackExhaustedError{}
	if fee.Error() == "" {
		t.Fatal("expected a non-empty message even with no candidate errors")
	}
}

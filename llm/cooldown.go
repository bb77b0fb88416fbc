package llm

import (
	"sync"
	"time"
)

// cooldownEntry tracks failure state for a single provider.
type cooldownEntry struct {
	count    int
	reason   FailoverReason
	lastFail time.Time
}

// CooldownTracker manages per-provider cooldown state with exponential
// backoff, so a provider that just failed isn't retried on the very next
// summarization call.
type CooldownTracker struct {
	mu      sync.RWMutex
	entries map[Provider]*cooldownEntry
	nowFunc func() time.Time
}

// NewCooldownTracker creates a new cooldown tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		entries: make(map[Provider]*cooldownEntry),
		nowFunc: time.Now,
	}
}

// MarkFailure records a failure for the given provider.
func (ct *CooldownTracker) MarkFailure(provider Provider, reason FailoverReason) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	e, ok := ct.entries[provider]
	if !ok {
		e = &cooldownEntry{}
		ct.entries[provider] = e
	}
	e.count++
	e.reason = reason
	e.lastFail = ct.nowFunc()
}

// MarkSuccess resets all cooldown state for a provider.
func (ct *CooldownTracker) MarkSuccess(provider Provider) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	delete(ct.entries, provider)
}

// Reset clears cooldown state for every provider, so a caller running
// several unrelated sessions in one process can keep a cooldown earned in
// one from bleeding into the next.
func (ct *CooldownTracker) Reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.entries = make(map[Provider]*cooldownEntry)
}

// IsAvailable reports whether the provider is not currently in cooldown.
func (ct *CooldownTracker) IsAvailable(provider Provider) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	e, ok := ct.entries[provider]
	if !ok {
		return true
	}

	dur := cooldownDuration(e.reason, e.count)
	return ct.nowFunc().After(e.lastFail.Add(dur))
}

// cooldownLadder is a reason's backoff ladder: entry k is the duration used
// for the (k+1)th consecutive failure, the last entry acting as the cap.
type cooldownLadder []time.Duration

func (l cooldownLadder) durationFor(count int) time.Duration {
	idx := count - 1
	if idx >= len(l) {
		idx = len(l) - 1
	}
	return l[idx]
}

// cooldownLadders maps a FailoverReason to its backoff ladder. Reasons
// absent from this table (rate_limit, overloaded, timeout, unknown) share
// the "standard" ladder. FailoverFormat, FailoverAuth, FailoverBilling, and
// FailoverContextExceeded are non-retriable per FailoverError.IsRetriable,
// so FallbackChain never calls MarkFailure for format/context_exceeded and
// their ladders here only matter if a caller marks them directly.
var cooldownLadders = map[FailoverReason]cooldownLadder{
	FailoverAuth:    {24 * time.Hour},
	FailoverBilling: {5 * time.Hour, 10 * time.Hour, 20 * time.Hour, 24 * time.Hour},
	standardReason:  {time.Minute, 5 * time.Minute, 25 * time.Minute, time.Hour},
}

// standardReason is the ladder key used for every FailoverReason not given
// its own entry in cooldownLadders.
const standardReason FailoverReason = "standard"

// cooldownDuration returns the cooldown period for a reason/failure-count
// pair, escalating along that reason's ladder and capping at the ladder's
// final step.
func cooldownDuration(reason FailoverReason, count int) time.Duration {
	if count <= 0 {
		return 0
	}
	ladder, ok := cooldownLadders[reason]
	if !ok {
		ladder = cooldownLadders[standardReason]
	}
	return ladder.durationFor(count)
}

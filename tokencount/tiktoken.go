package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/initializ/contextprune/message"
)

// TiktokenCounter wraps github.com/pkoukk/tiktoken-go for a real BPE token
// count instead of the char/4 heuristic (grounded: beeper-ai-bridge uses
// the same library for its OpenAI-facing bridge). This is the concrete
// motivation for TokenLedger.Calibrate (spec §4.1): even a real local
// tokenizer drifts from the provider's own count, so the ledger still needs
// to ground itself against reported usage.
type TiktokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter builds a counter using the named encoding (e.g.
// "cl100k_base", "o200k_base"). Uses cl100k_base when encoding is empty; an
// unknown encoding name returns the lookup error.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

// CountMessage tokenizes the message's textual content plus a flat
// per-message overhead for role/framing bookkeeping that tiktoken, which
// only sees raw text, can't otherwise account for.
func (t *TiktokenCounter) CountMessage(msg message.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 4 // role + message framing overhead, matches common chat-template estimates
	for _, b := range msg.Content {
		if b.Text != "" {
			total += len(t.enc.Encode(b.Text, nil, nil))
		}
		if len(b.Input) > 0 {
			total += len(t.enc.Encode(string(b.Input), nil, nil))
		}
		if b.Name != "" {
			total += len(t.enc.Encode(b.Name, nil, nil))
		}
	}
	for _, tc := range msg.ToolCalls {
		total += len(t.enc.Encode(tc.Name, nil, nil))
		if len(tc.Args) > 0 {
			total += len(t.enc.Encode(string(tc.Args), nil, nil))
		}
	}
	if msg.Role == message.RoleTool {
		total *= toolResultWeightMultiplier
	}
	return total
}

// CountText tokenizes a raw string directly.
func (t *TiktokenCounter) CountText(s string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(s, nil, nil))
}

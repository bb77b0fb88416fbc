// Package message defines the tagged-variant conversation data model shared
// by every stage of the pruning pipeline.
package message

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies which of the four message kinds a Message carries.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// BlockType identifies the kind of payload a ContentBlock carries.
type BlockType string

const (
	BlockText             BlockType = "text"
	BlockToolUse          BlockType = "tool_use"
	BlockToolResult       BlockType = "tool_result"
	BlockImage            BlockType = "image"
	BlockThinking         BlockType = "thinking"
	BlockReasoningContent BlockType = "reasoning_content"
	BlockSummary          BlockType = "summary"
	BlockCachePoint       BlockType = "cache_point"
	// BlockOpaque is the residual variant for provider-specific blocks the
	// pipeline doesn't interpret. Unknown fields round-trip through Opaque
	// instead of being dropped.
	BlockOpaque BlockType = "opaque"
)

// Summary is the payload produced by the external summarization collaborator
// and reintegrated by the orchestrator via a caller-supplied setSummary hook.
type Summary struct {
	Text       string    `json:"text"`
	TokenCount int       `json:"token_count"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
}

// ContentBlock is a closed variant over the wire content-block types that
// flow through the pipeline unchanged (spec §6): text, tool_use, tool_call,
// tool_result, image/image_url, thinking, reasoning_content, summary,
// cachePoint, plus an Opaque passthrough for anything else.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text carries the payload for Text, Thinking, and ReasoningContent blocks.
	Text string `json:"text,omitempty"`

	// ToolUse fields.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"` // raw JSON input, round-trips untouched

	// ToolResult/ToolCallID pairing when tool results are represented as a
	// block rather than a top-level Tool message.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Thinking signature (provider-opaque, must travel with the thinking text).
	Signature string `json:"signature,omitempty"`

	// Summary payload (BlockSummary only).
	Summary *Summary `json:"summary,omitempty"`

	// ImageURL for BlockImage.
	ImageURL string `json:"image_url,omitempty"`

	// Opaque preserves any provider-specific fields for block types this
	// model does not natively understand, so reconstruction never loses data.
	Opaque map[string]any `json:"opaque,omitempty"`
}

// IsThinking reports whether this block is a reasoning payload that certain
// provider families require attached to the latest AI in a tool-using
// sequence (spec §3 invariant 7, §9).
func (b ContentBlock) IsThinking() bool {
	return b.Type == BlockThinking || b.Type == BlockReasoningContent
}

// ToolCall names an AI-issued tool invocation awaiting a matching Tool
// result message.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"` // raw JSON arguments
}

// Message is the tagged-variant transcript element. Which fields are
// meaningful depends on Role:
//   - System: Content only.
//   - Human: Content only.
//   - AI: Content, ToolCalls, AdditionalKwargs.
//   - Tool: Content, ToolCallID (non-empty), Name, Status.
type Message struct {
	ID      string         `json:"id"`
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content,omitempty"`

	// AI-only.
	ToolCalls        []ToolCall     `json:"tool_calls,omitempty"`
	AdditionalKwargs map[string]any `json:"additional_kwargs,omitempty"`

	// Tool-only.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status,omitempty"`

	// ResponseMetadata is provider-specific opaque data (e.g. usage info,
	// request ids) that must be preserved verbatim across reconstruction.
	ResponseMetadata map[string]any `json:"response_metadata,omitempty"`
}

// NewMessageID mints a fresh message id. Centralizing id generation means
// every caller (tests, the CLI, synthetic fixtures) gets the same scheme
// instead of inventing ad hoc counters.
func NewMessageID() string {
	return uuid.NewString()
}

// NewText builds a Message with a single text content block.
func NewText(role Role, id, text string) Message {
	return Message{
		ID:      id,
		Role:    role,
		Content: []ContentBlock{{Type: BlockText, Text: text}},
	}
}

// Text concatenates every BlockText block's payload. Messages whose content
// is "just a string" in the wire format are represented as a single Text
// block, so this recovers the original string form.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// HasImage reports whether any content block is an image, which makes a
// message part of the PositionPruner's protected zone (spec §4.2(e)).
func (m Message) HasImage() bool {
	for _, b := range m.Content {
		if b.Type == BlockImage {
			return true
		}
	}
	return false
}

// ContentText reports whether the message's content is representable as a
// single flat string (no tool_use/thinking/image/etc. blocks mixed in) —
// used by truncation logic that only knows how to head+tail a plain string.
func (m Message) ContentText() (string, bool) {
	if len(m.Content) == 0 {
		return "", true
	}
	if len(m.Content) == 1 && m.Content[0].Type == BlockText {
		return m.Content[0].Text, true
	}
	return "", false
}

// WithText returns a copy of m with its content replaced by a single text
// block. Used by soft-trim/hard-clear/truncation to rewrite content without
// mutating the caller's block slice in place.
func (m Message) WithText(text string) Message {
	out := m
	out.Content = []ContentBlock{{Type: BlockText, Text: text}}
	return out
}

// ThinkingBlock returns the first thinking/reasoning_content block in the
// message's content, if any.
func (m Message) ThinkingBlock() (ContentBlock, bool) {
	for _, b := range m.Content {
		if b.IsThinking() {
			return b, true
		}
	}
	return ContentBlock{}, false
}

// ToolUseBlocks returns every BlockToolUse content block in the message,
// independent of the ToolCalls slice (some providers encode tool calls
// purely as content blocks).
func (m Message) ToolUseBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Clone deep-copies a Message so the EmergencyTruncator can speculatively
// mutate a clone without poisoning the ledger's view of the original list.
func (m Message) Clone() Message {
	out := m
	if m.Content != nil {
		out.Content = make([]ContentBlock, len(m.Content))
		for i, b := range m.Content {
			nb := b
			if b.Input != nil {
				nb.Input = append([]byte(nil), b.Input...)
			}
			if b.Opaque != nil {
				nb.Opaque = cloneAnyMap(b.Opaque)
			}
			out.Content[i] = nb
		}
	}
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			ntc := tc
			if tc.Args != nil {
				ntc.Args = append([]byte(nil), tc.Args...)
			}
			out.ToolCalls[i] = ntc
		}
	}
	if m.AdditionalKwargs != nil {
		out.AdditionalKwargs = cloneAnyMap(m.AdditionalKwargs)
	}
	if m.ResponseMetadata != nil {
		out.ResponseMetadata = cloneAnyMap(m.ResponseMetadata)
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CloneAll deep-copies a whole message slice.
func CloneAll(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

package transcript

import (
	"encoding/json"
	"time"
)

// Entry represents a single line in a Claude Code JSONL transcript, typed
// for the read-only paths (analyzer, reader, store validation) that only
// need to inspect a line, never surgically rewrite it. The trimmer works
// on raw maps instead (see raw.go) so it keeps every field it doesn't touch,
// including fields this struct does not declare.
type Entry struct {
	Type      string    `json:"type"`
	UUID      string    `json:"uuid"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
	CWD       string    `json:"cwd"`
	Version   string    `json:"version"`
	GitBranch string    `json:"gitBranch"`

	// Present on assistant/user messages.
	Message *Message `json:"message,omitempty"`

	// Present on system messages, including the compact_boundary marker.
	Subtype string `json:"subtype,omitempty"`

	// Present on "summary" records — the other compaction-marker shape.
	Summary string `json:"summary,omitempty"`

	// Usage may appear at the top level in addition to message.usage.
	Usage *Usage `json:"usage,omitempty"`

	// Alternate format: content directly on the line rather than nested
	// under message.
	Content json.RawMessage `json:"content,omitempty"`
	Role    string          `json:"role,omitempty"`
}

// Message is the inner message object on user/assistant entries.
type Message struct {
	Role    string          `json:"role"`
	Model   string          `json:"model,omitempty"`
	ID      string          `json:"id,omitempty"`
	Content json.RawMessage `json:"content"` // string or []ContentBlock
	Usage   *Usage          `json:"usage,omitempty"`
}

// ContentBlock represents one block in a content array.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
	ID        string          `json:"id,omitempty"`         // tool_use id
	Name      string          `json:"name,omitempty"`       // tool name
	Input     json.RawMessage `json:"input,omitempty"`      // tool input
	ToolUseID string          `json:"tool_use_id,omitempty"` // tool_result
	Content   json.RawMessage `json:"content,omitempty"`     // tool_result content
	IsError   bool            `json:"is_error,omitempty"`
}

// Usage tracks token consumption reported by the upstream API.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// TotalAPIInput sums the three input-side counters the analyzer tracks.
func (u *Usage) TotalAPIInput() int {
	if u == nil {
		return 0
	}
	return u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// EffectiveUsage returns the message-level usage if present, else the
// entry-level one — the spec allows either location.
func (e Entry) EffectiveUsage() *Usage {
	if e.Message != nil && e.Message.Usage != nil {
		return e.Message.Usage
	}
	return e.Usage
}

// IsUserMessage reports whether the entry is a user message.
func (e Entry) IsUserMessage() bool {
	role := e.Role
	if e.Message != nil {
		role = e.Message.Role
	}
	return role == "user" || e.Type == "user" || e.Type == "human"
}

// IsAssistantMessage reports whether the entry is an assistant message.
func (e Entry) IsAssistantMessage() bool {
	role := e.Role
	if e.Message != nil {
		role = e.Message.Role
	}
	return role == "assistant" || e.Type == "assistant" || e.Type == "message"
}

// IsFileHistorySnapshot reports a file-history-snapshot record.
func (e Entry) IsFileHistorySnapshot() bool {
	return e.Type == "file-history-snapshot"
}

// IsQueueOperation reports a queue-operation record.
func (e Entry) IsQueueOperation() bool {
	return e.Type == "queue-operation"
}

// IsCompactionMarker reports a summary record or a compact_boundary system
// record — the two shapes that mark a compaction boundary.
func (e Entry) IsCompactionMarker() bool {
	if e.Type == "summary" {
		return true
	}
	return e.Type == "system" && e.Subtype == "compact_boundary"
}

// ContentBlocks extracts typed content blocks from an entry, handling both
// string content and array content, at either message.content or the
// top-level alternate location.
func (e Entry) ContentBlocks() []ContentBlock {
	raw := e.Content
	if e.Message != nil && len(e.Message.Content) > 0 {
		raw = e.Message.Content
	}
	return parseBlocks(raw)
}

func parseBlocks(raw json.RawMessage) []ContentBlock {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil
		}
		return []ContentBlock{{Type: "text", Text: asString}}
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}
	return blocks
}

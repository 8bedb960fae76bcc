// Package analyze implements the single-pass breakdown reader: it
// classifies every byte of an active transcript into semantic buckets and
// estimates the working token count, preferring API-reported usage numbers
// over a character heuristic and honoring compaction boundaries. Shares
// internal/transcript's block classification with internal/trim so the two
// components' notions of "trimmable" and "removed" agree up to stub
// overhead, per §4.2's correctness guarantee.
package analyze

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/suykerbuyk/cmv/internal/transcript"
)

// ContextLimit is the assumed upper bound on input tokens per API call.
const ContextLimit = 200_000

// SystemOverhead accounts for the system prompt, tool definitions, and
// skills that are always in context but never materialized in the
// transcript.
const SystemOverhead = 20_000

// Bucket aggregates byte/count/percent for one semantic category.
type Bucket struct {
	Bytes   int64
	Count   int
	Percent float64
}

// MessageCounts tallies message kinds seen in the active portion.
type MessageCounts struct {
	User        int
	Assistant   int
	ToolResults int
}

// Breakdown holds every bucket §4.3 names.
type Breakdown struct {
	ToolResults        Bucket
	ThinkingSignatures Bucket
	FileHistory        Bucket
	Conversation       Bucket
	ToolUseRequests    Bucket
	Other              Bucket
}

// SessionAnalysis is analyze's full output.
type SessionAnalysis struct {
	TotalBytes           int64
	EstimatedTokens       int
	ContextLimit          int
	ContextUsedPercent    int
	Breakdown             Breakdown
	MessageCounts         MessageCounts
}

// Analyze reads jsonlPath and produces a SessionAnalysis. Read-only.
func Analyze(jsonlPath string) (*SessionAnalysis, error) {
	f, err := os.Open(jsonlPath)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	st := newState()

	err = transcript.ForEachLine(f, func(_ int, line []byte) error {
		st.processLine(line)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	return st.finish(), nil
}

// state accumulates bucket totals across the pass, reset at each
// compaction boundary per §4.4.
type state struct {
	totalBytes int64

	toolResults        Bucket
	thinkingSignatures Bucket
	fileHistory        Bucket
	conversation        Bucket
	toolUseRequests     Bucket
	other               Bucket

	messages MessageCounts

	// Token estimation state, §4.3.
	lastAPIInputTokens    int
	haveAPIValue          bool
	contentChars          int
	contentCharsAtUpdate  int
}

func newState() *state {
	return &state{}
}

func (s *state) processLine(line []byte) {
	raw, err := transcript.DecodeRawLine(line)
	if err != nil {
		s.other.Bytes += int64(len(line))
		s.other.Count++
		return
	}

	if raw.IsCompactionMarker() {
		summary := s.reset(raw)
		s.totalBytes += int64(len(line))
		if summary != "" {
			s.conversation.Bytes += int64(len(line))
		} else {
			s.other.Bytes += int64(len(line))
			s.other.Count++
		}
		return
	}

	s.totalBytes += int64(len(line))

	switch {
	case raw.IsFileHistorySnapshot():
		s.fileHistory.Bytes += int64(len(line))
		s.fileHistory.Count++
		return
	case raw.IsQueueOperation():
		s.other.Bytes += int64(len(line))
		s.other.Count++
		return
	}

	blocks := raw.Blocks()
	if blocks == nil {
		// No content array — either a bare string message or a
		// non-message record.
		if raw.IsUserRole() || raw.IsAssistantRole() {
			s.attributeConversation(raw, int64(len(line)))
			s.countMessage(raw)
			if text, ok := raw.StringContent(); ok {
				s.contentChars += len(text)
			}
		} else {
			s.other.Bytes += int64(len(line))
			s.other.Count++
		}
		s.updateTokenEstimate(raw)
		return
	}

	consumed := int64(0)
	for _, b := range blocks {
		m, ok := b.(map[string]interface{})
		if !ok {
			continue
		}
		switch transcript.BlockKindOf(b) {
		case transcript.KindToolResult:
			size := toolResultByteSize(m)
			s.toolResults.Bytes += size
			s.toolResults.Count++
			consumed += size
			s.contentChars += int(toolResultCharSize(m))
		case transcript.KindThinking:
			sig, _ := m["signature"].(string)
			size := int64(len(sig))
			s.thinkingSignatures.Bytes += size
			s.thinkingSignatures.Count++
			consumed += size
			if thinking, ok := m["thinking"].(string); ok {
				s.contentChars += len(thinking)
			}
		case transcript.KindToolUse:
			b2, _ := json.Marshal(m["input"])
			size := int64(len(b2))
			s.toolUseRequests.Bytes += size
			s.toolUseRequests.Count++
			consumed += size
			s.contentChars += len(b2)
		case transcript.KindText:
			if text, ok := m["text"].(string); ok {
				s.contentChars += len(text)
			}
		}
	}

	remainder := int64(len(line)) - consumed
	if remainder < 0 {
		remainder = 0
	}
	if raw.IsUserRole() || raw.IsAssistantRole() {
		s.conversation.Bytes += remainder
	} else {
		s.other.Bytes += remainder
		s.other.Count++
	}
	s.countMessage(raw)
	s.updateTokenEstimate(raw)
}

func (s *state) attributeConversation(raw transcript.RawLine, size int64) {
	s.conversation.Bytes += size
}

func (s *state) countMessage(raw transcript.RawLine) {
	isToolResultOnly := false
	blocks := raw.Blocks()
	if len(blocks) > 0 {
		isToolResultOnly = true
		for _, b := range blocks {
			if transcript.BlockKindOf(b) != transcript.KindToolResult {
				isToolResultOnly = false
			}
		}
	}

	switch {
	case raw.IsUserRole() && isToolResultOnly:
		s.messages.ToolResults++
	case raw.IsUserRole():
		s.messages.User++
	case raw.IsAssistantRole():
		s.messages.Assistant++
	}
}

func toolResultByteSize(m map[string]interface{}) int64 {
	b, _ := json.Marshal(m["content"])
	return int64(len(b))
}

func toolResultCharSize(m map[string]interface{}) int64 {
	switch c := m["content"].(type) {
	case string:
		return int64(len(c))
	case []interface{}:
		var total int64
		for _, sub := range c {
			if subMap, ok := sub.(map[string]interface{}); ok {
				if text, ok := subMap["text"].(string); ok {
					total += int64(len(text))
				}
			}
		}
		return total
	}
	return 0
}

// reset clears every bucket and counter at a compaction boundary, keeping
// the last API-reported token count but resyncing the char baseline to the
// summary text, per §4.4. Returns the summary text so the caller can
// attribute the marker line's own bytes.
func (s *state) reset(raw transcript.RawLine) string {
	s.totalBytes = 0
	s.toolResults = Bucket{}
	s.thinkingSignatures = Bucket{}
	s.fileHistory = Bucket{}
	s.conversation = Bucket{}
	s.toolUseRequests = Bucket{}
	s.other = Bucket{}
	s.messages = MessageCounts{}

	summary, _ := raw["summary"].(string)
	s.contentChars = len(summary)
	s.contentCharsAtUpdate = s.contentChars
	return summary
}

// updateTokenEstimate tracks the last non-zero API-reported usage value,
// updating only when it changes (streaming chunks repeat the same usage).
func (s *state) updateTokenEstimate(raw transcript.RawLine) {
	var usage map[string]interface{}
	if msg, ok := raw["message"].(map[string]interface{}); ok {
		if u, ok := msg["usage"].(map[string]interface{}); ok {
			usage = u
		}
	}
	if usage == nil {
		if u, ok := raw["usage"].(map[string]interface{}); ok {
			usage = u
		}
	}
	if usage == nil {
		return
	}

	input := intField(usage, "input_tokens")
	if input == 0 {
		return
	}
	total := input + intField(usage, "cache_creation_input_tokens") + intField(usage, "cache_read_input_tokens")
	if total == s.lastAPIInputTokens {
		return
	}

	s.lastAPIInputTokens = total
	s.haveAPIValue = true
	s.contentCharsAtUpdate = s.contentChars
}

func intField(m map[string]interface{}, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(f)
}

func (s *state) finish() *SessionAnalysis {
	var estimated int
	if s.haveAPIValue {
		delta := s.contentChars - s.contentCharsAtUpdate
		if delta < 0 {
			delta = 0
		}
		estimated = s.lastAPIInputTokens + delta/4
	} else {
		estimated = s.contentChars/4 + SystemOverhead
	}

	b := &Breakdown{
		ToolResults:        s.toolResults,
		ThinkingSignatures: s.thinkingSignatures,
		FileHistory:        s.fileHistory,
		Conversation:       s.conversation,
		ToolUseRequests:    s.toolUseRequests,
		Other:              s.other,
	}
	applyPercents(b, s.totalBytes)

	usedPercent := 0
	if ContextLimit > 0 {
		usedPercent = int(float64(estimated) / float64(ContextLimit) * 100)
	}

	return &SessionAnalysis{
		TotalBytes:         s.totalBytes,
		EstimatedTokens:    estimated,
		ContextLimit:       ContextLimit,
		ContextUsedPercent: usedPercent,
		Breakdown:          *b,
		MessageCounts:      s.messages,
	}
}

func applyPercents(b *Breakdown, total int64) {
	if total == 0 {
		return
	}
	buckets := []*Bucket{&b.ToolResults, &b.ThinkingSignatures, &b.FileHistory, &b.Conversation, &b.ToolUseRequests, &b.Other}
	for _, bucket := range buckets {
		bucket.Percent = float64(bucket.Bytes) / float64(total) * 100
	}
}

package transcript

import "encoding/json"

// RawLine is a JSONL record decoded generically so the trimmer can mutate
// only the fields the removal taxonomy names and re-serialize everything
// else untouched in substance (key order is not preserved; JSON structure,
// roles, types, and text bytes are).
type RawLine map[string]interface{}

// DecodeRawLine parses one JSONL line into a RawLine.
func DecodeRawLine(line []byte) (RawLine, error) {
	var m RawLine
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode serializes the line back to JSON.
func (l RawLine) Encode() ([]byte, error) {
	return json.Marshal(map[string]interface{}(l))
}

func (l RawLine) str(key string) string {
	v, _ := l[key].(string)
	return v
}

// Type returns the line's top-level "type" field.
func (l RawLine) Type() string { return l.str("type") }

// Subtype returns the line's top-level "subtype" field.
func (l RawLine) Subtype() string { return l.str("subtype") }

// Role returns the effective role, checking message.role then the
// top-level role field.
func (l RawLine) Role() string {
	if msg, ok := l["message"].(map[string]interface{}); ok {
		if r, ok := msg["role"].(string); ok && r != "" {
			return r
		}
	}
	return l.str("role")
}

// IsFileHistorySnapshot reports a file-history-snapshot record.
func (l RawLine) IsFileHistorySnapshot() bool { return l.Type() == "file-history-snapshot" }

// IsQueueOperation reports a queue-operation record.
func (l RawLine) IsQueueOperation() bool { return l.Type() == "queue-operation" }

// IsCompactionMarker reports a summary record or a compact_boundary system
// record.
func (l RawLine) IsCompactionMarker() bool {
	if l.Type() == "summary" {
		return true
	}
	return l.Type() == "system" && l.Subtype() == "compact_boundary"
}

// IsUserRole reports whether the line is a user message.
func (l RawLine) IsUserRole() bool {
	role := l.Role()
	return role == "user" || l.Type() == "user" || l.Type() == "human"
}

// IsAssistantRole reports whether the line is an assistant message.
func (l RawLine) IsAssistantRole() bool {
	role := l.Role()
	return role == "assistant" || l.Type() == "assistant" || l.Type() == "message"
}

// contentHolder returns the map that holds the line's "content" key
// (message sub-object, or the line itself for the alternate top-level
// format) and whether such a key exists.
func (l RawLine) contentHolder() (map[string]interface{}, bool) {
	if msg, ok := l["message"].(map[string]interface{}); ok {
		if _, has := msg["content"]; has {
			return msg, true
		}
	}
	if _, has := l["content"]; has {
		return l, true
	}
	return nil, false
}

// Blocks returns the line's content as a slice of block maps, or nil if the
// content is a bare string or absent.
func (l RawLine) Blocks() []interface{} {
	holder, ok := l.contentHolder()
	if !ok {
		return nil
	}
	arr, ok := holder["content"].([]interface{})
	if !ok {
		return nil
	}
	return arr
}

// SetBlocks replaces the line's content array.
func (l RawLine) SetBlocks(blocks []interface{}) {
	holder, ok := l.contentHolder()
	if !ok {
		return
	}
	holder["content"] = blocks
}

// StringContent returns the line's content when it's a bare string rather
// than a content-block array.
func (l RawLine) StringContent() (string, bool) {
	holder, ok := l.contentHolder()
	if !ok {
		return "", false
	}
	s, ok := holder["content"].(string)
	return s, ok
}

// BlockType returns a block map's "type" field.
func BlockType(block interface{}) string {
	m, ok := block.(map[string]interface{})
	if !ok {
		return ""
	}
	t, _ := m["type"].(string)
	return t
}

// BlockKindOf classifies a raw block map using the same taxonomy as
// ContentBlock.Kind.
func BlockKindOf(block interface{}) BlockKind {
	return ContentBlock{Type: BlockType(block)}.Kind()
}

// DeleteUsage removes a usage object at message.usage or top-level usage.
// Returns true if something was removed.
func (l RawLine) DeleteUsage() bool {
	removed := false
	if msg, ok := l["message"].(map[string]interface{}); ok {
		if _, has := msg["usage"]; has {
			delete(msg, "usage")
			removed = true
		}
	}
	if _, has := l["usage"]; has {
		delete(l, "usage")
		removed = true
	}
	return removed
}

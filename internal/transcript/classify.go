package transcript

// BlockKind is the closed tagged-variant the trimmer and the analyzer both
// dispatch on. Unknown block types are passed through verbatim by the
// trimmer and bucketed as "other" by the analyzer.
type BlockKind int

const (
	KindUnknown BlockKind = iota
	KindText
	KindThinking
	KindToolUse
	KindToolResult
	KindImage
)

// Kind classifies a content block by its type field. This is the single
// dispatch point both the trimmer and the analyzer call — their notions of
// "trimmable" and "removed" must agree up to stub overhead.
func (b ContentBlock) Kind() BlockKind {
	switch b.Type {
	case "text":
		return KindText
	case "thinking":
		return KindThinking
	case "tool_use":
		return KindToolUse
	case "tool_result":
		return KindToolResult
	case "image":
		return KindImage
	default:
		return KindUnknown
	}
}

// knownWriteTools is the set of tool names whose tool_use inputs get the
// write-tool stubbing rule instead of the generic per-key rule.
var knownWriteTools = map[string]bool{
	"Write":        true,
	"Edit":         true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// IsWriteTool reports whether name is one of the known write tools.
func IsWriteTool(name string) bool {
	return knownWriteTools[name]
}

// WriteToolStubFields are the string fields on a write-tool's input that
// get replaced wholesale when they exceed the threshold.
var WriteToolStubFields = []string{"content", "old_string", "new_string", "new_source"}

// PreservedInputFields are tool_use input keys the generic stubbing pass
// never touches regardless of length.
var PreservedInputFields = map[string]bool{
	"file_path":     true,
	"notebook_path": true,
	"command":       true,
	"description":   true,
	"pattern":       true,
	"path":          true,
	"url":           true,
	"skill":         true,
	"args":          true,
	"replace_all":   true,
	"edit_mode":     true,
	"cell_type":     true,
	"cell_id":       true,
}

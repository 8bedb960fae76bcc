package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineBytes bounds the scanner buffer; a single JSONL line carrying a
// large tool result can run well past bufio's 64KB default.
const maxLineBytes = 10 * 1024 * 1024

// ParseFile reads and parses a Claude Code JSONL transcript file.
func ParseFile(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a JSONL transcript from a reader. Malformed lines are skipped
// rather than failing the whole transcript — per spec, a parse failure on
// one line is recovered locally, never fatal.
func Parse(r io.Reader) (*Transcript, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	return &Transcript{Entries: entries, Stats: computeStats(entries)}, nil
}

// ForEachLine streams raw lines (trimmed, non-empty) to fn in file order.
// fn receives the 0-based line index and the raw trimmed bytes.
func ForEachLine(r io.Reader, fn func(index int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)

	idx := 0
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" {
			idx++
			continue
		}
		if err := fn(idx, []byte(trimmed)); err != nil {
			return err
		}
		idx++
	}
	return scanner.Err()
}

// TextContent extracts all text from an entry's content blocks, ignoring
// thinking and tool blocks.
func TextContent(e Entry) string {
	var parts []string
	for _, b := range e.ContentBlocks() {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses extracts all tool_use blocks from an entry.
func ToolUses(e Entry) []ContentBlock {
	var tools []ContentBlock
	for _, b := range e.ContentBlocks() {
		if b.Kind() == KindToolUse {
			tools = append(tools, b)
		}
	}
	return tools
}

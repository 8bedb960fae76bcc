// Package trim implements the two-pass streaming JSONL rewriter: it strips
// mechanical overhead (large tool outputs, thinking signatures, stale
// file-history, dead pre-compaction content) while preserving conversation
// semantics verbatim. Grounded on the teacher's transcript.Parse streaming
// scanner (bufio.Scanner with a 10MB line buffer); the two-pass scan-then-
// rewrite shape is new code, built the way the teacher structures other
// stateful line-by-line scanners.
package trim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/suykerbuyk/cmv/internal/logging"
	"github.com/suykerbuyk/cmv/internal/transcript"
)

// DefaultStubThreshold is the default byte/char length above which a tool
// result or tool input value is replaced with a stub.
const DefaultStubThreshold = 500

// MinStubThreshold is the smallest threshold callers may configure.
const MinStubThreshold = 50

// Options configures a trim run. No dynamic keyword arguments — every
// option is a named field, per the spec's configuration-object convention.
type Options struct {
	// Threshold is the stub threshold; 0 selects DefaultStubThreshold.
	Threshold int
	Log       *zerolog.Logger
}

func (o Options) threshold() int {
	if o.Threshold <= 0 {
		return DefaultStubThreshold
	}
	if o.Threshold < MinStubThreshold {
		return MinStubThreshold
	}
	return o.Threshold
}

// Metrics reports byte-accurate counts from a trim run, per §4.1.
type Metrics struct {
	OriginalBytes int64
	TrimmedBytes  int64

	ToolResultsStubbed         int
	SignaturesStripped        int
	FileHistoryRemoved        int
	ImagesStripped            int
	ToolUseInputsStubbed      int
	PreCompactionLinesSkipped int
	QueueOperationsRemoved    int

	UserMessages      int
	AssistantResponses int
	ToolUseRequests   int
}

// Trim reads srcPath, writes the trimmed transcript to dstPath, and returns
// byte-accurate metrics. dstPath is published atomically: trim writes to a
// sibling temp file and renames over dstPath only on success.
func Trim(srcPath, dstPath string, opts Options) (*Metrics, error) {
	log := logging.OrNop(opts.Log)
	threshold := opts.threshold()

	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("stat source transcript: %w", err)
	}

	scan, err := scanPass(srcPath)
	if err != nil {
		return nil, fmt.Errorf("scan pass: %w", err)
	}

	tmpPath := dstPath + fmt.Sprintf(".tmp-%d", os.Getpid())
	metrics, err := rewritePass(srcPath, tmpPath, threshold, scan)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rewrite pass: %w", err)
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("publish trimmed transcript: %w", err)
	}

	metrics.OriginalBytes = srcInfo.Size()
	if dstInfo, err := os.Stat(dstPath); err == nil {
		metrics.TrimmedBytes = dstInfo.Size()
	}

	log.Debug().
		Int64("original_bytes", metrics.OriginalBytes).
		Int64("trimmed_bytes", metrics.TrimmedBytes).
		Int("pre_compaction_lines_skipped", metrics.PreCompactionLinesSkipped).
		Msg("trim complete")

	return metrics, nil
}

// scanResult is pass 1's output: the last compaction marker's line index
// (-1 if none) and the set of tool_use ids orphaned by the pre-compaction
// skip.
type scanResult struct {
	lastCompactionLine int
	skippedToolUseIDs  map[string]bool
}

func scanPass(srcPath string) (*scanResult, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result := &scanResult{lastCompactionLine: -1, skippedToolUseIDs: map[string]bool{}}

	// First sub-pass: find the last compaction marker's line index.
	lastIdx := -1
	err = transcript.ForEachLine(f, func(idx int, line []byte) error {
		raw, decErr := transcript.DecodeRawLine(line)
		if decErr != nil {
			return nil
		}
		if raw.IsCompactionMarker() {
			lastIdx = idx
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.lastCompactionLine = lastIdx

	if lastIdx < 0 {
		return result, nil
	}

	// Second sub-pass: collect tool_use ids on every line strictly before
	// the last compaction marker — those tool_results will be orphaned once
	// rule 1 discards the line carrying the matching tool_use.
	f2, err := os.Open(srcPath)
	if err != nil {
		return nil, err
	}
	defer f2.Close()

	err = transcript.ForEachLine(f2, func(idx int, line []byte) error {
		if idx >= lastIdx {
			return nil
		}
		raw, decErr := transcript.DecodeRawLine(line)
		if decErr != nil {
			return nil
		}
		for _, b := range raw.Blocks() {
			if transcript.BlockKindOf(b) == transcript.KindToolUse {
				if m, ok := b.(map[string]interface{}); ok {
					if id, ok := m["id"].(string); ok && id != "" {
						result.skippedToolUseIDs[id] = true
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func rewritePass(srcPath, dstPath string, threshold int, scan *scanResult) (*Metrics, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	w := bufio.NewWriter(dst)
	metrics := &Metrics{}

	err = transcript.ForEachLine(src, func(idx int, line []byte) error {
		if scan.lastCompactionLine >= 0 && idx < scan.lastCompactionLine {
			metrics.PreCompactionLinesSkipped++
			return nil
		}

		raw, decErr := transcript.DecodeRawLine(line)
		if decErr != nil {
			// Rule 9: malformed JSON is passed through verbatim.
			_, werr := w.Write(line)
			if werr != nil {
				return werr
			}
			return w.WriteByte('\n')
		}

		if raw.IsFileHistorySnapshot() {
			metrics.FileHistoryRemoved++
			return nil
		}
		if raw.IsQueueOperation() {
			metrics.QueueOperationsRemoved++
			return nil
		}

		applyTaxonomy(raw, threshold, scan.skippedToolUseIDs, metrics)
		countPreserved(raw, metrics)

		out, encErr := raw.Encode()
		if encErr != nil {
			return encErr
		}
		if _, werr := w.Write(out); werr != nil {
			return werr
		}
		return w.WriteByte('\n')
	})
	if err != nil {
		return nil, err
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}
	return metrics, nil
}

func countPreserved(raw transcript.RawLine, metrics *Metrics) {
	if raw.IsUserRole() {
		isToolResultOnly := true
		blocks := raw.Blocks()
		if len(blocks) == 0 {
			isToolResultOnly = false // bare string content is a real user message
		}
		for _, b := range blocks {
			if transcript.BlockKindOf(b) != transcript.KindToolResult {
				isToolResultOnly = false
			}
		}
		if !isToolResultOnly {
			metrics.UserMessages++
		}
	}
	if raw.IsAssistantRole() {
		metrics.AssistantResponses++
		for _, b := range raw.Blocks() {
			if transcript.BlockKindOf(b) == transcript.KindToolUse {
				metrics.ToolUseRequests++
			}
		}
	}
}

// applyTaxonomy applies removal rules 4 through 8 in place on raw.
func applyTaxonomy(raw transcript.RawLine, threshold int, orphaned map[string]bool, metrics *Metrics) {
	blocks := raw.Blocks()
	if blocks != nil {
		var rewritten []interface{}
		for _, b := range blocks {
			m, ok := b.(map[string]interface{})
			if !ok {
				rewritten = append(rewritten, b)
				continue
			}

			switch transcript.BlockKindOf(b) {
			case transcript.KindThinking:
				metrics.SignaturesStripped++
				continue // rule 7: dropped entirely

			case transcript.KindToolResult:
				toolUseID, _ := m["tool_use_id"].(string)
				if orphaned[toolUseID] {
					continue // orphan-free invariant
				}
				stubToolResult(m, threshold, metrics)
				rewritten = append(rewritten, m)

			case transcript.KindToolUse:
				stubToolInput(m, threshold, metrics)
				rewritten = append(rewritten, m)

			default:
				rewritten = append(rewritten, b)
			}
		}
		raw.SetBlocks(rewritten)
	}

	if raw.DeleteUsage() {
		// rule 8: usage objects are stale post-trim.
	}
}

// stubToolResult applies rules 4 and 5 to a single tool_result block map.
func stubToolResult(m map[string]interface{}, threshold int, metrics *Metrics) {
	content, hasArray := m["content"].([]interface{})

	if !hasArray {
		if s, ok := m["content"].(string); ok {
			if len(s) > threshold {
				m["content"] = stubText(fmt.Sprintf("[Trimmed tool result: ~%d chars]", len(s)))
				metrics.ToolResultsStubbed++
			}
		}
		return
	}

	var kept []interface{}
	size := 0
	for _, sub := range content {
		subMap, ok := sub.(map[string]interface{})
		if !ok {
			kept = append(kept, sub)
			continue
		}
		if transcript.BlockKindOf(sub) == transcript.KindImage {
			metrics.ImagesStripped++
			b, _ := json.Marshal(subMap)
			size += len(b)
			continue // rule 4: images dropped, their JSON size still counts
		}
		kept = append(kept, subMap)
		if text, ok := subMap["text"].(string); ok {
			size += len(text)
		} else {
			b, _ := json.Marshal(subMap)
			size += len(b)
		}
	}

	if size > threshold {
		m["content"] = stubText(fmt.Sprintf("[Trimmed tool result: ~%d chars]", size))
		metrics.ToolResultsStubbed++
		return
	}
	m["content"] = kept
}

func stubText(text string) []interface{} {
	return []interface{}{map[string]interface{}{"type": "text", "text": text}}
}

// stubToolInput applies rule 6 to a single tool_use block map.
func stubToolInput(m map[string]interface{}, threshold int, metrics *Metrics) {
	input, ok := m["input"].(map[string]interface{})
	if !ok {
		return
	}
	name, _ := m["name"].(string)

	if transcript.IsWriteTool(name) {
		stubbed := false
		for _, field := range transcript.WriteToolStubFields {
			if s, ok := input[field].(string); ok && len(s) > threshold {
				input[field] = fmt.Sprintf("[Trimmed input: ~%d chars]", len(s))
				stubbed = true
			}
		}
		if stubbed {
			metrics.ToolUseInputsStubbed++
		}
		return
	}

	serialized, _ := json.Marshal(input)
	if len(serialized) <= threshold {
		return
	}

	stubbed := false
	for key, v := range input {
		if transcript.PreservedInputFields[key] {
			continue
		}
		if s, ok := v.(string); ok && len(s) > threshold {
			input[key] = fmt.Sprintf("[Trimmed input: ~%d chars]", len(s))
			stubbed = true
		}
	}
	if stubbed {
		metrics.ToolUseInputsStubbed++
	}
}

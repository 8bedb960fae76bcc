package analyze

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// Scenario 7: analyzer prefers API-reported tokens.
func TestAnalyze_PrefersAPITokens(t *testing.T) {
	userText := strings.Repeat("a", 4000)
	assistantLine, _ := json.Marshal(map[string]interface{}{
		"type": "assistant",
		"message": map[string]interface{}{
			"role":  "assistant",
			"usage": map[string]interface{}{"input_tokens": 30000, "cache_read_input_tokens": 10000},
			"content": []interface{}{
				map[string]interface{}{"type": "text", "text": "ok"},
			},
		},
	})
	userLine, _ := json.Marshal(map[string]interface{}{
		"type": "user",
		"message": map[string]interface{}{
			"role":    "user",
			"content": userText,
		},
	})

	path := writeFixture(t, string(assistantLine), string(userLine))
	a, err := Analyze(path)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if a.EstimatedTokens != 41000 {
		t.Errorf("estimated_tokens = %d, want 41000", a.EstimatedTokens)
	}
}

// Accounting invariant: bucket bytes sum to total_bytes.
func TestAnalyze_BucketsSumToTotal(t *testing.T) {
	line1, _ := json.Marshal(map[string]interface{}{
		"type": "assistant",
		"message": map[string]interface{}{
			"role": "assistant",
			"content": []interface{}{
				map[string]interface{}{"type": "text", "text": "hello"},
				map[string]interface{}{"type": "thinking", "thinking": "...", "signature": "sig"},
				map[string]interface{}{"type": "tool_use", "id": "t1", "name": "Read", "input": map[string]interface{}{"file_path": "/a"}},
			},
		},
	})
	line2, _ := json.Marshal(map[string]interface{}{
		"type": "user",
		"message": map[string]interface{}{
			"role": "user",
			"content": []interface{}{
				map[string]interface{}{"type": "tool_result", "tool_use_id": "t1", "content": "the file contents"},
			},
		},
	})
	line3 := `{"type":"file-history-snapshot","data":{}}`

	path := writeFixture(t, string(line1), string(line2), line3)
	a, err := Analyze(path)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	sum := a.Breakdown.ToolResults.Bytes + a.Breakdown.ThinkingSignatures.Bytes +
		a.Breakdown.FileHistory.Bytes + a.Breakdown.Conversation.Bytes +
		a.Breakdown.ToolUseRequests.Bytes + a.Breakdown.Other.Bytes

	if sum != a.TotalBytes {
		t.Errorf("bucket sum = %d, total_bytes = %d", sum, a.TotalBytes)
	}
}

// Compaction reset: total_bytes excludes everything before the last marker.
func TestAnalyze_CompactionReset(t *testing.T) {
	preLine, _ := json.Marshal(map[string]interface{}{
		"type": "user",
		"message": map[string]interface{}{
			"role":    "user",
			"content": strings.Repeat("x", 5000),
		},
	})
	marker := `{"type":"summary","summary":"earlier work"}`
	postLine, _ := json.Marshal(map[string]interface{}{
		"type": "user",
		"message": map[string]interface{}{
			"role":    "user",
			"content": "hi",
		},
	})

	path := writeFixture(t, string(preLine), marker, string(postLine))
	info, _ := os.Stat(path)

	a, err := Analyze(path)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.TotalBytes >= info.Size() {
		t.Errorf("total_bytes (%d) should be less than file size (%d)", a.TotalBytes, info.Size())
	}

	// The marker itself carries summary text, so its own bytes land in
	// conversation rather than other, matching the reference analyzer.
	wantConversation := int64(len(marker) + len(postLine))
	if a.Breakdown.Conversation.Bytes != wantConversation {
		t.Errorf("conversation.Bytes = %d, want %d (marker + post-marker line)", a.Breakdown.Conversation.Bytes, wantConversation)
	}
	if a.Breakdown.Other.Count != 0 {
		t.Errorf("other.Count = %d, want 0: a summary-bearing marker must not land in other", a.Breakdown.Other.Count)
	}
}

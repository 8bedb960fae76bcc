package transcript

import (
	"encoding/json"
	"strings"
	"time"
)

// Transcript is a fully parsed JSONL transcript plus derived aggregate stats.
type Transcript struct {
	Entries []Entry
	Stats   Stats
}

// Stats aggregates session-level facts out of a transcript's entries. It is
// a read-only summary — the trimmer and analyzer work off the raw entries
// or raw lines directly, not off Stats.
type Stats struct {
	SessionID string
	Model     string
	GitBranch string
	CWD       string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	UserMessages      int
	AssistantMessages int
	ToolUses          int

	InputTokens  int
	OutputTokens int
	CacheReads   int
	CacheWrites  int

	FilesRead    map[string]bool
	FilesWritten map[string]bool
	ToolCounts   map[string]int
}

func computeStats(entries []Entry) Stats {
	s := Stats{
		FilesRead:    make(map[string]bool),
		FilesWritten: make(map[string]bool),
		ToolCounts:   make(map[string]int),
	}

	for _, e := range entries {
		if !e.Timestamp.IsZero() {
			if s.StartTime.IsZero() || e.Timestamp.Before(s.StartTime) {
				s.StartTime = e.Timestamp
			}
			if s.EndTime.IsZero() || e.Timestamp.After(s.EndTime) {
				s.EndTime = e.Timestamp
			}
		}

		if s.SessionID == "" && e.SessionID != "" {
			s.SessionID = e.SessionID
		}
		if s.CWD == "" && e.CWD != "" {
			s.CWD = e.CWD
		}
		if s.GitBranch == "" && e.GitBranch != "" {
			s.GitBranch = e.GitBranch
		}

		if e.Message == nil {
			continue
		}

		switch e.Message.Role {
		case "user":
			isToolResult := false
			for _, b := range e.ContentBlocks() {
				if b.Kind() == KindToolResult {
					isToolResult = true
					break
				}
			}
			if !isToolResult {
				s.UserMessages++
			}

		case "assistant":
			s.AssistantMessages++

			if s.Model == "" && e.Message.Model != "" && !strings.HasPrefix(e.Message.Model, "<") {
				s.Model = e.Message.Model
			}

			if u := e.EffectiveUsage(); u != nil {
				s.InputTokens += u.InputTokens
				s.OutputTokens += u.OutputTokens
				s.CacheReads += u.CacheReadInputTokens
				s.CacheWrites += u.CacheCreationInputTokens
			}

			for _, tu := range ToolUses(e) {
				s.ToolUses++
				s.ToolCounts[tu.Name]++
				trackFiles(&s, tu)
			}
		}
	}

	if !s.StartTime.IsZero() && !s.EndTime.IsZero() {
		s.Duration = s.EndTime.Sub(s.StartTime)
	}

	return s
}

// trackFiles extracts file paths from tool inputs to track reads and writes.
func trackFiles(s *Stats, tu ContentBlock) {
	if len(tu.Input) == 0 {
		return
	}
	var input map[string]interface{}
	if err := json.Unmarshal(tu.Input, &input); err != nil {
		return
	}

	switch tu.Name {
	case "Read":
		if p, ok := input["file_path"].(string); ok {
			s.FilesRead[p] = true
		}
	case "Write", "Edit", "MultiEdit":
		if p, ok := input["file_path"].(string); ok {
			s.FilesWritten[p] = true
		}
	case "NotebookEdit":
		if p, ok := input["notebook_path"].(string); ok {
			s.FilesWritten[p] = true
		}
	case "Bash":
		trackBashFiles(s, input)
	}
}

// trackBashFiles extracts signal from bash commands, currently just commits.
func trackBashFiles(s *Stats, input map[string]interface{}) {
	cmd, ok := input["command"].(string)
	if !ok {
		return
	}
	if strings.Contains(cmd, "git commit") {
		s.ToolCounts["git-commit"]++
	}
}

// UserText extracts all user-authored text from the transcript, excluding
// tool results.
func UserText(t *Transcript) string {
	var parts []string
	for _, e := range t.Entries {
		if e.Message == nil || e.Message.Role != "user" {
			continue
		}
		for _, b := range e.ContentBlocks() {
			if b.Kind() == KindText && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// AssistantText extracts all assistant text from the transcript.
func AssistantText(t *Transcript) string {
	var parts []string
	for _, e := range t.Entries {
		if e.Message == nil || e.Message.Role != "assistant" {
			continue
		}
		if text := TextContent(e); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// Summary produces a JSON-serializable summary of stats.
func (s Stats) Summary() map[string]interface{} {
	m := map[string]interface{}{
		"session_id":         s.SessionID,
		"model":              s.Model,
		"git_branch":         s.GitBranch,
		"duration_minutes":   int(s.Duration.Minutes()),
		"user_messages":      s.UserMessages,
		"assistant_messages": s.AssistantMessages,
		"tool_uses":          s.ToolUses,
		"input_tokens":       s.InputTokens,
		"output_tokens":      s.OutputTokens,
		"cache_reads":        s.CacheReads,
		"cache_writes":       s.CacheWrites,
	}
	b, _ := json.Marshal(m)
	var result map[string]interface{}
	_ = json.Unmarshal(b, &result)
	return result
}

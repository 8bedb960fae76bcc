package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/suykerbuyk/cmv/internal/atomicfile"
)

// SessionsIndexFile is the name of the per-project index the host assistant
// maintains under each encoded project directory.
const SessionsIndexFile = "sessions-index.json"

// SessionEntry is one record in a project's sessions-index.json, per §6.1.
type SessionEntry struct {
	SessionID    string `json:"sessionId"`
	FullPath     string `json:"fullPath"`
	FileMtime    int64  `json:"fileMtime"`
	FirstPrompt  string `json:"firstPrompt,omitempty"`
	Summary      string `json:"summary,omitempty"`
	MessageCount int    `json:"messageCount,omitempty"`
	Created      string `json:"created"`
	Modified     string `json:"modified"`
	GitBranch    string `json:"gitBranch,omitempty"`
	ProjectPath  string `json:"projectPath"`
	IsSidechain  bool   `json:"isSidechain"`
}

// SessionsIndex is the per-project index document.
type SessionsIndex struct {
	Version      int            `json:"version"`
	OriginalPath string         `json:"originalPath"`
	Entries      []SessionEntry `json:"entries"`
}

// LoadSessionsIndex reads projectDir's sessions-index.json. A missing file
// is not an error — it returns an empty index so callers can populate and
// write one for the first time.
func LoadSessionsIndex(projectDir string) (*SessionsIndex, error) {
	path := filepath.Join(projectDir, SessionsIndexFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &SessionsIndex{Version: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var idx SessionsIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &idx, nil
}

// SaveSessionsIndex atomically publishes idx at projectDir's
// sessions-index.json.
func SaveSessionsIndex(projectDir string, idx *SessionsIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions index: %w", err)
	}
	path := filepath.Join(projectDir, SessionsIndexFile)
	return atomicfile.WriteFile(path, append(data, '\n'), 0o644)
}

// AddEntry appends or replaces the entry for entry.SessionID in memory; it
// does not write the file (SaveSessionsIndex does).
func (idx *SessionsIndex) AddEntry(entry SessionEntry) {
	for i := range idx.Entries {
		if idx.Entries[i].SessionID == entry.SessionID {
			idx.Entries[i] = entry
			return
		}
	}
	idx.Entries = append(idx.Entries, entry)
}

// RemoveEntry deletes the entry for sessionID, if present.
func (idx *SessionsIndex) RemoveEntry(sessionID string) {
	kept := idx.Entries[:0]
	for _, e := range idx.Entries {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	idx.Entries = kept
}

// RefreshFromFile updates an entry's FileMtime/Modified from the transcript
// file's actual mtime, the reader's "refresh stale entries" responsibility
// from §6.1.
func (idx *SessionsIndex) RefreshFromFile(sessionID, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mtime := info.ModTime()
	for i := range idx.Entries {
		if idx.Entries[i].SessionID == sessionID {
			idx.Entries[i].FileMtime = mtime.Unix()
			idx.Entries[i].Modified = mtime.UTC().Format(time.RFC3339)
			return nil
		}
	}
	return nil
}

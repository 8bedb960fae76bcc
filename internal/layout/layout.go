// Package layout resolves the host assistant's per-project transcript
// storage: where project directories live, how a filesystem path encodes
// to a directory name, and the sessions-index.json schema the reader and
// store both read and write. Grounded on the teacher's
// internal/discover/discover.go (UUID filename matching, subagent
// detection), generalized to the project-path encoding discover.go never
// needed because it only ever scanned a single vault.
package layout

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// HomeDir returns the host assistant's home directory, honoring an
// override environment variable the way the teacher's config.ConfigDir
// checks XDG_CONFIG_HOME before falling back to the user's home.
func HomeDir() (string, error) {
	if override := os.Getenv("CLAUDE_CONFIG_DIR"); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude"), nil
}

// ProjectsDir returns <host_home>/projects, the root under which every
// per-project transcript directory lives.
func ProjectsDir(hostHome string) string {
	return filepath.Join(hostHome, "projects")
}

// EncodeProjectPath implements §6.1's lossy encoding rule: strip a leading
// separator, drop colons, replace every remaining separator with "--".
func EncodeProjectPath(projectPath string) string {
	p := strings.ReplaceAll(projectPath, ":", "")
	p = strings.TrimPrefix(p, string(filepath.Separator))
	p = strings.ReplaceAll(p, string(filepath.Separator), "--")
	return p
}

// ProjectDir returns the encoded per-project directory for projectPath
// under hostHome.
func ProjectDir(hostHome, projectPath string) string {
	return filepath.Join(ProjectsDir(hostHome), EncodeProjectPath(projectPath))
}

var uuidFilename = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.jsonl$`)

// IsSessionFilename reports whether name is a UUID-named transcript file.
func IsSessionFilename(name string) bool {
	return uuidFilename.MatchString(name)
}

// SessionIDFromFilename extracts the session id from a UUID transcript
// filename, or "" if name doesn't match.
func SessionIDFromFilename(name string) string {
	if !IsSessionFilename(name) {
		return ""
	}
	return strings.TrimSuffix(name, ".jsonl")
}

// IsSubagentPath reports whether path lives under a "subagents" directory —
// the teacher's discover.go convention for sidechain transcripts.
func IsSubagentPath(path string) bool {
	return strings.Contains(path, string(filepath.Separator)+"subagents"+string(filepath.Separator))
}

// FindProjectDirForSession walks every encoded project directory under
// hostHome looking for <session_id>.jsonl, returning the project directory
// (not the file) on the first match. Mirrors discover.go's
// FindBySessionID, generalized across multiple projects instead of one
// vault.
func FindProjectDirForSession(hostHome, sessionID string) (string, error) {
	root := ProjectsDir(hostHome)
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}

	filename := sessionID + ".jsonl"
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, filename)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "subagents", filename)); err == nil {
			return dir, nil
		}
	}
	return "", os.ErrNotExist
}

// DecodeProjectPath recovers a best-effort filesystem path from an encoded
// directory name when no sessions-index.json originalPath is available.
// Lossy per §6.1: ampersands and similar are unrecoverable, so this is a
// fallback only, never authoritative over the index's originalPath field.
func DecodeProjectPath(encoded string) string {
	return string(filepath.Separator) + strings.ReplaceAll(encoded, "--", string(filepath.Separator))
}

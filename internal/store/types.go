// Package store implements the content-addressed snapshot/branch
// repository: snapshot directories under the engine's home, an
// atomically-updated master index, and the branching protocol that
// materializes a snapshot as a new session file under the host assistant's
// discoverable layout. Grounded on the teacher's internal/index (index
// load/save shape; the atomic write is this package's own) and
// internal/archive (backup rotation,
// repointed here at auto-backups instead of export archives).
package store

import "time"

// Snapshot is a named, immutable capture of a transcript at a point in
// time, per §3.2.
type Snapshot struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	SourceSessionID    string    `json:"source_session_id"`
	SourceProjectPath  string    `json:"source_project_path"`
	SnapshotDir        string    `json:"snapshot_dir"`
	MessageCount       *int      `json:"message_count,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	ParentSnapshot     *string   `json:"parent_snapshot,omitempty"`
	SessionActiveAtCapture bool  `json:"session_active_at_capture"`
	Branches           []Branch `json:"branches,omitempty"`
}

// Branch is a fresh continuation of a snapshot, materialized as a new
// transcript file under the host layout, per §3.3.
type Branch struct {
	Name           string    `json:"name"`
	ForkedSessionID string   `json:"forked_session_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Meta is the portable redundant copy of a Snapshot written to
// <snapshot_dir>/meta.json and to a .cmv archive's root, per §6.2.
type Meta struct {
	CmvVersion          int      `json:"cmv_version"`
	SnapshotID          string   `json:"snapshot_id"`
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	SourceSessionID     string   `json:"source_session_id"`
	SourceProjectPath   string   `json:"source_project_path"`
	Tags                []string `json:"tags,omitempty"`
	ParentSnapshot      *string  `json:"parent_snapshot,omitempty"`
	ClaudeCodeVersion   string   `json:"claude_code_version,omitempty"`
	SessionFileFormat   string   `json:"session_file_format"`
}

// ToMeta derives the portable meta.json document from a Snapshot.
func (s Snapshot) ToMeta() Meta {
	return Meta{
		CmvVersion:        1,
		SnapshotID:        s.ID,
		Name:              s.Name,
		Description:       s.Description,
		CreatedAt:         s.CreatedAt,
		SourceSessionID:   s.SourceSessionID,
		SourceProjectPath: s.SourceProjectPath,
		Tags:              s.Tags,
		ParentSnapshot:    s.ParentSnapshot,
		SessionFileFormat: "jsonl",
	}
}

// AutoTrimLogEntry is one record in the capped auto-trim-log.json ring
// buffer, per §6.4 step 6.
type AutoTrimLogEntry struct {
	Timestamp        time.Time `json:"timestamp"`
	SessionID        string    `json:"session_id"`
	Trigger          string    `json:"trigger"`
	OriginalBytes    int64     `json:"original_bytes"`
	TrimmedBytes     int64     `json:"trimmed_bytes"`
	ReductionPercent float64   `json:"reduction_percent"`
	BackupPath       string    `json:"backup_path"`
}

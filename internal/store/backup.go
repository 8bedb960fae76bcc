package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/suykerbuyk/cmv/internal/atomicfile"
	"github.com/suykerbuyk/cmv/internal/cmverrors"
)

const autoTrimLogCap = 50

// AppendAutoTrimLog appends entry to the capped ring buffer at
// auto-trim-log.json, keeping only the most recent autoTrimLogCap records.
func (s *Store) AppendAutoTrimLog(entry AutoTrimLogEntry) error {
	path := s.autoTrimLogPath()

	var entries []AutoTrimLogEntry
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &entries)
	}

	entries = append(entries, entry)
	if len(entries) > autoTrimLogCap {
		entries = entries[len(entries)-autoTrimLogCap:]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal auto-trim log: %w", err)
	}
	return atomicfile.WriteFile(path, append(data, '\n'), 0o644)
}

// backupPath builds the deterministic auto-backup path for a session,
// mirroring the teacher's archive.ArchivePath naming convention.
func (s *Store) backupPath(sessionID string, at time.Time) string {
	ts := at.UTC().Format("20060102T150405Z")
	return filepath.Join(s.autoBackupsDir(), fmt.Sprintf("%s-%s.jsonl.zst", sessionID, ts))
}

// RotateBackup writes a zstd-compressed copy of srcPath under
// auto-backups/, then deletes the oldest backups for sessionID beyond
// maxBackups. Adapted from the teacher's internal/archive/archive.go,
// repointed at the auto-backup path instead of export archives — the
// export/import wire format (§6.2) uses gzip+ustar instead, since it needs
// byte-identical round-trip control the zstd single-stream writer doesn't
// offer.
func (s *Store) RotateBackup(sessionID, srcPath string, maxBackups int) (string, error) {
	if err := os.MkdirAll(s.autoBackupsDir(), 0o755); err != nil {
		return "", &cmverrors.IoError{Op: "create auto-backups directory", Err: err}
	}

	dstPath := s.backupPath(sessionID, time.Now())

	src, err := os.Open(srcPath)
	if err != nil {
		return "", &cmverrors.IoError{Op: "open source transcript for backup", Err: err}
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", &cmverrors.IoError{Op: "create backup file", Err: err}
	}
	defer dst.Close()

	encoder, err := zstd.NewWriter(dst)
	if err != nil {
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := io.Copy(encoder, src); err != nil {
		encoder.Close()
		return "", fmt.Errorf("compress backup: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("finalize backup compression: %w", err)
	}

	if err := s.pruneBackups(sessionID, maxBackups); err != nil {
		s.Log.Warn().Err(err).Str("session_id", sessionID).Msg("prune backups failed")
	}

	return dstPath, nil
}

func (s *Store) pruneBackups(sessionID string, maxBackups int) error {
	entries, err := os.ReadDir(s.autoBackupsDir())
	if err != nil {
		return err
	}

	prefix := sessionID + "-"
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".jsonl.zst") {
			matches = append(matches, e.Name())
		}
	}

	sort.Strings(matches) // timestamp suffix sorts chronologically
	if len(matches) <= maxBackups {
		return nil
	}
	for _, name := range matches[:len(matches)-maxBackups] {
		os.Remove(filepath.Join(s.autoBackupsDir(), name))
	}
	return nil
}

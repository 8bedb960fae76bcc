package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suykerbuyk/cmv/internal/logging"
)

// Store is the engine's home directory: master index, config, auto-trim
// log, auto-backups, and the flat snapshots/ directory.
type Store struct {
	HomeDir string
	Log     zerolog.Logger
}

// New builds a Store rooted at homeDir. A nil log defaults to a no-op
// logger.
func New(homeDir string, log *zerolog.Logger) *Store {
	return &Store{HomeDir: homeDir, Log: logging.OrNop(log)}
}

// Init creates the store's directory layout and an empty index if none
// exists yet — §4.5's "Create snapshot" step 1.
func (s *Store) Init() error {
	for _, dir := range []string{s.HomeDir, s.snapshotsDir(), s.autoBackupsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(indexPath(s.HomeDir)); os.IsNotExist(err) {
		if err := newIndex().save(s.HomeDir); err != nil {
			return fmt.Errorf("write initial index: %w", err)
		}
	}
	return nil
}

func (s *Store) snapshotsDir() string {
	return filepath.Join(s.HomeDir, "snapshots")
}

func (s *Store) autoBackupsDir() string {
	return filepath.Join(s.HomeDir, "auto-backups")
}

func (s *Store) autoTrimLogPath() string {
	return filepath.Join(s.HomeDir, "auto-trim-log.json")
}

func (s *Store) snapshotDir(id string) string {
	return filepath.Join(s.snapshotsDir(), id)
}

func (s *Store) snapshotSessionPath(id, sourceSessionID string) string {
	return filepath.Join(s.snapshotDir(id), "session", sourceSessionID+".jsonl")
}

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.snapshotDir(id), "meta.json")
}

var nameCharset = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateName enforces §3.2's name charset/length rule.
func ValidateName(name string) error {
	if name == "" || len(name) > 100 {
		return fmt.Errorf("name must be 1-100 characters, got %d", len(name))
	}
	if !nameCharset.MatchString(name) {
		return fmt.Errorf("name %q contains characters outside [A-Za-z0-9_-]", name)
	}
	return nil
}

// newSnapshotID returns an 8-hex-char short code prefixed snap_, per §9's
// identifier rule.
func newSnapshotID() string {
	return "snap_" + uuid.New().String()[:8]
}

// newSessionID returns a fresh 128-bit session id rendered as lower-case
// 8-4-4-4-12 hex, indistinguishable from a host-generated id.
func newSessionID() string {
	return uuid.New().String()
}

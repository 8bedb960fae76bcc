// Package reader discovers transcripts across every host project directory,
// reads and refreshes each project's sessions-index.json, and cheaply
// counts messages / detects session activity without a full parse.
// Grounded on the teacher's internal/discover/discover.go (UUID filename
// matching, subagent detection under discover.go's FindBySessionID),
// generalized across the multi-project host layout instead of one vault.
package reader

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/suykerbuyk/cmv/internal/cmverrors"
	"github.com/suykerbuyk/cmv/internal/layout"
	"github.com/suykerbuyk/cmv/internal/logging"
	"github.com/suykerbuyk/cmv/internal/transcript"
)

// Reader discovers and inspects transcripts under a host assistant's home
// directory.
type Reader struct {
	HostHome string
	Log      zerolog.Logger
	cache    *Cache
}

// New builds a Reader rooted at hostHome. A nil log defaults to a no-op
// logger, matching every other internal package's convention.
func New(hostHome string, log *zerolog.Logger) *Reader {
	return &Reader{HostHome: hostHome, Log: logging.OrNop(log)}
}

// WithCache attaches an optional discovery cache; nil disables it.
func (r *Reader) WithCache(c *Cache) *Reader {
	r.cache = c
	return r
}

// Filter narrows DiscoverSessions results.
type Filter struct {
	ProjectPath string // exact project path match, "" for all
	ActiveOnly  bool
}

// Found pairs a sessions-index entry with the project directory it lives
// under and the absolute transcript path.
type Found struct {
	layout.SessionEntry
	ProjectDir string
	Path       string
}

// DiscoverSessions walks every encoded project directory, merging each
// project's sessions-index.json with any UUID-named transcript files the
// index hasn't caught up to yet.
func (r *Reader) DiscoverSessions(filter *Filter) ([]Found, error) {
	root := layout.ProjectsDir(r.HostHome)
	projectDirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &cmverrors.IoError{Op: "read projects directory", Err: err}
	}

	var results []Found
	for _, pd := range projectDirs {
		if !pd.IsDir() {
			continue
		}
		projectDir := filepath.Join(root, pd.Name())

		idx, err := layout.LoadSessionsIndex(projectDir)
		if err != nil {
			r.Log.Warn().Err(err).Str("project_dir", projectDir).Msg("skipping unreadable sessions index")
			continue
		}

		if filter != nil && filter.ProjectPath != "" &&
			idx.OriginalPath != "" && idx.OriginalPath != filter.ProjectPath {
			continue
		}

		known := make(map[string]bool, len(idx.Entries))
		for _, e := range idx.Entries {
			known[e.SessionID] = true
			path := e.FullPath
			if path == "" {
				path = filepath.Join(projectDir, e.SessionID+".jsonl")
			}
			results = append(results, Found{SessionEntry: e, ProjectDir: projectDir, Path: path})
		}

		// Pick up transcripts the index hasn't registered yet.
		files, _ := os.ReadDir(projectDir)
		for _, f := range files {
			if f.IsDir() || !layout.IsSessionFilename(f.Name()) {
				continue
			}
			sid := layout.SessionIDFromFilename(f.Name())
			if known[sid] {
				continue
			}
			path := filepath.Join(projectDir, f.Name())
			info, err := f.Info()
			if err != nil {
				continue
			}
			results = append(results, Found{
				SessionEntry: layout.SessionEntry{
					SessionID:   sid,
					FullPath:    path,
					FileMtime:   info.ModTime().Unix(),
					Modified:    info.ModTime().UTC().Format(time.RFC3339),
					ProjectPath: idx.OriginalPath,
					IsSidechain: layout.IsSubagentPath(path),
				},
				ProjectDir: projectDir,
				Path:       path,
			})
		}
	}

	if filter != nil && filter.ActiveOnly {
		var active []Found
		for _, f := range results {
			if r.DetectActive(f.Path) {
				active = append(active, f)
			}
		}
		results = active
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].FileMtime < results[j].FileMtime
	})

	return results, nil
}

// FindSession resolves idOrPrefix to a single transcript. Prefixes of at
// least 4 characters are allowed; an ambiguous prefix returns
// AmbiguousSessionError listing every candidate.
func (r *Reader) FindSession(idOrPrefix string) (*Found, error) {
	all, err := r.DiscoverSessions(nil)
	if err != nil {
		return nil, err
	}

	if len(idOrPrefix) < 4 {
		return nil, &cmverrors.SessionNotFoundError{Query: idOrPrefix}
	}

	var matches []Found
	for _, f := range all {
		if f.SessionID == idOrPrefix {
			found := f
			return &found, nil
		}
		if strings.HasPrefix(f.SessionID, idOrPrefix) {
			matches = append(matches, f)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &cmverrors.SessionNotFoundError{Query: idOrPrefix}
	case 1:
		return &matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.SessionID
		}
		return nil, &cmverrors.AmbiguousSessionError{Query: idOrPrefix, Candidates: ids}
	}
}

// Latest returns the most recently modified transcript across all projects.
func (r *Reader) Latest() (*Found, error) {
	all, err := r.DiscoverSessions(nil)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, &cmverrors.SessionNotFoundError{Query: "latest"}
	}
	return &all[len(all)-1], nil
}

// CountMessages cheaply counts user+assistant messages in a transcript
// without a full typed parse, consulting the discovery cache first.
func (r *Reader) CountMessages(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &cmverrors.IoError{Op: "stat transcript", Err: err}
	}

	if r.cache != nil {
		if n, ok := r.cache.Lookup(path, info.ModTime(), info.Size()); ok {
			return n, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, &cmverrors.IoError{Op: "open transcript", Err: err}
	}
	defer f.Close()

	count := 0
	err = transcript.ForEachLine(f, func(_ int, line []byte) error {
		raw, decErr := transcript.DecodeRawLine(line)
		if decErr != nil {
			return nil
		}
		if raw.IsUserRole() || raw.IsAssistantRole() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, &cmverrors.IoError{Op: "scan transcript", Err: err}
	}

	if r.cache != nil {
		active := r.DetectActive(path)
		r.cache.Store(path, info.ModTime(), info.Size(), count, active)
	}

	return count, nil
}

// DetectActive reports whether a transcript was modified within the last
// two minutes and a sibling lock file names a still-running PID — the
// two-part liveness check §4.5 step 4 calls for. A missing lock file is
// treated conservatively as inactive.
func (r *Reader) DetectActive(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) > 2*time.Minute {
		return false
	}

	lockPath := strings.TrimSuffix(path, ".jsonl") + ".lock"
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness
	// without affecting the process.
	return proc.Signal(syscall.Signal(0)) == nil
}

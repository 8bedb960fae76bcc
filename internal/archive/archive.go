// Package archive builds and reads the portable .cmv archive format: a
// gzip-compressed POSIX ustar tar containing a meta.json at the root and
// the source transcript under session/<source_session_id>.jsonl, per
// §6.2. Grounded on the teacher's internal/archive/archive.go, which
// compressed a single transcript with zstd for its own archive feature —
// that shape (compress-then-write-to-temp-then-rename) carries over, but
// the compressor is now stdlib archive/tar + compress/gzip rather than
// zstd, since the wire format is fixed by spec and held to a
// byte-identical round-trip invariant that needs direct tar-header
// control a single-stream compressor doesn't offer. The teacher's zstd
// writer itself is not dropped — it now backs auto-backups instead; see
// internal/store/backup.go.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/suykerbuyk/cmv/internal/atomicfile"
	"github.com/suykerbuyk/cmv/internal/cmverrors"
	"github.com/suykerbuyk/cmv/internal/store"
)

const sessionEntryDir = "session"

// Export writes meta and the transcript at sessionPath into a .cmv
// archive at dstPath.
func Export(dstPath string, meta store.Meta, sessionPath string) error {
	tmp := dstPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &cmverrors.IoError{Op: "create archive file", Err: err}
	}
	defer os.Remove(tmp)

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		tw.Close()
		gz.Close()
		f.Close()
		return fmt.Errorf("marshal meta.json: %w", err)
	}
	if err := writeTarEntry(tw, "meta.json", metaJSON); err != nil {
		tw.Close()
		gz.Close()
		f.Close()
		return err
	}

	sessionData, err := os.ReadFile(sessionPath)
	if err != nil {
		tw.Close()
		gz.Close()
		f.Close()
		return &cmverrors.IoError{Op: "read source transcript", Err: err}
	}
	entryName := filepath.ToSlash(filepath.Join(sessionEntryDir, meta.SourceSessionID+".jsonl"))
	if err := writeTarEntry(tw, entryName, sessionData); err != nil {
		tw.Close()
		gz.Close()
		f.Close()
		return err
	}

	if err := tw.Close(); err != nil {
		gz.Close()
		f.Close()
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close gzip writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync archive file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive file: %w", err)
	}

	if err := os.Rename(tmp, dstPath); err != nil {
		return &cmverrors.IoError{Op: "publish archive", Err: err}
	}
	return nil
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar body for %s: %w", name, err)
	}
	return nil
}

// Imported holds the decoded contents of a .cmv archive.
type Imported struct {
	Meta        store.Meta
	SessionData []byte
}

// Import reads a .cmv archive, tolerating extra or reordered entries, per
// §6.2's forward-compatibility note. It requires a meta.json and at least
// one session/*.jsonl entry; when several session entries are present, the
// last one read is used.
func Import(srcPath string) (*Imported, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, &cmverrors.IoError{Op: "open archive", Err: err}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, &cmverrors.InvalidArchiveError{Path: srcPath, Reason: "not a valid gzip stream"}
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	var result Imported
	var haveMeta, haveSession bool

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &cmverrors.InvalidArchiveError{Path: srcPath, Reason: "corrupt tar stream"}
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.ToSlash(hdr.Name)
		switch {
		case name == "meta.json":
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, &cmverrors.InvalidArchiveError{Path: srcPath, Reason: "truncated meta.json"}
			}
			if err := json.Unmarshal(data, &result.Meta); err != nil {
				return nil, &cmverrors.InvalidArchiveError{Path: srcPath, Reason: "malformed meta.json"}
			}
			haveMeta = true
		case filepath.Dir(name) == sessionEntryDir:
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, &cmverrors.InvalidArchiveError{Path: srcPath, Reason: "truncated session transcript"}
			}
			result.SessionData = data
			haveSession = true
		}
	}

	if !haveMeta {
		return nil, &cmverrors.InvalidArchiveError{Path: srcPath, Reason: "missing meta.json"}
	}
	if !haveSession {
		return nil, &cmverrors.InvalidArchiveError{Path: srcPath, Reason: "missing session transcript"}
	}
	return &result, nil
}

// WriteSession atomically publishes the imported transcript under
// dstPath.
func WriteSession(dstPath string, data []byte) error {
	return atomicfile.WriteFile(dstPath, data, 0o644)
}

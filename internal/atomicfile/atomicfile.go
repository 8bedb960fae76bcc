// Package atomicfile centralizes the write-temp-then-rename pattern used to
// publish the store's durable state: the master index, snapshot meta.json
// and session copies, untrimmed branch copies, the auto-trim log, exported
// archives, and the host's per-project sessions-index.json. The trimmer
// does its own temp-then-rename, and config.json and settings.json are
// written with a plain os.WriteFile.
package atomicfile

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// WriteFile writes data to path by first writing a sibling temp file,
// fsyncing it, then renaming it over path. On success the target either
// holds the old content or the new content in full, never a partial write.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%x", filepath.Base(path), rand.Int63()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		// Some platforms refuse rename-over-existing; fall back to
		// delete-then-rename, best-effort.
		if rmErr := os.Remove(path); rmErr == nil {
			if err2 := os.Rename(tmp, path); err2 == nil {
				return nil
			}
		}
		os.Remove(tmp)
		return fmt.Errorf("rename temp file into place: %w", err)
	}

	return nil
}

// Copy reads src into memory and writes it to dst using the same write-temp-then-rename discipline,
// returning the number of bytes copied.
func Copy(dst, src string) (int64, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", src, err)
	}
	info, err := os.Stat(src)
	perm := os.FileMode(0o644)
	if err == nil {
		perm = info.Mode().Perm()
	}
	if err := WriteFile(dst, data, perm); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

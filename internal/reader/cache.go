package reader

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is an on-disk (path, mtime, size) -> (message_count, session_active)
// memo backed by modernc.org/sqlite — declared direct in the teacher's
// go.mod but never called anywhere in its source; wired in here as a pure
// optimization layer. Deleting the database file never changes discovery
// results, only their latency: a miss or stale row just falls back to the
// cheap line-count pass in Reader.CountMessages.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if absent) the discovery cache at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open discovery cache: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS discover_cache (
	path TEXT PRIMARY KEY,
	mtime_unix INTEGER NOT NULL,
	size INTEGER NOT NULL,
	message_count INTEGER NOT NULL,
	session_active INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init discovery cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Lookup returns the cached message count for path if the cache row's
// mtime and size still match.
func (c *Cache) Lookup(path string, mtime time.Time, size int64) (int, bool) {
	if c == nil || c.db == nil {
		return 0, false
	}

	var cachedMtime, cachedSize int64
	var count int
	row := c.db.QueryRow(
		`SELECT mtime_unix, size, message_count FROM discover_cache WHERE path = ?`, path)
	if err := row.Scan(&cachedMtime, &cachedSize, &count); err != nil {
		return 0, false
	}

	if cachedMtime != mtime.Unix() || cachedSize != size {
		return 0, false
	}
	return count, true
}

// Store upserts a cache row for path.
func (c *Cache) Store(path string, mtime time.Time, size int64, messageCount int, active bool) {
	if c == nil || c.db == nil {
		return
	}
	activeInt := 0
	if active {
		activeInt = 1
	}
	_, _ = c.db.Exec(
		`INSERT INTO discover_cache (path, mtime_unix, size, message_count, session_active)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   mtime_unix = excluded.mtime_unix,
		   size = excluded.size,
		   message_count = excluded.message_count,
		   session_active = excluded.session_active`,
		path, mtime.Unix(), size, messageCount, activeInt)
}

// Package index records which task files map to which remote tasks and the
// content each file had when it was last synced.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

// Entry is the sync state of one task file.
type Entry struct {
	Path       string
	RemoteID   string
	SyncedHash string
	SyncedAt   time.Time
}

// Store is a SQLite-backed index.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the index database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory index for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}

	const ddl = `
	CREATE TABLE IF NOT EXISTS task_files (
		path        TEXT PRIMARY KEY,
		remote_id   TEXT NOT NULL,
		synced_hash TEXT NOT NULL DEFAULT '',
		synced_at   TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_task_files_remote ON task_files(remote_id);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// Put records that path holds the task remoteID. An existing sync hash for
// the same task is kept.
func (s *Store) Put(path, remoteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO task_files (path, remote_id) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET
			remote_id = excluded.remote_id,
			synced_hash = CASE WHEN task_files.remote_id = excluded.remote_id THEN task_files.synced_hash ELSE '' END`,
		path, remoteID)
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

// MarkSynced records the content hash of path after a successful sync.
func (s *Store) MarkSynced(path, remoteID, hash string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO task_files (path, remote_id, synced_hash, synced_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			remote_id = excluded.remote_id,
			synced_hash = excluded.synced_hash,
			synced_at = excluded.synced_at`,
		path, remoteID, hash, at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark synced %s: %w", path, err)
	}
	return nil
}

// Get returns the entry for path. ok is false if there is none.
func (s *Store) Get(path string) (e Entry, ok bool, err error) {
	var at string
	err = s.db.QueryRow(
		`SELECT path, remote_id, synced_hash, synced_at FROM task_files WHERE path = ?`, path,
	).Scan(&e.Path, &e.RemoteID, &e.SyncedHash, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %s: %w", path, err)
	}
	e.SyncedAt = parseTime(at)
	return e, true, nil
}

// PathsFor returns the files that hold remoteID.
func (s *Store) PathsFor(remoteID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM task_files WHERE remote_id = ? ORDER BY path`, remoteID)
	if err != nil {
		return nil, fmt.Errorf("paths for %s: %w", remoteID, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Move re-keys the entry for oldPath to newPath. Moving a missing entry is
// not an error.
func (s *Store) Move(oldPath, newPath string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_files WHERE path = ?`, newPath); err != nil {
		return fmt.Errorf("move %s: %w", oldPath, err)
	}
	if _, err := tx.Exec(`UPDATE task_files SET path = ? WHERE path = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("move %s: %w", oldPath, err)
	}
	return tx.Commit()
}

// Remove deletes the entry for path.
func (s *Store) Remove(path string) error {
	if _, err := s.db.Exec(`DELETE FROM task_files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// All returns every entry ordered by path.
func (s *Store) All() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT path, remote_id, synced_hash, synced_at FROM task_files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.Path, &e.RemoteID, &e.SyncedHash, &at); err != nil {
			return nil, err
		}
		e.SyncedAt = parseTime(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Hash fingerprints file content.
func Hash(content string) string {
	return strconv.FormatUint(xxhash.Sum64String(content), 16)
}

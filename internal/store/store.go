// Package store persists bmadnotion sync state in a project-local SQLite file.
//
// The store is a typed key/value ledger: one table for page state keyed by
// document path, one table for database-row state keyed by (local key,
// category). It performs no remote I/O and no hashing.
//
// Layout:
//   - Database file: <project>/.bmadnotion/sync.db
//   - WAL mode, single connection (the tool is single-threaded per run)
//   - meta.schema_version holds a semver string; a store written by a
//     different major version refuses to open
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmad-tools/bmadnotion/internal/schema"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/mod/semver"
)

const (
	// SchemaVersion is the on-disk layout version written by this build.
	SchemaVersion = "v1.0.0"

	// DirName is the project-local directory holding bmadnotion state.
	DirName = ".bmadnotion"
	// FileName is the database file inside DirName.
	FileName = "sync.db"
)

var (
	// ErrNotFound is returned by Get* when no state exists for the key.
	ErrNotFound = errors.New("sync state not found")

	// ErrSchemaVersion is returned when the store was written with an
	// incompatible or unrecognized schema version.
	ErrSchemaVersion = errors.New("unsupported sync state schema version")

	// ErrReadOnly is returned by mutating calls on a read-only store.
	ErrReadOnly = errors.New("sync state store is read-only")
)

// PathFor returns the conventional store location for a project root.
func PathFor(projectRoot string) string {
	return filepath.Join(projectRoot, DirName, FileName)
}

// Store wraps the SQLite connection holding sync state.
type Store struct {
	conn     *sql.DB
	path     string
	readOnly bool
}

// Open opens (creating if needed) the store at path.
//
// Any failure here is fatal to a sync run: callers must not fall back to an
// empty store, since that would recreate every remote entity.
func Open(path string) (*Store, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext is Open with context support.
func OpenContext(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, path: path}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store %s: %w", path, err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode on %s: %w", path, err)
	}

	if err := s.initSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// OpenReadOnly opens the store for a dry run. Nothing is written to disk:
// an existing file is opened with mode=ro, a missing file yields an empty
// in-memory store.
func OpenReadOnly(path string) (*Store, error) {
	return OpenReadOnlyContext(context.Background(), path)
}

// OpenReadOnlyContext is OpenReadOnly with context support.
func OpenReadOnlyContext(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		conn, err := sql.Open("sqlite3", ":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to open in-memory store: %w", err)
		}
		// Every pooled connection would get its own empty database.
		conn.SetMaxOpenConns(1)

		s := &Store{conn: conn, path: path}
		if err := s.initSchema(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		s.readOnly = true
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat store %s: %w", path, err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, path: path, readOnly: true}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store %s: %w", path, err)
	}

	version, err := s.readVersion(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := checkVersion(version); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// ReadOnly reports whether mutations are rejected.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Close closes the connection, checkpointing the WAL for writable stores.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if !s.readOnly {
		if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.conn = nil
	return nil
}

// initSchema validates the stored schema version before touching any table,
// then creates missing tables and records the version on a fresh store.
func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to initialize store %s: %w", s.path, err)
	}

	version, err := s.readVersion(ctx)
	if err != nil {
		return err
	}
	if version != "" {
		if err := checkVersion(version); err != nil {
			return err
		}
	} else {
		var tables int
		if err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN ('page_sync_state', 'db_sync_state')
		`).Scan(&tables); err != nil {
			return fmt.Errorf("failed to inspect store %s: %w", s.path, err)
		}
		if tables > 0 {
			return fmt.Errorf("%w: state tables without a recorded version", ErrSchemaVersion)
		}
	}

	ddl := `
	CREATE TABLE IF NOT EXISTS page_sync_state (
		local_path TEXT PRIMARY KEY,
		remote_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		last_synced_mtime TEXT,
		synced_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS db_sync_state (
		local_key TEXT NOT NULL,
		category TEXT NOT NULL,
		remote_id TEXT NOT NULL,
		fingerprint TEXT,
		last_synced_mtime TEXT,
		synced_at TEXT NOT NULL,
		PRIMARY KEY (local_key, category)
	);

	CREATE INDEX IF NOT EXISTS idx_db_sync_state_category ON db_sync_state(category);
	`
	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if version == "" {
		if _, err := s.conn.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}

	return nil
}

// readVersion returns the stored schema version, or "" on a fresh store.
func (s *Store) readVersion(ctx context.Context) (string, error) {
	var version string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// checkVersion accepts any valid version sharing this build's major.
func checkVersion(version string) error {
	if !semver.IsValid(version) {
		return fmt.Errorf("%w: %q", ErrSchemaVersion, version)
	}
	if semver.Major(version) != semver.Major(SchemaVersion) {
		return fmt.Errorf("%w: store is %s, this build supports %s.x",
			ErrSchemaVersion, version, semver.Major(SchemaVersion))
	}
	return nil
}

// SchemaVersion returns the version recorded in the store.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	return s.readVersion(ctx)
}

// GetPage returns the page state for a document path.
func (s *Store) GetPage(ctx context.Context, localPath string) (*schema.PageSyncState, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT local_path, remote_id, fingerprint, last_synced_mtime, synced_at
	FROM page_sync_state
	WHERE local_path = ?
	`, localPath)

	st, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page state %s: %w", localPath, err)
	}
	return st, nil
}

// PutPage inserts or replaces the page state in a single statement.
func (s *Store) PutPage(ctx context.Context, st *schema.PageSyncState) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return putPage(ctx, s.conn, st)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func putPage(ctx context.Context, ex execer, st *schema.PageSyncState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid page state: %w", err)
	}
	if st.SyncedAt.IsZero() {
		st.SyncedAt = time.Now().UTC()
	}

	_, err := ex.ExecContext(ctx, `
	INSERT INTO page_sync_state (local_path, remote_id, fingerprint, last_synced_mtime, synced_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(local_path) DO UPDATE SET
		remote_id = excluded.remote_id,
		fingerprint = excluded.fingerprint,
		last_synced_mtime = excluded.last_synced_mtime,
		synced_at = excluded.synced_at
	`,
		st.LocalPath,
		st.RemoteID,
		st.Fingerprint,
		timeToNullString(st.LastSyncedMTime),
		st.SyncedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put page state %s: %w", st.LocalPath, err)
	}
	return nil
}

// DeletePage removes the page state. Returns nil if absent.
func (s *Store) DeletePage(ctx context.Context, localPath string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM page_sync_state WHERE local_path = ?`, localPath); err != nil {
		return fmt.Errorf("failed to delete page state %s: %w", localPath, err)
	}
	return nil
}

// ListPages returns all page states ordered by path.
func (s *Store) ListPages(ctx context.Context) ([]*schema.PageSyncState, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT local_path, remote_id, fingerprint, last_synced_mtime, synced_at
	FROM page_sync_state
	ORDER BY local_path ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list page states: %w", err)
	}
	defer rows.Close()

	var states []*schema.PageSyncState
	for rows.Next() {
		st, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page state: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating page states: %w", err)
	}
	return states, nil
}

// GetDb returns the row state for a key within a category.
func (s *Store) GetDb(ctx context.Context, localKey string, category schema.Category) (*schema.DbSyncState, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT local_key, category, remote_id, fingerprint, last_synced_mtime, synced_at
	FROM db_sync_state
	WHERE local_key = ? AND category = ?
	`, localKey, string(category))

	st, err := scanDb(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s state %s: %w", category, localKey, err)
	}
	return st, nil
}

// PutDb inserts or replaces the row state in a single statement.
func (s *Store) PutDb(ctx context.Context, st *schema.DbSyncState) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return putDb(ctx, s.conn, st)
}

func putDb(ctx context.Context, ex execer, st *schema.DbSyncState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid db state: %w", err)
	}
	if st.SyncedAt.IsZero() {
		st.SyncedAt = time.Now().UTC()
	}

	_, err := ex.ExecContext(ctx, `
	INSERT INTO db_sync_state (local_key, category, remote_id, fingerprint, last_synced_mtime, synced_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(local_key, category) DO UPDATE SET
		remote_id = excluded.remote_id,
		fingerprint = excluded.fingerprint,
		last_synced_mtime = excluded.last_synced_mtime,
		synced_at = excluded.synced_at
	`,
		st.LocalKey,
		string(st.Category),
		st.RemoteID,
		stringToNullString(st.Fingerprint),
		timeToNullString(st.LastSyncedMTime),
		st.SyncedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put %s state %s: %w", st.Category, st.LocalKey, err)
	}
	return nil
}

// DeleteDb removes a row state. Returns nil if absent.
func (s *Store) DeleteDb(ctx context.Context, localKey string, category schema.Category) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM db_sync_state WHERE local_key = ? AND category = ?`, localKey, string(category))
	if err != nil {
		return fmt.Errorf("failed to delete %s state %s: %w", category, localKey, err)
	}
	return nil
}

// ListDb returns row states, filtered by category unless it is empty.
func (s *Store) ListDb(ctx context.Context, category schema.Category) ([]*schema.DbSyncState, error) {
	query := `
	SELECT local_key, category, remote_id, fingerprint, last_synced_mtime, synced_at
	FROM db_sync_state
	`
	var args []interface{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, string(category))
	}
	query += " ORDER BY category ASC, local_key ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list db states: %w", err)
	}
	defer rows.Close()

	var states []*schema.DbSyncState
	for rows.Next() {
		st, err := scanDb(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan db state: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating db states: %w", err)
	}
	return states, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner) (*schema.PageSyncState, error) {
	var st schema.PageSyncState
	var mtime sql.NullString
	var syncedAt string

	if err := row.Scan(&st.LocalPath, &st.RemoteID, &st.Fingerprint, &mtime, &syncedAt); err != nil {
		return nil, err
	}
	st.LastSyncedMTime = nullStringToTime(mtime)
	if t, err := time.Parse(time.RFC3339Nano, syncedAt); err == nil {
		st.SyncedAt = t
	}
	return &st, nil
}

func scanDb(row rowScanner) (*schema.DbSyncState, error) {
	var st schema.DbSyncState
	var category string
	var fingerprint, mtime sql.NullString
	var syncedAt string

	if err := row.Scan(&st.LocalKey, &category, &st.RemoteID, &fingerprint, &mtime, &syncedAt); err != nil {
		return nil, err
	}
	st.Category = schema.Category(category)
	st.Fingerprint = fingerprint.String
	st.LastSyncedMTime = nullStringToTime(mtime)
	if t, err := time.Parse(time.RFC3339Nano, syncedAt); err == nil {
		st.SyncedAt = t
	}
	return &st, nil
}

// timeToNullString converts a time to a nullable string; the zero time is NULL.
func timeToNullString(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time.
func nullStringToTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func stringToNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

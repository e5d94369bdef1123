// Package cache provides the SQLite-backed metadata cache. It is a pure
// optimization keyed by vault-relative path: deleting the database and
// rebuilding from a full rescan loses nothing.
package cache

import (
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	path        TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL DEFAULT '',
	meta        TEXT NOT NULL DEFAULT '{}',
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// record is the serialized form of a parsed note. Body is included so a
// fingerprint hit restores everything reindexing would have produced.
type record struct {
	Title      string           `json:"title,omitempty"`
	Kind       models.Kind      `json:"kind"`
	Size       int64            `json:"size"`
	Tags       []string         `json:"tags,omitempty"`
	Aliases    []string         `json:"aliases,omitempty"`
	Links      []models.LinkRef `json:"links,omitempty"`
	Body       string           `json:"body,omitempty"`
	Unresolved int              `json:"unresolved,omitempty"`
}

// Store wraps a sql.DB with cache operations. A nil *Store is valid and
// behaves as an always-miss cache, which is how the service degrades when
// the store cannot be opened.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, &apperr.CacheError{Op: "open", Cause: err}
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, &apperr.CacheError{Op: "ping", Cause: err}
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, &apperr.CacheError{Op: "apply schema", Cause: err}
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.conn.Close()
}

// Get returns the cached note for path when its stored fingerprint equals
// fp. A miss (absent row, stale fingerprint, undecodable meta) returns
// ok=false; corrupted rows are treated as misses, not errors.
func (s *Store) Get(path, fp string) (models.Note, bool) {
	if s == nil {
		return models.Note{}, false
	}
	var storedFP, meta string
	err := s.conn.QueryRow(`SELECT fingerprint, meta FROM notes WHERE path = ?`, path).
		Scan(&storedFP, &meta)
	if err != nil || storedFP != fp {
		return models.Note{}, false
	}
	var rec record
	if err := json.Unmarshal([]byte(meta), &rec); err != nil {
		return models.Note{}, false
	}
	return models.Note{
		Path:        path,
		Title:       rec.Title,
		Kind:        rec.Kind,
		Size:        rec.Size,
		Tags:        rec.Tags,
		Aliases:     rec.Aliases,
		Links:       rec.Links,
		Body:        rec.Body,
		Fingerprint: fp,
	}, true
}

// Put stores (or replaces) the cached metadata for a note.
func (s *Store) Put(n models.Note) error {
	if s == nil {
		return nil
	}
	meta, err := json.Marshal(record{
		Title:   n.Title,
		Kind:    n.Kind,
		Size:    n.Size,
		Tags:    n.Tags,
		Aliases: n.Aliases,
		Links:   n.Links,
		Body:    n.Body,
	})
	if err != nil {
		return &apperr.CacheError{Op: "encode meta", Cause: err}
	}
	_, err = s.conn.Exec(`
		INSERT INTO notes (path, fingerprint, meta, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			meta        = excluded.meta,
			updated_at  = excluded.updated_at
	`, n.Path, n.Fingerprint, string(meta))
	if err != nil {
		return &apperr.CacheError{Op: "upsert", Cause: err}
	}
	return nil
}

// Delete removes the cached entry for path.
func (s *Store) Delete(path string) error {
	if s == nil {
		return nil
	}
	if _, err := s.conn.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return &apperr.CacheError{Op: "delete", Cause: err}
	}
	return nil
}

// Fingerprints returns every cached path mapped to its stored fingerprint.
func (s *Store) Fingerprints() (map[string]string, error) {
	if s == nil {
		return map[string]string{}, nil
	}
	rows, err := s.conn.Query(`SELECT path, fingerprint FROM notes`)
	if err != nil {
		return nil, &apperr.CacheError{Op: "fingerprints", Cause: err}
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, fp string
		if err := rows.Scan(&p, &fp); err != nil {
			return nil, &apperr.CacheError{Op: "fingerprints scan", Cause: err}
		}
		out[p] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.CacheError{Op: "fingerprints rows", Cause: err}
	}
	return out, nil
}

// Package modstore keeps compiled IL modules in a SQLite database so
// projects can link against them by name.
package modstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/funvibe/monc/internal/il"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound indicates no module is stored under the requested name
	ErrNotFound = errors.New("module not found")

	// ErrCorrupt indicates the stored bytes no longer match their digest
	ErrCorrupt = errors.New("stored module digest mismatch")

	errEmptyName = errors.New("module name is empty")
)

const schema = `CREATE TABLE IF NOT EXISTS modules (
	name TEXT PRIMARY KEY,
	digest TEXT NOT NULL,
	data BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Entry describes a stored module
type Entry struct {
	Name      string
	Digest    string
	Size      int
	UpdatedAt time.Time
}

// Store is a module database
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// Open opens or creates the store at path. Missing parent directories are
// created.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file
func (s *Store) Path() string { return s.path }

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Digest returns the hex sha256 of a serialized module
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put serializes m and stores it under name, replacing any previous module
func (s *Store) Put(ctx context.Context, name string, m *il.Module) (Entry, error) {
	data, err := m.Marshal()
	if err != nil {
		return Entry{}, err
	}
	return s.put(ctx, name, data)
}

// PutBundle stores an already serialized module after checking it decodes
func (s *Store) PutBundle(ctx context.Context, name string, data []byte) (Entry, error) {
	if _, err := il.Unmarshal(data); err != nil {
		return Entry{}, fmt.Errorf("storing %s: %w", name, err)
	}
	return s.put(ctx, name, data)
}

func (s *Store) put(ctx context.Context, name string, data []byte) (Entry, error) {
	if name == "" {
		return Entry{}, errEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{Name: name, Digest: Digest(data), Size: len(data), UpdatedAt: s.now().UTC().Truncate(time.Second)}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO modules (name, digest, data, updated_at) VALUES (?, ?, ?, ?)",
		e.Name, e.Digest, data, e.UpdatedAt.Unix(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("saving module: %w", err)
	}
	return e, nil
}

// GetBundle returns the serialized module stored under name
func (s *Store) GetBundle(ctx context.Context, name string) ([]byte, Entry, error) {
	var (
		data    []byte
		updated int64
		e       = Entry{Name: name}
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT digest, data, updated_at FROM modules WHERE name = ?", name,
	).Scan(&e.Digest, &data, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, Entry{}, fmt.Errorf("querying module: %w", err)
	}
	if Digest(data) != e.Digest {
		return nil, Entry{}, fmt.Errorf("%w: %s", ErrCorrupt, name)
	}
	e.Size = len(data)
	e.UpdatedAt = time.Unix(updated, 0).UTC()
	return data, e, nil
}

// Get loads and validates the module stored under name
func (s *Store) Get(ctx context.Context, name string) (*il.Module, error) {
	data, _, err := s.GetBundle(ctx, name)
	if err != nil {
		return nil, err
	}
	m, err := il.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return m, nil
}

// List returns every stored module ordered by name
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, digest, length(data), updated_at FROM modules ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			updated int64
		)
		if err := rows.Scan(&e.Name, &e.Digest, &e.Size, &updated); err != nil {
			return nil, fmt.Errorf("scanning module row: %w", err)
		}
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the module stored under name
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM modules WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting module: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting module: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

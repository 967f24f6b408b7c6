package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"photomap/internal/atlas"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_documents (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	payload  BLOB NOT NULL,
	saved_at TIMESTAMP NOT NULL
);`

// SQLiteStore persists the root cache document in a local SQLite file.
// One row holds the latest document; saves overwrite it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// SQLite serializes writers; extra connections only add lock churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create store schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements DocumentStore.
func (s *SQLiteStore) Load(ctx context.Context) (*atlas.CacheDocument, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM cache_documents WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cache document: %w", err)
	}
	var doc atlas.CacheDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode cache document: %w", err)
	}
	return &doc, nil
}

// Save implements DocumentStore.
func (s *SQLiteStore) Save(ctx context.Context, doc *atlas.CacheDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode cache document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_documents (id, payload, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save cache document: %w", err)
	}
	return nil
}

// Close implements DocumentStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

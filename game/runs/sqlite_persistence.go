package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wricardo/mcp-training/pushmo/game/service"
)

// SQLitePersistence implements RunPersistence on a SQLite database
type SQLitePersistence struct {
	db *sql.DB
}

// OpenSQLite opens or creates the run database at path
func OpenSQLite(path string) (*SQLitePersistence, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLitePersistence{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id         TEXT PRIMARY KEY,
  level      TEXT NOT NULL,
  status     TEXT NOT NULL,
  created_at TEXT NOT NULL,
  data       BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLitePersistence) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a run
func (s *SQLitePersistence) Save(run *service.Run) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if !validID(run.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, run.ID)
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO runs(id, level, status, created_at, data) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET level=excluded.level, status=excluded.status,
		   created_at=excluded.created_at, data=excluded.data`,
		run.ID, run.Level, string(run.Status), run.CreatedAt.UTC().Format(time.RFC3339Nano), data,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves a run by ID
func (s *SQLitePersistence) Load(id string) (*service.Run, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var run service.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run data: %w", err)
	}
	return &run, nil
}

// Delete removes a run
func (s *SQLitePersistence) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ListAll returns all run IDs, oldest first
func (s *SQLitePersistence) ListAll() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks if a run is stored
func (s *SQLitePersistence) Exists(id string) bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM runs WHERE id = ?`, id).Scan(&one)
	return err == nil
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reloquent/schemacanvas/internal/schema"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS canvas_documents (
	project_id TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLite stores documents as JSON rows in a local database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database at path. ":memory:" is accepted.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) LoadSchema(ctx context.Context, projectID string) (*schema.Document, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM canvas_documents WHERE project_id = ?", projectID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.NewDocument(projectID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", projectID, err)
	}
	doc := &schema.Document{}
	if err := json.Unmarshal([]byte(data), doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", projectID, err)
	}
	return normalize(doc, projectID, s.logger), nil
}

func (s *SQLite) SaveSchema(ctx context.Context, projectID string, doc *schema.Document) error {
	if err := ValidateProjectID(projectID); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", projectID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO canvas_documents (project_id, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		projectID, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving %s: %w", projectID, err)
	}
	return nil
}

// Projects lists stored project ids, most recently saved first.
func (s *SQLite) Projects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT project_id FROM canvas_documents ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
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

func (s *SQLite) Close() error { return s.db.Close() }

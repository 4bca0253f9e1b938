package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reloquent/schemacanvas/internal/schema"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS canvas_documents (
	project_id TEXT PRIMARY KEY,
	document   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores documents as JSONB rows.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects with a pgx connection string and creates the table.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging PostgreSQL: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) LoadSchema(ctx context.Context, projectID string) (*schema.Document, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	var data []byte
	err := p.pool.QueryRow(ctx,
		"SELECT document FROM canvas_documents WHERE project_id = $1", projectID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return schema.NewDocument(projectID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", projectID, err)
	}
	doc := &schema.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", projectID, err)
	}
	return normalize(doc, projectID, p.logger), nil
}

func (p *Postgres) SaveSchema(ctx context.Context, projectID string, doc *schema.Document) error {
	if err := ValidateProjectID(projectID); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", projectID, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO canvas_documents (project_id, document, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (project_id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
		projectID, data)
	if err != nil {
		return fmt.Errorf("saving %s: %w", projectID, err)
	}
	return nil
}

// Projects lists stored project ids, most recently saved first.
func (p *Postgres) Projects(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, "SELECT project_id FROM canvas_documents ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return ids, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

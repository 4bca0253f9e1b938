package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres reads table definitions from one PostgreSQL schema.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
	logger *slog.Logger
}

// Connect opens a single-connection pool against dsn. pgSchema defaults to
// "public".
func Connect(ctx context.Context, dsn, pgSchema string, logger *slog.Logger) (*Postgres, error) {
	if pgSchema == "" {
		pgSchema = "public"
	}
	if logger == nil {
		logger = slog.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolCfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging PostgreSQL: %w", err)
	}
	return &Postgres{pool: pool, schema: pgSchema, logger: logger}, nil
}

// Discover returns every ordinary table in the schema with its columns and
// keys.
func (p *Postgres) Discover(ctx context.Context) ([]Table, error) {
	if p.pool == nil {
		return nil, errors.New("not connected")
	}
	tables, err := p.discoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering tables: %w", err)
	}
	byName := make(map[string]*Table, len(tables))
	names := make([]string, len(tables))
	for i := range tables {
		byName[tables[i].Name] = &tables[i]
		names[i] = tables[i].Name
	}

	steps := []struct {
		what string
		fn   func(context.Context, []string, map[string]*Table) error
	}{
		{"columns", p.discoverColumns},
		{"primary keys", p.discoverPrimaryKeys},
		{"unique keys", p.discoverUnique},
		{"foreign keys", p.discoverForeignKeys},
	}
	for _, s := range steps {
		if err := s.fn(ctx, names, byName); err != nil {
			return nil, fmt.Errorf("discovering %s: %w", s.what, err)
		}
	}
	p.logger.Info("discovered tables", "schema", p.schema, "tables", len(tables))
	return tables, nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func (p *Postgres) discoverTables(ctx context.Context) ([]Table, error) {
	query := `
		SELECT c.relname, COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind IN ('r', 'p')
		  AND NOT c.relispartition
		ORDER BY c.relname`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.Comment); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (p *Postgres) discoverColumns(ctx context.Context, names []string, byName map[string]*Table) error {
	query := `
		SELECT
			c.table_name,
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.is_identity,
			COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position), '')
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		  AND c.table_name = ANY($2)
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.schema, names)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, nullable, identity string
			col                           Column
		)
		if err := rows.Scan(&tableName, &col.Name, &col.DataType, &nullable, &col.Default, &col.MaxLength, &identity, &col.Comment); err != nil {
			return err
		}
		t, ok := byName[tableName]
		if !ok {
			continue
		}
		col.Nullable = nullable == "YES"
		col.Identity = identity == "YES"
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func (p *Postgres) discoverPrimaryKeys(ctx context.Context, names []string, byName map[string]*Table) error {
	query := `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = ANY($2)
		ORDER BY tc.table_name, kcu.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.schema, names)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName string
		if err := rows.Scan(&tableName, &colName); err != nil {
			return err
		}
		if t, ok := byName[tableName]; ok {
			t.PrimaryKey = append(t.PrimaryKey, colName)
		}
	}
	return rows.Err()
}

// discoverUnique collects unique constraints and unique indexes alike.
func (p *Postgres) discoverUnique(ctx context.Context, names []string, byName map[string]*Table) error {
	query := `
		SELECT t.relname, i.relname, a.attname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1
		  AND t.relname = ANY($2)
		  AND ix.indisunique
		  AND NOT ix.indisprimary
		ORDER BY t.relname, i.relname, array_position(ix.indkey, a.attnum)`

	rows, err := p.pool.Query(ctx, query, p.schema, names)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ table, index string }
	grouped := make(map[key][]string)
	var order []key
	for rows.Next() {
		var tableName, indexName, colName string
		if err := rows.Scan(&tableName, &indexName, &colName); err != nil {
			return err
		}
		k := key{tableName, indexName}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], colName)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, k := range order {
		if t, ok := byName[k.table]; ok {
			t.Unique = append(t.Unique, grouped[k])
		}
	}
	return nil
}

// discoverForeignKeys groups composite keys by constraint name.
func (p *Postgres) discoverForeignKeys(ctx context.Context, names []string, byName map[string]*Table) error {
	query := `
		SELECT
			tc.table_name,
			tc.constraint_name,
			kcu.column_name,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		  AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = ANY($2)
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.schema, names)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ table, constraint string }
	grouped := make(map[key]*ForeignKey)
	var order []key
	for rows.Next() {
		var tableName, name, col, refTable, refCol string
		if err := rows.Scan(&tableName, &name, &col, &refTable, &refCol); err != nil {
			return err
		}
		k := key{tableName, name}
		fk, ok := grouped[k]
		if !ok {
			fk = &ForeignKey{Name: name, ReferencedTable: refTable}
			grouped[k] = fk
			order = append(order, k)
		}
		fk.Columns = appendNew(fk.Columns, col)
		fk.ReferencedColumns = appendNew(fk.ReferencedColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, k := range order {
		if t, ok := byName[k.table]; ok {
			t.ForeignKeys = append(t.ForeignKeys, *grouped[k])
		}
	}
	return nil
}

// appendNew appends s unless already present. The constraint_column_usage
// join repeats rows for composite keys.
func appendNew(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

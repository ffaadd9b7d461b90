package menudb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var (
	ErrEmptyQuery   = errors.New("query is empty")
	ErrTableUnknown = errors.New("table not found")
)

const (
	// maxResultRows bounds what a single tool call can feed back into the
	// model context.
	maxResultRows = 50

	defaultQueryTimeout = 15 * time.Second
)

type Config struct {
	DSN          string        `envconfig:"DSN" split_words:"true" default:"file:./data/qsr_menu.db"`
	MenuJSON     string        `envconfig:"MENU_JSON" split_words:"true" default:"./data/menu.json"`
	SeedOnStart  bool          `envconfig:"SEED_ON_START" split_words:"true" default:"false"`
	QueryTimeout time.Duration `envconfig:"QUERY_TIMEOUT" split_words:"true" default:"15s"`
}

// DB is the SQL collaborator behind the tool registry. The underlying pool
// serves concurrent requests; every exposed operation is read-only except
// Seed, which only main calls at startup.
type DB struct {
	bun          *bun.DB
	queryTimeout time.Duration
}

func Open(cfg Config) (*DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("menu db dsn is required")
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	return &DB{
		bun:          bun.NewDB(sqldb, sqlitedialect.New()),
		queryTimeout: timeout,
	}, nil
}

func (d *DB) Close() error {
	return d.bun.Close()
}

// ListTables returns user table names, sqlite internals excluded.
func (d *DB) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.queryTimeout)
	defer cancel()

	rows, err := d.bun.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

// Schema returns the CREATE statements for the named tables, or for every
// user table when names is empty.
func (d *DB) Schema(ctx context.Context, names []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.queryTimeout)
	defer cancel()

	if len(names) == 0 {
		all, err := d.ListTables(ctx)
		if err != nil {
			return "", err
		}
		names = all
	}

	var parts []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var ddl sql.NullString
		err := d.bun.QueryRowContext(ctx,
			`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&ddl)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrTableUnknown, name)
		}
		if err != nil {
			return "", fmt.Errorf("read schema for %s: %w", name, err)
		}
		if ddl.Valid {
			parts = append(parts, ddl.String)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// Run executes a query and returns up to maxResultRows rows as ordered maps.
// Callers are expected to have applied the read-only policy already; Run is
// still safe to call with anything sqlite accepts in a query position.
func (d *DB) Run(ctx context.Context, query string) ([]map[string]any, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ctx, cancel := context.WithTimeout(ctx, d.queryTimeout)
	defer cancel()

	rows, err := d.bun.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		if len(out) >= maxResultRows {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckSyntax asks sqlite to plan the query without executing it. This is
// the deterministic half of the query checker; the model-side review happens
// in the SQL agent's prompt.
func (d *DB) CheckSyntax(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}

	ctx, cancel := context.WithTimeout(ctx, d.queryTimeout)
	defer cancel()

	rows, err := d.bun.QueryContext(ctx, "EXPLAIN QUERY PLAN "+query)
	if err != nil {
		return err
	}
	return rows.Close()
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

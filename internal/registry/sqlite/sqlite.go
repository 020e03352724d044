// Package sqlite provides a database-backed model registry for SQLite. The
// driver is pure Go, so this binding also serves as the in-memory fixture
// for pipeline tests.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ferrostack/ferro/internal/registry"
)

// Binding implements registry.Binding for SQLite databases.
type Binding struct {
	db *sqlx.DB
}

// New creates a new SQLite binding.
func New() registry.Binding {
	return &Binding{}
}

// Connect opens the SQLite database file, or an in-memory database when the
// DSN is ":memory:".
func (b *Binding) Connect(cfg registry.ConnectionConfig) error {
	db, err := sqlx.Connect("sqlite", cfg.DSN)
	if err != nil {
		return fmt.Errorf("sqlite connect: %w", err)
	}

	// SQLite does not support concurrent writers.
	db.SetMaxOpenConns(1)

	b.db = db
	return nil
}

// Disconnect closes the database.
func (b *Binding) Disconnect() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (b *Binding) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// DriverName returns the driver identifier for SQLite.
func (b *Binding) DriverName() string { return "sqlite" }

// DB exposes the underlying pool so tests can seed fixture schemas.
func (b *Binding) DB() *sqlx.DB { return b.db }

// tableInfoRow holds a row from PRAGMA table_info().
type tableInfoRow struct {
	CID     int     `db:"cid"`
	Name    string  `db:"name"`
	Type    string  `db:"type"`
	NotNull int     `db:"notnull"`
	Default *string `db:"dflt_value"`
	PK      int     `db:"pk"`
}

// foreignKeyRow holds a row from PRAGMA foreign_key_list().
type foreignKeyRow struct {
	ID       int    `db:"id"`
	Seq      int    `db:"seq"`
	Table    string `db:"table"`
	From     string `db:"from"`
	To       string `db:"to"`
	OnUpdate string `db:"on_update"`
	OnDelete string `db:"on_delete"`
	Match    string `db:"match"`
}

// Models reads the SQLite schema and derives one ModelSource per table, in
// name order. Internal sqlite_* tables and views are excluded.
func (b *Binding) Models(ctx context.Context) ([]registry.ModelSource, error) {
	const tablesQuery = `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	var tables []string
	if err := b.db.SelectContext(ctx, &tables, tablesQuery); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	columnsByTable := make(map[string][]tableInfoRow, len(tables))
	fksByTable := make(map[string][]foreignKeyRow, len(tables))

	for _, table := range tables {
		var columns []tableInfoRow
		pragma := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(table))
		if err := b.db.SelectContext(ctx, &columns, pragma); err != nil {
			return nil, fmt.Errorf("table_info for %q: %w", table, err)
		}
		columnsByTable[table] = columns

		var fks []foreignKeyRow
		pragma = fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdentifier(table))
		if err := b.db.SelectContext(ctx, &fks, pragma); err != nil {
			return nil, fmt.Errorf("foreign_key_list for %q: %w", table, err)
		}
		fksByTable[table] = fks
	}

	return registry.ModelsFromTables(tables, func(table string) ([]registry.FieldSource, []registry.FK) {
		fkByColumn := make(map[string]foreignKeyRow)
		for _, fk := range fksByTable[table] {
			fkByColumn[fk.From] = fk
		}

		var fields []registry.FieldSource
		for _, col := range columnsByTable[table] {
			f := registry.FieldSource{
				Name:         col.Name,
				DeclaredType: strings.ToLower(col.Type),
				Nullable:     col.NotNull == 0 && col.PK == 0,
				HasDefault:   col.Default != nil,
			}
			if fk, ok := fkByColumn[col.Name]; ok {
				f.References = registry.ModelName(fk.Table)
			}
			fields = append(fields, f)
		}

		var tableFKs []registry.FK
		for _, fk := range fksByTable[table] {
			tableFKs = append(tableFKs, registry.FK{
				Column:          fk.From,
				ReferencedTable: fk.Table,
			})
		}
		return fields, tableFKs
	}), nil
}

// quoteIdentifier wraps an identifier in double quotes, escaping embedded
// quotes, for use in PRAGMA statements that cannot be parameterized.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

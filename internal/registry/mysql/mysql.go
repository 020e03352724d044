// Package mysql provides a database-backed model registry for MySQL and
// MariaDB.
package mysql

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/ferrostack/ferro/internal/registry"
)

// Binding implements registry.Binding for MySQL databases.
type Binding struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new MySQL binding.
func New() registry.Binding {
	return &Binding{}
}

// Connect establishes a connection pool to the MySQL database. When no
// schema name is configured, the DSN's database is used.
func (b *Binding) Connect(cfg registry.ConnectionConfig) error {
	db, err := sqlx.Connect("mysql", registry.SanitizeDSN("mysql", cfg.DSN))
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	b.schemaName = cfg.SchemaName
	b.db = db
	return nil
}

// Disconnect closes the connection pool.
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

// DriverName returns the driver identifier for MySQL.
func (b *Binding) DriverName() string { return "mysql" }

// columnRow holds the result of querying information_schema.COLUMNS.
type columnRow struct {
	TableName  string  `db:"TABLE_NAME"`
	ColumnName string  `db:"COLUMN_NAME"`
	DataType   string  `db:"DATA_TYPE"`
	ColumnType string  `db:"COLUMN_TYPE"`
	IsNullable string  `db:"IS_NULLABLE"`
	Default    *string `db:"COLUMN_DEFAULT"`
	Position   int     `db:"ORDINAL_POSITION"`
}

// fkRow holds a foreign key relationship from KEY_COLUMN_USAGE.
type fkRow struct {
	TableName       string `db:"TABLE_NAME"`
	ColumnName      string `db:"COLUMN_NAME"`
	ReferencedTable string `db:"REFERENCED_TABLE_NAME"`
}

// Models reads the live MySQL schema and derives one ModelSource per base
// table, in name order.
func (b *Binding) Models(ctx context.Context) ([]registry.ModelSource, error) {
	schema := b.schemaName
	if schema == "" {
		if err := b.db.GetContext(ctx, &schema, "SELECT DATABASE()"); err != nil {
			return nil, fmt.Errorf("resolve current database: %w", err)
		}
	}

	const tablesQuery = `
		SELECT TABLE_NAME FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	var tables []string
	if err := b.db.SelectContext(ctx, &tables, tablesQuery, schema); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	const columnsQuery = `
		SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE,
		       COLUMN_DEFAULT, ORDINAL_POSITION
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`

	var columns []columnRow
	if err := b.db.SelectContext(ctx, &columns, columnsQuery, schema); err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}

	const fksQuery = `
		SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY TABLE_NAME, COLUMN_NAME`

	var fks []fkRow
	if err := b.db.SelectContext(ctx, &fks, fksQuery, schema); err != nil {
		return nil, fmt.Errorf("introspect foreign keys: %w", err)
	}

	columnsByTable := make(map[string][]columnRow)
	for _, col := range columns {
		columnsByTable[col.TableName] = append(columnsByTable[col.TableName], col)
	}
	fksByTable := make(map[string][]fkRow)
	for _, fk := range fks {
		fksByTable[fk.TableName] = append(fksByTable[fk.TableName], fk)
	}

	return registry.ModelsFromTables(tables, func(table string) ([]registry.FieldSource, []registry.FK) {
		fkByColumn := make(map[string]fkRow)
		for _, fk := range fksByTable[table] {
			fkByColumn[fk.ColumnName] = fk
		}

		var fields []registry.FieldSource
		for _, col := range columnsByTable[table] {
			f := registry.FieldSource{
				Name:         col.ColumnName,
				DeclaredType: col.DataType,
				Nullable:     col.IsNullable == "YES",
				HasDefault:   col.Default != nil,
			}
			if col.DataType == "enum" {
				f.EnumValues = parseEnumValues(col.ColumnType)
			}
			if fk, ok := fkByColumn[col.ColumnName]; ok {
				f.References = registry.ModelName(fk.ReferencedTable)
			}
			fields = append(fields, f)
		}

		var tableFKs []registry.FK
		for _, fk := range fksByTable[table] {
			tableFKs = append(tableFKs, registry.FK{
				Column:          fk.ColumnName,
				ReferencedTable: fk.ReferencedTable,
			})
		}
		return fields, tableFKs
	}), nil
}

// parseEnumValues extracts the literal values from a MySQL COLUMN_TYPE of
// the form enum('a','b','c').
func parseEnumValues(columnType string) []string {
	open := strings.IndexByte(columnType, '(')
	close := strings.LastIndexByte(columnType, ')')
	if open < 0 || close <= open {
		return nil
	}

	var values []string
	for _, raw := range strings.Split(columnType[open+1:close], ",") {
		v := strings.TrimSpace(raw)
		v = strings.Trim(v, "'")
		v = strings.ReplaceAll(v, "''", "'")
		values = append(values, v)
	}
	return values
}

// Package postgres provides a database-backed model registry for
// PostgreSQL. Tables map to models, columns to fields, and foreign keys to
// relations with generated back-references on both sides.
package postgres

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/ferrostack/ferro/internal/registry"
)

// Binding implements registry.Binding for PostgreSQL databases.
type Binding struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new PostgreSQL binding with default settings.
func New() registry.Binding {
	return &Binding{schemaName: "public"}
}

// Connect establishes a connection pool to the PostgreSQL database and
// stores the schema name used by introspection queries.
func (b *Binding) Connect(cfg registry.ConnectionConfig) error {
	db, err := sqlx.Connect("pgx", registry.SanitizeDSN("postgres", cfg.DSN))
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
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

	if cfg.SchemaName != "" {
		b.schemaName = cfg.SchemaName
	}

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

// DriverName returns the driver identifier for PostgreSQL.
func (b *Binding) DriverName() string { return "postgres" }

// columnRow holds the result of querying information_schema.columns.
type columnRow struct {
	TableName  string  `db:"table_name"`
	ColumnName string  `db:"column_name"`
	DataType   string  `db:"data_type"`
	UDTName    string  `db:"udt_name"`
	IsNullable string  `db:"is_nullable"`
	Default    *string `db:"column_default"`
	Position   int     `db:"ordinal_position"`
}

// fkRow holds a foreign key relationship.
type fkRow struct {
	TableName        string `db:"table_name"`
	ColumnName       string `db:"column_name"`
	ReferencedTable  string `db:"referenced_table"`
	ReferencedColumn string `db:"referenced_column"`
}

// enumRow holds one label of a user-defined enum type.
type enumRow struct {
	TypeName string `db:"type_name"`
	Label    string `db:"label"`
}

// Models reads the live PostgreSQL schema and derives one ModelSource per
// base table, in name order. Views are excluded: generated types describe
// writable entities.
func (b *Binding) Models(ctx context.Context) ([]registry.ModelSource, error) {
	const tablesQuery = `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	var tables []string
	if err := b.db.SelectContext(ctx, &tables, tablesQuery, b.schemaName); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	const columnsQuery = `
		SELECT table_name, column_name, data_type, udt_name, is_nullable,
		       column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`

	var columns []columnRow
	if err := b.db.SelectContext(ctx, &columns, columnsQuery, b.schemaName); err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}

	const fksQuery = `
		SELECT tc.table_name,
		       kcu.column_name,
		       ccu.table_name AS referenced_table,
		       ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		 AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
		ORDER BY tc.table_name, kcu.column_name`

	var fks []fkRow
	if err := b.db.SelectContext(ctx, &fks, fksQuery, b.schemaName); err != nil {
		return nil, fmt.Errorf("introspect foreign keys: %w", err)
	}

	const enumsQuery = `
		SELECT t.typname AS type_name, e.enumlabel AS label
		FROM pg_type t
		JOIN pg_enum e ON t.oid = e.enumtypid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder`

	var enums []enumRow
	if err := b.db.SelectContext(ctx, &enums, enumsQuery, b.schemaName); err != nil {
		return nil, fmt.Errorf("introspect enums: %w", err)
	}

	enumValues := make(map[string][]string)
	for _, e := range enums {
		enumValues[e.TypeName] = append(enumValues[e.TypeName], e.Label)
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
			// USER-DEFINED data types with pg_enum labels are enums.
			if values, ok := enumValues[col.UDTName]; ok && col.DataType == "USER-DEFINED" {
				f.DeclaredType = "enum"
				f.EnumValues = values
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

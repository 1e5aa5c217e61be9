package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect abstracts the backend-specific corners of SQL generation. Whether
// the bulk-load path needs the foreign-key toggle is an explicit capability
// flag rather than a match on the dialect name: backends with deferred
// constraint checking never need it.
type Dialect interface {
	Name() string
	DriverName() string
	GooseDialect() string

	// Placeholder returns the 1-based bind placeholder for position n.
	Placeholder(n int) string

	// ColumnType maps a schema primitive type name to a column type.
	ColumnType(primitive string) string

	// SupportsDeferredConstraints reports whether foreign keys are checked
	// at commit time. When false, enforcement must be switched off for bulk
	// loading and back on after commit.
	SupportsDeferredConstraints() bool

	// SetForeignKeyEnforcement toggles statement-time foreign-key checks on
	// the given connection. Only meaningful when deferred constraints are
	// unsupported; otherwise a no-op.
	SetForeignKeyEnforcement(ctx context.Context, conn *sql.Conn, on bool) error

	// ForeignKeyClause returns a table-level foreign key constraint clause.
	ForeignKeyClause(col, refTable, refCol string) string

	// DropTableSQL returns the statement dropping one table. Model tables
	// reference each other, and a reset drops them in arbitrary order;
	// backends that refuse to drop a referenced table must cascade.
	DropTableSQL(table string) string

	// InsertIgnoreSQL builds an idempotent insert for meta rows.
	InsertIgnoreSQL(table string, cols []string, rows int) string

	// ListTables returns all user table names in the current database.
	ListTables(ctx context.Context, db *sql.DB) ([]string, error)
}

// OpenDialect returns the dialect registered under name ("sqlite" or
// "postgres").
func OpenDialect(name string) (Dialect, error) {
	switch name {
	case "sqlite":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string         { return "sqlite" }
func (sqliteDialect) DriverName() string   { return "sqlite" }
func (sqliteDialect) GooseDialect() string { return "sqlite3" }

func (sqliteDialect) Placeholder(n int) string { return "?" }

func (sqliteDialect) ColumnType(primitive string) string {
	switch strings.ToLower(primitive) {
	case "float", "double", "decimal":
		return "REAL"
	case "integer", "int":
		return "INTEGER"
	case "boolean":
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// SQLite checks foreign keys per statement; bulk loading of unsorted object
// graphs needs them off until after commit.
func (sqliteDialect) SupportsDeferredConstraints() bool { return false }

func (sqliteDialect) SetForeignKeyEnforcement(ctx context.Context, conn *sql.Conn, on bool) error {
	// The pragma is a no-op inside a transaction, so the session toggles it
	// before Begin and after Commit.
	state := "OFF"
	if on {
		state = "ON"
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = "+state); err != nil {
		return fmt.Errorf("failed to set foreign_keys pragma: %w", err)
	}
	return nil
}

func (sqliteDialect) ForeignKeyClause(col, refTable, refCol string) string {
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", col, refTable, refCol)
}

// Drop order does not matter with the foreign_keys pragma off.
func (sqliteDialect) DropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + table
}

func (d sqliteDialect) InsertIgnoreSQL(table string, cols []string, rows int) string {
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES %s",
		table, strings.Join(cols, ", "), placeholderRows(d, len(cols), rows))
}

func (sqliteDialect) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	return scanStrings(ctx, db,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
}

type postgresDialect struct{}

func (postgresDialect) Name() string         { return "postgres" }
func (postgresDialect) DriverName() string   { return "pgx" }
func (postgresDialect) GooseDialect() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) ColumnType(primitive string) string {
	switch strings.ToLower(primitive) {
	case "float", "double", "decimal":
		return "DOUBLE PRECISION"
	case "integer", "int":
		return "BIGINT"
	case "boolean":
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// Foreign keys are created DEFERRABLE INITIALLY DEFERRED, so forward
// references settle at commit without any enforcement toggle.
func (postgresDialect) SupportsDeferredConstraints() bool { return true }

func (postgresDialect) SetForeignKeyEnforcement(ctx context.Context, conn *sql.Conn, on bool) error {
	return nil
}

func (postgresDialect) ForeignKeyClause(col, refTable, refCol string) string {
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s) DEFERRABLE INITIALLY DEFERRED",
		col, refTable, refCol)
}

// Postgres refuses to drop a table other tables reference; there is no
// enforcement toggle, so the drop itself must cascade.
func (postgresDialect) DropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + table + " CASCADE"
}

func (d postgresDialect) InsertIgnoreSQL(table string, cols []string, rows int) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT DO NOTHING",
		table, strings.Join(cols, ", "), placeholderRows(d, len(cols), rows))
}

func (postgresDialect) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	return scanStrings(ctx, db,
		`SELECT tablename FROM pg_tables WHERE schemaname = current_schema()`)
}

// placeholderRows renders "(?, ?), (?, ?)" style value lists with
// dialect-correct numbering.
func placeholderRows(d Dialect, cols, rows int) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(n))
			n++
		}
		b.WriteString(")")
	}
	return b.String()
}

func scanStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Read helpers used by the verifier and the stats report. They run on the
// pool, not on a session, so independent checks can proceed concurrently.

func (d *DB) Count(ctx context.Context, table string) (int64, error) {
	return d.countQuery(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
}

func (d *DB) CountWhereNull(ctx context.Context, table, col string) (int64, error) {
	return d.countQuery(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", table, col))
}

func (d *DB) CountWhereNotNull(ctx context.Context, table, col string) (int64, error) {
	return d.countQuery(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL", table, col))
}

func (d *DB) CountWhereType(ctx context.Context, table, typeName string) (int64, error) {
	return d.countQuery(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s", table, TypeColumn, d.dialect.Placeholder(1)),
		typeName)
}

// CountWhereIn counts rows whose column value falls inside the given set.
func (d *DB) CountWhereIn(ctx context.Context, table, col string, values []string) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = d.dialect.Placeholder(i + 1)
		args[i] = v
	}
	return d.countQuery(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IN (%s)",
			table, col, strings.Join(placeholders, ", ")),
		args...)
}

// ExceptIDs returns the set difference between the distinct values stored in
// table.col and the ids of refTable. The result is returned raw, NULL rows
// included: the set difference against an empty reference table yields a
// single NULL marker row on these backends, and interpreting it is the
// verifier's business, not the store's.
func (d *DB) ExceptIDs(ctx context.Context, table, col, refTable string) ([]sql.NullString, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s EXCEPT SELECT id FROM %s",
		col, table, refTable)
	return d.scanNullStrings(ctx, query)
}

// ExceptEnumValues is the enum flavor of ExceptIDs: the valid set is the
// persisted value names of one enum.
func (d *DB) ExceptEnumValues(ctx context.Context, table, col, enumName string) ([]sql.NullString, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s EXCEPT SELECT name FROM enum_value WHERE enum = %s",
		col, table, d.dialect.Placeholder(1))
	return d.scanNullStrings(ctx, query, enumName)
}

func (d *DB) countQuery(ctx context.Context, query string, args ...any) (int64, error) {
	var count int64
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return count, nil
}

func (d *DB) scanNullStrings(ctx context.Context, query string, args ...any) ([]sql.NullString, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()
	var out []sql.NullString
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

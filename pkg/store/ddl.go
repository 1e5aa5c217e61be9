package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/bertramr/cimdb/pkg/schema"
)

// Discriminator column on root tables: the concrete class name of the
// instance, enabling "all instances of any subclass of X" queries.
const TypeColumn = "cim_type"

// CreateTables materializes backing storage for every class of the
// hierarchy, roots included. Idempotent against a fresh backend: all
// statements are IF NOT EXISTS. Joined-table inheritance: an instance owns
// one row per ancestor class, each subclass table's id referencing its
// parent's.
func (d *DB) CreateTables(ctx context.Context, sch *schema.Schema) error {
	for _, class := range sch.Hierarchy() {
		stmt := d.createTableSQL(class)
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table for %s: %w", class.Name, err)
		}
	}
	if err := d.seedEnumValues(ctx, sch); err != nil {
		return err
	}
	d.log.Debug("materialized model tables", "classes", sch.NumClasses(), "version", sch.Version)
	return nil
}

func (d *DB) createTableSQL(class *schema.Class) string {
	cols := []string{"id TEXT PRIMARY KEY"}
	var constraints []string
	if class.Parent == nil {
		cols = append(cols, TypeColumn+" TEXT NOT NULL")
	} else {
		constraints = append(constraints,
			d.dialect.ForeignKeyClause("id", class.Parent.TableName(), "id"))
	}
	for _, prop := range class.Props {
		if !prop.HasColumn() {
			continue
		}
		switch prop.Kind {
		case schema.KindObject:
			cols = append(cols, prop.Column()+" TEXT")
			constraints = append(constraints,
				d.dialect.ForeignKeyClause(prop.Column(), prop.Range.TableName(), "id"))
		case schema.KindEnumeration:
			cols = append(cols, prop.Column()+" TEXT")
		default:
			cols = append(cols, prop.Column()+" "+d.dialect.ColumnType(prop.Primitive))
		}
	}
	all := append(cols, constraints...)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		class.TableName(), strings.Join(all, ",\n    "))
}

// seedEnumValues persists the closed value sets so enum references stay
// verifiable on a reopened database without reloading the profile documents.
func (d *DB) seedEnumValues(ctx context.Context, sch *schema.Schema) error {
	for _, enum := range sch.Enums() {
		if len(enum.Values) == 0 {
			continue
		}
		stmt := d.dialect.InsertIgnoreSQL("enum_value", []string{"enum", "name"}, len(enum.Values))
		args := make([]any, 0, len(enum.Values)*2)
		for _, v := range enum.Values {
			args = append(args, enum.Name, v.Name)
		}
		if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to seed enum values for %s: %w", enum.Name, err)
		}
	}
	return nil
}

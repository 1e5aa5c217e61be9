package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bertramr/cimdb/pkg/metrics"
	"github.com/bertramr/cimdb/pkg/parser"
	"github.com/bertramr/cimdb/pkg/schema"
	"github.com/bertramr/cimdb/pkg/store"
)

// Object is one typed instance bound to its class descriptor, keyed by the
// dataset-scoped id. Values are keyed by storage column name.
type Object struct {
	ID     string
	Class  *schema.Class
	Values map[string]any
}

type PipelineConfig struct {
	Logger *slog.Logger
	DB     *store.DB
}

func (cfg *PipelineConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("db is required")
	}
	return nil
}

type Pipeline struct {
	log *slog.Logger
	db  *store.DB
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{log: cfg.Logger, db: cfg.DB}, nil
}

// Ingest merges the raw entries of all documents, binds them to the type
// hierarchy and commits them in one transaction. Forward references are
// expected: the object graph is not topologically sorted, references resolve
// by id at the storage layer, and on backends without deferred constraints
// foreign-key enforcement is switched off for the load and back on after
// commit. All-or-nothing: any failure before commit leaves the backend
// untouched.
func (p *Pipeline) Ingest(ctx context.Context, files []string, sch *schema.Schema) (int, error) {
	started := time.Now()

	entries, err := parser.MergeSources(files)
	if err != nil {
		return 0, err
	}
	objects, err := p.bind(entries, sch)
	if err != nil {
		return 0, err
	}
	p.log.Info("passing objects to database", "count", len(objects))

	if err := p.commit(ctx, objects, sch); err != nil {
		return 0, err
	}

	metrics.IngestedObjectsTotal.Add(float64(len(objects)))
	metrics.IngestDuration.Observe(time.Since(started).Seconds())
	p.log.Info("ingest finished", "objects", len(objects), "elapsed", time.Since(started))
	return len(objects), nil
}

// bind resolves each merged entry against the hierarchy and coerces its
// attributes to the declared property ranges. An entry whose declared type
// is absent from the hierarchy aborts the ingest: the dataset references a
// type outside the resolved schema version.
func (p *Pipeline) bind(entries []*parser.RawEntry, sch *schema.Schema) ([]*Object, error) {
	objects := make([]*Object, 0, len(entries))
	for _, entry := range entries {
		class, ok := sch.Class(entry.Type)
		if !ok {
			return nil, fmt.Errorf("entry %s declares type %s absent from schema version %s (version mismatch?)",
				entry.ID, entry.Type, sch.Version)
		}
		obj := &Object{ID: entry.ID, Class: class, Values: map[string]any{}}
		for key, raw := range entry.Attrs {
			prop, ok := sch.Property(key)
			if !ok {
				p.log.Debug("attribute not in schema, skipped", "entry", entry.ID, "attribute", key)
				continue
			}
			if !class.IsDescendantOf(prop.Class) {
				p.log.Warn("attribute domain does not match entry type, skipped",
					"entry", entry.ID, "type", entry.Type, "attribute", key)
				continue
			}
			if !prop.HasColumn() {
				continue
			}
			value, err := coerce(prop, raw)
			if err != nil {
				return nil, fmt.Errorf("entry %s: %w", entry.ID, err)
			}
			obj.Values[prop.Column()] = value
			prop.Used = true
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// coerce casts a raw attribute to the property's declared range: primitive
// cast, enum value name, or foreign id kept for storage-level resolution.
func coerce(prop *schema.Property, raw parser.Value) (any, error) {
	switch prop.Kind {
	case schema.KindObject, schema.KindEnumeration:
		return raw.Text, nil
	default:
		return coercePrimitive(prop, raw.Text)
	}
}

func coercePrimitive(prop *schema.Property, text string) (any, error) {
	switch prop.Primitive {
	case "Float", "Double", "Decimal":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to cast %s value %q to float: %w", prop.QName(), text, err)
		}
		return v, nil
	case "Integer", "Int":
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to cast %s value %q to integer: %w", prop.QName(), text, err)
		}
		return v, nil
	case "Boolean":
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("failed to cast %s value %q to boolean: %w", prop.QName(), text, err)
		}
		return v, nil
	default:
		return text, nil
	}
}

// commit writes the objects as one bulk insert, one row per ancestor class
// table, then flushes and commits. Flush and commit are distinct barriers:
// flush makes the rows visible inside the transaction, commit finalizes it.
func (p *Pipeline) commit(ctx context.Context, objects []*Object, sch *schema.Schema) error {
	sess, err := p.db.NewSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	deferred := p.db.Dialect().SupportsDeferredConstraints()
	if !deferred {
		if err := sess.SetForeignKeyEnforcement(ctx, false); err != nil {
			return err
		}
	}

	if err := p.write(ctx, sess, objects, sch); err != nil {
		rbErr := sess.Rollback()
		if !deferred {
			if fkErr := sess.SetForeignKeyEnforcement(ctx, true); fkErr != nil {
				p.log.Error("failed to re-enable foreign keys after rollback", "error", fkErr)
			}
		}
		if rbErr != nil {
			p.log.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if !deferred {
		p.log.Debug("re-enabling foreign key enforcement")
		if err := sess.SetForeignKeyEnforcement(ctx, true); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) write(ctx context.Context, sess *store.Session, objects []*Object, sch *schema.Schema) error {
	if err := sess.Begin(ctx); err != nil {
		return err
	}

	type batch struct {
		cols []string
		rows [][]any
	}
	batches := map[*schema.Class]*batch{}
	for _, obj := range objects {
		for _, class := range obj.Class.Ancestry() {
			b, ok := batches[class]
			if !ok {
				b = &batch{cols: tableColumns(class)}
				batches[class] = b
			}
			b.rows = append(b.rows, tableRow(class, obj))
		}
	}

	// Parents before descendants, same order as table creation.
	for _, class := range sch.Hierarchy() {
		b, ok := batches[class]
		if !ok {
			continue
		}
		sess.BulkInsert(class.TableName(), b.cols, b.rows)
	}

	p.log.Debug("start flush")
	if err := sess.Flush(ctx); err != nil {
		return err
	}
	p.log.Debug("start commit")
	if err := sess.Commit(ctx); err != nil {
		return err
	}
	p.log.Debug("finished commit")
	return nil
}

func tableColumns(class *schema.Class) []string {
	cols := []string{"id"}
	if class.Parent == nil {
		cols = append(cols, store.TypeColumn)
	}
	for _, prop := range class.Props {
		if prop.HasColumn() {
			cols = append(cols, prop.Column())
		}
	}
	return cols
}

func tableRow(class *schema.Class, obj *Object) []any {
	row := []any{obj.ID}
	if class.Parent == nil {
		row = append(row, obj.Class.Name)
	}
	for _, prop := range class.Props {
		if !prop.HasColumn() {
			continue
		}
		if v, ok := obj.Values[prop.Column()]; ok {
			row = append(row, v)
		} else {
			row = append(row, nil)
		}
	}
	return row
}

package dataset

import (
	"context"
	"database/sql"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/bertramr/cimdb/pkg/schema"
	"github.com/bertramr/cimdb/pkg/store"
)

const (
	rdfNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	cimNamespace = "http://iec.ch/TC57/2013/CIM-schema-cim%s#"
)

// Export serializes the committed instances back to one RDF/XML document.
// Each instance appears once under its concrete class, attributes joined
// back together from the ancestor tables.
func (d *Dataset) Export(ctx context.Context, w io.Writer) error {
	cimNS := fmt.Sprintf(cimNamespace, d.Schema.Version)
	if _, err := fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<rdf:RDF xmlns:rdf=%q xmlns:cim=%q>\n",
		rdfNamespace, cimNS); err != nil {
		return err
	}
	for _, class := range d.Schema.Hierarchy() {
		if err := d.exportClass(ctx, w, class); err != nil {
			return fmt.Errorf("failed to export %s: %w", class.Name, err)
		}
	}
	if _, err := io.WriteString(w, "</rdf:RDF>\n"); err != nil {
		return err
	}
	return nil
}

// exportClass writes the instances whose concrete type is exactly class.
func (d *Dataset) exportClass(ctx context.Context, w io.Writer, class *schema.Class) error {
	chain := class.Ancestry()
	var props []*schema.Property
	for _, ancestor := range chain {
		for _, prop := range ancestor.Props {
			if prop.HasColumn() {
				props = append(props, prop)
			}
		}
	}

	query := exportQuery(class, chain, props, d.DB.Dialect().Placeholder(1))
	rows, err := d.DB.SQL().QueryContext(ctx, query, class.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		id, values, err := scanExportRow(rows, props)
		if err != nil {
			return err
		}
		if err := writeEntry(w, class, props, id, values); err != nil {
			return err
		}
	}
	return rows.Err()
}

func exportQuery(class *schema.Class, chain []*schema.Class, props []*schema.Property, placeholder string) string {
	root := chain[0]
	cols := []string{"t0.id"}
	tableAlias := map[string]string{}
	for i, ancestor := range chain {
		tableAlias[ancestor.TableName()] = fmt.Sprintf("t%d", i)
	}
	for _, prop := range props {
		cols = append(cols, tableAlias[prop.Class.TableName()]+"."+prop.Column())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s t0", strings.Join(cols, ", "), root.TableName())
	for i := 1; i < len(chain); i++ {
		fmt.Fprintf(&b, " JOIN %s t%d ON t%d.id = t0.id", chain[i].TableName(), i, i)
	}
	fmt.Fprintf(&b, " WHERE t0.%s = %s", store.TypeColumn, placeholder)
	return b.String()
}

func scanExportRow(rows *sql.Rows, props []*schema.Property) (string, []sql.NullString, error) {
	values := make([]sql.NullString, len(props))
	targets := make([]any, 0, len(props)+1)
	var id string
	targets = append(targets, &id)
	for i := range values {
		targets = append(targets, &values[i])
	}
	if err := rows.Scan(targets...); err != nil {
		return "", nil, fmt.Errorf("failed to scan export row: %w", err)
	}
	return id, values, nil
}

func writeEntry(w io.Writer, class *schema.Class, props []*schema.Property, id string, values []sql.NullString) error {
	if _, err := fmt.Fprintf(w, "  <cim:%s rdf:ID=%q>\n", class.Name, id); err != nil {
		return err
	}
	for i, prop := range props {
		if !values[i].Valid {
			continue
		}
		val := values[i].String
		switch prop.Kind {
		case schema.KindObject:
			if _, err := fmt.Fprintf(w, "    <cim:%s rdf:resource=\"#%s\"/>\n", prop.QName(), val); err != nil {
				return err
			}
		case schema.KindEnumeration:
			if _, err := fmt.Fprintf(w, "    <cim:%s rdf:resource=\"#%s\"/>\n", prop.QName(), val); err != nil {
				return err
			}
		default:
			var escaped strings.Builder
			if err := xml.EscapeText(&escaped, []byte(val)); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "    <cim:%s>%s</cim:%s>\n", prop.QName(), escaped.String(), prop.QName()); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "  </cim:%s>\n", class.Name)
	return err
}

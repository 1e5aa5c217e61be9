package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags the range of a property. The verifier and the ingestion pipeline
// branch on this tag rather than on runtime type inspection.
type Kind int

const (
	KindPrimitive Kind = iota
	KindObject
	KindEnumeration
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindObject:
		return "object"
	case KindEnumeration:
		return "enumeration"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Schema is the resolved type hierarchy of one CIM version: classes in a
// single-parent inheritance forest, enums with their closed value sets, and
// the properties owned by each class. It is an explicit value passed to every
// component that needs it; there is no ambient registry.
type Schema struct {
	Version string

	classes map[string]*Class
	enums   map[string]*Enum
	props   map[string]*Property // keyed by qualified name, e.g. "Terminal.ConductingEquipment"
	roots   []*Class
}

// Class is one node of the inheritance forest. Parent is nil for roots.
type Class struct {
	Name     string
	Parent   *Class
	Children []*Class
	Props    []*Property
}

// TableName returns the backing table name for the class.
func (c *Class) TableName() string {
	return strings.ToLower(c.Name)
}

// Ancestry returns the inheritance chain root-first, ending with c itself.
func (c *Class) Ancestry() []*Class {
	var chain []*Class
	for cur := c; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Root returns the root of the class's inheritance chain.
func (c *Class) Root() *Class {
	cur := c
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// IsDescendantOf reports whether c is other or inherits from other.
func (c *Class) IsDescendantOf(other *Class) bool {
	for cur := c; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Property belongs to exactly one class. Its range is tagged by Kind:
// a primitive type name, an object reference to another class, or an enum.
// Many marks >1 multiplicity; such properties have no single-column storage.
type Property struct {
	Class    *Class
	Label    string
	Optional bool
	Many     bool

	// Used reports whether any ingested instance sets the property. The
	// ingestion pipeline marks it; the verifier recomputes it from storage
	// so that a verifier-only run needs no in-memory ingest state.
	Used bool

	Kind      Kind
	Primitive string // XSD type name when Kind == KindPrimitive
	Range     *Class // when Kind == KindObject
	Enum      *Enum  // when Kind == KindEnumeration
}

// QName returns the property's qualified RDF name, e.g. "Terminal.ConductingEquipment".
func (p *Property) QName() string {
	return p.Class.Name + "." + p.Label
}

// FullLabel is the table-qualified label used as the storage column stem.
func (p *Property) FullLabel() string {
	return strings.ToLower(p.Class.Name + "_" + p.Label)
}

// HasColumn reports whether the property materializes as a single column on
// its class's table. Many-associations do not; the verifier must treat them
// as unsupported rather than attempting a foreign-key check.
func (p *Property) HasColumn() bool {
	return !p.Many
}

// Column returns the storage column name, or "" when HasColumn is false.
// Object references store the target id, enum references the value name.
func (p *Property) Column() string {
	if !p.HasColumn() {
		return ""
	}
	switch p.Kind {
	case KindObject:
		return p.FullLabel() + "_id"
	case KindEnumeration:
		return p.FullLabel() + "_name"
	default:
		return p.FullLabel()
	}
}

// Enum is a closed set of named values.
type Enum struct {
	Name   string
	Values []EnumValue
}

type EnumValue struct {
	Name string
}

// HasValue reports whether name is a member of the enum.
func (e *Enum) HasValue(name string) bool {
	for _, v := range e.Values {
		if v.Name == name {
			return true
		}
	}
	return false
}

// Class looks up a class by name.
func (s *Schema) Class(name string) (*Class, bool) {
	c, ok := s.classes[name]
	return c, ok
}

// Enum looks up an enum by name.
func (s *Schema) Enum(name string) (*Enum, bool) {
	e, ok := s.enums[name]
	return e, ok
}

// Property looks up a property by its qualified name. Inherited properties
// resolve against the owning ancestor, so "Terminal.ConductingEquipment"
// resolves regardless of the concrete entry type that sets it.
func (s *Schema) Property(qname string) (*Property, bool) {
	p, ok := s.props[qname]
	return p, ok
}

// Enums returns all enums in name order.
func (s *Schema) Enums() []*Enum {
	out := make([]*Enum, 0, len(s.enums))
	for _, e := range s.enums {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Roots returns the inheritance roots in name order.
func (s *Schema) Roots() []*Class {
	return s.roots
}

// Hierarchy returns every class exactly once in depth-first order, each
// parent before any of its descendants. Table creation relies on that
// ordering; verification is order-independent.
func (s *Schema) Hierarchy() []*Class {
	var out []*Class
	var walk func(c *Class)
	walk = func(c *Class) {
		out = append(out, c)
		for _, child := range c.Children {
			walk(child)
		}
	}
	for _, root := range s.roots {
		walk(root)
	}
	return out
}

// NumClasses returns the number of classes in the hierarchy.
func (s *Schema) NumClasses() int {
	return len(s.classes)
}

func (s *Schema) finalize() {
	for _, c := range s.classes {
		sort.Slice(c.Children, func(i, j int) bool { return c.Children[i].Name < c.Children[j].Name })
		sort.Slice(c.Props, func(i, j int) bool { return c.Props[i].Label < c.Props[j].Label })
	}
	s.roots = s.roots[:0]
	for _, c := range s.classes {
		if c.Parent == nil {
			s.roots = append(s.roots, c)
		}
	}
	sort.Slice(s.roots, func(i, j int) bool { return s.roots[i].Name < s.roots[j].Name })
}

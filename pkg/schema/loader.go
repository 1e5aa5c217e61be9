package schema

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// The RDFS profile documents describe classes, properties and enums as
// rdf:Description blocks. Profiles for the same version are split across
// multiple documents (equipment, topology, ...); descriptions for the same
// subject are merged before the hierarchy is built.

type rdfResource struct {
	Resource string `xml:"resource,attr"`
}

type rdfDescription struct {
	About        string        `xml:"about,attr"`
	ID           string        `xml:"ID,attr"`
	Types        []rdfResource `xml:"type"`
	SubClassOf   rdfResource   `xml:"subClassOf"`
	Domain       rdfResource   `xml:"domain"`
	Range        rdfResource   `xml:"range"`
	DataType     rdfResource   `xml:"dataType"`
	Multiplicity rdfResource   `xml:"multiplicity"`
	Stereotypes  []rdfResource `xml:"stereotype"`
	Label        string        `xml:"label"`
}

type rdfProfile struct {
	Descriptions []rdfDescription `xml:"Description"`
}

type description struct {
	name         string
	types        []string
	parent       string
	domain       string
	rang         string
	dataType     string
	multiplicity string
	stereotypes  []string
}

// Load reads the RDFS profile at location, which may be a single document or
// a directory of profile documents, and builds the type hierarchy. The
// version tag is carried on the returned schema; it does not affect parsing.
func Load(location string, version string) (*Schema, error) {
	files, err := profileFiles(location)
	if err != nil {
		return nil, err
	}
	descs := map[string]*description{}
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open schema document %s: %w", file, err)
		}
		err = readProfile(f, descs)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read schema document %s: %w", file, err)
		}
	}
	return build(descs, version)
}

func profileFiles(location string) ([]string, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("failed to stat schema location %s: %w", location, err)
	}
	if !info.IsDir() {
		return []string{location}, nil
	}
	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory %s: %w", location, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".rdf", ".rdfs", ".xml":
			files = append(files, filepath.Join(location, entry.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no schema documents found in %s", location)
	}
	return files, nil
}

func readProfile(r io.Reader, descs map[string]*description) error {
	var profile rdfProfile
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&profile); err != nil {
		return fmt.Errorf("failed to decode profile: %w", err)
	}
	for _, raw := range profile.Descriptions {
		subject := raw.About
		if subject == "" {
			subject = raw.ID
		}
		name := fragment(subject)
		if name == "" {
			continue
		}
		d, ok := descs[name]
		if !ok {
			d = &description{name: name}
			descs[name] = d
		}
		for _, t := range raw.Types {
			d.types = appendUnique(d.types, fragment(t.Resource))
		}
		for _, s := range raw.Stereotypes {
			d.stereotypes = appendUnique(d.stereotypes, fragment(s.Resource))
		}
		mergeField(&d.parent, fragment(raw.SubClassOf.Resource))
		mergeField(&d.domain, fragment(raw.Domain.Resource))
		mergeField(&d.rang, fragment(raw.Range.Resource))
		mergeField(&d.dataType, fragment(raw.DataType.Resource))
		mergeField(&d.multiplicity, fragment(raw.Multiplicity.Resource))
	}
	return nil
}

func build(descs map[string]*description, version string) (*Schema, error) {
	s := &Schema{
		Version: version,
		classes: map[string]*Class{},
		enums:   map[string]*Enum{},
		props:   map[string]*Property{},
	}

	// First pass: classes and enums. A class stereotyped as an enumeration
	// becomes an enum; primitive and datatype stereotypes stay out of the
	// class hierarchy and resolve as primitive ranges.
	names := sortedKeys(descs)
	for _, name := range names {
		d := descs[name]
		if !hasType(d, "Class") {
			continue
		}
		switch {
		case hasStereotype(d, "enumeration"):
			s.enums[name] = &Enum{Name: name}
		case hasStereotype(d, "Primitive"), hasStereotype(d, "CIMDatatype"):
			// resolved by primitive range fallback below
		default:
			s.classes[name] = &Class{Name: name}
		}
	}

	// Link parents. A parent that is itself absent from the hierarchy (e.g.
	// a datatype) leaves the class a root.
	for _, name := range names {
		d := descs[name]
		c, ok := s.classes[name]
		if !ok || d.parent == "" {
			continue
		}
		parent, ok := s.classes[d.parent]
		if !ok {
			continue
		}
		c.Parent = parent
		parent.Children = append(parent.Children, c)
	}

	// Enum values: descriptions typed by an enum.
	for _, name := range names {
		d := descs[name]
		for _, t := range d.types {
			if e, ok := s.enums[t]; ok {
				e.Values = append(e.Values, EnumValue{Name: name})
			}
		}
	}
	for _, e := range s.enums {
		sort.Slice(e.Values, func(i, j int) bool { return e.Values[i].Name < e.Values[j].Name })
	}

	// Properties. The qualified name carries the owning class:
	// "Terminal.ConductingEquipment" belongs to Terminal.
	for _, name := range names {
		d := descs[name]
		if !hasType(d, "Property") {
			continue
		}
		owner, label, ok := strings.Cut(name, ".")
		if !ok {
			label = name
			owner = d.domain
		}
		if d.domain != "" {
			owner = d.domain
		}
		class, ok := s.classes[owner]
		if !ok {
			continue
		}
		p := &Property{
			Class:    class,
			Label:    label,
			Optional: optionalFromMultiplicity(d.multiplicity),
			Many:     manyFromMultiplicity(d.multiplicity),
		}
		switch {
		case d.dataType != "":
			p.Kind = KindPrimitive
			p.Primitive = d.dataType
		case d.rang != "":
			if e, ok := s.enums[d.rang]; ok {
				p.Kind = KindEnumeration
				p.Enum = e
			} else if rc, ok := s.classes[d.rang]; ok {
				p.Kind = KindObject
				p.Range = rc
			} else {
				p.Kind = KindPrimitive
				p.Primitive = d.rang
			}
		default:
			p.Kind = KindPrimitive
			p.Primitive = "String"
		}
		class.Props = append(class.Props, p)
		s.props[p.QName()] = p
	}

	s.finalize()
	if len(s.classes) == 0 {
		return nil, fmt.Errorf("schema contains no classes")
	}
	return s, nil
}

// optionalFromMultiplicity maps the cims multiplicity tag to the optionality
// flag: a lower bound of zero makes the property optional.
func optionalFromMultiplicity(m string) bool {
	switch m {
	case "M:1", "M:1..1", "M:1..n", "M:2..n":
		return false
	default:
		return true
	}
}

func manyFromMultiplicity(m string) bool {
	return strings.HasSuffix(m, "..n")
}

func fragment(ref string) string {
	if i := strings.LastIndexByte(ref, '#'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func hasType(d *description, t string) bool {
	for _, have := range d.types {
		if have == t {
			return true
		}
	}
	return false
}

func hasStereotype(d *description, st string) bool {
	for _, have := range d.stereotypes {
		if strings.EqualFold(have, st) {
			return true
		}
	}
	return false
}

func mergeField(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}

func appendUnique(list []string, val string) []string {
	if val == "" {
		return list
	}
	for _, have := range list {
		if have == val {
			return list
		}
	}
	return append(list, val)
}

func sortedKeys(m map[string]*description) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

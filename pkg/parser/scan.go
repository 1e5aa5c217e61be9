package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const rdfNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

// Value is one raw attribute of an entry: either character data or an
// rdf:resource reference to another entry or enum value.
type Value struct {
	Text     string
	Resource bool
}

// RawEntry is one object as it appears in a document: its dataset-scoped id,
// declared type, and attribute/reference pairs keyed by qualified property
// name ("Terminal.ConductingEquipment"). Attributes for the same id may be
// split across documents; Merge unions them.
type RawEntry struct {
	ID    string
	Type  string
	Attrs map[string]Value
}

// Scan streams the top-level description elements of one RDF/XML document,
// calling fn for each. Elements without an rdf:ID or rdf:about, and the
// exchange header (FullModel), are not entries and are skipped.
func Scan(r io.Reader, fn func(*RawEntry) error) error {
	dec := xml.NewDecoder(r)
	depth := 0
	var entry *RawEntry
	var attrName string
	var attrText strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 2:
				if t.Name.Local == "FullModel" {
					break
				}
				id := entryID(t)
				if id == "" {
					break
				}
				entry = &RawEntry{
					ID:    id,
					Type:  t.Name.Local,
					Attrs: map[string]Value{},
				}
			case 3:
				if entry == nil {
					break
				}
				attrName = t.Name.Local
				attrText.Reset()
				if res, ok := rdfAttr(t, "resource"); ok {
					entry.Attrs[attrName] = Value{Text: reference(res), Resource: true}
					attrName = ""
				}
			}
		case xml.CharData:
			if depth == 3 && entry != nil && attrName != "" {
				attrText.Write(t)
			}
		case xml.EndElement:
			switch depth {
			case 2:
				if entry != nil {
					if err := fn(entry); err != nil {
						return err
					}
					entry = nil
				}
			case 3:
				if entry != nil && attrName != "" {
					entry.Attrs[attrName] = Value{Text: strings.TrimSpace(attrText.String())}
					attrName = ""
				}
			}
			depth--
		}
	}
}

// ScanFile scans one document from disk.
func ScanFile(path string, fn func(*RawEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if err := Scan(f, fn); err != nil {
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}
	return nil
}

func entryID(el xml.StartElement) string {
	if id, ok := rdfAttr(el, "ID"); ok {
		return id
	}
	if about, ok := rdfAttr(el, "about"); ok {
		return reference(about)
	}
	return ""
}

func rdfAttr(el xml.StartElement, local string) (string, bool) {
	for _, attr := range el.Attr {
		if attr.Name.Local == local && (attr.Name.Space == rdfNamespace || attr.Name.Space == "" || attr.Name.Space == "rdf") {
			return attr.Value, true
		}
	}
	return "", false
}

// reference normalizes an rdf reference to the bare entry or value id: the
// document-local "#_X" and a full URI "http://…/CIM-schema-cim16#PhaseCode.A"
// both reduce to the fragment after the last '#'.
func reference(ref string) string {
	if i := strings.LastIndexByte(ref, '#'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

package parser_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bertramr/cimdb/pkg/parser"
)

func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:cim="http://iec.ch/TC57/2013/CIM-schema-cim16#">
` + body + `</rdf:RDF>
`
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestMergeSources(t *testing.T) {
	t.Parallel()

	t.Run("attributes union across documents", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		topology := writeDoc(t, dir, "topology.xml", `
  <cim:ACLineSegment rdf:ID="_line1">
    <cim:ACLineSegment.r>0.5</cim:ACLineSegment.r>
  </cim:ACLineSegment>
`)
		naming := writeDoc(t, dir, "naming.xml", `
  <cim:ACLineSegment rdf:about="#_line1">
    <cim:IdentifiedObject.name>line one</cim:IdentifiedObject.name>
  </cim:ACLineSegment>
  <cim:Terminal rdf:ID="_term1">
    <cim:Terminal.ConductingEquipment rdf:resource="#_line1"/>
  </cim:Terminal>
`)

		entries, err := parser.MergeSources([]string{topology, naming})
		require.NoError(t, err)
		require.Len(t, entries, 2)

		// Sorted by id.
		require.Equal(t, "_line1", entries[0].ID)
		require.Equal(t, "_term1", entries[1].ID)

		line := entries[0]
		require.Equal(t, "ACLineSegment", line.Type)
		require.Equal(t, "0.5", line.Attrs["ACLineSegment.r"].Text)
		require.Equal(t, "line one", line.Attrs["IdentifiedObject.name"].Text)
	})

	t.Run("first occurrence of an attribute wins", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		first := writeDoc(t, dir, "first.xml", `
  <cim:ACLineSegment rdf:ID="_line1">
    <cim:ACLineSegment.r>0.5</cim:ACLineSegment.r>
  </cim:ACLineSegment>
`)
		second := writeDoc(t, dir, "second.xml", `
  <cim:ACLineSegment rdf:about="#_line1">
    <cim:ACLineSegment.r>9.9</cim:ACLineSegment.r>
  </cim:ACLineSegment>
`)

		entries, err := parser.MergeSources([]string{first, second})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "0.5", entries[0].Attrs["ACLineSegment.r"].Text)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := parser.MergeSources([]string{"/nonexistent.xml"})
		require.Error(t, err)
	})
}

package parser_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bertramr/cimdb/pkg/parser"
)

const scanDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:cim="http://iec.ch/TC57/2013/CIM-schema-cim16#"
         xmlns:md="http://iec.ch/TC57/61970-552/ModelDescription/1#">
  <md:FullModel rdf:about="urn:uuid:model-1">
    <md:Model.profile>http://example.org/profile</md:Model.profile>
  </md:FullModel>
  <cim:ACLineSegment rdf:ID="_line1">
    <cim:IdentifiedObject.name>  line one  </cim:IdentifiedObject.name>
    <cim:ACLineSegment.r>0.5</cim:ACLineSegment.r>
  </cim:ACLineSegment>
  <cim:Terminal rdf:about="#_term1">
    <cim:Terminal.ConductingEquipment rdf:resource="#_line1"/>
    <cim:Terminal.phases rdf:resource="http://iec.ch/TC57/2013/CIM-schema-cim16#PhaseCode.A"/>
  </cim:Terminal>
</rdf:RDF>
`

func TestScan(t *testing.T) {
	t.Parallel()

	entries := map[string]*parser.RawEntry{}
	err := parser.Scan(strings.NewReader(scanDoc), func(e *parser.RawEntry) error {
		entries[e.ID] = e
		return nil
	})
	require.NoError(t, err)

	t.Run("exchange header is not an entry", func(t *testing.T) {
		t.Parallel()
		require.Len(t, entries, 2)
		require.NotContains(t, entries, "urn:uuid:model-1")
	})

	t.Run("rdf:ID entry with trimmed character data", func(t *testing.T) {
		t.Parallel()
		line, ok := entries["_line1"]
		require.True(t, ok)
		require.Equal(t, "ACLineSegment", line.Type)
		require.Equal(t, parser.Value{Text: "line one"}, line.Attrs["IdentifiedObject.name"])
		require.Equal(t, parser.Value{Text: "0.5"}, line.Attrs["ACLineSegment.r"])
	})

	t.Run("rdf:about entry with resource references", func(t *testing.T) {
		t.Parallel()
		term, ok := entries["_term1"]
		require.True(t, ok)
		require.Equal(t, "Terminal", term.Type)
		require.Equal(t, parser.Value{Text: "_line1", Resource: true}, term.Attrs["Terminal.ConductingEquipment"])
		require.Equal(t, parser.Value{Text: "PhaseCode.A", Resource: true}, term.Attrs["Terminal.phases"])
	})
}

func TestScan_ResourceReferencesReduceToFragment(t *testing.T) {
	t.Parallel()

	// Documents spell the same reference as a document-local "#id" or as a
	// full namespace URI; both must store the bare fragment.
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:cim="http://iec.ch/TC57/2013/CIM-schema-cim16#">
  <cim:Terminal rdf:about="http://example.org/grid#_term1">
    <cim:Terminal.ConductingEquipment rdf:resource="#_line1"/>
    <cim:Terminal.phases rdf:resource="http://iec.ch/TC57/2013/CIM-schema-cim16#PhaseCode.A"/>
  </cim:Terminal>
</rdf:RDF>
`
	var entries []*parser.RawEntry
	err := parser.Scan(strings.NewReader(doc), func(e *parser.RawEntry) error {
		entries = append(entries, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	term := entries[0]
	require.Equal(t, "_term1", term.ID)
	require.Equal(t, "_line1", term.Attrs["Terminal.ConductingEquipment"].Text)
	require.Equal(t, "PhaseCode.A", term.Attrs["Terminal.phases"].Text)
}

func TestScan_CallbackError(t *testing.T) {
	t.Parallel()

	errStop := errors.New("stop")
	calls := 0
	err := parser.Scan(strings.NewReader(scanDoc), func(e *parser.RawEntry) error {
		calls++
		return errStop
	})
	require.ErrorIs(t, err, errStop)
	require.Equal(t, 1, calls, "scan must stop on the first callback error")
}

func TestScan_MalformedDocument(t *testing.T) {
	t.Parallel()

	err := parser.Scan(strings.NewReader("<rdf:RDF><unclosed"), func(*parser.RawEntry) error { return nil })
	require.Error(t, err)
}

package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bertramr/cimdb/pkg/schema"
	"github.com/bertramr/cimdb/pkg/store"
)

// ProfileRDF is a miniature CIM RDFS profile: an IdentifiedObject root, a
// conducting-equipment branch, a Terminal with object and enum references,
// a many-association, and an enum with a closed value set.
const ProfileRDF = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#"
         xmlns:cims="http://iec.ch/TC57/1999/rdf-schema-extensions-19990926#">
  <rdf:Description rdf:about="#IdentifiedObject">
    <rdf:type rdf:resource="http://www.w3.org/2000/01/rdf-schema#Class"/>
    <rdfs:label>IdentifiedObject</rdfs:label>
  </rdf:Description>
  <rdf:Description rdf:about="#IdentifiedObject.name">
    <rdf:type rdf:resource="http://www.w3.org/1999/02/22-rdf-syntax-ns#Property"/>
    <rdfs:domain rdf:resource="#IdentifiedObject"/>
    <cims:dataType rdf:resource="#String"/>
    <cims:multiplicity rdf:resource="http://iec.ch/TC57/1999/rdf-schema-extensions-19990926#M:0..1"/>
  </rdf:Description>
  <rdf:Description rdf:about="#ConductingEquipment">
    <rdf:type rdf:resource="http://www.w3.org/2000/01/rdf-schema#Class"/>
    <rdfs:subClassOf rdf:resource="#IdentifiedObject"/>
  </rdf:Description>
  <rdf:Description rdf:about="#ConductingEquipment.Terminals">
    <rdf:type rdf:resource="http://www.w3.org/1999/02/22-rdf-syntax-ns#Property"/>
    <rdfs:domain rdf:resource="#ConductingEquipment"/>
    <rdfs:range rdf:resource="#Terminal"/>
    <cims:multiplicity rdf:resource="http://iec.ch/TC57/1999/rdf-schema-extensions-19990926#M:1..n"/>
  </rdf:Description>
  <rdf:Description rdf:about="#ACLineSegment">
    <rdf:type rdf:resource="http://www.w3.org/2000/01/rdf-schema#Class"/>
    <rdfs:subClassOf rdf:resource="#ConductingEquipment"/>
  </rdf:Description>
  <rdf:Description rdf:about="#ACLineSegment.r">
    <rdf:type rdf:resource="http://www.w3.org/1999/02/22-rdf-syntax-ns#Property"/>
    <rdfs:domain rdf:resource="#ACLineSegment"/>
    <cims:dataType rdf:resource="#Float"/>
    <cims:multiplicity rdf:resource="http://iec.ch/TC57/1999/rdf-schema-extensions-19990926#M:1"/>
  </rdf:Description>
  <rdf:Description rdf:about="#Terminal">
    <rdf:type rdf:resource="http://www.w3.org/2000/01/rdf-schema#Class"/>
    <rdfs:subClassOf rdf:resource="#IdentifiedObject"/>
  </rdf:Description>
  <rdf:Description rdf:about="#Terminal.ConductingEquipment">
    <rdf:type rdf:resource="http://www.w3.org/1999/02/22-rdf-syntax-ns#Property"/>
    <rdfs:domain rdf:resource="#Terminal"/>
    <rdfs:range rdf:resource="#ConductingEquipment"/>
    <cims:multiplicity rdf:resource="http://iec.ch/TC57/1999/rdf-schema-extensions-19990926#M:1"/>
  </rdf:Description>
  <rdf:Description rdf:about="#Terminal.phases">
    <rdf:type rdf:resource="http://www.w3.org/1999/02/22-rdf-syntax-ns#Property"/>
    <rdfs:domain rdf:resource="#Terminal"/>
    <rdfs:range rdf:resource="#PhaseCode"/>
    <cims:multiplicity rdf:resource="http://iec.ch/TC57/1999/rdf-schema-extensions-19990926#M:1"/>
  </rdf:Description>
  <rdf:Description rdf:about="#Terminal.sequenceNumber">
    <rdf:type rdf:resource="http://www.w3.org/1999/02/22-rdf-syntax-ns#Property"/>
    <rdfs:domain rdf:resource="#Terminal"/>
    <cims:dataType rdf:resource="#Integer"/>
    <cims:multiplicity rdf:resource="http://iec.ch/TC57/1999/rdf-schema-extensions-19990926#M:0..1"/>
  </rdf:Description>
  <rdf:Description rdf:about="#PhaseCode">
    <rdf:type rdf:resource="http://www.w3.org/2000/01/rdf-schema#Class"/>
    <cims:stereotype rdf:resource="http://iec.ch/TC57/NonStandard/UML#enumeration"/>
  </rdf:Description>
  <rdf:Description rdf:about="#PhaseCode.A">
    <rdf:type rdf:resource="#PhaseCode"/>
  </rdf:Description>
  <rdf:Description rdf:about="#PhaseCode.ABC">
    <rdf:type rdf:resource="#PhaseCode"/>
  </rdf:Description>
  <rdf:Description rdf:about="#CoordinateSystem">
    <rdf:type rdf:resource="http://www.w3.org/2000/01/rdf-schema#Class"/>
    <rdfs:subClassOf rdf:resource="#IdentifiedObject"/>
  </rdf:Description>
  <rdf:Description rdf:about="#Location">
    <rdf:type rdf:resource="http://www.w3.org/2000/01/rdf-schema#Class"/>
    <rdfs:subClassOf rdf:resource="#IdentifiedObject"/>
  </rdf:Description>
  <rdf:Description rdf:about="#Location.CoordinateSystem">
    <rdf:type rdf:resource="http://www.w3.org/1999/02/22-rdf-syntax-ns#Property"/>
    <rdfs:domain rdf:resource="#Location"/>
    <rdfs:range rdf:resource="#CoordinateSystem"/>
    <cims:multiplicity rdf:resource="http://iec.ch/TC57/1999/rdf-schema-extensions-19990926#M:1"/>
  </rdf:Description>
</rdf:RDF>
`

// DocHeader opens a CIM data document declaring schema version 16.
const DocHeader = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:cim="http://iec.ch/TC57/2013/CIM-schema-cim16#">
`

const DocFooter = `</rdf:RDF>
`

// WriteFile writes content under dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteProfile writes the fixture profile and returns its path.
func WriteProfile(t *testing.T) string {
	t.Helper()
	return WriteFile(t, t.TempDir(), "profile.rdf", ProfileRDF)
}

// LoadSchema loads the fixture profile as version 16.
func LoadSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Load(WriteProfile(t), "16")
	require.NoError(t, err)
	return sch
}

// OpenSQLite opens a fresh file-backed SQLite store in a temp dir.
func OpenSQLite(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), store.Config{
		Logger: NewLogger(),
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "cim.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

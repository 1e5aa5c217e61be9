package ingest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bertramr/cimdb/pkg/ingest"
	"github.com/bertramr/cimdb/pkg/store"
	"github.com/bertramr/cimdb/pkg/testutil"
)

func newPipeline(t *testing.T, db *store.DB) *ingest.Pipeline {
	t.Helper()
	p, err := ingest.NewPipeline(ingest.PipelineConfig{Logger: testutil.NewLogger(), DB: db})
	require.NoError(t, err)
	return p
}

func TestPipeline_Ingest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := testutil.OpenSQLite(t)
	sch := testutil.LoadSchema(t)
	require.NoError(t, db.CreateTables(ctx, sch))

	dir := t.TempDir()
	// The terminal document comes first and references equipment that only
	// the second document defines.
	terminals := testutil.WriteFile(t, dir, "terminals.xml", testutil.DocHeader+`
  <cim:Terminal rdf:ID="_t1">
    <cim:Terminal.ConductingEquipment rdf:resource="#_line1"/>
    <cim:Terminal.phases rdf:resource="http://iec.ch/TC57/2013/CIM-schema-cim16#PhaseCode.A"/>
    <cim:Terminal.sequenceNumber>1</cim:Terminal.sequenceNumber>
  </cim:Terminal>
`+testutil.DocFooter)
	lines := testutil.WriteFile(t, dir, "lines.xml", testutil.DocHeader+`
  <cim:ACLineSegment rdf:ID="_line1">
    <cim:ACLineSegment.r>0.5</cim:ACLineSegment.r>
  </cim:ACLineSegment>
  <cim:ACLineSegment rdf:about="#_line1">
    <cim:IdentifiedObject.name>line one</cim:IdentifiedObject.name>
  </cim:ACLineSegment>
`+testutil.DocFooter)

	count, err := newPipeline(t, db).Ingest(ctx, []string{terminals, lines}, sch)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	t.Run("one row per ancestor table", func(t *testing.T) {
		for table, want := range map[string]int64{
			"identifiedobject":    2,
			"conductingequipment": 1,
			"aclinesegment":       1,
			"terminal":            1,
		} {
			have, err := db.Count(ctx, table)
			require.NoError(t, err)
			require.Equal(t, want, have, "table %s", table)
		}
	})

	t.Run("root rows carry the concrete type", func(t *testing.T) {
		have, err := db.CountWhereType(ctx, "identifiedobject", "ACLineSegment")
		require.NoError(t, err)
		require.EqualValues(t, 1, have)
		have, err = db.CountWhereType(ctx, "identifiedobject", "Terminal")
		require.NoError(t, err)
		require.EqualValues(t, 1, have)
	})

	t.Run("attributes coerced to their declared ranges", func(t *testing.T) {
		var r float64
		err := db.SQL().QueryRowContext(ctx,
			"SELECT aclinesegment_r FROM aclinesegment WHERE id = ?", "_line1").Scan(&r)
		require.NoError(t, err)
		require.InDelta(t, 0.5, r, 1e-9)

		var seq int64
		err = db.SQL().QueryRowContext(ctx,
			"SELECT terminal_sequencenumber FROM terminal WHERE id = ?", "_t1").Scan(&seq)
		require.NoError(t, err)
		require.EqualValues(t, 1, seq)
	})

	t.Run("references resolve by id", func(t *testing.T) {
		var equipment, phases string
		err := db.SQL().QueryRowContext(ctx,
			"SELECT terminal_conductingequipment_id, terminal_phases_name FROM terminal WHERE id = ?",
			"_t1").Scan(&equipment, &phases)
		require.NoError(t, err)
		require.Equal(t, "_line1", equipment)
		require.Equal(t, "PhaseCode.A", phases)
	})

	t.Run("merged attributes land on the owning ancestor", func(t *testing.T) {
		var name string
		err := db.SQL().QueryRowContext(ctx,
			"SELECT identifiedobject_name FROM identifiedobject WHERE id = ?", "_line1").Scan(&name)
		require.NoError(t, err)
		require.Equal(t, "line one", name)
	})

	t.Run("usage marked on set properties", func(t *testing.T) {
		r, ok := sch.Property("ACLineSegment.r")
		require.True(t, ok)
		require.True(t, r.Used)
	})
}

func TestPipeline_Ingest_AllOrNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown type aborts before anything is written", func(t *testing.T) {
		t.Parallel()
		db := testutil.OpenSQLite(t)
		sch := testutil.LoadSchema(t)
		require.NoError(t, db.CreateTables(ctx, sch))

		doc := testutil.WriteFile(t, t.TempDir(), "bad.xml", testutil.DocHeader+`
  <cim:ACLineSegment rdf:ID="_line1">
    <cim:ACLineSegment.r>0.5</cim:ACLineSegment.r>
  </cim:ACLineSegment>
  <cim:FictionalDevice rdf:ID="_x1"/>
`+testutil.DocFooter)

		_, err := newPipeline(t, db).Ingest(ctx, []string{doc}, sch)
		require.Error(t, err)
		require.ErrorContains(t, err, "FictionalDevice")

		count, err := db.Count(ctx, "identifiedobject")
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("uncastable primitive aborts", func(t *testing.T) {
		t.Parallel()
		db := testutil.OpenSQLite(t)
		sch := testutil.LoadSchema(t)
		require.NoError(t, db.CreateTables(ctx, sch))

		doc := testutil.WriteFile(t, t.TempDir(), "bad.xml", testutil.DocHeader+`
  <cim:ACLineSegment rdf:ID="_line1">
    <cim:ACLineSegment.r>not-a-number</cim:ACLineSegment.r>
  </cim:ACLineSegment>
`+testutil.DocFooter)

		_, err := newPipeline(t, db).Ingest(ctx, []string{doc}, sch)
		require.Error(t, err)

		count, err := db.Count(ctx, "aclinesegment")
		require.NoError(t, err)
		require.Zero(t, count)
	})
}

func TestPipeline_Ingest_SkipsForeignAttributes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := testutil.OpenSQLite(t)
	sch := testutil.LoadSchema(t)
	require.NoError(t, db.CreateTables(ctx, sch))

	// An attribute outside the profile and one whose domain does not match
	// the entry type are both dropped without failing the ingest.
	doc := testutil.WriteFile(t, t.TempDir(), "odd.xml", testutil.DocHeader+`
  <cim:Terminal rdf:ID="_t1">
    <cim:Terminal.futureAttribute>42</cim:Terminal.futureAttribute>
    <cim:ACLineSegment.r>0.5</cim:ACLineSegment.r>
  </cim:Terminal>
`+testutil.DocFooter)

	count, err := newPipeline(t, db).Ingest(ctx, []string{doc}, sch)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	have, err := db.Count(ctx, "terminal")
	require.NoError(t, err)
	require.EqualValues(t, 1, have)
	have, err = db.Count(ctx, "aclinesegment")
	require.NoError(t, err)
	require.Zero(t, have)
}

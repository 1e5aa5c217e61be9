package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bertramr/cimdb/pkg/schema"
	"github.com/bertramr/cimdb/pkg/testutil"
)

func TestSchema_Hierarchy(t *testing.T) {
	t.Parallel()

	sch := testutil.LoadSchema(t)

	t.Run("visits every class once, parents before descendants", func(t *testing.T) {
		t.Parallel()
		seen := map[string]int{}
		for i, class := range sch.Hierarchy() {
			_, dup := seen[class.Name]
			require.False(t, dup, "class %s visited twice", class.Name)
			seen[class.Name] = i
			if class.Parent != nil {
				parentIdx, ok := seen[class.Parent.Name]
				require.True(t, ok, "parent of %s not visited first", class.Name)
				require.Less(t, parentIdx, i)
			}
		}
		require.Len(t, seen, sch.NumClasses())
	})

	t.Run("enums stay out of the class forest", func(t *testing.T) {
		t.Parallel()
		_, ok := sch.Class("PhaseCode")
		require.False(t, ok)
		_, ok = sch.Enum("PhaseCode")
		require.True(t, ok)
	})

	t.Run("roots", func(t *testing.T) {
		t.Parallel()
		roots := sch.Roots()
		require.Len(t, roots, 1)
		require.Equal(t, "IdentifiedObject", roots[0].Name)
	})
}

func TestClass_Ancestry(t *testing.T) {
	t.Parallel()

	sch := testutil.LoadSchema(t)
	segment, ok := sch.Class("ACLineSegment")
	require.True(t, ok)

	chain := segment.Ancestry()
	names := make([]string, 0, len(chain))
	for _, c := range chain {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"IdentifiedObject", "ConductingEquipment", "ACLineSegment"}, names)
	require.Equal(t, "IdentifiedObject", segment.Root().Name)

	equipment, ok := sch.Class("ConductingEquipment")
	require.True(t, ok)
	require.True(t, segment.IsDescendantOf(equipment))
	require.True(t, segment.IsDescendantOf(segment))

	terminal, ok := sch.Class("Terminal")
	require.True(t, ok)
	require.False(t, segment.IsDescendantOf(terminal))
}

func TestProperty_Columns(t *testing.T) {
	t.Parallel()

	sch := testutil.LoadSchema(t)

	t.Run("primitive", func(t *testing.T) {
		t.Parallel()
		p, ok := sch.Property("ACLineSegment.r")
		require.True(t, ok)
		require.Equal(t, schema.KindPrimitive, p.Kind)
		require.Equal(t, "Float", p.Primitive)
		require.True(t, p.HasColumn())
		require.Equal(t, "aclinesegment_r", p.Column())
	})

	t.Run("object reference stores the target id", func(t *testing.T) {
		t.Parallel()
		p, ok := sch.Property("Terminal.ConductingEquipment")
		require.True(t, ok)
		require.Equal(t, schema.KindObject, p.Kind)
		require.Equal(t, "ConductingEquipment", p.Range.Name)
		require.Equal(t, "terminal_conductingequipment_id", p.Column())
	})

	t.Run("enum reference stores the value name", func(t *testing.T) {
		t.Parallel()
		p, ok := sch.Property("Terminal.phases")
		require.True(t, ok)
		require.Equal(t, schema.KindEnumeration, p.Kind)
		require.Equal(t, "PhaseCode", p.Enum.Name)
		require.Equal(t, "terminal_phases_name", p.Column())
	})

	t.Run("many-association has no column", func(t *testing.T) {
		t.Parallel()
		p, ok := sch.Property("ConductingEquipment.Terminals")
		require.True(t, ok)
		require.True(t, p.Many)
		require.False(t, p.HasColumn())
		require.Equal(t, "", p.Column())
	})

	t.Run("inherited properties resolve by owner", func(t *testing.T) {
		t.Parallel()
		p, ok := sch.Property("IdentifiedObject.name")
		require.True(t, ok)
		require.Equal(t, "IdentifiedObject", p.Class.Name)
		require.Equal(t, "IdentifiedObject.name", p.QName())
	})
}

func TestEnum_HasValue(t *testing.T) {
	t.Parallel()

	sch := testutil.LoadSchema(t)
	phases, ok := sch.Enum("PhaseCode")
	require.True(t, ok)
	require.True(t, phases.HasValue("PhaseCode.A"))
	require.True(t, phases.HasValue("PhaseCode.ABC"))
	require.False(t, phases.HasValue("PhaseCode.B"))
}

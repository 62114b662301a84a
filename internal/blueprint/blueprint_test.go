package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

func elemTree(name string, fieldBits ...int64) *typetree.TypeTree {
	var size int64
	root := layout.ObjectLayout{Properties: layout.Properties{
		Name: name, TypeName: name, Kind: layout.ObjectField, TypeKind: layout.TypeRecord, Multiplicity: 1,
	}}
	for i, bits := range fieldBits {
		root.Subobjects = append(root.Subobjects, layout.ObjectLayout{Properties: layout.Properties{
			Name: string(rune('a' + i)), TypeName: "int", Kind: layout.ObjectField,
			TypeKind: layout.TypeBuiltin, SizeBits: bits, Multiplicity: 1, OffsetBits: size,
		}})
		size += bits
	}
	root.Properties.SizeBits = size
	return typetree.FromLayout(&root, "", "")
}

func subobjectNames(l *layout.ObjectLayout) []string {
	names := make([]string, len(l.Subobjects))
	for i, s := range l.Subobjects {
		names[i] = s.Properties.Name
		if s.Properties.Kind == layout.ObjectPadding {
			names[i] = "<padding>"
		}
	}
	return names
}

func swissParams(requestBytes int64) SwissParams {
	return SwissParams{
		SlotTypeName:  "Elem",
		SlotSizeBits:  128,
		AlignmentBits: 64,
		WordBits:      64,
		GroupWidth:    16,
		RequestBits:   requestBytes * 8,
	}
}

func TestSwissParams_Solve(t *testing.T) {
	g, err := swissParams(2048).Solve()
	require.NoError(t, err)
	assert.Equal(t, SwissGeometry{Capacity: 119, Clones: 15, PaddingBits: 8}, g)

	withHandle := swissParams(2048)
	withHandle.RequestBits += 64
	withHandle.Hashtablez = true
	withHandle.HashtablezBits = 64
	g, err = withHandle.Solve()
	require.NoError(t, err)
	assert.Equal(t, int64(119), g.Capacity)
	assert.Equal(t, int64(8), g.PaddingBits)
}

func TestSwissMap(t *testing.T) {
	t.Run("2048 byte backing array", func(t *testing.T) {
		l, err := SwissMap(swissParams(2048))
		require.NoError(t, err)

		assert.Equal(t, "absl::container_internal::raw_hash_set::BackingArray<Elem>", l.Properties.TypeName)
		assert.Equal(t, layout.ObjectBase, l.Properties.Kind)
		assert.Equal(t, []string{"growth_left", "ctrl", "sentinel", "clones", "<padding>", "slots"}, subobjectNames(l))

		ctrl := l.Subobjects[1]
		assert.Equal(t, "ctrl_t[119]", ctrl.Properties.TypeName)
		require.Len(t, ctrl.Subobjects, 1)
		assert.Equal(t, int64(119), ctrl.Subobjects[0].Properties.Multiplicity)
		assert.Equal(t, int64(15), l.Subobjects[3].Subobjects[0].Properties.Multiplicity)
		assert.Equal(t, int64(8), l.Subobjects[4].Properties.SizeBits)

		slots := l.Subobjects[5]
		assert.Equal(t, "Elem[119]", slots.Properties.TypeName)
		assert.Equal(t, "Elem", slots.Subobjects[0].Properties.TypeName)
		assert.Equal(t, layout.ObjectArrayElements, slots.Subobjects[0].Properties.Kind)
		assert.Empty(t, slots.Subobjects[0].Subobjects)

		tree := typetree.FromLayout(l, SwissTreeName("Elem"), SwissContainerName)
		require.NoError(t, tree.MergeTreeIntoThis(elemTree("Elem", 64, 64)))
		assert.Equal(t, int64(2048), tree.Root().FullSizeBytes())
		assert.Equal(t, int64(16384), tree.Root().FullSizeBits())
		assert.True(t, tree.Verify(true))
		assert.True(t, tree.FromContainer())
	})

	t.Run("no padding when aligned", func(t *testing.T) {
		p := swissParams(96)
		p.SlotSizeBits = 64
		l, err := SwissMap(p)
		require.NoError(t, err)
		assert.Equal(t, []string{"growth_left", "ctrl", "sentinel", "clones", "slots"}, subobjectNames(l))

		tree := typetree.FromLayout(l, "", SwissContainerName)
		require.NoError(t, tree.MergeTreeIntoThis(elemTree("Elem", 32, 32)))
		assert.Equal(t, int64(96), tree.Root().FullSizeBytes())
	})

	t.Run("telemetry handle", func(t *testing.T) {
		p := swissParams(2056)
		p.Hashtablez = true
		p.HashtablezBits = 64
		l, err := SwissMap(p)
		require.NoError(t, err)
		assert.Equal(t, "infoz_", l.Subobjects[0].Properties.Name)

		tree := typetree.FromLayout(l, "", SwissContainerName)
		require.NoError(t, tree.MergeTreeIntoThis(elemTree("Elem", 64, 64)))
		assert.Equal(t, int64(2056), tree.Root().FullSizeBytes())
	})

	t.Run("quoted type names survive", func(t *testing.T) {
		p := swissParams(2048)
		p.SlotTypeName = `std::pair<const std::string, "odd">`
		l, err := SwissMap(p)
		require.NoError(t, err)
		assert.Equal(t, p.SlotTypeName, l.Subobjects[5].Subobjects[0].Properties.TypeName)
	})
}

func TestSwissMap_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SwissParams)
	}{
		{"empty slot type", func(p *SwissParams) { p.SlotTypeName = "" }},
		{"zero slot size", func(p *SwissParams) { p.SlotSizeBits = 0 }},
		{"group width", func(p *SwissParams) { p.GroupWidth = 1 }},
		{"zero alignment", func(p *SwissParams) { p.AlignmentBits = 0 }},
		{"request too small", func(p *SwissParams) { p.RequestBits = 64 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := swissParams(2048)
			tt.modify(&p)
			_, err := SwissMap(p)
			assert.True(t, errors.IsInvalidArgument(err))
		})
	}
}

func btreeParams(requestBits int64) BtreeParams {
	return BtreeParams{
		SlotTypeName:  "Elem",
		SlotSizeBits:  96,
		AlignmentBits: 64,
		FieldBits:     8,
		NodeSlots:     3,
		PointerBits:   64,
		RequestBits:   requestBits,
	}
}

func TestBtreeParams_Solve(t *testing.T) {
	tests := []struct {
		name        string
		params      BtreeParams
		expected    BtreeGeometry
		expectError bool
	}{
		{
			name:     "internal node",
			params:   btreeParams(128 + 3*96 + 4*64),
			expected: BtreeGeometry{Slots: 3, Children: 4, PaddingBits: 32},
		},
		{
			name:     "leaf node",
			params:   btreeParams(128 + 3*96),
			expected: BtreeGeometry{Slots: 3, Children: 4, Leaf: true, PaddingBits: 32},
		},
		{
			name: "generations fill the header",
			params: func() BtreeParams {
				p := btreeParams(128 + 2*96)
				p.Generations = true
				return p
			}(),
			expected: BtreeGeometry{Slots: 2, Children: 4, Leaf: true},
		},
		{
			name:        "slots do not fit",
			params:      btreeParams(128 + 100),
			expectError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.params.Solve()
			if tt.expectError {
				assert.True(t, errors.IsInvalidArgument(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, g)
		})
	}
}

func TestBtreeNode(t *testing.T) {
	t.Run("internal", func(t *testing.T) {
		l, err := BtreeNode(btreeParams(672))
		require.NoError(t, err)
		assert.Equal(t, "absl::container_internal::btree_node<Elem>", l.Properties.Name)
		assert.Equal(t,
			[]string{"parent", "position", "start", "finish", "max_count", "<padding>", "values", "children"},
			subobjectNames(l))
		assert.Equal(t, "btree_node *[4]", l.Subobjects[7].Properties.TypeName)

		tree := typetree.FromLayout(l, BtreeTreeName("Elem"), BtreeContainerName)
		require.NoError(t, tree.MergeTreeIntoThis(elemTree("Elem", 32, 32, 32)))
		assert.Equal(t, int64(672), tree.Root().FullSizeBits())
		assert.True(t, tree.Verify(true))
	})

	t.Run("leaf with generation", func(t *testing.T) {
		p := btreeParams(128 + 2*96)
		p.Generations = true
		l, err := BtreeNode(p)
		require.NoError(t, err)
		assert.Equal(t,
			[]string{"parent", "generation", "position", "start", "finish", "max_count", "values"},
			subobjectNames(l))

		tree := typetree.FromLayout(l, "", BtreeContainerName)
		require.NoError(t, tree.MergeTreeIntoThis(elemTree("Elem", 32, 32, 32)))
		assert.Equal(t, int64(320), tree.Root().FullSizeBits())
		assert.True(t, tree.Verify(true))
	})

	t.Run("invalid", func(t *testing.T) {
		p := btreeParams(672)
		p.NodeSlots = 0
		_, err := BtreeNode(p)
		assert.True(t, errors.IsInvalidArgument(err))
	})
}

func TestWrapType(t *testing.T) {
	assert.Equal(t, "a<b>", WrapType("a", "b"))
	assert.Equal(t, "a<b<c> >", WrapType("a", "b<c>"))
	assert.Equal(t, "absl::container_internal::raw_hash_set<Elem>", SwissTreeName("Elem"))
}

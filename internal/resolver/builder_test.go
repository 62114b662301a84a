package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/testutil"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

func recordStore() *testutil.StoreBuilder {
	f := testutil.Field
	return testutil.NewStoreBuilder().
		Struct("A", 16, f("x", "long", 0), f("y", "long", 8)).
		Struct("B", 16, f("a", "int", 0), f("b", "long", 8)).
		Struct("Arr", 16, f("xs", "int[4]", 0)).
		Struct("Ptr", 16, f("next", "A *", 0), f("fn", "void ()", 8)).
		Struct("Outer", 24, f("a", "A", 0), f("z", "int", 16)).
		Struct("MissingMiddle", 16, f("m", "Missing", 0), f("y", "long", 8)).
		Struct("MissingLast", 24, f("a", "long", 0), f("m", "Missing", 8)).
		Struct("MissingOnly", 16, f("m", "Missing", 0)).
		Struct("Pairs", 32, f("ps", "A[2]", 0)).
		Union("U", 8, f("i", "int", 0), f("l", "long", 0)).
		Struct("HasUnion", 16, f("u", "U", 0), f("tail", "long", 8))
}

func newTestBuilder(store metadata.Store, opts ...Option) *Builder {
	return NewBuilder(store, append([]Option{WithLogger(&utils.NullLogger{})}, opts...)...)
}

type shape struct {
	name       string
	typeName   string
	offsetBits int64
	sizeBits   int64
	mult       int64
	kind       layout.TypeKind
}

func shapesOf(n *typetree.Node) []shape {
	out := make([]shape, len(n.Children))
	for i, c := range n.Children {
		out[i] = shape{c.Name, c.TypeName, c.OffsetBits, c.SizeBits, c.Multiplicity, c.TypeKind}
	}
	return out
}

func TestBuildFromTypeName(t *testing.T) {
	b := newTestBuilder(recordStore().Build())
	ctx := context.Background()

	tests := []struct {
		name     string
		typeName string
		sizeBits int64
		children []shape
	}{
		{
			name:     "two longs",
			typeName: "A",
			sizeBits: 128,
			children: []shape{
				{"x", "long", 0, 64, 1, layout.TypeBuiltin},
				{"y", "long", 64, 64, 1, layout.TypeBuiltin},
			},
		},
		{
			name:     "padding between fields",
			typeName: "B",
			sizeBits: 128,
			children: []shape{
				{"a", "int", 0, 32, 1, layout.TypeBuiltin},
				{"", "", 32, 32, 1, layout.TypePadding},
				{"b", "long", 64, 64, 1, layout.TypeBuiltin},
			},
		},
		{
			name:     "array field",
			typeName: "Arr",
			sizeBits: 128,
			children: []shape{
				{"xs", "int[4]", 0, 128, 1, layout.TypeArray},
			},
		},
		{
			name:     "indirections",
			typeName: "Ptr",
			sizeBits: 128,
			children: []shape{
				{"next", "A *", 0, 64, 1, layout.TypeIndirection},
				{"fn", "void ()", 64, 64, 1, layout.TypeIndirection},
			},
		},
		{
			name:     "trailing padding",
			typeName: "Outer",
			sizeBits: 192,
			children: []shape{
				{"a", "A", 0, 128, 1, layout.TypeRecord},
				{"z", "int", 128, 32, 1, layout.TypeBuiltin},
				{"", "", 160, 32, 1, layout.TypePadding},
			},
		},
		{
			name:     "unresolved field sized to next sibling",
			typeName: "MissingMiddle",
			sizeBits: 128,
			children: []shape{
				{"m", "Missing", 0, 64, 1, layout.TypeUnknown},
				{"y", "long", 64, 64, 1, layout.TypeBuiltin},
			},
		},
		{
			name:     "unresolved last field sized to parent end",
			typeName: "MissingLast",
			sizeBits: 192,
			children: []shape{
				{"a", "long", 0, 64, 1, layout.TypeBuiltin},
				{"m", "Missing", 64, 128, 1, layout.TypeUnknown},
			},
		},
		{
			name:     "unresolved only field takes the parent size",
			typeName: "MissingOnly",
			sizeBits: 128,
			children: []shape{
				{"m", "Missing", 0, 128, 1, layout.TypeUnknown},
			},
		},
		{
			name:     "union members at offset 0",
			typeName: "U",
			sizeBits: 64,
			children: []shape{
				{"i", "int", 0, 32, 1, layout.TypeBuiltin},
				{"l", "long", 0, 64, 1, layout.TypeBuiltin},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := b.BuildFromTypeName(ctx, tt.typeName)
			require.NoError(t, err)
			assert.Equal(t, tt.typeName, tree.Name())
			assert.False(t, tree.FromContainer())
			assert.Equal(t, tt.sizeBits, tree.Root().SizeBits)
			assert.Equal(t, tt.children, shapesOf(tree.Root()))
			assert.True(t, tree.Verify(true))
		})
	}
}

func TestBuildFromTypeName_Details(t *testing.T) {
	b := newTestBuilder(recordStore().Build())
	ctx := context.Background()

	t.Run("array element", func(t *testing.T) {
		tree, err := b.BuildFromTypeName(ctx, "Arr")
		require.NoError(t, err)
		xs := tree.Root().Children[0]
		require.Len(t, xs.Children, 1)
		elem := xs.Children[0]
		assert.Equal(t, "[_]", elem.Name)
		assert.Equal(t, "int", elem.TypeName)
		assert.Equal(t, int64(4), elem.Multiplicity)
		assert.Equal(t, int64(32), elem.SizeBits)
		assert.Equal(t, layout.ObjectArrayElements, elem.ObjectKind)
	})

	t.Run("array of records", func(t *testing.T) {
		tree, err := b.BuildFromTypeName(ctx, "Pairs")
		require.NoError(t, err)
		ps := tree.Root().Children[0]
		assert.Equal(t, int64(256), ps.SizeBits)
		elem := ps.Children[0]
		assert.Equal(t, "A", elem.TypeName)
		assert.Equal(t, int64(2), elem.Multiplicity)
		assert.Len(t, elem.Children, 2)
		assert.True(t, tree.Verify(true))
	})

	t.Run("nested global offsets", func(t *testing.T) {
		tree, err := b.BuildFromTypeName(ctx, "Outer")
		require.NoError(t, err)
		y := tree.Root().Children[0].Children[1]
		assert.Equal(t, "y", y.Name)
		assert.Equal(t, int64(64), y.GlobalOffsetBits)
	})

	t.Run("union inside record", func(t *testing.T) {
		tree, err := b.BuildFromTypeName(ctx, "HasUnion")
		require.NoError(t, err)
		u := tree.Root().Children[0]
		assert.True(t, u.Union)
		assert.Len(t, u.Children, 2)
		assert.True(t, tree.Verify(true))
	})

	t.Run("pointer root", func(t *testing.T) {
		tree, err := b.BuildFromTypeName(ctx, "A*")
		require.NoError(t, err)
		assert.Equal(t, int64(64), tree.Root().SizeBits)
		assert.True(t, tree.Root().IsIndirection())
		assert.Empty(t, tree.Root().Children)
	})

	t.Run("unknown root", func(t *testing.T) {
		_, err := b.BuildFromTypeName(ctx, "Nope")
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestResolveFieldConflicts(t *testing.T) {
	f := testutil.Field
	store := testutil.NewStoreBuilder().
		Struct("Small", 4).
		Struct("Big", 8).
		Struct("One", 8, f("a", "long", 0)).
		Struct("Two", 8, f("a", "int", 0), f("b", "int", 4)).
		Build()
	b := newTestBuilder(store)

	inherited := func(name, typeName string) metadata.Field {
		return metadata.Field{Name: name, TypeName: typeName, Inherited: true}
	}

	tests := []struct {
		name     string
		fields   []metadata.Field
		expected string
	}{
		{"larger size wins", []metadata.Field{f("small", "Small", 0), f("big", "Big", 0)}, "big"},
		{"more fields win", []metadata.Field{f("one", "One", 0), f("two", "Two", 0)}, "two"},
		{"size beats field count", []metadata.Field{f("two", "Two", 0), f("s", "Small", 0)}, "two"},
		{"inherited wins", []metadata.Field{f("plain", "Big", 0), inherited("base", "Big")}, "base"},
		{"no underscore wins", []metadata.Field{f("_hidden", "Big", 0), f("shown", "Big", 0)}, "shown"},
		{"tie keeps first", []metadata.Field{f("first", "Big", 0), f("second", "Big", 0)}, "first"},
		{"unresolvable skipped", []metadata.Field{f("gone", "Missing", 0), f("small", "Small", 0)}, "small"},
		{"nothing resolves keeps first", []metadata.Field{f("m1", "Missing", 0), f("m2", "Missing2", 0)}, "m1"},
		{"pointer is pointer sized", []metadata.Field{f("small", "Small", 0), f("p", "Big *", 0)}, "p"},
		{"array counts all elements", []metadata.Field{f("big", "Big", 0), f("arr", "Small[4]", 0)}, "arr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := &metadata.TypeDescriptor{Name: "C", Size: 16, Kind: metadata.KindStruct, Fields: tt.fields}
			resolved := b.resolveFieldConflicts(desc)
			require.Len(t, resolved, 1)
			assert.Equal(t, tt.expected, resolved[0].Name)
		})
	}

	t.Run("one field per offset", func(t *testing.T) {
		desc := &metadata.TypeDescriptor{Name: "C", Size: 16, Kind: metadata.KindStruct, Fields: []metadata.Field{
			f("b", "Big", 8), f("a", "Small", 0), f("a2", "Big", 0),
		}}
		resolved := b.resolveFieldConflicts(desc)
		require.Len(t, resolved, 2)
		assert.Equal(t, "a2", resolved[0].Name)
		assert.Equal(t, "b", resolved[1].Name)
	})

	t.Run("union unchanged", func(t *testing.T) {
		desc := &metadata.TypeDescriptor{Name: "U", Size: 8, Kind: metadata.KindUnion, Fields: []metadata.Field{
			f("a", "Small", 0), f("b", "Big", 0),
		}}
		assert.Equal(t, desc.Fields, b.resolveFieldConflicts(desc))
	})
}

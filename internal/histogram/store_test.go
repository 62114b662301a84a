package histogram

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/resolver"
	"github.com/perf-analysis/fieldaccess/internal/testutil"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

var (
	pairStack    = metadata.CallStack{{FunctionName: "operator new"}, {FunctionName: "make_pair", LineOffset: 1}}
	longStack    = metadata.CallStack{{FunctionName: "operator new"}, {FunctionName: "make_long", LineOffset: 2}}
	unknownStack = metadata.CallStack{{FunctionName: "mystery"}}
)

func pairStore() *metadata.MemoryStore {
	return testutil.NewStoreBuilder().
		Struct("Pair", 16, testutil.Field("a", "int", 0), testutil.Field("b", "long", 8)).
		AllocSite(metadata.Frame{FunctionName: "make_pair", LineOffset: 1}, "Pair").
		AllocSite(metadata.Frame{FunctionName: "make_long", LineOffset: 2}, "long").
		Build()
}

func newTestResolver(store metadata.Store) *resolver.Resolver {
	return resolver.New(store, resolver.WithLogger(&utils.NullLogger{}))
}

func mustTree(t *testing.T, name string) *typetree.TypeTree {
	t.Helper()
	tree, err := newTestResolver(pairStore()).ResolveTypeName(context.Background(), name)
	require.NoError(t, err)
	return tree
}

func TestStore_Insert(t *testing.T) {
	t.Run("nil tree", func(t *testing.T) {
		err := NewStore().Insert(pairStack, nil)
		assert.True(t, errors.IsInvalidArgument(err))
	})

	t.Run("different type for same callstack", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.Insert(pairStack, mustTree(t, "Pair")))
		err := s.Insert(pairStack, mustTree(t, "long"))
		assert.True(t, errors.IsInvalidArgument(err))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("merges counts", func(t *testing.T) {
		s := NewStore()
		first := mustTree(t, "Pair")
		require.NoError(t, first.RecordAccessHistogram([]uint64{3, 5}, 8, typetree.AccessLoadStore))
		second := mustTree(t, "Pair")
		require.NoError(t, second.RecordAccessHistogram([]uint64{1, 1}, 8, typetree.AccessLoadStore))

		require.NoError(t, s.Insert(pairStack, first))
		require.NoError(t, s.Insert(pairStack, second))

		got, err := s.Get(pairStack)
		require.NoError(t, err)
		assert.Same(t, second, got)
		assert.Equal(t, uint64(10), got.TotalAccessCount())
		assert.Equal(t, uint64(1), s.Duplicates())
	})
}

func TestStore_Lookup(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(pairStack, mustTree(t, "Pair")))
	require.NoError(t, s.Insert(longStack, mustTree(t, "long")))

	_, err := s.Get(unknownStack)
	assert.True(t, errors.IsNotFound(err))

	assert.Equal(t, []metadata.CallStack{pairStack}, s.CallStacksForType("Pair"))
	assert.Empty(t, s.CallStacksForType("Nope"))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Less(t, entries[0].CallStack.Key(), entries[1].CallStack.Key())

	summaries := s.TypeSummaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "Pair", summaries[0].TypeName)
	assert.Equal(t, int64(16), summaries[0].SizeBytes)
	assert.Equal(t, 1, summaries[0].Callstacks)
}

func TestDumpCallStack(t *testing.T) {
	cs := metadata.CallStack{{FunctionName: "f", LineOffset: 3, Column: 7}}
	tests := []struct {
		name     string
		level    int
		asEntry  bool
		expected string
	}{
		{
			name:     "plain",
			level:    1,
			expected: "  - function_name: f\n    line_offset: 3\n    column: 7\n",
		},
		{
			name:     "as entry",
			asEntry:  true,
			expected: "- entry: \n    - function_name: f\n      line_offset: 3\n      column: 7\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, DumpCallStack(&buf, cs, tt.level, tt.asEntry))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestStore_Dump(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(pairStack, mustTree(t, "Pair")))
	require.NoError(t, s.Insert(longStack, mustTree(t, "long")))

	t.Run("all", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.Dump(&buf, -1))
		out := buf.String()
		assert.Equal(t, 2, strings.Count(out, "- Entry: \n    type_tree: \n"))
		assert.Equal(t, 2, strings.Count(out, "    callstack: \n"))
		assert.Contains(t, out, "      - function_name: make_pair\n")
	})

	t.Run("limited", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.Dump(&buf, 1))
		assert.Equal(t, 1, strings.Count(buf.String(), "- Entry: "))
	})

	t.Run("flamegraph", func(t *testing.T) {
		var all, one bytes.Buffer
		require.NoError(t, s.DumpFlamegraph(&all, -1))
		require.NoError(t, s.DumpFlamegraph(&one, 1))
		assert.Greater(t, all.Len(), one.Len())
		for _, line := range strings.Split(strings.TrimSpace(one.String()), "\n") {
			assert.True(t, strings.HasPrefix(line, "1_"), line)
		}
	})
}

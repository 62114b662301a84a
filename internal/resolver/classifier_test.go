package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/testutil"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

const (
	flatSet     = "absl::container_internal::raw_hash_set<absl::container_internal::FlatHashSetPolicy<Elem>, Hash, Eq, std::allocator<Elem> >"
	nodeSet     = "absl::container_internal::raw_hash_set<absl::container_internal::NodeHashSetPolicy<Elem>, Hash, Eq, std::allocator<Elem> >"
	unknownSet  = "absl::container_internal::raw_hash_set<Unknown>"
	bareSet     = "absl::container_internal::raw_hash_set<Bare>"
	stringAlloc = "_ZNSt7__cxx1112basic_stringIcSt11char_traitsIcESaIcEE9_M_createERmm"
)

func classifierStore() *testutil.StoreBuilder {
	f := testutil.Field
	return testutil.NewStoreBuilder().
		Struct("Elem", 16, f("k", "long", 0), f("v", "long", 8)).
		Template(flatSet, "absl::container_internal::FlatHashSetPolicy<Elem>", "Hash", "Eq", "std::allocator<Elem>").
		Template(nodeSet, "absl::container_internal::NodeHashSetPolicy<Elem>", "Hash", "Eq", "std::allocator<Elem>").
		Template(bareSet).
		Function("flat_alloc", flatSet).
		Function("node_alloc", nodeSet).
		Function("unknown_alloc", unknownSet).
		Function("bare_alloc", bareSet).
		Function("vec_leaf", "std::vector<Elem, std::allocator<Elem> >").
		Function("int_frame", "int").
		Function("allocate", "std::allocator<Elem>").
		Function("vector_base", "std::_Vector_base<Elem, std::allocator<Elem> >").
		Function("const_alloc", "const std::allocator<Elem>").
		Function("small_vector", "llvm::SmallVectorTemplateBase<Elem, true> *").
		Function("dense_map", "llvm::DenseMapBase<llvm::DenseMap<int, Elem>, int, Elem, Info, Bucket>").
		Function("btree_insert", "absl::container_internal::btree<Params>").
		Function(stringAlloc, "char").
		Function("plain", "int", "long")
}

func TestClassify(t *testing.T) {
	c := NewClassifier(classifierStore().Build(), &utils.NullLogger{})

	tests := []struct {
		name      string
		callstack metadata.CallStack
		expected  Strategy
	}{
		{
			name:      "memprof bookkeeping",
			callstack: testutil.Frames("flat_alloc", "__memprof_ctrl_alloc_impl"),
			expected: Strategy{
				Kind:          StrategyContainerInserted,
				ContainerName: "__memprof::abseil_container_internal::raw_hash_set",
				FuncName:      "__memprof_ctrl_alloc_impl",
			},
		},
		{
			name:      "memprof bookkeeping with an empty frame",
			callstack: testutil.Frames("", "__memprof_ctrl_alloc_impl"),
			expected: Strategy{
				Kind:          StrategyContainerInserted,
				ContainerName: "__memprof::abseil_container_internal::raw_hash_set",
				FuncName:      "__memprof_ctrl_alloc_impl",
			},
		},
		{
			name:      "smart pointer",
			callstack: testutil.Frames("_ZSt11make_uniqueI4ElemJEENSt9_MakeUniqIT_E15__single_objectEDpOT0_", "flat_alloc"),
			expected: Strategy{
				Kind:          StrategySpecialAllocatingFunction,
				ContainerName: "_ZSt11make_unique",
				FuncName:      "_ZSt11make_uniqueI4ElemJEENSt9_MakeUniqIT_E15__single_objectEDpOT0_",
			},
		},
		{
			name:      "string internals",
			callstack: testutil.Frames(stringAlloc, "flat_alloc"),
			expected: Strategy{
				Kind:          StrategyCharContainer,
				ContainerName: "std::__cxx11::basic_string",
				FuncName:      stringAlloc,
			},
		},
		{
			name:      "flat hash set",
			callstack: testutil.Frames("unregistered", "flat_alloc"),
			expected: Strategy{
				Kind:          StrategySwissMapFlatHash,
				ContainerName: "absl::container_internal::raw_hash_set",
				FuncName:      "flat_alloc",
				LookupType:    flatSet,
			},
		},
		{
			name:      "node hash set",
			callstack: testutil.Frames("node_alloc"),
			expected: Strategy{
				Kind:          StrategySwissMapNodeHash,
				ContainerName: "absl::container_internal::raw_hash_set",
				FuncName:      "node_alloc",
				LookupType:    nodeSet,
			},
		},
		{
			name:      "hash set without metadata",
			callstack: testutil.Frames("leaf_fn", "unknown_alloc"),
			expected: Strategy{
				Kind:          StrategyAbslAllocatorAllocate,
				ContainerName: "absl::container_internal::raw_hash_set",
				FuncName:      "leaf_fn",
				LookupType:    unknownSet,
			},
		},
		{
			name:      "leaf container",
			callstack: testutil.Frames("vec_leaf"),
			expected: Strategy{
				Kind:          StrategyLeafContainer,
				ContainerName: "std::vector",
				FuncName:      "vec_leaf",
				LookupType:    "std::vector<Elem, std::allocator<Elem> >",
			},
		},
		{
			name:      "allocator allocate",
			callstack: testutil.Frames("allocate", "vector_base"),
			expected: Strategy{
				Kind:          StrategyAllocatorAllocate,
				ContainerName: "std::_Vector_base",
				FuncName:      "allocate",
			},
		},
		{
			name:      "allocator fallback",
			callstack: testutil.Frames("allocate", "plain"),
			expected: Strategy{
				Kind:          StrategyDefault,
				ContainerName: "unknown",
				FuncName:      "allocate",
				LookupType:    "Elem",
			},
		},
		{
			name:      "const stripped",
			callstack: testutil.Frames("const_alloc"),
			expected: Strategy{
				Kind:          StrategyDefault,
				ContainerName: "unknown",
				FuncName:      "const_alloc",
				LookupType:    "Elem",
			},
		},
		{
			name:      "fallback loses to a later specific match",
			callstack: testutil.Frames("allocate", "plain", "flat_alloc"),
			expected: Strategy{
				Kind:          StrategySwissMapFlatHash,
				ContainerName: "absl::container_internal::raw_hash_set",
				FuncName:      "flat_alloc",
				LookupType:    flatSet,
			},
		},
		{
			name:      "adt container",
			callstack: testutil.Frames("small_vector"),
			expected: Strategy{
				Kind:          StrategyADTContainer,
				ContainerName: "llvm::SmallVectorTemplateBase",
				FuncName:      "small_vector",
				LookupType:    "llvm::SmallVectorTemplateBase<Elem, true>",
			},
		},
		{
			name:      "adt dense container",
			callstack: testutil.Frames("dense_map"),
			expected: Strategy{
				Kind:          StrategyADTDenseContainer,
				ContainerName: "llvm::DenseMapBase",
				FuncName:      "dense_map",
				LookupType:    "llvm::DenseMapBase<llvm::DenseMap<int, Elem>, int, Elem, Info, Bucket>",
			},
		},
		{
			name:      "btree",
			callstack: testutil.Frames("btree_insert"),
			expected: Strategy{
				Kind:          StrategyBtree,
				ContainerName: "absl::container_internal::btree",
				FuncName:      "btree_insert",
				LookupType:    "absl::container_internal::btree<Params>",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := c.Classify(tt.callstack)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	c := NewClassifier(classifierStore().Build(), &utils.NullLogger{})

	tests := []struct {
		name      string
		callstack metadata.CallStack
		check     func(error) bool
	}{
		{"empty callstack", nil, errors.IsInvalidArgument},
		{"empty function name", testutil.Frames("flat_alloc", ""), errors.IsInvalidArgument},
		{"nothing matches", testutil.Frames("plain", "unregistered"), errors.IsNotFound},
		{"leaf container beyond the leaf frame", testutil.Frames("int_frame", "vec_leaf"), errors.IsNotFound},
		{"hash set without policy", testutil.Frames("bare_alloc"), errors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Classify(tt.callstack)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

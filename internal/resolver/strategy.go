package resolver

import "fmt"

// StrategyKind selects how the allocated type is recovered from a call
// stack.
type StrategyKind int

const (
	// StrategyDefault uses LookupType as the allocated type.
	StrategyDefault StrategyKind = iota
	// StrategySpecialAllocatingFunction reads the type from the template
	// parameters of a make_unique style function.
	StrategySpecialAllocatingFunction
	// StrategyCharContainer is a string or cord allocation.
	StrategyCharContainer
	// StrategyAllocatorAllocate is an STL container allocating through its
	// allocator.
	StrategyAllocatorAllocate
	// StrategyAbslAllocatorAllocate is an abseil container allocating
	// through its allocator.
	StrategyAbslAllocatorAllocate
	// StrategyLeafContainer is an STL container observed at the leaf frame.
	StrategyLeafContainer
	// StrategySwissMapNodeHash is a node hash table backing array.
	StrategySwissMapNodeHash
	// StrategySwissMapFlatHash is a flat hash table backing array.
	StrategySwissMapFlatHash
	// StrategyBtree is a btree node.
	StrategyBtree
	// StrategyContainerInserted is a bookkeeping allocation the profiler
	// inserts into a container.
	StrategyContainerInserted
	// StrategyADTContainer is an LLVM or inlined abseil container.
	StrategyADTContainer
	// StrategyADTDenseContainer is an llvm::DenseMap bucket array.
	StrategyADTDenseContainer
)

var strategyNames = [...]string{
	StrategyDefault:                   "Default",
	StrategySpecialAllocatingFunction: "SpecialAllocatingFunction",
	StrategyCharContainer:             "CharContainer",
	StrategyAllocatorAllocate:         "AllocatorAllocate",
	StrategyAbslAllocatorAllocate:     "AbslAllocatorAllocate",
	StrategyLeafContainer:             "LeafContainer",
	StrategySwissMapNodeHash:          "SwissMapNodeHash",
	StrategySwissMapFlatHash:          "SwissMapFlatHash",
	StrategyBtree:                     "Btree",
	StrategyContainerInserted:         "ContainerInserted",
	StrategyADTContainer:              "ADTContainer",
	StrategyADTDenseContainer:         "ADTDenseContainer",
}

func (k StrategyKind) String() string {
	if k >= 0 && int(k) < len(strategyNames) {
		return strategyNames[k]
	}
	return fmt.Sprintf("StrategyKind(%d)", int(k))
}

// Strategy is the classifier verdict for one call stack.
type Strategy struct {
	Kind          StrategyKind
	ContainerName string
	FuncName      string
	LookupType    string
}

func (s Strategy) String() string {
	return fmt.Sprintf("%s{container=%q func=%q type=%q}", s.Kind, s.ContainerName, s.FuncName, s.LookupType)
}

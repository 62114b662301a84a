package resolver

import (
	"strings"

	"github.com/ianlancetaylor/demangle"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

// Classifier walks a call stack from the allocation site outward and decides
// how the allocated type can be recovered.
type Classifier struct {
	store  metadata.Store
	logger utils.Logger
}

// NewClassifier creates a classifier over store.
func NewClassifier(store metadata.Store, logger utils.Logger) *Classifier {
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}
	return &Classifier{store: store, logger: logger}
}

// paramCtx is one formal parameter of one frame under inspection.
type paramCtx struct {
	callstack metadata.CallStack
	frame     metadata.Frame
	formal    string // without const
	cleaned   string // dereferenced and cleaned
	leaf      bool
}

// paramRule returns a strategy when it matches a formal parameter.
type paramRule struct {
	name  string
	match func(c *Classifier, p *paramCtx) (Strategy, bool, error)
}

var paramRules = []paramRule{
	{"leaf-container", matchLeafContainer},
	{"allocator-allocate", matchAllocatorAllocate},
	{"adt-container", matchADTContainer},
	{"adt-dense-container", matchADTDenseContainer},
	{"swiss-map", matchSwissMap},
	{"btree", matchBtree},
}

func matchLeafContainer(_ *Classifier, p *paramCtx) (Strategy, bool, error) {
	if !p.leaf {
		return Strategy{}, false, nil
	}
	prefix, ok := startsWithAnyOf(p.formal, stlLeafContainerTypes)
	if !ok {
		return Strategy{}, false, nil
	}
	return Strategy{Kind: StrategyLeafContainer, ContainerName: prefix, FuncName: p.frame.FunctionName, LookupType: p.formal}, true, nil
}

func matchAllocatorAllocate(_ *Classifier, p *paramCtx) (Strategy, bool, error) {
	prefix, ok := startsWithAnyOf(p.formal, stlContainerTypes)
	if !ok {
		return Strategy{}, false, nil
	}
	return Strategy{Kind: StrategyAllocatorAllocate, ContainerName: prefix, FuncName: p.callstack[0].FunctionName}, true, nil
}

func matchADTContainer(_ *Classifier, p *paramCtx) (Strategy, bool, error) {
	prefix, ok := startsWithAnyOf(p.formal, adtContainerTypes)
	if !ok {
		return Strategy{}, false, nil
	}
	return Strategy{Kind: StrategyADTContainer, ContainerName: containerNameOf(prefix), FuncName: p.frame.FunctionName, LookupType: p.cleaned}, true, nil
}

func matchADTDenseContainer(_ *Classifier, p *paramCtx) (Strategy, bool, error) {
	prefix, ok := startsWithAnyOf(p.formal, adtDenseContainerTypes)
	if !ok {
		return Strategy{}, false, nil
	}
	return Strategy{Kind: StrategyADTDenseContainer, ContainerName: prefix, FuncName: p.frame.FunctionName, LookupType: p.cleaned}, true, nil
}

func matchSwissMap(c *Classifier, p *paramCtx) (Strategy, bool, error) {
	prefix, ok := startsWithAnyOf(p.formal, swissMapTypes)
	if !ok {
		return Strategy{}, false, nil
	}
	name := containerNameOf(prefix)

	table, err := c.store.LookupType(p.formal)
	if err != nil {
		// node_hash_set occasionally allocates through a plain allocator
		return Strategy{Kind: StrategyAbslAllocatorAllocate, ContainerName: name, FuncName: p.callstack[0].FunctionName, LookupType: p.cleaned}, true, nil
	}
	if len(table.FormalParameters) == 0 {
		return Strategy{}, false, errors.NotFoundf("no formal parameters found for the hash set type %s", table.Name)
	}

	kind := StrategySwissMapNodeHash
	if _, flat := startsWithAnyOf(table.FormalParameters[0], flatHashPolicies); flat {
		kind = StrategySwissMapFlatHash
	}
	return Strategy{Kind: kind, ContainerName: name, FuncName: p.frame.FunctionName, LookupType: p.cleaned}, true, nil
}

func matchBtree(_ *Classifier, p *paramCtx) (Strategy, bool, error) {
	prefix, ok := startsWithAnyOf(p.formal, btreeTypes)
	if !ok {
		return Strategy{}, false, nil
	}
	return Strategy{Kind: StrategyBtree, ContainerName: containerNameOf(prefix), FuncName: p.frame.FunctionName, LookupType: p.cleaned}, true, nil
}

// Classify returns the resolution strategy of callstack. Frame 0 is the
// allocation site.
func (c *Classifier) Classify(callstack metadata.CallStack) (Strategy, error) {
	if len(callstack) == 0 {
		return Strategy{}, errors.InvalidArgumentf("empty callstack")
	}
	// Bookkeeping allocations are recognized before frames are validated.
	if s, ok := memprofInserted(callstack); ok {
		return s, nil
	}
	for _, f := range callstack {
		if f.FunctionName == "" {
			return Strategy{}, errors.InvalidArgumentf("empty function name in callstack")
		}
	}

	var (
		fallback  *Strategy
		seenAlloc bool
		leaf      = true
	)
	for _, frame := range callstack {
		fn := frame.FunctionName
		if prefix, ok := startsWithAnyOf(fn, smartPointerFunctions); ok {
			return Strategy{Kind: StrategySpecialAllocatingFunction, ContainerName: prefix, FuncName: fn}, nil
		}

		params, err := c.store.LookupFormalParameters(fn)
		if err != nil {
			continue
		}

		if demangled, err := demangle.ToString(fn, demangle.NoParams); err == nil {
			if prefix, ok := startsWithAnyOf(demangled, specialAllocatingFunctions); ok {
				return Strategy{Kind: StrategySpecialAllocatingFunction, ContainerName: prefix, FuncName: fn}, nil
			}
			if prefix, ok := startsWithAnyOf(demangled, charContainerLeafFrames); ok {
				return Strategy{Kind: StrategyCharContainer, ContainerName: strings.TrimRight(prefix, ":"), FuncName: fn}, nil
			}
		}

		for _, raw := range params {
			p := &paramCtx{
				callstack: callstack,
				frame:     frame,
				formal:    cleanFormalParameter(raw),
				leaf:      leaf,
			}
			p.cleaned = CleanTypeName(DereferencePointer(p.formal))

			_, isAllocator := startsWithAnyOf(p.formal, allocatorWrappers)
			if isAllocator && !seenAlloc {
				fallback = &Strategy{
					Kind:          StrategyDefault,
					ContainerName: fallbackContainerName,
					FuncName:      fn,
					LookupType:    UnwrapAndCleanTypeName(p.formal),
				}
			}

			for _, rule := range paramRules {
				s, ok, err := rule.match(c, p)
				if err != nil {
					return Strategy{}, err
				}
				if ok {
					c.logger.Debug("callstack classified by %s rule at %s", rule.name, fn)
					return s, nil
				}
			}

			if isAllocator || strings.HasPrefix(p.formal, abslContainerInternal) {
				seenAlloc = true
			}
		}
		leaf = false
	}

	if fallback != nil {
		return *fallback, nil
	}
	return Strategy{}, errors.NotFoundf("no heap alloc or container resolution strategy found in callstack:%s", callstackString(callstack))
}

func memprofInserted(callstack metadata.CallStack) (Strategy, bool) {
	for _, f := range callstack {
		for _, marker := range memprofInsertedFunctions {
			if strings.Contains(f.FunctionName, marker) {
				return Strategy{Kind: StrategyContainerInserted, ContainerName: memprofContainerName, FuncName: f.FunctionName}, true
			}
		}
	}
	return Strategy{}, false
}

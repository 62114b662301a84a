package resolver

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/perf-analysis/fieldaccess/internal/blueprint"
	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/config"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/telemetry"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

// DefaultSynthConfig holds the abseil constants of the supported 64-bit
// targets.
var DefaultSynthConfig = config.SynthConfig{
	SwissAlignmentBytes: 8,
	SwissGroupWidth:     16,
	WordBits:            64,
	Hashtablez:          false,
	HashtablezBits:      64,
}

// Builder turns type names and classifier strategies into type trees.
type Builder struct {
	store  metadata.Store
	mode   Mode
	synth  config.SynthConfig
	logger utils.Logger
}

// Option configures a Builder or a Resolver.
type Option func(*Builder)

// WithMode sets the resolution mode.
func WithMode(mode Mode) Option {
	return func(b *Builder) {
		b.mode = mode
	}
}

// WithSynthConfig sets the container synthesizer constants.
func WithSynthConfig(cfg config.SynthConfig) Option {
	return func(b *Builder) {
		b.synth = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a builder over store.
func NewBuilder(store metadata.Store, opts ...Option) *Builder {
	b := &Builder{
		store:  store,
		mode:   ModeSymbolServer,
		synth:  DefaultSynthConfig,
		logger: utils.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mode returns the resolution mode.
func (b *Builder) Mode() Mode { return b.mode }

// BuildFromTypeName builds the tree of a named type.
func (b *Builder) BuildFromTypeName(ctx context.Context, typeName string) (*typetree.TypeTree, error) {
	return b.createTree(typeName, false, "")
}

func (b *Builder) createTree(typeName string, fromContainer bool, containerName string) (*typetree.TypeTree, error) {
	root, err := b.buildTree(typeName)
	if err != nil {
		return nil, err
	}
	return typetree.New(root, typeName, fromContainer, containerName), nil
}

func (b *Builder) buildTree(typeName string) (*typetree.Node, error) {
	if IsIndirection(typeName) {
		return typetree.NewPointerNode(typeName, typeName, 0, 1, b.store.PointerWidthBits(), nil), nil
	}

	desc, err := b.store.LookupType(typeName)
	if err != nil {
		return nil, err
	}
	root := typetree.NewRootNode(typeName, desc)
	b.expandFields(root, b.resolveFieldConflicts(desc))
	return root, nil
}

// fieldCtx is the input of one field expansion.
type fieldCtx struct {
	typeName     string
	name         string
	index        int
	offsetBits   int64
	multiplicity int64
	parent       *typetree.Node
	siblings     []metadata.Field
}

func (b *Builder) expandFields(parent *typetree.Node, fields []metadata.Field) {
	offsets := make([]int64, len(fields))
	for i, f := range fields {
		offsets[i] = f.Offset
	}
	for i, f := range fields {
		offsetBits := f.Offset * 8
		if parent.Union {
			offsetBits = 0
		}
		child := b.buildField(fieldCtx{
			typeName:     f.TypeName,
			name:         f.Name,
			index:        i,
			offsetBits:   offsetBits,
			multiplicity: 1,
			parent:       parent,
			siblings:     fields,
		})
		parent.AddChildAndInsertPaddingIfNecessary(child, i, offsets)
	}
}

func (b *Builder) buildField(c fieldCtx) *typetree.Node {
	if IsIndirection(c.typeName) {
		return typetree.NewPointerNode(c.name, c.typeName, c.offsetBits, c.multiplicity, b.store.PointerWidthBits(), c.parent)
	}

	if n := ArrayMultiplicity(c.typeName); n > 1 {
		// the array size is known once its single element child is built
		array := typetree.NewArrayNode(c.name, c.typeName, -1, c.offsetBits, c.multiplicity, c.parent)
		elem := b.buildField(fieldCtx{
			typeName:     ArrayElementType(c.typeName),
			name:         "[_]",
			multiplicity: n,
			parent:       array,
		})
		array.SizeBits = elem.FullSizeBits()
		array.AddChild(elem)
		return array
	}

	desc, err := b.store.LookupType(c.typeName)
	if err != nil {
		return typetree.NewUnresolvedNode(c.name, c.typeName, c.offsetBits, c.multiplicity, inferSize(c), c.parent)
	}

	node := typetree.NewTypedNode(c.name, c.typeName, c.offsetBits, c.multiplicity, desc, c.parent)
	b.expandFields(node, b.resolveFieldConflicts(desc))
	return node
}

// inferSize sizes a field of unknown type by the room its parent leaves it.
func inferSize(c fieldCtx) int64 {
	var size int64
	switch {
	case len(c.siblings) == 0:
		size = c.parent.SizeBits
	case c.index >= len(c.siblings)-1:
		size = c.parent.SizeBits - c.siblings[c.index].Offset*8
	default:
		size = c.siblings[c.index+1].Offset*8 - c.siblings[c.index].Offset*8
	}
	return max(size, 0)
}

// BuildFromStrategy builds the tree a classifier strategy points at.
// requestBytes is the observed allocation size.
func (b *Builder) BuildFromStrategy(ctx context.Context, s Strategy, callstack metadata.CallStack, requestBytes int64) (*typetree.TypeTree, error) {
	_, span := telemetry.StartSpan(ctx, "resolver.BuildFromStrategy",
		attribute.String("strategy", s.Kind.String()),
		attribute.String("container", s.ContainerName),
		attribute.Int64("request_bytes", requestBytes),
	)
	defer span.End()

	tree, err := b.buildFromStrategy(s, callstack, requestBytes)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return tree, nil
}

func (b *Builder) buildFromStrategy(s Strategy, callstack metadata.CallStack, requestBytes int64) (*typetree.TypeTree, error) {
	switch s.Kind {
	case StrategyDefault:
		return b.createTree(s.LookupType, true, s.ContainerName)

	case StrategySpecialAllocatingFunction:
		params, err := b.store.LookupFormalParameters(s.FuncName)
		if err != nil {
			return nil, err
		}
		if len(params) == 0 {
			return nil, errors.NotFoundf("no formal parameters for %s: %s", s, callstackString(callstack))
		}
		return b.createTree(CleanTypeName(params[0]), true, s.ContainerName)

	case StrategyCharContainer, StrategyContainerInserted:
		return b.createTree("char", true, s.ContainerName)

	case StrategyAllocatorAllocate, StrategyAbslAllocatorAllocate:
		for _, frame := range callstack {
			params, err := b.store.LookupFormalParameters(frame.FunctionName)
			if err != nil {
				continue
			}
			if elem, ok := firstAllocatorElement(params); ok {
				return b.createTree(elem, true, s.ContainerName)
			}
		}
		return nil, errors.NotFoundf("no allocator formal parameter for %s: %s", s, callstackString(callstack))

	case StrategyLeafContainer:
		desc, err := b.store.LookupType(s.LookupType)
		if err != nil {
			return nil, err
		}
		if elem, ok := firstAllocatorElement(desc.FormalParameters); ok {
			return b.createTree(elem, true, s.ContainerName)
		}
		return nil, errors.NotFoundf("no allocator formal parameter of container %s", s.LookupType)

	case StrategyADTContainer:
		desc, err := b.store.LookupType(s.LookupType)
		if err != nil {
			return nil, err
		}
		if len(desc.FormalParameters) == 0 {
			return nil, errors.NotFoundf("no formal parameters for container class %s", s.LookupType)
		}
		return b.createTree(desc.FormalParameters[0], true, s.ContainerName)

	case StrategyADTDenseContainer:
		desc, err := b.store.LookupType(s.LookupType)
		if err != nil {
			return nil, err
		}
		// DenseMapBase<Derived, K, V, KeyInfo, Bucket>
		if len(desc.FormalParameters) < 5 {
			return nil, errors.NotFoundf("dense map %s has %d formal parameters", s.LookupType, len(desc.FormalParameters))
		}
		return b.createTree(desc.FormalParameters[4], true, s.ContainerName)

	case StrategySwissMapNodeHash, StrategySwissMapFlatHash:
		return b.buildSwissMap(s, requestBytes)

	case StrategyBtree:
		return b.buildBtree(s, callstack, requestBytes)
	}
	return nil, errors.InvalidArgumentf("unknown container resolution strategy %s", s.Kind)
}

func firstAllocatorElement(params []string) (string, bool) {
	for _, p := range params {
		if _, ok := startsWithAnyOf(p, allocatorWrappers); ok {
			return UnwrapAndCleanTypeName(p), true
		}
	}
	return "", false
}

// checkLocalSize accepts a local mode allocation holding whole elements.
func checkLocalSize(elem *typetree.TypeTree, requestBytes int64) error {
	full := elem.Root().FullSizeBytes()
	if full > 0 && requestBytes%full != 0 {
		return errors.Internalf("allocation of %d bytes is not a multiple of %s (%d bytes)", requestBytes, elem.Name(), full)
	}
	return nil
}

func (b *Builder) buildSwissMap(s Strategy, requestBytes int64) (*typetree.TypeTree, error) {
	desc, err := b.store.LookupType(s.LookupType)
	if err != nil {
		return nil, err
	}
	slotType, ok := firstAllocatorElement(desc.FormalParameters)
	if !ok {
		return nil, errors.NotFoundf("no allocator formal parameter of hash table %s", desc.Name)
	}
	if s.Kind == StrategySwissMapNodeHash {
		slotType += "*"
	}

	elem, err := b.createTree(slotType, true, s.ContainerName)
	if err != nil {
		return nil, err
	}
	if b.mode == ModeLocal {
		if err := checkLocalSize(elem, requestBytes); err != nil {
			return nil, err
		}
		return elem, nil
	}

	tmpl, err := blueprint.SwissMap(blueprint.SwissParams{
		SlotTypeName:   elem.Name(),
		SlotSizeBits:   elem.Root().FullSizeBits(),
		AlignmentBits:  b.synth.SwissAlignmentBytes * 8,
		WordBits:       b.synth.WordBits,
		GroupWidth:     b.synth.SwissGroupWidth,
		RequestBits:    requestBytes * 8,
		Hashtablez:     b.synth.Hashtablez,
		HashtablezBits: b.synth.HashtablezBits,
	})
	if err != nil {
		return nil, err
	}

	outer := typetree.FromLayout(tmpl, blueprint.SwissTreeName(elem.Name()), blueprint.SwissContainerName)
	if err := outer.MergeTreeIntoThis(elem); err != nil {
		return nil, err
	}
	if got := outer.Root().FullSizeBytes(); got != requestBytes {
		return nil, errors.Internalf("raw hash set backing array does not match allocation size: request_size: %d tree size: %d", requestBytes, got)
	}
	return outer, nil
}

// btreeAlignmentBits reads the Alignment constant of the allocator the
// allocation function was instantiated with.
func (b *Builder) btreeAlignmentBits(funcName string) (int64, error) {
	params, err := b.store.LookupFormalParameters(funcName)
	if err != nil {
		return 0, err
	}
	for range 2 {
		if len(params) == 0 {
			return 0, errors.NotFoundf("no formal parameters found for the allocator call %s", funcName)
		}
		desc, err := b.store.LookupType(DereferencePointer(params[0]))
		if err != nil {
			return 0, err
		}
		if a, ok := desc.Constant(alignmentConstant); ok {
			return a * 8, nil
		}
		params = desc.FormalParameters
	}
	return 0, errors.NotFoundf("no constant variable %s found in allocator call %s", alignmentConstant, funcName)
}

func (b *Builder) buildBtree(s Strategy, callstack metadata.CallStack, requestBytes int64) (*typetree.TypeTree, error) {
	desc, err := b.store.LookupType(s.LookupType)
	if err != nil {
		return nil, err
	}

	for _, fp := range desc.FormalParameters {
		if _, ok := startsWithAnyOf(fp, btreeParamTypes); !ok {
			continue
		}
		paramsDesc, err := b.store.LookupType(fp)
		if err != nil {
			return nil, err
		}
		slotType, ok := firstAllocatorElement(paramsDesc.FormalParameters)
		if !ok {
			continue
		}

		elem, err := b.createTree(slotType, true, s.ContainerName)
		if err != nil {
			return nil, err
		}
		if b.mode == ModeLocal {
			if err := checkLocalSize(elem, requestBytes); err != nil {
				return nil, err
			}
			return elem, nil
		}

		var alignBits int64
		if len(callstack) > 0 {
			alignBits, err = b.btreeAlignmentBits(callstack[0].FunctionName)
			if err != nil {
				return nil, err
			}
		}

		_, genErr := b.store.LookupType(btreeGenerationMarker)
		node, err := b.store.LookupType(blueprint.WrapType(blueprint.BtreeNodeName, fp))
		if err != nil {
			return nil, err
		}
		nodeSlots, ok := node.Constant(nodeSlotsConstant)
		if !ok {
			return nil, errors.NotFoundf("no constant variable %s found in %s", nodeSlotsConstant, node.Name)
		}
		fieldType, err := b.store.LookupType(blueprint.WrapType(blueprint.BtreeContainerName, fp) + btreeFieldTypeSuffix)
		if err != nil {
			return nil, err
		}

		tmpl, err := blueprint.BtreeNode(blueprint.BtreeParams{
			SlotTypeName:  elem.Name(),
			SlotSizeBits:  elem.Root().FullSizeBits(),
			AlignmentBits: alignBits,
			FieldBits:     fieldType.Size * 8,
			NodeSlots:     nodeSlots,
			PointerBits:   b.store.PointerWidthBits(),
			RequestBits:   requestBytes * 8,
			Generations:   genErr == nil,
		})
		if err != nil {
			return nil, err
		}

		outer := typetree.FromLayout(tmpl, blueprint.BtreeTreeName(elem.Name()), blueprint.BtreeContainerName)
		if err := outer.MergeTreeIntoThis(elem); err != nil {
			return nil, err
		}
		if got := outer.Root().FullSizeBytes(); got != requestBytes {
			return nil, errors.Internalf("btree node does not match allocation size: request_size: %d tree size: %d", requestBytes, got)
		}
		return outer, nil
	}
	return nil, errors.NotFoundf("no btree parameters with an allocator in %s", desc.Name)
}

func callstackString(callstack metadata.CallStack) string {
	var sb strings.Builder
	for _, f := range callstack {
		sb.WriteString("\n  ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

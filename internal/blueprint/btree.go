package blueprint

import (
	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

const (
	// BtreeContainerName names trees synthesized from a btree.
	BtreeContainerName = "absl::container_internal::btree"
	// BtreeNodeName is the record a btree allocates.
	BtreeNodeName = "absl::container_internal::btree_node"

	generationBits = 32
)

// BtreeParams describes one btree node allocation. All sizes are in bits.
type BtreeParams struct {
	SlotTypeName  string
	SlotSizeBits  int64
	AlignmentBits int64
	FieldBits     int64
	NodeSlots     int64
	PointerBits   int64
	RequestBits   int64
	Generations   bool
}

// BtreeGeometry is the solved shape of a node.
type BtreeGeometry struct {
	Slots       int64
	Children    int64
	Leaf        bool
	PaddingBits int64
}

func (p BtreeParams) validate() error {
	switch {
	case p.SlotTypeName == "":
		return errors.InvalidArgumentf("btree slot type name is empty")
	case p.SlotSizeBits <= 0:
		return errors.InvalidArgumentf("btree slot size %d is not positive", p.SlotSizeBits)
	case p.AlignmentBits <= 0:
		return errors.InvalidArgumentf("btree alignment %d is not positive", p.AlignmentBits)
	case p.PointerBits <= 0 || p.FieldBits <= 0:
		return errors.InvalidArgumentf("btree pointer and field sizes must be positive")
	case p.NodeSlots < 1:
		return errors.InvalidArgumentf("btree node slots %d is not positive", p.NodeSlots)
	}
	return nil
}

// Solve decides between an internal node (values and NodeSlots+1 child
// pointers) and a leaf (values only) by which shape the slots fill exactly.
func (p BtreeParams) Solve() (BtreeGeometry, error) {
	if err := p.validate(); err != nil {
		return BtreeGeometry{}, err
	}
	header := p.PointerBits + 4*p.FieldBits
	if p.Generations {
		header += generationBits
	}
	aligned := roundUp(header, p.AlignmentBits)
	variable := p.RequestBits - aligned
	children := p.NodeSlots + 1
	childrenBits := children * p.PointerBits

	g := BtreeGeometry{Children: children, PaddingBits: aligned - header}
	switch {
	case variable > childrenBits && (variable-childrenBits)%p.SlotSizeBits == 0:
		g.Slots = (variable - childrenBits) / p.SlotSizeBits
	case variable > 0 && variable%p.SlotSizeBits == 0:
		g.Slots = variable / p.SlotSizeBits
		g.Leaf = true
	default:
		return BtreeGeometry{}, errors.InvalidArgumentf(
			"size mismatch in creating btree node template, %s slots do not fit into %d bits",
			p.SlotTypeName, p.RequestBits)
	}
	return g, nil
}

// BtreeNode returns the node template: parent pointer, optional generation,
// the four count fields, alignment padding, the value slots and, for
// internal nodes, the child pointers.
func BtreeNode(p BtreeParams) (*layout.ObjectLayout, error) {
	g, err := p.Solve()
	if err != nil {
		return nil, err
	}
	return render("btree", struct {
		BtreeParams
		BtreeGeometry
	}{p, g})
}

// BtreeTreeName is the root name of a synthesized node tree.
func BtreeTreeName(slotTypeName string) string {
	return WrapType(BtreeNodeName, slotTypeName)
}

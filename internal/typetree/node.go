// Package typetree holds the resolved layout of one allocated type: a tree
// of nodes carrying sizes, offsets and access counters, plus the algorithms
// that record access histograms onto it, verify it and merge trees.
package typetree

import (
	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/internal/metadata"
)

// AccessType selects which counter an access increments besides the total.
type AccessType int

const (
	// AccessLoadStore is a load or store.
	AccessLoadStore AccessType = iota
	// AccessLLCMiss is a last level cache miss.
	AccessLLCMiss
)

// DefaultGranularityBytes is the byte width of one histogram bucket.
const DefaultGranularityBytes = 8

// AccessCounters are the counts recorded on a node.
type AccessCounters struct {
	Total   uint64 `json:"total"`
	Access  uint64 `json:"access"`
	LLCMiss uint64 `json:"llc_miss"`
}

func (c *AccessCounters) add(o AccessCounters) {
	c.Total += o.Total
	c.Access += o.Access
	c.LLCMiss += o.LLCMiss
}

// Node is one subobject. Sizes and offsets are in bits; OffsetBits is
// relative to the parent and GlobalOffsetBits to the root.
type Node struct {
	Name             string
	TypeName         string
	OffsetBits       int64
	SizeBits         int64
	Multiplicity     int64
	AlignBits        int64
	TypeKind         layout.TypeKind
	ObjectKind       layout.ObjectKind
	GlobalOffsetBits int64
	Counters         AccessCounters
	Union            bool
	Children         []*Node
}

// TypeKindOf maps a metadata kind to the layout type kind.
func TypeKindOf(kind metadata.DataKind) layout.TypeKind {
	switch kind {
	case metadata.KindClass, metadata.KindStruct, metadata.KindUnion:
		return layout.TypeRecord
	case metadata.KindBaseType:
		return layout.TypeBuiltin
	case metadata.KindPointerLike:
		return layout.TypeIndirection
	case metadata.KindEnum:
		return layout.TypeEnum
	default:
		return layout.TypeUnknown
	}
}

func elementKind(multiplicity int64) layout.ObjectKind {
	if multiplicity > 1 {
		return layout.ObjectArrayElements
	}
	return layout.ObjectField
}

func globalOf(parent *Node, offsetBits int64) int64 {
	if parent == nil {
		return 0
	}
	return parent.GlobalOffsetBits + offsetBits
}

// NewRootNode creates the root for a resolved type.
func NewRootNode(typeName string, desc *metadata.TypeDescriptor) *Node {
	return &Node{
		Name:         typeName,
		TypeName:     typeName,
		SizeBits:     desc.Size * 8,
		Multiplicity: 1,
		TypeKind:     TypeKindOf(desc.Kind),
		ObjectKind:   layout.ObjectField,
		Union:        desc.Kind == metadata.KindUnion,
	}
}

// NewTypedNode creates a field node for a resolved type.
func NewTypedNode(name, typeName string, offsetBits, multiplicity int64, desc *metadata.TypeDescriptor, parent *Node) *Node {
	return &Node{
		Name:             name,
		TypeName:         typeName,
		OffsetBits:       offsetBits,
		SizeBits:         desc.Size * 8,
		Multiplicity:     multiplicity,
		TypeKind:         TypeKindOf(desc.Kind),
		ObjectKind:       elementKind(multiplicity),
		GlobalOffsetBits: globalOf(parent, offsetBits),
		Union:            desc.Kind == metadata.KindUnion,
	}
}

// NewArrayNode creates an array typed node. A negative size means the size is
// filled in once the element child is built.
func NewArrayNode(name, typeName string, sizeBits, offsetBits, multiplicity int64, parent *Node) *Node {
	return &Node{
		Name:             name,
		TypeName:         typeName,
		OffsetBits:       offsetBits,
		SizeBits:         sizeBits,
		Multiplicity:     multiplicity,
		TypeKind:         layout.TypeArray,
		ObjectKind:       elementKind(multiplicity),
		GlobalOffsetBits: globalOf(parent, offsetBits),
	}
}

// NewPointerNode creates an indirection node of pointer width.
func NewPointerNode(name, typeName string, offsetBits, multiplicity, pointerBits int64, parent *Node) *Node {
	return &Node{
		Name:             name,
		TypeName:         typeName,
		OffsetBits:       offsetBits,
		SizeBits:         pointerBits,
		Multiplicity:     multiplicity,
		TypeKind:         layout.TypeIndirection,
		ObjectKind:       elementKind(multiplicity),
		GlobalOffsetBits: globalOf(parent, offsetBits),
	}
}

// NewUnresolvedNode creates a node for a type missing from the metadata.
func NewUnresolvedNode(name, typeName string, offsetBits, multiplicity, inferredSizeBits int64, parent *Node) *Node {
	return &Node{
		Name:             name,
		TypeName:         typeName,
		OffsetBits:       offsetBits,
		SizeBits:         inferredSizeBits,
		Multiplicity:     multiplicity,
		TypeKind:         layout.TypeUnknown,
		ObjectKind:       layout.ObjectUnknown,
		GlobalOffsetBits: globalOf(parent, offsetBits),
	}
}

// NewPaddingNode creates a padding node covering [fromBits, toBits) of parent.
func NewPaddingNode(fromBits, toBits int64, parent *Node) *Node {
	return &Node{
		OffsetBits:       fromBits,
		SizeBits:         toBits - fromBits,
		Multiplicity:     1,
		TypeKind:         layout.TypePadding,
		ObjectKind:       layout.ObjectPadding,
		GlobalOffsetBits: globalOf(parent, fromBits),
	}
}

// NewLayoutNode creates a node from a layout record without its subobjects.
func NewLayoutNode(props layout.Properties, parent *Node) *Node {
	return &Node{
		Name:             props.Name,
		TypeName:         props.TypeName,
		OffsetBits:       props.OffsetBits,
		SizeBits:         props.SizeBits,
		Multiplicity:     props.Multiplicity,
		AlignBits:        props.AlignBits,
		TypeKind:         props.TypeKind,
		ObjectKind:       props.Kind,
		GlobalOffsetBits: globalOf(parent, props.OffsetBits),
	}
}

// CopyNode copies n without its children.
func CopyNode(n *Node) *Node {
	c := *n
	c.Children = nil
	return &c
}

// Clone deep copies n.
func (n *Node) Clone() *Node {
	c := CopyNode(n)
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// AddChild appends child.
func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
}

// AddChildAndInsertPaddingIfNecessary appends the child built for field
// fieldIndex and inserts padding before it when it does not start where the
// previous field ended, and after it when it is the last field and does not
// reach the end of n. fieldOffsets are the byte offsets of all emitted
// fields. Union members are appended as is.
func (n *Node) AddChildAndInsertPaddingIfNecessary(child *Node, fieldIndex int, fieldOffsets []int64) {
	if n.Union {
		n.AddChild(child)
		return
	}

	if fieldIndex > 0 && len(n.Children) > 0 {
		lastEnd := fieldOffsets[fieldIndex-1]*8 + n.Children[len(n.Children)-1].FullSizeBits()
		currentStart := fieldOffsets[fieldIndex] * 8
		if currentStart > lastEnd {
			n.AddChild(NewPaddingNode(lastEnd, currentStart, n))
		}
	}

	var trailing *Node
	childEnd := child.OffsetBits + child.FullSizeBits()
	if fieldIndex == len(fieldOffsets)-1 && n.SizeBits > childEnd {
		trailing = NewPaddingNode(childEnd, n.SizeBits, n)
	}
	n.AddChild(child)
	if trailing != nil {
		n.AddChild(trailing)
	}
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int { return len(n.Children) }

// FullSizeBits is the size of all elements.
func (n *Node) FullSizeBits() int64 { return n.SizeBits * n.Multiplicity }

// FullSizeBytes is the size of all elements in bytes.
func (n *Node) FullSizeBytes() int64 { return n.SizeBits * n.Multiplicity / 8 }

// SizeBytes is the size of one element in bytes.
func (n *Node) SizeBytes() int64 { return n.SizeBits / 8 }

// OffsetBytes is the offset to the parent in bytes.
func (n *Node) OffsetBytes() int64 { return n.OffsetBits / 8 }

// GlobalOffsetBytes is the offset to the root in bytes.
func (n *Node) GlobalOffsetBytes() int64 { return n.GlobalOffsetBits / 8 }

func (n *Node) IsPadding() bool     { return n.TypeKind == layout.TypePadding }
func (n *Node) IsIndirection() bool { return n.TypeKind == layout.TypeIndirection }
func (n *Node) IsUnresolved() bool  { return n.TypeKind == layout.TypeUnknown }
func (n *Node) IsArray() bool       { return n.TypeKind == layout.TypeArray }
func (n *Node) IsRecord() bool      { return n.TypeKind == layout.TypeRecord }

// SubtreeSize counts the nodes of the subtree rooted at n.
func (n *Node) SubtreeSize() int {
	size := 1
	for _, c := range n.Children {
		size += c.SubtreeSize()
	}
	return size
}

// DisplayName renders padding as a comment and other names unchanged.
func (n *Node) DisplayName(name string) string {
	if n.IsPadding() {
		return "/*padding*/"
	}
	return name
}

// FindNodeWithTypeName searches the descendants of n depth first, parents
// before children, for an exact type name.
func (n *Node) FindNodeWithTypeName(typeName string) *Node {
	for _, c := range n.Children {
		if c.TypeName == typeName {
			return c
		}
		if found := c.FindNodeWithTypeName(typeName); found != nil {
			return found
		}
	}
	return nil
}

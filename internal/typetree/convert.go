package typetree

import (
	"github.com/perf-analysis/fieldaccess/internal/layout"
)

// ToLayout exports the subtree to the persisted layout format. Counters and
// the union flag are not part of the format.
func (n *Node) ToLayout() layout.ObjectLayout {
	l := layout.ObjectLayout{
		Properties: layout.Properties{
			Name:         n.Name,
			TypeName:     n.TypeName,
			Kind:         n.ObjectKind,
			TypeKind:     n.TypeKind,
			SizeBits:     n.SizeBits,
			Multiplicity: n.Multiplicity,
			AlignBits:    n.AlignBits,
			OffsetBits:   n.OffsetBits,
		},
	}
	if len(n.Children) > 0 {
		l.Subobjects = make([]layout.ObjectLayout, len(n.Children))
		for i, c := range n.Children {
			l.Subobjects[i] = c.ToLayout()
		}
	}
	return l
}

// ToLayout exports the tree. An empty tree exports an empty layout.
func (t *TypeTree) ToLayout() layout.ObjectLayout {
	if t.Empty() {
		return layout.ObjectLayout{}
	}
	return t.root.ToLayout()
}

// FromLayout builds a tree from a layout, computing global offsets from the
// parent chain. rootName defaults to the root type name. A missing
// multiplicity is read as 1.
func FromLayout(l *layout.ObjectLayout, rootName, containerName string) *TypeTree {
	root := fromLayout(l, nil)
	name := rootName
	if name == "" {
		name = l.Properties.TypeName
	}
	return New(root, name, containerName != "", containerName)
}

func fromLayout(l *layout.ObjectLayout, parent *Node) *Node {
	n := NewLayoutNode(l.Properties, parent)
	if n.Multiplicity == 0 {
		n.Multiplicity = 1
	}
	for i := range l.Subobjects {
		n.AddChild(fromLayout(&l.Subobjects[i], n))
	}
	return n
}

package typetree

import (
	"strings"

	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// MergeCounts adds the counters of other into t. Both trees must have the
// same shape; otherwise InvalidArgument is returned and neither tree changes.
func (t *TypeTree) MergeCounts(other *TypeTree) error {
	if t.Empty() || other.Empty() {
		return errors.InvalidArgumentf("cannot merge counts of an empty tree")
	}
	if err := sameShape(t.root, other.root); err != nil {
		return err
	}
	addCounts(t.root, other.root)
	return nil
}

// sameType treats array types as equal when they agree up to the bracket,
// so histograms of differently sized bulk allocations can be merged.
func sameType(a, b string) bool {
	if a == b {
		return true
	}
	pos := strings.IndexByte(a, '[')
	return pos >= 0 && len(b) >= pos && a[:pos] == b[:pos]
}

func sameShape(a, b *Node) error {
	if a.Name != b.Name || len(a.Children) != len(b.Children) || !sameType(a.TypeName, b.TypeName) {
		return errors.InvalidArgumentf("trying to merge counts for distinct trees: %s vs %s", a.TypeName, b.TypeName)
	}
	for i := range a.Children {
		if err := sameShape(a.Children[i], b.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

func addCounts(dst, src *Node) {
	dst.Counters.add(src.Counters)
	for i := range dst.Children {
		addCounts(dst.Children[i], src.Children[i])
	}
}

// MergeTreeIntoThis replaces the childless placeholder node typed
// other.Name() with a copy of other's root children, then recomputes sizes
// bottom up and offsets top down. Array element nodes are preferred as
// placeholders, so a scalar field sharing the type name is never filled.
func (t *TypeTree) MergeTreeIntoThis(other *TypeTree) error {
	if t.Empty() {
		return errors.InvalidArgumentf("this tree is empty")
	}
	if other.Empty() {
		return errors.InvalidArgumentf("other tree is empty")
	}

	target := t.root.findArrayElements(other.Name())
	if target == nil {
		target = t.root.FindNodeWithTypeName(other.Name())
	}
	if target == nil {
		return errors.InvalidArgumentf("merge node not found with type name: %s", other.Name())
	}
	if len(target.Children) != 0 {
		return errors.InvalidArgumentf("merging tree into node with children is not supported: %s", other.Name())
	}

	for _, c := range other.root.Children {
		target.AddChild(c.Clone())
	}
	t.BuildSizesBottomUp()
	t.InferOffsetsFromSizes()
	return nil
}

// findArrayElements is FindNodeWithTypeName restricted to array element
// nodes.
func (n *Node) findArrayElements(typeName string) *Node {
	for _, c := range n.Children {
		if c.ObjectKind == layout.ObjectArrayElements && c.TypeName == typeName {
			return c
		}
		if found := c.findArrayElements(typeName); found != nil {
			return found
		}
	}
	return nil
}

// BuildSizesBottomUp gives every zero sized node the size of its children:
// their sum, or for a union the largest member.
func (t *TypeTree) BuildSizesBottomUp() {
	if !t.Empty() {
		t.root.buildSizesBottomUp()
	}
}

func (n *Node) buildSizesBottomUp() {
	for _, c := range n.Children {
		c.buildSizesBottomUp()
	}
	if n.FullSizeBits() != 0 {
		return
	}
	var size int64
	for _, c := range n.Children {
		if n.Union {
			size = max(size, c.FullSizeBits())
		} else {
			size += c.FullSizeBits()
		}
	}
	n.SizeBits = size
}

// InferOffsetsFromSizes packs children contiguously in their current order,
// starting from a root at offset 0. Union members stay at offset 0.
func (t *TypeTree) InferOffsetsFromSizes() {
	if t.Empty() {
		return
	}
	t.root.GlobalOffsetBits = 0
	t.root.inferOffsetsFromSizes()
}

func (n *Node) inferOffsetsFromSizes() {
	var cur int64
	for _, c := range n.Children {
		c.GlobalOffsetBits = n.GlobalOffsetBits + cur
		c.OffsetBits = cur
		if !n.Union {
			cur += c.FullSizeBits()
		}
		c.inferOffsetsFromSizes()
	}
}

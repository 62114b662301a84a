package typetree

import (
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// TypeTree is the resolved layout of one allocation.
type TypeTree struct {
	root          *Node
	name          string
	fromContainer bool
	containerName string
}

// New creates a tree. containerName names the container the allocation was
// made by; it is meaningful only when fromContainer is set.
func New(root *Node, name string, fromContainer bool, containerName string) *TypeTree {
	return &TypeTree{root: root, name: name, fromContainer: fromContainer, containerName: containerName}
}

// Root returns the root node.
func (t *TypeTree) Root() *Node { return t.root }

// Name returns the root type name.
func (t *TypeTree) Name() string { return t.name }

// FromContainer reports whether the allocation was made by a container.
func (t *TypeTree) FromContainer() bool { return t.fromContainer }

// ContainerName returns the allocating container.
func (t *TypeTree) ContainerName() string { return t.containerName }

// Empty reports whether the tree has no root.
func (t *TypeTree) Empty() bool { return t == nil || t.root == nil }

// IsRecordType reports whether the root is a record.
func (t *TypeTree) IsRecordType() bool { return !t.Empty() && t.root.IsRecord() }

// Equal compares trees by root type name.
func (t *TypeTree) Equal(other *TypeTree) bool {
	return other != nil && t.name == other.name
}

// Clone deep copies the tree.
func (t *TypeTree) Clone() *TypeTree {
	c := *t
	if t.root != nil {
		c.root = t.root.Clone()
	}
	return &c
}

// FindNodeWithTypeName returns the first descendant of the root with the
// exact type name. The root itself is not considered.
func (t *TypeTree) FindNodeWithTypeName(typeName string) (*Node, error) {
	if t.Empty() {
		return nil, errors.InvalidArgumentf("tree is empty")
	}
	if n := t.root.FindNodeWithTypeName(typeName); n != nil {
		return n, nil
	}
	return nil, errors.NotFoundf("merge node not found with type name: %s", typeName)
}

// Walk visits every node depth first, parents before children.
func (t *TypeTree) Walk(fn func(depth int, n *Node)) {
	if t.Empty() {
		return
	}
	var walk func(int, *Node)
	walk = func(depth int, n *Node) {
		fn(depth, n)
		for _, c := range n.Children {
			walk(depth+1, c)
		}
	}
	walk(0, t.root)
}

// TotalAccessCount is the total count on the root.
func (t *TypeTree) TotalAccessCount() uint64 {
	if t.Empty() {
		return 0
	}
	return t.root.Counters.Total
}

package typetree

import "fmt"

// Leaf is a leaf node and the labels of the nodes from the root to it,
// both ends included.
type Leaf struct {
	Path []string
	Node *Node
}

// Label renders the node as "offset|type|name", the frame format of the
// flame graph output.
func (n *Node) Label() string {
	return fmt.Sprintf("%d|%s|%s", n.OffsetBytes(), n.DisplayName(n.TypeName), n.Name)
}

// Leaves returns the leaves of the tree depth first.
func (t *TypeTree) Leaves() []Leaf {
	if t.Empty() {
		return nil
	}
	var out []Leaf
	var walk func(path []string, n *Node)
	walk = func(path []string, n *Node) {
		path = append(path[:len(path):len(path)], n.Label())
		if len(n.Children) == 0 {
			out = append(out, Leaf{Path: path, Node: n})
			return
		}
		for _, c := range n.Children {
			walk(path, c)
		}
	}
	walk(nil, t.root)
	return out
}

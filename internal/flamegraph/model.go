// Package flamegraph builds flame graphs of field accesses: one stack per
// leaf of every resolved type tree, weighted by the leaf's access count.
package flamegraph

// Node represents a frame in the flame graph tree.
type Node struct {
	Name     string  `json:"name"`
	Value    uint64  `json:"value"`
	Children []*Node `json:"children,omitempty"`

	childrenMap map[string]int
}

// NewNode creates a new flame graph node.
func NewNode(name string, value uint64) *Node {
	return &Node{
		Name:        name,
		Value:       value,
		Children:    make([]*Node, 0),
		childrenMap: make(map[string]int),
	}
}

// AddChild adds a child node and returns its index. A child with the same
// name is kept and its index returned.
func (n *Node) AddChild(child *Node) int {
	if n.childrenMap == nil {
		n.childrenMap = make(map[string]int)
	}
	if idx, exists := n.childrenMap[child.Name]; exists {
		return idx
	}
	idx := len(n.Children)
	n.childrenMap[child.Name] = idx
	n.Children = append(n.Children, child)
	return idx
}

// GetChild returns the child with the given name, or nil.
func (n *Node) GetChild(name string) *Node {
	if idx, exists := n.childrenMap[name]; exists {
		return n.Children[idx]
	}
	return nil
}

// FlameGraph represents the complete flame graph structure.
type FlameGraph struct {
	Root         *Node  `json:"root"`
	TotalSamples uint64 `json:"totalSamples"`
	MaxDepth     int    `json:"maxDepth,omitempty"`
}

// NewFlameGraph creates a new flame graph with a root node.
func NewFlameGraph() *FlameGraph {
	return &FlameGraph{Root: NewNode("root", 0)}
}

// Cleanup drops the lookup maps and prunes nodes below minPercent (0-100)
// of the total.
func (fg *FlameGraph) Cleanup(minPercent float64) {
	if fg.Root == nil {
		return
	}
	threshold := uint64(float64(fg.TotalSamples) * minPercent / 100.0)
	fg.cleanupNode(fg.Root, threshold)
}

func (fg *FlameGraph) cleanupNode(node *Node, threshold uint64) {
	node.childrenMap = nil

	if len(node.Children) == 0 {
		node.Children = nil
		return
	}

	filtered := make([]*Node, 0, len(node.Children))
	for _, child := range node.Children {
		if child.Value >= threshold {
			fg.cleanupNode(child, threshold)
			filtered = append(filtered, child)
		}
	}

	if len(filtered) == 0 {
		node.Children = nil
	} else {
		node.Children = filtered
	}
}

// CalculateMaxDepth calculates the maximum depth of the flame graph.
func (fg *FlameGraph) CalculateMaxDepth() int {
	if fg.Root == nil {
		return 0
	}
	fg.MaxDepth = fg.calculateDepth(fg.Root, 0)
	return fg.MaxDepth
}

func (fg *FlameGraph) calculateDepth(node *Node, currentDepth int) int {
	maxChildDepth := currentDepth
	for _, child := range node.Children {
		maxChildDepth = max(maxChildDepth, fg.calculateDepth(child, currentDepth+1))
	}
	return maxChildDepth
}

package typetree

import (
	"io"

	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// FieldAccessHistogram is the flat list of leaves of a tree in breadth
// first order, indexed by global byte offset.
type FieldAccessHistogram struct {
	rootTypeName string
	sizeBits     int64
	nodes        []*Node
	offsetToIdx  map[int64]int
}

// NewFieldAccessHistogram flattens the leaves of t.
func NewFieldAccessHistogram(t *TypeTree) (*FieldAccessHistogram, error) {
	if t.Empty() {
		return nil, errors.InvalidArgumentf("type tree is null")
	}
	if t.root.SizeBits < 0 {
		return nil, errors.InvalidArgumentf("type tree has negative size")
	}

	h := &FieldAccessHistogram{
		rootTypeName: t.name,
		sizeBits:     t.root.SizeBits,
		offsetToIdx:  make(map[int64]int),
	}
	queue := []*Node{t.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if len(n.Children) == 0 {
			h.offsetToIdx[n.GlobalOffsetBytes()] = len(h.nodes)
			h.nodes = append(h.nodes, CopyNode(n))
		}
		queue = append(queue, n.Children...)
	}
	return h, nil
}

// Name returns the root type name.
func (h *FieldAccessHistogram) Name() string { return h.rootTypeName }

// SizeBits returns the root size.
func (h *FieldAccessHistogram) SizeBits() int64 { return h.sizeBits }

// Len returns the number of leaves.
func (h *FieldAccessHistogram) Len() int { return len(h.nodes) }

// Nodes returns the leaves.
func (h *FieldAccessHistogram) Nodes() []*Node { return h.nodes }

// At returns the leaf registered at a global byte offset. When leaves share
// an offset the last one in breadth first order wins.
func (h *FieldAccessHistogram) At(globalOffsetBytes int64) (*Node, bool) {
	idx, ok := h.offsetToIdx[globalOffsetBytes]
	if !ok {
		return nil, false
	}
	return h.nodes[idx], true
}

// Dump writes a header line followed by one line per leaf.
func (h *FieldAccessHistogram) Dump(w io.Writer) error {
	d := &dumpWriter{w: w}
	d.printf("FieldAccessHistogram: %s\n", h.rootTypeName)
	for _, n := range h.nodes {
		d.printf("%s\n", n.String())
	}
	return d.err
}

package flamegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_AddChild(t *testing.T) {
	parent := NewNode("root", 0)
	idx1 := parent.AddChild(NewNode("a", 10))
	idx2 := parent.AddChild(NewNode("b", 20))
	idxDup := parent.AddChild(NewNode("a", 5))

	assert.Equal(t, 0, idx1)
	assert.Equal(t, 1, idx2)
	assert.Equal(t, 0, idxDup)
	assert.Len(t, parent.Children, 2)

	found := parent.GetChild("a")
	require.NotNil(t, found)
	assert.Equal(t, uint64(10), found.Value)
	assert.Nil(t, parent.GetChild("c"))
}

func TestFlameGraph_Cleanup(t *testing.T) {
	fg := NewFlameGraph()
	fg.Root.Value = 100
	fg.TotalSamples = 100
	big := NewNode("big", 95)
	big.AddChild(NewNode("leaf", 95))
	fg.Root.AddChild(big)
	fg.Root.AddChild(NewNode("small", 5))

	fg.Cleanup(10)

	require.Len(t, fg.Root.Children, 1)
	assert.Equal(t, "big", fg.Root.Children[0].Name)
	assert.Nil(t, fg.Root.childrenMap)
	assert.Nil(t, fg.Root.Children[0].Children[0].Children)
}

func TestFlameGraph_CalculateMaxDepth(t *testing.T) {
	fg := NewFlameGraph()
	assert.Equal(t, 0, fg.CalculateMaxDepth())

	a := NewNode("a", 1)
	a.AddChild(NewNode("b", 1))
	fg.Root.AddChild(a)
	fg.Root.AddChild(NewNode("c", 1))
	assert.Equal(t, 2, fg.CalculateMaxDepth())
	assert.Equal(t, 2, fg.MaxDepth)
}

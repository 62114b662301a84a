package flamegraph

import (
	"context"
	"io"
	"strings"

	"github.com/perf-analysis/fieldaccess/internal/histogram"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// Metric selects the counter a leaf contributes.
type Metric string

const (
	MetricTotal   Metric = "total"
	MetricAccess  Metric = "access"
	MetricLLCMiss Metric = "llc_miss"
)

// Value returns the counter of c selected by m.
func (m Metric) Value(c typetree.AccessCounters) uint64 {
	switch m {
	case MetricAccess:
		return c.Access
	case MetricLLCMiss:
		return c.LLCMiss
	default:
		return c.Total
	}
}

// ParseMetric parses a metric name. The empty name selects MetricTotal.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(s)); m {
	case "":
		return MetricTotal, nil
	case MetricTotal, MetricAccess, MetricLLCMiss:
		return m, nil
	default:
		return "", errors.InvalidArgumentf("unknown flame graph metric %q", s)
	}
}

// HeapFrame is the first frame of trees not allocated by a container.
const HeapFrame = "heap"

// Sample is one weighted stack, outermost frame first.
type Sample struct {
	Stack []string `json:"stack"`
	Value uint64   `json:"value"`
}

// GeneratorOptions holds configuration options for the flame graph generator.
type GeneratorOptions struct {
	// MinPercent is the minimum percentage for a node to be included.
	MinPercent float64

	// Metric is the counter used as weight.
	Metric Metric

	// SkipZero drops leaves without accesses.
	SkipZero bool
}

// DefaultGeneratorOptions returns default generator options.
func DefaultGeneratorOptions() *GeneratorOptions {
	return &GeneratorOptions{
		MinPercent: 0,
		Metric:     MetricTotal,
		SkipZero:   true,
	}
}

// Generator generates flame graphs from type trees.
type Generator struct {
	opts *GeneratorOptions
}

// NewGenerator creates a new flame graph generator.
func NewGenerator(opts *GeneratorOptions) *Generator {
	if opts == nil {
		opts = DefaultGeneratorOptions()
	}
	return &Generator{opts: opts}
}

// TreeSamples turns every leaf of tree into a sample. The stack starts with
// the allocating container, or HeapFrame, followed by the leaf path.
func (g *Generator) TreeSamples(tree *typetree.TypeTree) []Sample {
	first := RootFrame(tree.FromContainer(), tree.ContainerName())
	var out []Sample
	for _, leaf := range tree.Leaves() {
		if s, ok := g.LeafSample(first, leaf.Path, leaf.Node.Counters); ok {
			out = append(out, s)
		}
	}
	return out
}

// RootFrame returns the first frame of a tree's samples: the allocating
// container, or HeapFrame.
func RootFrame(fromContainer bool, containerName string) string {
	if fromContainer && containerName != "" {
		return containerName
	}
	return HeapFrame
}

// LeafSample weighs one leaf path with the configured metric. It reports
// false for leaves dropped by SkipZero.
func (g *Generator) LeafSample(first string, path []string, c typetree.AccessCounters) (Sample, bool) {
	v := g.opts.Metric.Value(c)
	if v == 0 && g.opts.SkipZero {
		return Sample{}, false
	}
	stack := make([]string, 0, len(path)+1)
	stack = append(stack, first)
	stack = append(stack, path...)
	return Sample{Stack: stack, Value: v}, true
}

// StoreSamples collects the samples of every entry of store.
func (g *Generator) StoreSamples(store *histogram.Store) []Sample {
	var out []Sample
	for _, e := range store.Entries() {
		out = append(out, g.TreeSamples(e.Tree)...)
	}
	return out
}

// Generate generates a flame graph from the given samples.
func (g *Generator) Generate(ctx context.Context, samples []Sample) (*FlameGraph, error) {
	fg := NewFlameGraph()

	for _, sample := range samples {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		appendStack(fg, sample)
	}

	fg.TotalSamples = fg.Root.Value
	fg.Cleanup(g.opts.MinPercent)
	fg.CalculateMaxDepth()

	return fg, nil
}

// GenerateFromStore generates the flame graph of every tree in store.
func (g *Generator) GenerateFromStore(ctx context.Context, store *histogram.Store) (*FlameGraph, error) {
	return g.Generate(ctx, g.StoreSamples(store))
}

func appendStack(fg *FlameGraph, sample Sample) {
	if len(sample.Stack) == 0 {
		return
	}

	node := fg.Root
	node.Value += sample.Value

	for _, frame := range sample.Stack {
		child := node.GetChild(frame)
		if child == nil {
			child = NewNode(frame, 0)
			node.AddChild(child)
		}
		child.Value += sample.Value
		node = child
	}
}

// Writer defines the interface for writing flame graph output.
type Writer interface {
	Write(fg *FlameGraph, w io.Writer) error
}

package flamegraph

import (
	"fmt"
	"io"

	"github.com/perf-analysis/fieldaccess/pkg/writer"
)

// JSONWriter writes flame graph data as JSON.
type JSONWriter = writer.JSONWriter[*FlameGraph]

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter() *JSONWriter {
	return writer.NewJSONWriter[*FlameGraph]()
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter() *JSONWriter {
	return writer.NewPrettyJSONWriter[*FlameGraph]()
}

// WriteToFile writes the flame graph in the format implied by path.
func WriteToFile(fg *FlameGraph, path string) error {
	return writer.WriteToFile(fg, path)
}

// FoldedWriter writes flame graph data in collapsed/folded format.
// This format is compatible with flamegraph.pl script.
type FoldedWriter struct{}

// NewFoldedWriter creates a new folded format writer.
func NewFoldedWriter() *FoldedWriter {
	return &FoldedWriter{}
}

// Write writes the flame graph in folded format.
// Format: stack1;stack2;stack3 count
func (w *FoldedWriter) Write(fg *FlameGraph, out io.Writer) error {
	if fg.Root == nil {
		return nil
	}
	for _, child := range fg.Root.Children {
		if err := w.writeNode(child, "", out); err != nil {
			return err
		}
	}
	return nil
}

func (w *FoldedWriter) writeNode(node *Node, prefix string, out io.Writer) error {
	currentStack := node.Name
	if prefix != "" {
		currentStack = prefix + ";" + node.Name
	}

	if len(node.Children) == 0 {
		_, err := fmt.Fprintf(out, "%s %d\n", currentStack, node.Value)
		return err
	}

	for _, child := range node.Children {
		if err := w.writeNode(child, currentStack, out); err != nil {
			return err
		}
	}
	return nil
}

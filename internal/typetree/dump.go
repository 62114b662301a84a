package typetree

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// dumpWriter keeps the first write error so the dump code can write freely.
type dumpWriter struct {
	w   io.Writer
	err error
}

func (d *dumpWriter) printf(format string, args ...interface{}) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}

func (d *dumpWriter) indent(level int) {
	if level > 0 {
		d.printf("%s", strings.Repeat("  ", level))
	}
}

// String renders the node as one histogram line.
func (n *Node) String() string {
	return "|" + n.DisplayName(n.TypeName) + "  " +
		strconv.FormatInt(n.GlobalOffsetBytes(), 10) + " " +
		strconv.FormatInt(n.SizeBytes(), 10) + "|"
}

// Dump writes the subtree as indented YAML-like text. Unless fullUnions is
// set, only the union member with the largest subtree is shown.
func (n *Node) Dump(w io.Writer, level int, fullUnions bool) error {
	d := &dumpWriter{w: w}
	n.dump(d, level, fullUnions)
	return d.err
}

func (n *Node) dump(d *dumpWriter, level int, fullUnions bool) {
	d.indent(level - 1)
	d.printf("- type:   %s", n.DisplayName(n.TypeName))
	if n.IsUnresolved() {
		d.printf(" (Unresolved)")
	}
	if n.Union {
		d.printf(" (Union)")
	}
	d.printf("\n")

	if level > 1 && !n.IsPadding() {
		d.indent(level)
		d.printf("name:   %s\n", n.Name)
	}
	d.indent(level)
	d.printf("size:   %d\n", n.SizeBytes())
	if n.Multiplicity > 1 {
		d.indent(level)
		d.printf("multiplicity: %d\n", n.Multiplicity)
	}
	d.indent(level)
	d.printf("total_access: %d\n", n.Counters.Total)
	d.indent(level)
	d.printf("global_offset: %d\n", n.GlobalOffsetBytes())

	if len(n.Children) == 0 {
		return
	}
	d.indent(level)
	d.printf("children: \n")
	if !fullUnions && n.Union {
		biggest := n.Children[0]
		for _, c := range n.Children[1:] {
			if c.SubtreeSize() > biggest.SubtreeSize() {
				biggest = c
			}
		}
		biggest.dump(d, level+1, fullUnions)
		return
	}
	for _, c := range n.Children {
		c.dump(d, level+1, fullUnions)
	}
}

// Dump writes the container header followed by the node dump.
func (t *TypeTree) Dump(w io.Writer, level int) error {
	if t.Empty() {
		return nil
	}
	d := &dumpWriter{w: w}
	container := "<none>"
	if t.fromContainer {
		container = t.containerName
	}
	d.indent(level)
	d.printf("container: %s\n", container)
	d.indent(level)
	d.printf("tree: \n")
	t.root.dump(d, level+1, false)
	return d.err
}

// DumpFlameGraph writes one collapsed stack line per node. Inner nodes
// carry 0 so only leaves contribute width. A nonzero id is appended to the
// root name to keep allocations of the same container apart.
func (t *TypeTree) DumpFlameGraph(w io.Writer, id uint64) error {
	if t.Empty() {
		return nil
	}
	rootName := t.containerName
	if id != 0 {
		rootName += strconv.FormatUint(id, 10)
	}
	d := &dumpWriter{w: w}
	t.root.dumpFlameGraph(d, nil, rootName)
	return d.err
}

func (n *Node) dumpFlameGraph(d *dumpWriter, path []string, rootName string) {
	var sb strings.Builder
	sb.WriteString(rootName)
	sb.WriteByte('_')
	for _, p := range path {
		sb.WriteString(p)
		sb.WriteByte(';')
	}
	name := n.Label()
	var count uint64
	if len(n.Children) == 0 {
		count = n.Counters.Total
	}
	d.printf("%s%s %d\n", sb.String(), name, count)

	childPath := append(path[:len(path):len(path)], name)
	for _, c := range n.Children {
		c.dumpFlameGraph(d, childPath, rootName)
	}
}

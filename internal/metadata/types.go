// Package metadata describes the per-type debug information the layout
// resolver queries: type descriptors, formal template parameters of
// functions and heap allocation sites.
package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// DataKind classifies a type descriptor.
type DataKind int

const (
	KindUnknown DataKind = iota
	KindClass
	KindStruct
	KindBaseType
	KindPointerLike
	KindNamespace
	KindSubprogram
	KindUnion
	KindEnum
)

var kindNames = map[DataKind]string{
	KindUnknown:     "unknown",
	KindClass:       "class",
	KindStruct:      "struct",
	KindBaseType:    "base_type",
	KindPointerLike: "pointer_like",
	KindNamespace:   "namespace",
	KindSubprogram:  "subprogram",
	KindUnion:       "union",
	KindEnum:        "enum",
}

func (k DataKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseDataKind parses the snake case kind name used in snapshots.
func ParseDataKind(s string) (DataKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindUnknown, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown data kind %q", s)
}

// IsRecord reports whether the kind has fields.
func (k DataKind) IsRecord() bool {
	return k == KindClass || k == KindStruct || k == KindUnion
}

// Field is one data member of a record. Offset is in bytes.
type Field struct {
	Name      string
	TypeName  string
	Offset    int64
	Inherited bool
}

// TypeDescriptor is the debug information of one named type. Size is in
// bytes.
type TypeDescriptor struct {
	Name             string
	Size             int64
	Kind             DataKind
	Fields           []Field
	FormalParameters []string
	Constants        map[string]int64
}

// OffsetIndex groups field indices by byte offset. Offsets come back sorted
// and indices keep declaration order.
func (t *TypeDescriptor) OffsetIndex() ([]int64, map[int64][]int) {
	index := make(map[int64][]int)
	for i, f := range t.Fields {
		index[f.Offset] = append(index[f.Offset], i)
	}
	offsets := make([]int64, 0, len(index))
	for off := range index {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets, index
}

// Constant returns a named compile-time constant of the type.
func (t *TypeDescriptor) Constant(name string) (int64, bool) {
	v, ok := t.Constants[name]
	return v, ok
}

// Frame is one call stack entry.
type Frame struct {
	FunctionName string `json:"function_name" yaml:"function_name"`
	LineOffset   int64  `json:"line_offset" yaml:"line_offset"`
	Column       int64  `json:"column" yaml:"column"`
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d:%d", f.FunctionName, f.LineOffset, f.Column)
}

// CallStack is ordered innermost first; frame 0 is the allocation function.
type CallStack []Frame

// FunctionNames returns the function name of every frame.
func (c CallStack) FunctionNames() []string {
	names := make([]string, len(c))
	for i, f := range c {
		names[i] = f.FunctionName
	}
	return names
}

// Key returns a stable identity for the call stack.
func (c CallStack) Key() string {
	var sb strings.Builder
	for i, f := range c {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(f.String())
	}
	return sb.String()
}

// Package layout defines the persisted object layout format: a recursive
// record of named, typed, sized subobjects. Resolved type trees are exported
// to it and container templates are authored in it.
package layout

import (
	"fmt"
)

// TypeKind classifies the type of a subobject.
type TypeKind int

const (
	TypeUnknown TypeKind = iota
	TypeBuiltin
	TypeRecord
	TypeIndirection
	TypeArray
	TypePadding
	TypeEnum
)

var typeKindNames = []string{
	"UNKNOWN_TYPE",
	"BUILTIN_TYPE",
	"RECORD_TYPE",
	"INDIRECTION_TYPE",
	"ARRAY_TYPE",
	"PADDING_TYPE",
	"ENUM_TYPE",
}

func (k TypeKind) String() string {
	if k < 0 || int(k) >= len(typeKindNames) {
		return typeKindNames[TypeUnknown]
	}
	return typeKindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k TypeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TypeKind) UnmarshalText(text []byte) error {
	for i, n := range typeKindNames {
		if n == string(text) {
			*k = TypeKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown type kind %q", text)
}

// ObjectKind classifies the role of a subobject inside its parent.
type ObjectKind int

const (
	ObjectUnknown ObjectKind = iota
	ObjectBase
	ObjectField
	ObjectPadding
	ObjectArrayElements
	ObjectVirtualBase
)

var objectKindNames = []string{
	"UNKNOWN",
	"BASE",
	"FIELD",
	"PADDING",
	"ARRAY_ELEMENTS",
	"VIRTUAL_BASE",
}

func (k ObjectKind) String() string {
	if k < 0 || int(k) >= len(objectKindNames) {
		return objectKindNames[ObjectUnknown]
	}
	return objectKindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k ObjectKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ObjectKind) UnmarshalText(text []byte) error {
	for i, n := range objectKindNames {
		if n == string(text) {
			*k = ObjectKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown object kind %q", text)
}

// Properties describes one subobject. Sizes and offsets are in bits; the
// offset is relative to the parent.
type Properties struct {
	Name         string     `json:"name,omitempty" yaml:"name,omitempty"`
	TypeName     string     `json:"type_name,omitempty" yaml:"type_name,omitempty"`
	Kind         ObjectKind `json:"kind" yaml:"kind"`
	TypeKind     TypeKind   `json:"type_kind" yaml:"type_kind"`
	SizeBits     int64      `json:"size_bits" yaml:"size_bits"`
	Multiplicity int64      `json:"multiplicity,omitempty" yaml:"multiplicity,omitempty"`
	AlignBits    int64      `json:"align_bits,omitempty" yaml:"align_bits,omitempty"`
	OffsetBits   int64      `json:"offset_bits" yaml:"offset_bits"`
}

// ObjectLayout is a subobject and its ordered children.
type ObjectLayout struct {
	Properties Properties     `json:"properties" yaml:"properties"`
	Subobjects []ObjectLayout `json:"subobjects,omitempty" yaml:"subobjects,omitempty"`
}

// Count returns the number of records in the layout including itself.
func (l *ObjectLayout) Count() int {
	n := 1
	for i := range l.Subobjects {
		n += l.Subobjects[i].Count()
	}
	return n
}

// Walk visits the layout depth first, parents before children. Returning
// false from fn skips the children of that record.
func (l *ObjectLayout) Walk(fn func(depth int, o *ObjectLayout) bool) {
	l.walk(0, fn)
}

func (l *ObjectLayout) walk(depth int, fn func(int, *ObjectLayout) bool) {
	if !fn(depth, l) {
		return
	}
	for i := range l.Subobjects {
		l.Subobjects[i].walk(depth+1, fn)
	}
}

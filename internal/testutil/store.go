package testutil

import (
	"github.com/perf-analysis/fieldaccess/internal/metadata"
)

// StoreBuilder assembles a metadata.MemoryStore fluently.
type StoreBuilder struct {
	store *metadata.MemoryStore
}

// NewStoreBuilder creates a builder preloaded with the common builtin types.
func NewStoreBuilder() *StoreBuilder {
	b := &StoreBuilder{store: metadata.NewMemoryStore()}
	return b.
		Builtin("char", 1).
		Builtin("int", 4).
		Builtin("unsigned int", 4).
		Builtin("long", 8).
		Builtin("size_t", 8).
		Builtin("double", 8)
}

// Builtin adds a base type of size bytes.
func (b *StoreBuilder) Builtin(name string, size int64) *StoreBuilder {
	b.store.AddType(&metadata.TypeDescriptor{Name: name, Size: size, Kind: metadata.KindBaseType})
	return b
}

// Struct adds a struct of size bytes.
func (b *StoreBuilder) Struct(name string, size int64, fields ...metadata.Field) *StoreBuilder {
	b.store.AddType(&metadata.TypeDescriptor{Name: name, Size: size, Kind: metadata.KindStruct, Fields: fields})
	return b
}

// Union adds a union of size bytes.
func (b *StoreBuilder) Union(name string, size int64, fields ...metadata.Field) *StoreBuilder {
	b.store.AddType(&metadata.TypeDescriptor{Name: name, Size: size, Kind: metadata.KindUnion, Fields: fields})
	return b
}

// Template adds a class carrying only formal parameters.
func (b *StoreBuilder) Template(name string, params ...string) *StoreBuilder {
	b.store.AddType(&metadata.TypeDescriptor{Name: name, Kind: metadata.KindClass, FormalParameters: params})
	return b
}

// Type adds a descriptor as is.
func (b *StoreBuilder) Type(desc *metadata.TypeDescriptor) *StoreBuilder {
	b.store.AddType(desc)
	return b
}

// Function registers the formal parameters of a function.
func (b *StoreBuilder) Function(linkageName string, params ...string) *StoreBuilder {
	b.store.AddFormalParameters(linkageName, params)
	return b
}

// AllocSite registers a heap allocation site.
func (b *StoreBuilder) AllocSite(frame metadata.Frame, typeName string) *StoreBuilder {
	b.store.AddHeapAllocSite(frame, typeName)
	return b
}

// Build returns the store.
func (b *StoreBuilder) Build() *metadata.MemoryStore {
	return b.store
}

// Field is shorthand for a non-inherited field at a byte offset.
func Field(name, typeName string, offset int64) metadata.Field {
	return metadata.Field{Name: name, TypeName: typeName, Offset: offset}
}

// Frames builds a call stack of the given function names.
func Frames(names ...string) metadata.CallStack {
	cs := make(metadata.CallStack, len(names))
	for i, n := range names {
		cs[i] = metadata.Frame{FunctionName: n}
	}
	return cs
}

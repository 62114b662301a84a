package metadata

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/perf-analysis/fieldaccess/pkg/compression"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// Snapshot is the serialized form of a metadata store.
type Snapshot struct {
	PointerWidthBits int64                `json:"pointer_width_bits,omitempty" yaml:"pointer_width_bits,omitempty" toml:"pointer_width_bits,omitempty"`
	Types            []SnapshotType       `json:"types" yaml:"types" toml:"types"`
	FormalParameters []SnapshotParameters `json:"formal_parameters,omitempty" yaml:"formal_parameters,omitempty" toml:"formal_parameters,omitempty"`
	HeapAllocSites   []SnapshotAllocSite  `json:"heap_alloc_sites,omitempty" yaml:"heap_alloc_sites,omitempty" toml:"heap_alloc_sites,omitempty"`
}

// SnapshotType is one serialized type descriptor.
type SnapshotType struct {
	Name             string           `json:"name" yaml:"name" toml:"name"`
	Size             int64            `json:"size" yaml:"size" toml:"size"`
	Kind             string           `json:"kind,omitempty" yaml:"kind,omitempty" toml:"kind,omitempty"`
	Fields           []SnapshotField  `json:"fields,omitempty" yaml:"fields,omitempty" toml:"fields,omitempty"`
	FormalParameters []string         `json:"formal_parameters,omitempty" yaml:"formal_parameters,omitempty" toml:"formal_parameters,omitempty"`
	Constants        map[string]int64 `json:"constants,omitempty" yaml:"constants,omitempty" toml:"constants,omitempty"`
}

// SnapshotField is one serialized field.
type SnapshotField struct {
	Name      string `json:"name" yaml:"name" toml:"name"`
	Type      string `json:"type" yaml:"type" toml:"type"`
	Offset    int64  `json:"offset" yaml:"offset" toml:"offset"`
	Inherited bool   `json:"inherited,omitempty" yaml:"inherited,omitempty" toml:"inherited,omitempty"`
}

// SnapshotParameters lists the template parameters of one function.
type SnapshotParameters struct {
	Function   string   `json:"function" yaml:"function" toml:"function"`
	Parameters []string `json:"parameters" yaml:"parameters" toml:"parameters"`
}

// SnapshotAllocSite maps a call site to the type it allocates.
type SnapshotAllocSite struct {
	Function   string `json:"function" yaml:"function" toml:"function"`
	LineOffset int64  `json:"line_offset" yaml:"line_offset" toml:"line_offset"`
	Column     int64  `json:"column" yaml:"column" toml:"column"`
	Type       string `json:"type" yaml:"type" toml:"type"`
}

// ParseSnapshot decodes data in the given format: yaml, json or toml.
func ParseSnapshot(format string, data []byte) (*Snapshot, error) {
	var snap Snapshot
	var err error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &snap)
	case "json":
		err = json.Unmarshal(data, &snap)
	case "toml":
		_, err = toml.Decode(string(data), &snap)
	default:
		return nil, errors.InvalidArgumentf("unsupported snapshot format %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeParseError, "decode metadata snapshot", err)
	}
	return &snap, nil
}

// LoadSnapshotFile reads a snapshot whose format follows the file extension,
// optionally compressed with .gz or .zst.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	data, inner, err := compression.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeParseError, "read metadata snapshot", err)
	}
	return ParseSnapshot(strings.TrimPrefix(filepath.Ext(inner), "."), data)
}

// LoadStore reads a snapshot file into a new MemoryStore.
func LoadStore(path string) (*MemoryStore, error) {
	snap, err := LoadSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	return snap.ToStore()
}

// ToStore builds a MemoryStore from the snapshot.
func (s *Snapshot) ToStore() (*MemoryStore, error) {
	store := NewMemoryStore()
	if s.PointerWidthBits > 0 {
		store.SetPointerWidthBits(s.PointerWidthBits)
	}
	for _, t := range s.Types {
		desc, err := t.Descriptor()
		if err != nil {
			return nil, err
		}
		store.AddType(desc)
	}
	for _, p := range s.FormalParameters {
		store.AddFormalParameters(p.Function, p.Parameters)
	}
	for _, a := range s.HeapAllocSites {
		store.AddHeapAllocSite(Frame{FunctionName: a.Function, LineOffset: a.LineOffset, Column: a.Column}, a.Type)
	}
	return store, nil
}

// Descriptor converts the serialized type.
func (t SnapshotType) Descriptor() (*TypeDescriptor, error) {
	if t.Name == "" {
		return nil, errors.InvalidArgumentf("snapshot type without a name")
	}
	kind, err := ParseDataKind(t.Kind)
	if err != nil {
		return nil, errors.InvalidArgumentf("type %q: %v", t.Name, err)
	}
	desc := &TypeDescriptor{
		Name:             t.Name,
		Size:             t.Size,
		Kind:             kind,
		FormalParameters: t.FormalParameters,
		Constants:        t.Constants,
	}
	for _, f := range t.Fields {
		desc.Fields = append(desc.Fields, Field{Name: f.Name, TypeName: f.Type, Offset: f.Offset, Inherited: f.Inherited})
	}
	return desc, nil
}

// SnapshotOf serializes a descriptor.
func SnapshotOf(desc *TypeDescriptor) SnapshotType {
	t := SnapshotType{
		Name:             desc.Name,
		Size:             desc.Size,
		Kind:             desc.Kind.String(),
		FormalParameters: desc.FormalParameters,
		Constants:        desc.Constants,
	}
	for _, f := range desc.Fields {
		t.Fields = append(t.Fields, SnapshotField{Name: f.Name, Type: f.TypeName, Offset: f.Offset, Inherited: f.Inherited})
	}
	return t
}

// Export serializes the store with types sorted by name.
func (s *MemoryStore) Export() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{PointerWidthBits: s.pointerBits}
	for _, t := range s.types {
		snap.Types = append(snap.Types, SnapshotOf(t))
	}
	sort.Slice(snap.Types, func(i, j int) bool { return snap.Types[i].Name < snap.Types[j].Name })

	for fn, params := range s.formalParams {
		snap.FormalParameters = append(snap.FormalParameters, SnapshotParameters{Function: fn, Parameters: params})
	}
	sort.Slice(snap.FormalParameters, func(i, j int) bool {
		return snap.FormalParameters[i].Function < snap.FormalParameters[j].Function
	})

	for frame, typ := range s.allocSites {
		snap.HeapAllocSites = append(snap.HeapAllocSites, SnapshotAllocSite{
			Function: frame.FunctionName, LineOffset: frame.LineOffset, Column: frame.Column, Type: typ,
		})
	}
	sort.Slice(snap.HeapAllocSites, func(i, j int) bool {
		a, b := snap.HeapAllocSites[i], snap.HeapAllocSites[j]
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		if a.LineOffset != b.LineOffset {
			return a.LineOffset < b.LineOffset
		}
		return a.Column < b.Column
	})
	return snap
}

// Fingerprint hashes the exported content of the store. Two stores holding
// the same metadata share a fingerprint whatever order it was added in.
func (s *MemoryStore) Fingerprint() (string, error) {
	data, err := json.Marshal(s.Export())
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, "fingerprint metadata", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("snapshot(%d types, %d functions, %d alloc sites)",
		len(s.Types), len(s.FormalParameters), len(s.HeapAllocSites))
}

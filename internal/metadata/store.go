package metadata

import (
	"sync"

	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// DefaultPointerWidthBits is the pointer width of the 64-bit targets the
// tool supports.
const DefaultPointerWidthBits = 64

// Store is the queryable source of type metadata. Missing entries are
// reported with errors that satisfy errors.IsNotFound.
type Store interface {
	LookupType(name string) (*TypeDescriptor, error)
	LookupFormalParameters(linkageName string) ([]string, error)
	LookupHeapAllocSite(frame Frame) (string, error)
	PointerWidthBits() int64
}

// Fingerprinter is a Store that can identify its content. Resolved trees are
// only shared between stores with equal fingerprints.
type Fingerprinter interface {
	Fingerprint() (string, error)
}

// MemoryStore is a Store backed by maps. It is safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	types        map[string]*TypeDescriptor
	formalParams map[string][]string
	allocSites   map[Frame]string
	pointerBits  int64
}

// NewMemoryStore creates an empty store with 64-bit pointers.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		types:        make(map[string]*TypeDescriptor),
		formalParams: make(map[string][]string),
		allocSites:   make(map[Frame]string),
		pointerBits:  DefaultPointerWidthBits,
	}
}

// SetPointerWidthBits overrides the pointer width.
func (s *MemoryStore) SetPointerWidthBits(bits int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointerBits = bits
}

// AddType registers or replaces a type descriptor.
func (s *MemoryStore) AddType(t *TypeDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[t.Name] = t
}

// AddFormalParameters registers the template parameters of a function.
func (s *MemoryStore) AddFormalParameters(linkageName string, params []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formalParams[linkageName] = params
}

// AddHeapAllocSite registers the type allocated at a call site.
func (s *MemoryStore) AddHeapAllocSite(frame Frame, typeName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocSites[frame] = typeName
}

// LookupType returns the descriptor of name.
func (s *MemoryStore) LookupType(name string) (*TypeDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.types[name]; ok {
		return t, nil
	}
	return nil, errors.NotFoundf("type %q", name)
}

// LookupFormalParameters returns the template parameters of a function.
func (s *MemoryStore) LookupFormalParameters(linkageName string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.formalParams[linkageName]; ok {
		return p, nil
	}
	return nil, errors.NotFoundf("formal parameters of %q", linkageName)
}

// LookupHeapAllocSite returns the type allocated at frame.
func (s *MemoryStore) LookupHeapAllocSite(frame Frame) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.allocSites[frame]; ok {
		return t, nil
	}
	return "", errors.NotFoundf("heap alloc site %s", frame)
}

// PointerWidthBits returns the pointer width in bits.
func (s *MemoryStore) PointerWidthBits() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pointerBits
}

// TypeNames returns the registered type names.
func (s *MemoryStore) TypeNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.types))
	for n := range s.types {
		names = append(names, n)
	}
	return names
}
